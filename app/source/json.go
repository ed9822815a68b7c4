package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/oli-a11y/albar-autos-feed/app/feed"
)

const listSeparator = "|"

// JSONSource reads a scraper dump: an array of vehicle objects, or an object
// holding that array under "vehicles" or "items".
type JSONSource struct {
	location string
	fetcher  *Fetcher
}

func NewJSONSource(location string, fetcher *Fetcher) *JSONSource {
	return &JSONSource{location: location, fetcher: fetcher}
}

func (s *JSONSource) Records(ctx context.Context) ([]feed.Record, error) {
	data, err := s.fetcher.Fetch(ctx, s.location)
	if err != nil {
		return nil, unavailable(err)
	}

	records, err := ParseJSON(data)
	if err != nil {
		return nil, unavailable(err)
	}

	slog.Info("Source loaded", "type", TypeJSON, "location", s.location, "records", len(records))

	return records, nil
}

func ParseJSON(data []byte) ([]feed.Record, error) {
	objects, err := decodeObjects(data)
	if err != nil {
		return nil, err
	}

	records := make([]feed.Record, 0, len(objects))
	for _, obj := range objects {
		record := make(feed.Record, len(obj))
		for key, value := range obj {
			if s, ok := stringify(value); ok {
				record[key] = s
			}
		}
		mergePhotos(record, obj)
		records = append(records, record)
	}

	return records, nil
}

func decodeObjects(data []byte) ([]map[string]any, error) {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(data) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if data[0] == '[' {
		var objects []map[string]any
		if err := dec.Decode(&objects); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
		return objects, nil
	}

	var wrapper struct {
		Vehicles []map[string]any `json:"vehicles"`
		Items    []map[string]any `json:"items"`
	}
	if err := dec.Decode(&wrapper); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if wrapper.Vehicles != nil {
		return wrapper.Vehicles, nil
	}
	return wrapper.Items, nil
}

// stringify renders scalars and arrays of scalars. Nested objects and nulls
// are dropped.
func stringify(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		return formatNumber(v), true
	case bool:
		return strconv.FormatBool(v), true
	case []any:
		parts := make([]string, 0, len(v))
		for _, elem := range v {
			if s, ok := stringify(elem); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, listSeparator), true
	default:
		return "", false
	}
}

func formatNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if f, err := n.Float64(); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return n.String()
}

// mergePhotos folds image_link and additional_image_link into a single
// photos field unless the dump already carries one.
func mergePhotos(record feed.Record, obj map[string]any) {
	if _, ok := record["photos"]; ok {
		return
	}

	var photos []string
	if primary, ok := stringify(obj["image_link"]); ok && strings.TrimSpace(primary) != "" {
		photos = append(photos, strings.TrimSpace(primary))
	}

	switch additional := obj["additional_image_link"].(type) {
	case []any:
		for _, elem := range additional {
			if s, ok := stringify(elem); ok && strings.TrimSpace(s) != "" {
				photos = append(photos, strings.TrimSpace(s))
			}
		}
	case string:
		photos = append(photos, feed.SplitPhotos(additional)...)
	}

	if len(photos) > 0 {
		record["photos"] = strings.Join(photos, listSeparator)
	}
}
