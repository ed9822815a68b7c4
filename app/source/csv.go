package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/oli-a11y/albar-autos-feed/app/feed"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// CSVSource reads a dealer stock export with a header row.
type CSVSource struct {
	location string
	fetcher  *Fetcher
}

func NewCSVSource(location string, fetcher *Fetcher) *CSVSource {
	return &CSVSource{location: location, fetcher: fetcher}
}

func (s *CSVSource) Records(ctx context.Context) ([]feed.Record, error) {
	data, err := s.fetcher.Fetch(ctx, s.location)
	if err != nil {
		return nil, unavailable(err)
	}

	records, err := ParseCSV(data)
	if err != nil {
		return nil, unavailable(err)
	}

	slog.Info("Source loaded", "type", TypeCSV, "location", s.location, "records", len(records))

	return records, nil
}

// ParseCSV turns an export into one record per data row. Exports that are
// not valid UTF-8 are decoded as Windows-1252.
func ParseCSV(data []byte) ([]feed.Record, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode CSV: %w", err)
		}
		data = decoded
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	headers, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	var records []feed.Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}

		record := make(feed.Record, len(headers))
		empty := true
		for i, value := range row {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			record[headers[i]] = value
			if strings.TrimSpace(value) != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		records = append(records, record)
	}

	return records, nil
}
