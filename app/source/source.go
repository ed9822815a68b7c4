package source

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/oli-a11y/albar-autos-feed/app/feed"
)

// Source hands the pipeline the raw vehicle records for one run.
// Failures are wrapped with feed.ErrSourceUnavailable.
type Source interface {
	Records(ctx context.Context) ([]feed.Record, error)
}

type Type string

const (
	TypeAuto Type = "auto"
	TypeCSV  Type = "csv"
	TypeJSON Type = "json"
	TypeHTML Type = "html"
)

func New(typ Type, location string, fetcher *Fetcher) (Source, error) {
	if location == "" {
		return nil, fmt.Errorf("source location is required")
	}

	if typ == "" || typ == TypeAuto {
		typ = DetectType(location)
	}

	switch typ {
	case TypeCSV:
		return NewCSVSource(location, fetcher), nil
	case TypeJSON:
		return NewJSONSource(location, fetcher), nil
	case TypeHTML:
		return NewHTMLSource(location, fetcher), nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", typ)
	}
}

// DetectType guesses the source type from the location's extension. Remote
// locations without a known extension are treated as listing pages.
func DetectType(location string) Type {
	p := location
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	switch strings.ToLower(path.Ext(p)) {
	case ".csv":
		return TypeCSV
	case ".json":
		return TypeJSON
	}

	if isRemote(location) {
		return TypeHTML
	}
	return TypeCSV
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", feed.ErrSourceUnavailable, err)
}
