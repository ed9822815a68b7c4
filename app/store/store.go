package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Document is a generated feed together with the run that produced it.
type Document struct {
	Data        []byte
	RunID       string
	Items       int
	GeneratedAt time.Time
}

// FeedStore keeps the last good feed document. Load returns nil, nil when
// nothing has been stored yet.
type FeedStore interface {
	Save(ctx context.Context, doc Document) error
	Load(ctx context.Context) (*Document, error)
	Name() string
}

// MultiStore writes to every store and reads from the first one holding a
// document.
type MultiStore struct {
	stores []FeedStore
}

func NewMultiStore(stores ...FeedStore) *MultiStore {
	return &MultiStore{stores: stores}
}

func (m *MultiStore) Save(ctx context.Context, doc Document) error {
	var errs []error
	for _, s := range m.stores {
		if err := s.Save(ctx, doc); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiStore) Load(ctx context.Context) (*Document, error) {
	var errs []error
	for _, s := range m.stores {
		doc, err := s.Load(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		if doc != nil {
			return doc, nil
		}
	}
	return nil, errors.Join(errs...)
}

func (m *MultiStore) Name() string {
	return "multi"
}
