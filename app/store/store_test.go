package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "feed.xml")
	s := NewFileStore(path)
	ctx := context.Background()

	doc, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, doc)

	require.NoError(t, s.Save(ctx, Document{Data: []byte("<rss>first</rss>")}))
	require.NoError(t, s.Save(ctx, Document{Data: []byte("<rss>second</rss>")}))

	doc, err = s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "<rss>second</rss>", string(doc.Data))
	assert.False(t, doc.GeneratedAt.IsZero())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestFileStore_CancelledContextKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.xml")
	s := NewFileStore(path)
	require.NoError(t, s.Save(context.Background(), Document{Data: []byte("good")}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, s.Save(ctx, Document{Data: []byte("bad")}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "good", string(data))
}

type memoryStore struct {
	name    string
	doc     *Document
	saveErr error
	loadErr error
}

func (m *memoryStore) Name() string { return m.name }

func (m *memoryStore) Save(_ context.Context, doc Document) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.doc = &doc
	return nil
}

func (m *memoryStore) Load(context.Context) (*Document, error) {
	return m.doc, m.loadErr
}

func TestMultiStore_SaveToAll(t *testing.T) {
	a := &memoryStore{name: "a"}
	b := &memoryStore{name: "b", saveErr: errors.New("down")}
	c := &memoryStore{name: "c"}

	err := NewMultiStore(a, b, c).Save(context.Background(), Document{Data: []byte("x"), RunID: "run-1", GeneratedAt: time.Now()})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "b: down")
	assert.Equal(t, "run-1", a.doc.RunID)
	assert.Equal(t, "run-1", c.doc.RunID)
}

func TestMultiStore_LoadFirstAvailable(t *testing.T) {
	empty := &memoryStore{name: "empty"}
	broken := &memoryStore{name: "broken", loadErr: errors.New("timeout")}
	full := &memoryStore{name: "full", doc: &Document{Data: []byte("feed")}}

	doc, err := NewMultiStore(empty, broken, full).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "feed", string(doc.Data))

	doc, err = NewMultiStore(empty, broken).Load(context.Background())
	assert.Nil(t, doc)
	assert.Error(t, err)

	doc, err = NewMultiStore(empty).Load(context.Background())
	assert.Nil(t, doc)
	assert.NoError(t, err)
}

func TestRedisStore_DefaultKey(t *testing.T) {
	s := newRedisStore(nil, "")

	assert.Equal(t, DefaultRedisKey, s.key)
	assert.Equal(t, "redis", s.Name())
}

func TestRedisStore_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	key := "vehicle-feed:test:" + time.Now().Format("150405.000000")
	s, err := NewRedisStore(ctx, addr, "", 0, key)
	require.NoError(t, err)
	defer s.Close()
	defer s.client.Del(ctx, key)

	generated := time.Unix(1767225600, 0)
	require.NoError(t, s.Save(ctx, Document{Data: []byte("<rss/>"), RunID: "run-9", Items: 4, GeneratedAt: generated}))

	doc, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "<rss/>", string(doc.Data))
	assert.Equal(t, "run-9", doc.RunID)
	assert.Equal(t, 4, doc.Items)
	assert.True(t, generated.Equal(doc.GeneratedAt))
}
