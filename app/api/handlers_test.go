package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oli-a11y/albar-autos-feed/app/database"
	"github.com/oli-a11y/albar-autos-feed/app/metrics"
	"github.com/oli-a11y/albar-autos-feed/app/store"
	"github.com/oli-a11y/albar-autos-feed/app/tasks"
)

const testKey = "secret"

type memoryStore struct {
	doc *store.Document
	err error
}

func (m *memoryStore) Name() string { return "memory" }

func (m *memoryStore) Save(_ context.Context, doc store.Document) error {
	m.doc = &doc
	return nil
}

func (m *memoryStore) Load(context.Context) (*store.Document, error) {
	return m.doc, m.err
}

type fakeScheduler struct {
	origins []string
	err     error
}

func (f *fakeScheduler) Start() {}
func (f *fakeScheduler) Stop()  {}

func (f *fakeScheduler) EnqueueTask(tasks.TaskInterface) error {
	return f.err
}

func (f *fakeScheduler) Trigger(origin string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.origins = append(f.origins, origin)
	return "task-1", nil
}

func setupRuns(t *testing.T) database.RunRepository {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, _, err = database.RunMigrations(db)
	require.NoError(t, err)

	return database.NewRunRepository(db)
}

func newTestServer(t *testing.T, feedStore store.FeedStore, runs database.RunRepository, scheduler tasks.TaskSchedulerInterface, key string) *gin.Engine {
	t.Helper()
	return NewServer(NewHandler(feedStore, runs, scheduler, metrics.New().Handler()), key)
}

func serve(r *gin.Engine, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestGetFeed(t *testing.T) {
	generated := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	feedStore := &memoryStore{doc: &store.Document{
		Data:        []byte(`<rss version="2.0"></rss>`),
		RunID:       "run-1",
		Items:       2,
		GeneratedAt: generated,
	}}
	r := newTestServer(t, feedStore, nil, &fakeScheduler{}, "")

	rec := serve(r, http.MethodGet, "/feed.xml", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "2", rec.Header().Get("X-Feed-Items"))
	assert.Equal(t, "run-1", rec.Header().Get("X-Run-ID"))
	assert.Equal(t, "Sun, 01 Mar 2026 09:00:00 GMT", rec.Header().Get("Last-Modified"))
	assert.Equal(t, `<rss version="2.0"></rss>`, rec.Body.String())
}

func TestGetFeed_NotGenerated(t *testing.T) {
	r := newTestServer(t, &memoryStore{}, nil, &fakeScheduler{}, "")

	rec := serve(r, http.MethodGet, "/feed.xml", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetFeed_StoreError(t *testing.T) {
	r := newTestServer(t, &memoryStore{err: errors.New("redis down")}, nil, &fakeScheduler{}, "")

	rec := serve(r, http.MethodGet, "/feed.xml", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetHealth(t *testing.T) {
	ctx := context.Background()
	runs := setupRuns(t)
	require.NoError(t, runs.CreateRun(ctx, database.Run{ID: "run-1", Origin: "cli", StartedAt: time.Now()}))
	require.NoError(t, runs.FinishRun(ctx, "run-1", database.RunOutcome{Status: database.RunStatusSuccess, Included: 2}))

	feedStore := &memoryStore{doc: &store.Document{Data: []byte("<rss/>"), RunID: "run-1", Items: 2, GeneratedAt: time.Now()}}
	r := newTestServer(t, feedStore, runs, &fakeScheduler{}, "")

	rec := serve(r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "timestamp")
	assert.Contains(t, body, "last_success")
	assert.NotContains(t, body, "last_failure")

	feedInfo, ok := body["feed"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "run-1", feedInfo["run_id"])
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestServer(t, &memoryStore{}, nil, &fakeScheduler{}, "")

	rec := serve(r, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAPI_DisabledWithoutKey(t *testing.T) {
	r := newTestServer(t, &memoryStore{}, setupRuns(t), &fakeScheduler{}, "")

	rec := serve(r, http.MethodGet, "/api/runs", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_Auth(t *testing.T) {
	r := newTestServer(t, &memoryStore{}, setupRuns(t), &fakeScheduler{}, testKey)

	tests := []struct {
		name    string
		headers map[string]string
		code    int
	}{
		{"missing key", nil, http.StatusUnauthorized},
		{"wrong key", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"header key", map[string]string{"X-API-Key": testKey}, http.StatusOK},
		{"bearer key", map[string]string{"Authorization": "Bearer " + testKey}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(r, http.MethodGet, "/api/runs", tt.headers)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestAPIListRunsAndGetRun(t *testing.T) {
	ctx := context.Background()
	runs := setupRuns(t)
	started := time.Now().Add(-time.Minute)
	require.NoError(t, runs.CreateRun(ctx, database.Run{ID: "run-1", Origin: "schedule", SourceType: "csv", Source: "stock.csv", StartedAt: started}))
	require.NoError(t, runs.AddRejections(ctx, "run-1", []database.Rejection{{RecordIndex: 0, VehicleID: "AA11AAA", Reason: "zero price"}}))
	require.NoError(t, runs.FinishRun(ctx, "run-1", database.RunOutcome{Status: database.RunStatusSuccess, Records: 3, Included: 2, Rejected: 1}))

	r := newTestServer(t, &memoryStore{}, runs, &fakeScheduler{}, testKey)
	auth := map[string]string{"X-API-Key": testKey}

	rec := serve(r, http.MethodGet, "/api/runs?limit=5", auth)
	require.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Runs  []runResponse `json:"runs"`
		Total int           `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "run-1", list.Runs[0].ID)
	assert.Equal(t, "success", list.Runs[0].Status)

	rec = serve(r, http.MethodGet, "/api/runs/run-1", auth)
	require.Equal(t, http.StatusOK, rec.Code)

	var run runResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, 2, run.Included)
	assert.Equal(t, []rejectionResponse{{Index: 0, VehicleID: "AA11AAA", Reason: "zero price"}}, run.Rejections)

	rec = serve(r, http.MethodGet, "/api/runs/missing", auth)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(r, http.MethodGet, "/api/runs?limit=abc", auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIRegenerate(t *testing.T) {
	scheduler := &fakeScheduler{}
	r := newTestServer(t, &memoryStore{}, nil, scheduler, testKey)

	rec := serve(r, http.MethodPost, "/api/regenerate", map[string]string{"X-API-Key": testKey})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{tasks.OriginAPI}, scheduler.origins)
	assert.Contains(t, rec.Body.String(), "task-1")
}

func TestAPIRegenerate_QueueFull(t *testing.T) {
	scheduler := &fakeScheduler{err: errors.New("task queue is full")}
	r := newTestServer(t, &memoryStore{}, nil, scheduler, testKey)

	rec := serve(r, http.MethodPost, "/api/regenerate", map[string]string{"X-API-Key": testKey})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIndex(t *testing.T) {
	r := newTestServer(t, &memoryStore{}, nil, &fakeScheduler{}, testKey)

	rec := serve(r, http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/feed.xml")
	assert.Contains(t, rec.Body.String(), "/api/regenerate")
}
