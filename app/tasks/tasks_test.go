package tasks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oli-a11y/albar-autos-feed/app/database"
	"github.com/oli-a11y/albar-autos-feed/app/feed"
	"github.com/oli-a11y/albar-autos-feed/app/metrics"
	"github.com/oli-a11y/albar-autos-feed/app/store"
)

type staticSource struct {
	records []feed.Record
	err     error
}

func (s *staticSource) Records(context.Context) ([]feed.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

type memoryStore struct {
	mu  sync.Mutex
	doc *store.Document
}

func (m *memoryStore) Name() string { return "memory" }

func (m *memoryStore) Save(_ context.Context, doc store.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = &doc
	return nil
}

func (m *memoryStore) Load(context.Context) (*store.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc, nil
}

func testRecords() []feed.Record {
	return []feed.Record{
		{"registration": "AA11AAA", "suppliedPrice": "0", "make": "Ford"},
		{"registration": "BB22BBB", "suppliedPrice": "12995", "make": "Volkswagen", "model": "Golf", "yearOfManufacture": "2020"},
		{"id": "CC33CCC", "price": "8500", "make": "Ford", "model": "Fiesta", "year": "2018"},
	}
}

func testSettings() feed.Settings {
	return feed.Settings{
		DealerName: "Albar Autos",
		DealerURL:  "https://albarautos.co.uk",
		StoreCode:  "Albar",
	}
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

func TestPipeline_Run(t *testing.T) {
	ctx := context.Background()
	feedStore := &memoryStore{}
	runs := setupRuns(t)
	m := metrics.New()

	p := NewPipeline(&staticSource{records: testRecords()}, "csv", "stock.csv", testSettings(), feedStore)
	p.Runs = runs
	p.Metrics = m

	summary, err := p.Run(ctx, "run-1", OriginCLI)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Records)
	assert.Equal(t, 2, summary.Included)
	assert.Equal(t, []feed.Rejection{{Index: 0, ID: "AA11AAA", Reason: "zero price"}}, summary.Rejected)

	doc, err := feedStore.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "run-1", doc.RunID)
	assert.Equal(t, 2, doc.Items)
	assert.Equal(t, summary.FeedBytes, len(doc.Data))
	assert.Contains(t, string(doc.Data), "<g:id>BB22BBB</g:id>")

	run, err := runs.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, database.RunStatusSuccess, run.Status)
	assert.Equal(t, OriginCLI, run.Origin)
	assert.Equal(t, "csv", run.SourceType)
	assert.Equal(t, 2, run.Included)
	assert.Equal(t, 1, run.Rejected)

	rejections, err := runs.ListRejections(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, rejections, 1)
	assert.Equal(t, "zero price", rejections[0].Reason)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.VehiclesIncluded))
}

func TestPipeline_SourceFailureKeepsPreviousFeed(t *testing.T) {
	ctx := context.Background()
	previous := store.Document{Data: []byte("<rss/>"), RunID: "old"}
	feedStore := &memoryStore{doc: &previous}
	runs := setupRuns(t)

	sourceErr := fmt.Errorf("%w: HTTP error: 503", feed.ErrSourceUnavailable)
	p := NewPipeline(&staticSource{err: sourceErr}, "html", "https://albarautos.co.uk", testSettings(), feedStore)
	p.Runs = runs
	p.Metrics = metrics.New()

	_, err := p.Run(ctx, "run-2", OriginSchedule)
	require.Error(t, err)
	assert.True(t, errors.Is(err, feed.ErrSourceUnavailable))

	doc, _ := feedStore.Load(ctx)
	assert.Equal(t, "old", doc.RunID)

	run, err := runs.GetRun(ctx, "run-2")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, database.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "HTTP error: 503")
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics.RunsTotal.WithLabelValues("failed")))
}

func TestPipeline_ZeroRecordsKeepsPreviousFeed(t *testing.T) {
	ctx := context.Background()
	previous := store.Document{Data: []byte("<rss/>"), RunID: "old"}
	feedStore := &memoryStore{doc: &previous}
	p := NewPipeline(&staticSource{}, "html", "https://albarautos.co.uk/used-cars", testSettings(), feedStore)

	_, err := p.Run(ctx, "run-3", OriginCLI)
	require.Error(t, err)
	assert.ErrorIs(t, err, feed.ErrSourceUnavailable)

	doc, _ := feedStore.Load(ctx)
	assert.Equal(t, "old", doc.RunID)
}

func TestPipeline_AllRejectedIsValid(t *testing.T) {
	feedStore := &memoryStore{}
	records := []feed.Record{{"registration": "AA11AAA", "suppliedPrice": "0"}}
	p := NewPipeline(&staticSource{records: records}, "csv", "stock.csv", testSettings(), feedStore)

	summary, err := p.Run(context.Background(), "run-3", OriginCLI)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Records)
	assert.Equal(t, 0, summary.Included)

	doc, _ := feedStore.Load(context.Background())
	require.NotNil(t, doc)
	assert.Contains(t, string(doc.Data), "<channel>")
}

func TestPipeline_RecordWithoutIDOrTitleIsRejected(t *testing.T) {
	feedStore := &memoryStore{}
	records := []feed.Record{
		{"registration": "CC33CCC", "suppliedPrice": "8500", "make": "Ford", "model": "Fiesta", "yearOfManufacture": "2018"},
		{"suppliedPrice": "5000", "colour": "Red"},
	}
	p := NewPipeline(&staticSource{records: records}, "csv", "stock.csv", testSettings(), feedStore)

	summary, err := p.Run(context.Background(), "run-4", OriginCLI)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Included)
	require.Len(t, summary.Rejected, 1)
	assert.Equal(t, 1, summary.Rejected[0].Index)

	doc, _ := feedStore.Load(context.Background())
	require.NotNil(t, doc)
	assert.Equal(t, 1, doc.Items)
	assert.Contains(t, string(doc.Data), "CC33CCC")
}

func TestGenerateFeedTask_Execute(t *testing.T) {
	feedStore := &memoryStore{}
	p := NewPipeline(&staticSource{records: testRecords()}, "csv", "stock.csv", testSettings(), feedStore)

	task := NewGenerateFeedTask(OriginAPI, p)
	assert.Equal(t, TaskTypeGenerateFeed, task.GetType())
	assert.Equal(t, OriginAPI, task.GetOrigin())
	assert.NotEmpty(t, task.GetID())

	task.Start()
	require.NoError(t, task.Execute(context.Background()))
	require.NotNil(t, task.Summary)
	assert.Equal(t, 2, task.Summary.Included)
	assert.NotEqual(t, task.GetID(), task.Summary.RunID)
}

func TestGenerateFeedTask_CancelledContext(t *testing.T) {
	p := NewPipeline(&staticSource{records: testRecords()}, "csv", "stock.csv", testSettings(), &memoryStore{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewGenerateFeedTask(OriginCLI, p).Execute(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type flakyTask struct {
	Task
	failures int32
	calls    atomic.Int32
}

func (f *flakyTask) Execute(context.Context) error {
	if f.calls.Add(1) <= f.failures {
		return errors.New("temporary failure")
	}
	return nil
}

func TestScheduler_RetriesFailedTask(t *testing.T) {
	s := NewScheduler(nil, 0, 1)
	s.retryBaseDelay = 5 * time.Millisecond

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	defer s.Stop()

	task := &flakyTask{Task: NewTask(TaskTypeGenerateFeed, OriginAPI), failures: 2}
	require.NoError(t, s.EnqueueTask(task))

	assert.Eventually(t, func() bool {
		return task.calls.Load() == 3 && s.pending.Load() == 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, task.GetRetryCount())
}

func TestScheduler_GivesUpAfterMaxRetries(t *testing.T) {
	s := NewScheduler(nil, 0, 1)
	s.retryBaseDelay = time.Millisecond

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	defer s.Stop()

	task := &flakyTask{Task: NewTask(TaskTypeGenerateFeed, OriginAPI), failures: 100}
	require.NoError(t, s.EnqueueTask(task))

	assert.Eventually(t, func() bool {
		return s.pending.Load() == 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(DefaultMaxRetries+1), task.calls.Load())
}

func TestScheduler_StartupRun(t *testing.T) {
	feedStore := &memoryStore{}
	p := NewPipeline(&staticSource{records: testRecords()}, "csv", "stock.csv", testSettings(), feedStore)

	s := NewScheduler(p, time.Hour, 2)
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		doc, _ := feedStore.Load(context.Background())
		return doc != nil && doc.Items == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_SkipsWhilePending(t *testing.T) {
	s := NewScheduler(nil, time.Hour, 1)
	s.pending.Store(1)

	s.enqueueScheduled(OriginSchedule)

	assert.Len(t, s.taskQueue, 0)
}

func TestScheduler_TriggerQueueFull(t *testing.T) {
	s := NewScheduler(nil, time.Hour, 1)
	for i := 0; i < cap(s.taskQueue); i++ {
		_, err := s.Trigger(OriginAPI)
		require.NoError(t, err)
	}

	_, err := s.Trigger(OriginAPI)
	assert.Error(t, err)
	assert.Equal(t, int32(cap(s.taskQueue)), s.pending.Load())
}

func TestScheduler_RetryDelay(t *testing.T) {
	s := NewScheduler(nil, time.Hour, 1)

	assert.Equal(t, time.Second, s.retryDelay(1))
	assert.Equal(t, 2*time.Second, s.retryDelay(2))
	assert.Equal(t, 16*time.Second, s.retryDelay(5))
	assert.Equal(t, maxRetryDelay, s.retryDelay(6))
	assert.Equal(t, maxRetryDelay, s.retryDelay(80))
}
