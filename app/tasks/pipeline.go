package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oli-a11y/albar-autos-feed/app/database"
	"github.com/oli-a11y/albar-autos-feed/app/feed"
	"github.com/oli-a11y/albar-autos-feed/app/metrics"
	"github.com/oli-a11y/albar-autos-feed/app/report"
	"github.com/oli-a11y/albar-autos-feed/app/source"
	"github.com/oli-a11y/albar-autos-feed/app/store"
)

// Pipeline turns one source into one stored feed document. Runs and Metrics
// are optional. Runs are serialized so two of them never write the output at
// the same time.
type Pipeline struct {
	Source     source.Source
	SourceType string
	Location   string
	Output     string
	Settings   feed.Settings
	Store      store.FeedStore
	Runs       database.RunRepository
	Metrics    *metrics.Metrics

	generator *feed.Generator
	verifier  *feed.Verifier
	mu        sync.Mutex
}

func NewPipeline(src source.Source, sourceType, location string, settings feed.Settings, feedStore store.FeedStore) *Pipeline {
	return &Pipeline{
		Source:     src,
		SourceType: sourceType,
		Location:   location,
		Settings:   settings,
		Store:      feedStore,
		generator:  feed.NewGenerator(),
		verifier:   feed.NewVerifier(),
	}
}

// Run executes one generation under runID. On failure the previously stored
// document is left untouched and the failure is recorded in the run history.
func (p *Pipeline) Run(ctx context.Context, runID, origin string) (*report.Summary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	started := time.Now()
	summary := &report.Summary{RunID: runID, Output: p.Output}

	p.recordStart(ctx, runID, origin, started)

	data, result, err := p.generate(ctx, summary)
	summary.Duration = time.Since(started)
	if err != nil {
		p.recordFailure(ctx, summary, err)
		return summary, err
	}

	doc := store.Document{
		Data:        data,
		RunID:       runID,
		Items:       len(result.Items),
		GeneratedAt: time.Now(),
	}
	if err := p.Store.Save(ctx, doc); err != nil {
		err = fmt.Errorf("failed to store feed: %w", err)
		summary.Duration = time.Since(started)
		p.recordFailure(ctx, summary, err)
		return summary, err
	}

	summary.Duration = time.Since(started)
	p.recordSuccess(ctx, summary)

	slog.Info("Feed generated", "run_id", runID, "origin", origin,
		"records", summary.Records, "included", summary.Included,
		"rejected", len(summary.Rejected), "bytes", summary.FeedBytes,
		"duration", summary.Duration.String())

	return summary, nil
}

func (p *Pipeline) generate(ctx context.Context, summary *report.Summary) ([]byte, feed.AssembleResult, error) {
	records, err := p.Source.Records(ctx)
	if err != nil {
		return nil, feed.AssembleResult{}, err
	}
	// An empty source is indistinguishable from a broken listing page.
	if len(records) == 0 {
		return nil, feed.AssembleResult{}, fmt.Errorf("%w: %s returned no records", feed.ErrSourceUnavailable, p.Location)
	}
	summary.Records = len(records)

	// A fresh assembler per run keeps seeded phrasing reproducible.
	result := feed.NewAssembler(p.Settings).Run(records)
	summary.Included = len(result.Items)
	summary.Rejected = result.Rejected

	for _, r := range result.Rejected {
		slog.Debug("Vehicle rejected", "run_id", summary.RunID, "index", r.Index, "id", r.ID, "reason", r.Reason)
	}

	data, err := p.generator.Run(p.Settings.Channel(), result.Items)
	if err != nil {
		return nil, result, fmt.Errorf("failed to generate feed: %w", err)
	}
	summary.FeedBytes = len(data)

	if err := p.verifier.Run(data, len(result.Items)); err != nil {
		return nil, result, err
	}

	return data, result, nil
}

func (p *Pipeline) recordStart(ctx context.Context, runID, origin string, started time.Time) {
	if p.Runs == nil {
		return
	}

	err := p.Runs.CreateRun(ctx, database.Run{
		ID:         runID,
		Origin:     origin,
		SourceType: p.SourceType,
		Source:     p.Location,
		Status:     database.RunStatusRunning,
		StartedAt:  started,
	})
	if err != nil {
		slog.Warn("Failed to record run start", "run_id", runID, "error", err)
	}
}

func (p *Pipeline) recordFailure(ctx context.Context, summary *report.Summary, runErr error) {
	slog.Error("Feed generation failed", "run_id", summary.RunID, "error", runErr)

	if p.Metrics != nil {
		p.Metrics.ObserveFailure(summary.Duration)
	}

	if p.Runs == nil {
		return
	}

	// The run context may already be cancelled; the outcome is still recorded.
	err := p.Runs.FinishRun(context.WithoutCancel(ctx), summary.RunID, database.RunOutcome{
		Status:   database.RunStatusFailed,
		Records:  summary.Records,
		Included: summary.Included,
		Rejected: len(summary.Rejected),
		Error:    runErr.Error(),
	})
	if err != nil {
		slog.Warn("Failed to record run failure", "run_id", summary.RunID, "error", err)
	}
}

func (p *Pipeline) recordSuccess(ctx context.Context, summary *report.Summary) {
	if p.Metrics != nil {
		reasons := make(map[string]int)
		for _, r := range summary.Rejected {
			reasons[r.Reason]++
		}
		p.Metrics.ObserveSuccess(summary.Duration, summary.Included, reasons, summary.FeedBytes)
	}

	if p.Runs == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)

	if len(summary.Rejected) > 0 {
		rejections := make([]database.Rejection, 0, len(summary.Rejected))
		for _, r := range summary.Rejected {
			rejections = append(rejections, database.Rejection{
				RunID:       summary.RunID,
				RecordIndex: r.Index,
				VehicleID:   r.ID,
				Reason:      r.Reason,
			})
		}
		if err := p.Runs.AddRejections(ctx, summary.RunID, rejections); err != nil {
			slog.Warn("Failed to record rejections", "run_id", summary.RunID, "error", err)
		}
	}

	err := p.Runs.FinishRun(ctx, summary.RunID, database.RunOutcome{
		Status:      database.RunStatusSuccess,
		Records:     summary.Records,
		Included:    summary.Included,
		Rejected:    len(summary.Rejected),
		OutputBytes: summary.FeedBytes,
	})
	if err != nil {
		slog.Warn("Failed to record run success", "run_id", summary.RunID, "error", err)
	}
}
