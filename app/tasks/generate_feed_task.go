package tasks

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/oli-a11y/albar-autos-feed/app/report"
)

type GenerateFeedTask struct {
	Task
	pipeline *Pipeline
	Summary  *report.Summary
}

func NewGenerateFeedTask(origin string, pipeline *Pipeline) *GenerateFeedTask {
	return &GenerateFeedTask{
		Task:     NewTask(TaskTypeGenerateFeed, origin),
		pipeline: pipeline,
	}
}

// Execute runs the pipeline once. Every attempt, retries included, is a
// separate run in the history.
func (t *GenerateFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	summary, err := t.pipeline.Run(ctx, uuid.NewString(), t.Origin)
	t.Summary = summary
	if err != nil {
		return err
	}

	slog.Info("Task completed", "type", string(t.Type), "id", t.ID, "origin", t.Origin,
		"included", summary.Included, "rejected", len(summary.Rejected),
		"duration", t.GetDuration().String())

	return nil
}
