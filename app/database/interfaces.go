package database

import (
	"context"
)

type RunRepository interface {
	CreateRun(ctx context.Context, run Run) error
	FinishRun(ctx context.Context, id string, outcome RunOutcome) error
	AddRejections(ctx context.Context, runID string, rejections []Rejection) error

	GetRun(ctx context.Context, id string) (*Run, error)
	GetLastRun(ctx context.Context, status RunStatus) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	ListRejections(ctx context.Context, runID string) ([]Rejection, error)
}
