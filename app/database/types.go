package database

import (
	"time"
)

type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// Run is one feed generation attempt.
type Run struct {
	ID          string
	Origin      string // cli, startup, schedule, api
	SourceType  string
	Source      string
	Status      RunStatus
	Records     int
	Included    int
	Rejected    int
	OutputBytes int
	Error       string
	StartedAt   time.Time
	FinishedAt  *time.Time
}

func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunOutcome is recorded when a run finishes.
type RunOutcome struct {
	Status      RunStatus
	Records     int
	Included    int
	Rejected    int
	OutputBytes int
	Error       string
	FinishedAt  time.Time
}

type Rejection struct {
	RunID       string
	RecordIndex int
	VehicleID   string
	Reason      string
}
