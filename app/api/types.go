package api

import (
	"net/http"

	"github.com/oli-a11y/albar-autos-feed/app/database"
	"github.com/oli-a11y/albar-autos-feed/app/store"
	"github.com/oli-a11y/albar-autos-feed/app/tasks"
)

// Handler serves the stored feed and the run history. runs and metrics may
// be nil.
type Handler struct {
	feedStore store.FeedStore
	runs      database.RunRepository
	scheduler tasks.TaskSchedulerInterface
	metrics   http.Handler
}

type runResponse struct {
	ID          string              `json:"id"`
	Origin      string              `json:"origin"`
	SourceType  string              `json:"source_type"`
	Source      string              `json:"source"`
	Status      string              `json:"status"`
	Records     int                 `json:"records"`
	Included    int                 `json:"included"`
	Rejected    int                 `json:"rejected"`
	OutputBytes int                 `json:"output_bytes"`
	Error       string              `json:"error,omitempty"`
	StartedAt   string              `json:"started_at"`
	FinishedAt  string              `json:"finished_at,omitempty"`
	Duration    string              `json:"duration,omitempty"`
	Rejections  []rejectionResponse `json:"rejections,omitempty"`
}

type rejectionResponse struct {
	Index     int    `json:"index"`
	VehicleID string `json:"vehicle_id"`
	Reason    string `json:"reason"`
}
