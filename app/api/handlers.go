package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oli-a11y/albar-autos-feed/app/database"
	"github.com/oli-a11y/albar-autos-feed/app/store"
	"github.com/oli-a11y/albar-autos-feed/app/tasks"
)

const maxRunsLimit = 200

func NewHandler(feedStore store.FeedStore, runs database.RunRepository,
	scheduler tasks.TaskSchedulerInterface, metrics http.Handler) *Handler {
	return &Handler{
		feedStore: feedStore,
		runs:      runs,
		scheduler: scheduler,
		metrics:   metrics,
	}
}

func (h *Handler) GetFeed(c *gin.Context) {
	doc, err := h.feedStore.Load(c.Request.Context())
	if err != nil {
		slog.Error("Failed to load feed", "store", h.feedStore.Name(), "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if doc == nil {
		c.String(http.StatusServiceUnavailable, "feed has not been generated yet")
		return
	}

	c.Header("X-Feed-Items", strconv.Itoa(doc.Items))
	c.Header("X-Run-ID", doc.RunID)
	if !doc.GeneratedAt.IsZero() {
		c.Header("Last-Modified", doc.GeneratedAt.UTC().Format(http.TimeFormat))
		c.Header("X-Last-Updated", doc.GeneratedAt.Format(time.RFC3339))
	}

	c.Data(http.StatusOK, "application/xml; charset=utf-8", doc.Data)
}

func (h *Handler) GetHealth(c *gin.Context) {
	ctx := c.Request.Context()
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if doc, err := h.feedStore.Load(ctx); err == nil && doc != nil {
		health["feed"] = map[string]interface{}{
			"items":        doc.Items,
			"run_id":       doc.RunID,
			"generated_at": doc.GeneratedAt.Format(time.RFC3339),
		}
	}

	if h.runs != nil {
		if run, err := h.runs.GetLastRun(ctx, database.RunStatusSuccess); err == nil && run != nil {
			health["last_success"] = run.StartedAt.Format(time.RFC3339)
		}
		if run, err := h.runs.GetLastRun(ctx, database.RunStatusFailed); err == nil && run != nil {
			health["last_failure"] = run.StartedAt.Format(time.RFC3339)
		}
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListRuns(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run history is disabled"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.runs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		response = append(response, newRunResponse(run))
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"runs":  response,
		"total": len(response),
	})
}

func (h *Handler) APIGetRun(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run history is disabled"})
		return
	}

	id := c.Param("id")
	ctx := c.Request.Context()

	run, err := h.runs.GetRun(ctx, id)
	if err != nil {
		slog.Error("Database error", "operation", "get_run", "run_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}

	rejections, err := h.runs.ListRejections(ctx, id)
	if err != nil {
		slog.Error("Database error", "operation", "list_rejections", "run_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := newRunResponse(*run)
	for _, r := range rejections {
		response.Rejections = append(response.Rejections, rejectionResponse{
			Index:     r.RecordIndex,
			VehicleID: r.VehicleID,
			Reason:    r.Reason,
		})
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) APIRegenerate(c *gin.Context) {
	taskID, err := h.scheduler.Trigger(tasks.OriginAPI)
	if err != nil {
		slog.Error("Error enqueueing generate task", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue generate task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Feed generation enqueued",
		"task": gin.H{
			"id":   taskID,
			"type": tasks.TaskTypeGenerateFeed,
		},
	})
}

func newRunResponse(run database.Run) runResponse {
	r := runResponse{
		ID:          run.ID,
		Origin:      run.Origin,
		SourceType:  run.SourceType,
		Source:      run.Source,
		Status:      string(run.Status),
		Records:     run.Records,
		Included:    run.Included,
		Rejected:    run.Rejected,
		OutputBytes: run.OutputBytes,
		Error:       run.Error,
		StartedAt:   run.StartedAt.Format(time.RFC3339),
	}
	if run.FinishedAt != nil {
		r.FinishedAt = run.FinishedAt.Format(time.RFC3339)
		r.Duration = run.Duration().Round(time.Millisecond).String()
	}
	return r
}
