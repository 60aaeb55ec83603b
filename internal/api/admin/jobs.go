// jobs.go exposes on-demand triggers for background jobs.
package admin

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskboard/taskboard/internal/middleware"
)

// OverdueSweeper runs one overdue sweep
type OverdueSweeper interface {
	RunOnce(ctx context.Context) (int, error)
}

// JobHandlers triggers background jobs
type JobHandlers struct {
	sweeper OverdueSweeper
}

// NewJobHandlers creates job trigger handlers
func NewJobHandlers(sweeper OverdueSweeper) *JobHandlers {
	return &JobHandlers{sweeper: sweeper}
}

// @Summary      Run the overdue sweep
// @Description  Runs one overdue sweep immediately and returns the number of deadline notifications created. Safe to call while the scheduled sweep runs; the dedup window prevents duplicates.
// @Tags         Admin
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "notifications_created, duration_ms"
// @Failure      500  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}  "Sweeper not configured"
// @Router       /api/admin/jobs/overdue-sweep [post]
// TriggerOverdueSweep runs the sweeper synchronously
func (h *JobHandlers) TriggerOverdueSweep(c *gin.Context) {
	if h.sweeper == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Overdue sweeper not configured"})
		return
	}

	start := time.Now()
	created, err := h.sweeper.RunOnce(c.Request.Context())
	if err != nil {
		slog.Error("manual overdue sweep failed", "error", err, "request_id", middleware.RequestID(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Overdue sweep failed"})
		return
	}

	slog.Info("manual overdue sweep completed", "notifications_created", created)
	c.JSON(http.StatusOK, gin.H{
		"notifications_created": created,
		"duration_ms":           time.Since(start).Milliseconds(),
	})
}
