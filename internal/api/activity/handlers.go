// Package activity implements the read side of the activity timeline: a filtered feed
// and a count-by-type aggregation for dashboards.
package activity

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskboard/taskboard/internal/api/params"
	"github.com/taskboard/taskboard/internal/db/models"
	"github.com/taskboard/taskboard/internal/db/repositories"
)

// Reader queries the timeline. *activity.Recorder implements it.
type Reader interface {
	List(ctx context.Context, f repositories.ActivityFilters) ([]models.Activity, error)
	CountByType(ctx context.Context, f repositories.ActivityFilters) ([]models.ActivityTypeCount, error)
}

// Handlers serves the activity feed
type Handlers struct {
	reader Reader
}

// NewHandlers creates activity handlers
func NewHandlers(reader Reader) *Handlers {
	return &Handlers{reader: reader}
}

// RegisterRoutes mounts the feed under group
func (h *Handlers) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/activity", h.List)
	group.GET("/activity/counts", h.Counts)
}

// @Summary      List activity
// @Description  Returns timeline entries newest first, filtered by actor, board, type, entity type, and date range.
// @Tags         Activity
// @Security     Bearer
// @Produce      json
// @Param        user_id      query  int     false  "Actor"
// @Param        board_id     query  int     false  "Board"
// @Param        type         query  string  false  "Activity type"
// @Param        entity_type  query  string  false  "Entity type"
// @Param        from         query  string  false  "Start (RFC 3339 or YYYY-MM-DD)"
// @Param        to           query  string  false  "End (RFC 3339 or YYYY-MM-DD)"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]interface{}
// @Router       /api/activity [get]
// List returns the filtered feed
func (h *Handlers) List(c *gin.Context) {
	f, err := parseFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items, err := h.reader.List(c.Request.Context(), f)
	if err != nil {
		slog.Error("failed to list activity", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list activity"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"activities": items,
		"pagination": gin.H{"limit": f.Limit, "offset": f.Offset},
	})
}

// Counts returns entry counts grouped by activity type
func (h *Handlers) Counts(c *gin.Context) {
	f, err := parseFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	counts, err := h.reader.CountByType(c.Request.Context(), f)
	if err != nil {
		slog.Error("failed to count activity", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count activity"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts})
}

func parseFilters(c *gin.Context) (repositories.ActivityFilters, error) {
	var (
		f   repositories.ActivityFilters
		err error
	)
	if f.UserID, err = params.Int64(c, "user_id"); err != nil {
		return f, err
	}
	if f.BoardID, err = params.Int64(c, "board_id"); err != nil {
		return f, err
	}
	if f.StartDate, err = params.Time(c, "from"); err != nil {
		return f, err
	}
	if f.EndDate, err = params.Time(c, "to"); err != nil {
		return f, err
	}
	f.Type = params.String(c, "type")
	f.EntityType = params.String(c, "entity_type")
	f.Limit, f.Offset = params.Page(c, 50)
	return f, nil
}
