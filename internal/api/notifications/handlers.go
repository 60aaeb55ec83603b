// Package notifications implements the in-app notification inbox API. Every handler is
// scoped to the authenticated user; read and clear operations only flip flags, and only
// the permanent delete removes rows.
package notifications

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskboard/taskboard/internal/api/params"
	"github.com/taskboard/taskboard/internal/db/models"
	"github.com/taskboard/taskboard/internal/db/repositories"
	"github.com/taskboard/taskboard/internal/middleware"
)

// Store is the notification table as seen by the inbox
type Store interface {
	ListNotifications(ctx context.Context, userID int64, f repositories.NotificationFilters) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, userID, id int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	SoftDelete(ctx context.Context, userID, id int64) error
	SoftDeleteAll(ctx context.Context, userID int64) (int64, error)
	HardDelete(ctx context.Context, userID, id int64) error
}

// Handlers serves the inbox
type Handlers struct {
	store Store
}

// NewHandlers creates inbox handlers backed by store
func NewHandlers(store Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes mounts the inbox under group. pollLimit, when non-nil, guards the
// endpoints a client polls.
func (h *Handlers) RegisterRoutes(group *gin.RouterGroup, pollLimit gin.HandlerFunc) {
	polled := []gin.HandlerFunc{}
	if pollLimit != nil {
		polled = append(polled, pollLimit)
	}

	n := group.Group("/notifications")
	{
		n.GET("", append(polled, h.List)...)
		n.GET("/unread-count", append(polled, h.UnreadCount)...)
		n.PATCH("/read-all", h.MarkAllRead)
		n.PATCH("/:id/read", h.MarkRead)
		n.DELETE("", h.Clear)
		n.DELETE("/:id", h.Delete)
		n.DELETE("/:id/permanent", h.DeletePermanent)
	}
}

// @Summary      List notifications
// @Description  Returns the caller's notifications, newest first. Soft-deleted entries are only included for admins.
// @Tags         Notifications
// @Security     Bearer
// @Produce      json
// @Param        read             query  bool    false  "Filter by read state"
// @Param        type             query  string  false  "Filter by notification type"
// @Param        include_deleted  query  bool    false  "Include cleared notifications (admin only)"
// @Param        limit            query  int     false  "Page size (default 50)"
// @Param        offset           query  int     false  "Page offset"
// @Success      200  {object}  map[string]interface{}
// @Router       /api/notifications [get]
// List returns the caller's notifications
func (h *Handlers) List(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	read, err := params.Bool(c, "read")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	includeDeleted, err := params.Bool(c, "include_deleted")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f := repositories.NotificationFilters{
		Read: read,
		Type: params.String(c, "type"),
	}
	f.Limit, f.Offset = params.Page(c, 50)
	if includeDeleted != nil && *includeDeleted {
		if c.GetString(middleware.RoleKey) != middleware.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "include_deleted requires admin role"})
			return
		}
		f.IncludeDeleted = true
	}

	items, err := h.store.ListNotifications(c.Request.Context(), userID, f)
	if err != nil {
		slog.Error("failed to list notifications", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": items,
		"pagination": gin.H{
			"limit":  f.Limit,
			"offset": f.Offset,
		},
	})
}

// UnreadCount returns the number of unread, visible notifications
func (h *Handlers) UnreadCount(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	count, err := h.store.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		slog.Error("failed to count unread notifications", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// MarkRead marks one notification as read
func (h *Handlers) MarkRead(c *gin.Context) {
	h.one(c, "mark notification read", h.store.MarkRead, gin.H{"read": true})
}

// MarkAllRead marks every visible notification as read
func (h *Handlers) MarkAllRead(c *gin.Context) {
	h.many(c, "mark all notifications read", h.store.MarkAllRead)
}

// Delete hides one notification
func (h *Handlers) Delete(c *gin.Context) {
	h.one(c, "delete notification", h.store.SoftDelete, gin.H{"deleted": true})
}

// Clear hides every notification
func (h *Handlers) Clear(c *gin.Context) {
	h.many(c, "clear notifications", h.store.SoftDeleteAll)
}

// DeletePermanent removes one notification for good
func (h *Handlers) DeletePermanent(c *gin.Context) {
	h.one(c, "permanently delete notification", h.store.HardDelete, gin.H{"deleted": true, "permanent": true})
}

func (h *Handlers) one(c *gin.Context, op string, fn func(context.Context, int64, int64) error, body gin.H) {
	userID, _ := middleware.UserID(c)
	id, err := params.PathID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := fn(c.Request.Context(), userID, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
			return
		}
		slog.Error("failed to "+op, "error", err, "user_id", userID, "notification_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notification"})
		return
	}

	body["id"] = id
	c.JSON(http.StatusOK, body)
}

func (h *Handlers) many(c *gin.Context, op string, fn func(context.Context, int64) (int64, error)) {
	userID, _ := middleware.UserID(c)

	n, err := fn(c.Request.Context(), userID)
	if err != nil {
		slog.Error("failed to "+op, "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}
