// audit_logs.go implements the admin audit trail viewer.
package admin

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/taskboard/taskboard/internal/api/params"
	"github.com/taskboard/taskboard/internal/db/models"
	"github.com/taskboard/taskboard/internal/db/repositories"
)

// AuditStore reads persisted audit entries
type AuditStore interface {
	ListAuditLogs(ctx context.Context, filters repositories.AuditFilters, limit, offset int) ([]*models.AuditLog, int, error)
	GetAuditLog(ctx context.Context, id int64) (*models.AuditLog, error)
}

// AuditLogHandlers serves the audit trail
type AuditLogHandlers struct {
	store AuditStore
}

// NewAuditLogHandlers creates audit viewer handlers
func NewAuditLogHandlers(store AuditStore) *AuditLogHandlers {
	return &AuditLogHandlers{store: store}
}

// @Summary      List audit logs
// @Description  Returns audit entries newest first. Requires the admin role.
// @Tags         Admin
// @Security     Bearer
// @Produce      json
// @Param        user_id      query  int     false  "Actor"
// @Param        action       query  string  false  "Action (CREATE, UPDATE, ...)"
// @Param        entity_type  query  string  false  "Entity type"
// @Param        entity_id    query  string  false  "Entity id"
// @Param        from         query  string  false  "Start (RFC 3339 or YYYY-MM-DD)"
// @Param        to           query  string  false  "End (RFC 3339 or YYYY-MM-DD)"
// @Param        page         query  int     false  "Page (default 1)"
// @Param        per_page     query  int     false  "Page size (default 50, max 200)"
// @Success      200  {object}  map[string]interface{}  "logs, pagination"
// @Failure      400  {object}  map[string]interface{}
// @Failure      403  {object}  map[string]interface{}
// @Router       /api/admin/audit-logs [get]
// ListAuditLogs lists audit entries with filters and pagination
func (h *AuditLogHandlers) ListAuditLogs(c *gin.Context) {
	var (
		f   repositories.AuditFilters
		err error
	)
	if f.UserID, err = params.Int64(c, "user_id"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if f.StartDate, err = params.Time(c, "from"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if f.EndDate, err = params.Time(c, "to"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f.Action = params.String(c, "action")
	f.EntityType = params.String(c, "entity_type")
	f.EntityID = params.String(c, "entity_id")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	logs, total, err := h.store.ListAuditLogs(c.Request.Context(), f, perPage, (page-1)*perPage)
	if err != nil {
		slog.Error("failed to list audit logs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list audit logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs": logs,
		"pagination": gin.H{
			"page":     page,
			"per_page": perPage,
			"total":    total,
		},
	})
}

// GetAuditLog returns one audit entry
func (h *AuditLogHandlers) GetAuditLog(c *gin.Context) {
	id, err := params.PathID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log, err := h.store.GetAuditLog(c.Request.Context(), id)
	if err != nil {
		slog.Error("failed to get audit log", "error", err, "audit_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve audit log"})
		return
	}
	if log == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Audit log not found"})
		return
	}
	c.JSON(http.StatusOK, log)
}
