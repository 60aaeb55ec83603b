// Package admin implements the administrative API: the audit trail viewer and job
// triggers. Every route requires the admin role.
package admin

import (
	"github.com/gin-gonic/gin"
	"github.com/taskboard/taskboard/internal/middleware"
)

// RegisterRoutes mounts the admin API under group
func RegisterRoutes(group *gin.RouterGroup, audit *AuditLogHandlers, jobs *JobHandlers) {
	adminGroup := group.Group("/admin")
	adminGroup.Use(middleware.RequireIdentity(), middleware.RequireRole(middleware.RoleAdmin))
	{
		adminGroup.GET("/audit-logs", audit.ListAuditLogs)
		adminGroup.GET("/audit-logs/:id", audit.GetAuditLog)
		adminGroup.POST("/jobs/overdue-sweep", jobs.TriggerOverdueSweep)
	}
}
