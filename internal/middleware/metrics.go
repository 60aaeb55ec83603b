// Package middleware provides the Gin middleware of the audit and notification service:
// the request interceptor that feeds the audit trail, bearer-token identity, request IDs,
// Prometheus request metrics, and rate limiting for the notification polling endpoints.
//
// Registration order is fixed in internal/api/router.go:
//
//	Recovery → RequestID → Metrics → Logger → Identity → Audit → Handler
//
// Identity runs before Audit so every entry carries the acting user and session.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskboard/taskboard/internal/telemetry"
)

// MetricsMiddleware records http_requests_total and http_request_duration_seconds for
// every request. The path label is the matched route template from c.FullPath();
// unmatched requests use "<no-route>" so unknown URLs do not inflate label cardinality.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}
		method := c.Request.Method

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
