// Package telemetry provides application-level observability for the task-board audit and
// notification service.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are served on
// the side-channel HTTP server started by cmd/server:
//
//	GET http://<host>:<TASKBOARD_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is not served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Audit and activity write outcomes
//   - Notification fan-out counters
//   - Overdue sweep duration and yield
//   - Database connection pool gauge (polled every 30 s)
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Write outcome label values
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// HTTP metrics, labelled by method, route template, and status code.
// The path label holds the Gin route template (e.g. /api/notifications/:id/read).
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Audit trail and activity timeline writes. Both are fire-and-forget, so a rising error
// rate here is the only signal that entries are being dropped.
//
//   - Dropped audit entries:  increase(audit_entries_written_total{result="error"}[1h])
var (
	AuditEntriesWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_entries_written_total",
			Help: "Total number of audit log writes, by result.",
		},
		[]string{"result"},
	)

	ActivityEntriesWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activity_entries_written_total",
			Help: "Total number of activity timeline writes, by result.",
		},
		[]string{"result"},
	)
)

// Notification fan-out.
//
// NotificationsCreatedTotal counts persisted notifications by type (task_completed,
// deadline, task_assigned, ...). NotificationWriteFailuresTotal counts per-recipient
// writes that failed and were skipped.
var (
	NotificationsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Total number of notifications created, by type.",
		},
		[]string{"type"},
	)

	NotificationWriteFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_write_failures_total",
			Help: "Total number of per-recipient notification writes that failed.",
		},
	)
)

// Overdue sweep metrics, recorded once per sweep run.
//
//   - Average sweep time:  rate(overdue_sweep_duration_seconds_sum[1d]) / rate(overdue_sweep_duration_seconds_count[1d])
var (
	OverdueSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "overdue_sweep_duration_seconds",
			Help:    "Duration of a single overdue deadline sweep.",
			Buckets: prometheus.DefBuckets,
		},
	)

	OverdueSweepNotificationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "overdue_sweep_notifications_total",
			Help: "Total number of deadline notifications created by the overdue sweeper.",
		},
	)
)

// DBOpenConnections tracks the number of open connections held by the pool. It is
// sampled every 30 seconds by StartDBStatsCollector.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples pool statistics every 30 seconds until ctx is cancelled
// or the database becomes unreachable.
func StartDBStatsCollector(ctx context.Context, db *sqlx.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.PingContext(ctx); err != nil {
					slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
					return
				}
				DBOpenConnections.Set(float64(db.Stats().OpenConnections))
			}
		}
	}()
}
