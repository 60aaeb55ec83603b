// Package api wires together the HTTP surface of the task-board service.
//
// The request audit interceptor runs on every route but only records requests under
// the configured API prefix. Board, card, and user CRUD handlers are mounted by the
// host application through WithRoutes; they receive the shared Services so that
// business events reach the activity timeline and the notification engine.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/taskboard/taskboard/internal/activity"
	activityapi "github.com/taskboard/taskboard/internal/api/activity"
	"github.com/taskboard/taskboard/internal/api/admin"
	"github.com/taskboard/taskboard/internal/api/notifications"
	"github.com/taskboard/taskboard/internal/audit"
	"github.com/taskboard/taskboard/internal/config"
	"github.com/taskboard/taskboard/internal/db/repositories"
	"github.com/taskboard/taskboard/internal/jobs"
	"github.com/taskboard/taskboard/internal/middleware"
	"github.com/taskboard/taskboard/internal/notify"
	"github.com/taskboard/taskboard/internal/safego"
	"github.com/taskboard/taskboard/internal/services"
)

// Version is reported by /version; overridden at build time with -ldflags
var Version = "0.1.0"

// Services are the shared components handed to host-mounted routes
type Services struct {
	Audit    *audit.Writer
	Activity *activity.Recorder
	Notifier *notify.Engine
	Events   *services.TaskEvents
}

// RouteFunc mounts additional routes under the /api group
type RouteFunc func(api *gin.RouterGroup, svc *Services)

type routerOptions struct {
	redis   *redis.Client
	routes  []RouteFunc
	spawner safego.Spawner
}

// Option customizes NewRouter
type Option func(*routerOptions)

// WithRedis enables the distributed rate limiter and the Redis readiness check
func WithRedis(client *redis.Client) Option {
	return func(o *routerOptions) { o.redis = client }
}

// WithRoutes mounts host routes under /api, behind the audit interceptor
func WithRoutes(fn RouteFunc) Option {
	return func(o *routerOptions) { o.routes = append(o.routes, fn) }
}

// WithSpawner overrides how audit, activity, and notification writes are scheduled
func WithSpawner(s safego.Spawner) Option {
	return func(o *routerOptions) { o.spawner = s }
}

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	sweeper     *jobs.OverdueSweeper
	shipper     *audit.MultiShipper
	rateLimiter *middleware.RateLimiter
	cancel      context.CancelFunc
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.sweeper != nil {
		bg.sweeper.Stop()
	}
	if bg.cancel != nil {
		bg.cancel()
	}
	if bg.rateLimiter != nil {
		bg.rateLimiter.Stop()
	}
	if bg.shipper != nil {
		if err := bg.shipper.Close(); err != nil {
			slog.Warn("failed to close audit shippers", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// entityStore combines the user and board repositories into the reader used for
// prior-state snapshots
type entityStore struct {
	*repositories.UserRepository
	*repositories.BoardRepository
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sqlx.DB, opts ...Option) (*gin.Engine, *BackgroundServices, error) {
	o := routerOptions{spawner: safego.Async{}}
	for _, opt := range opts {
		opt(&o)
	}

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	boardRepo := repositories.NewBoardRepository(db)
	auditRepo := repositories.NewAuditRepository(db)
	activityRepo := repositories.NewActivityRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)

	// Audit writer with optional external shipping
	shipper, err := audit.NewMultiShipper(ShipperConfigs(cfg.Audit.Shippers))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize audit shippers: %w", err)
	}
	writerOpts := []audit.Option{
		audit.WithSpawner(o.spawner),
		audit.WithTimeout(cfg.Audit.WriteTimeout),
	}
	if shipper.Len() > 0 {
		writerOpts = append(writerOpts, audit.WithShipper(shipper))
		slog.Info("audit shipping enabled", "shippers", shipper.Len())
	}
	auditWriter := audit.NewWriter(auditRepo, writerOpts...)

	recorder := activity.NewRecorder(activityRepo, o.spawner)
	engine := notify.NewEngine(notificationRepo, userRepo, boardRepo, cfg.Notifications.AppBaseURL)
	svc := &Services{
		Audit:    auditWriter,
		Activity: recorder,
		Notifier: engine,
		Events:   services.NewTaskEvents(recorder, engine, o.spawner),
	}

	// Overdue sweeper
	sweeper := jobs.NewOverdueSweeper(boardRepo, notificationRepo, engine, &cfg.Notifications)
	sweepCtx, cancel := context.WithCancel(context.Background())
	safego.Go(func() { sweeper.Start(sweepCtx) })

	bg := &BackgroundServices{sweeper: sweeper, shipper: shipper, cancel: cancel}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(middleware.CORSMiddleware(cfg.Security.CORS))
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.IdentityMiddleware())
	if cfg.Audit.Enabled {
		snapshots := middleware.NewSnapshotRegistry(entityStore{userRepo, boardRepo})
		router.Use(middleware.AuditMiddleware(auditWriter, middleware.AuditOptionsFromConfig(&cfg.Audit, snapshots)))
	} else {
		slog.Warn("request audit interceptor disabled (audit.enabled=false)")
	}

	router.GET("/health", healthCheckHandler(db))
	router.GET("/ready", readinessHandler(db, o.redis))
	router.GET("/version", versionHandler())

	// Polling endpoints are rate limited per user
	var pollLimit gin.HandlerFunc
	if cfg.Security.RateLimiting.Enabled {
		rlCfg := middleware.RateLimitConfigFrom(cfg.Security.RateLimiting)
		if o.redis != nil {
			pollLimit = middleware.RateLimitMiddleware(middleware.NewRedisRateLimiter(o.redis, rlCfg))
			slog.Info("notification polling rate limit backed by redis", "requests_per_minute", rlCfg.RequestsPerMinute)
		} else {
			bg.rateLimiter = middleware.NewRateLimiter(rlCfg)
			pollLimit = middleware.RateLimitMiddleware(bg.rateLimiter)
			slog.Info("notification polling rate limit in memory", "requests_per_minute", rlCfg.RequestsPerMinute)
		}
	}

	apiGroup := router.Group("/api")
	{
		authed := apiGroup.Group("")
		authed.Use(middleware.RequireIdentity())
		notifications.NewHandlers(notificationRepo).RegisterRoutes(authed, pollLimit)
		activityapi.NewHandlers(recorder).RegisterRoutes(authed)

		admin.RegisterRoutes(apiGroup, admin.NewAuditLogHandlers(auditRepo), admin.NewJobHandlers(sweeper))

		for _, mount := range o.routes {
			mount(apiGroup, svc)
		}
	}

	return router, bg, nil
}

// ShipperConfigs maps the audit shipper config section onto shipper configs
func ShipperConfigs(in []config.AuditShipperConfig) []audit.ShipperConfig {
	out := make([]audit.ShipperConfig, 0, len(in))
	for _, sc := range in {
		c := audit.ShipperConfig{Enabled: sc.Enabled, Type: sc.Type}
		if sc.Webhook != nil {
			c.Webhook = &audit.WebhookConfig{
				URL:           sc.Webhook.URL,
				Headers:       sc.Webhook.Headers,
				Timeout:       time.Duration(sc.Webhook.TimeoutSecs) * time.Second,
				BatchSize:     sc.Webhook.BatchSize,
				FlushInterval: time.Duration(sc.Webhook.FlushInterval) * time.Second,
			}
		}
		if sc.File != nil {
			c.File = &audit.FileConfig{
				Path:       sc.File.Path,
				MaxSizeMB:  sc.File.MaxSizeMB,
				MaxBackups: sc.File.MaxBackups,
			}
		}
		out = append(out, c)
	}
	return out
}

// pinger is satisfied by *sqlx.DB and *sql.DB
type pinger interface {
	PingContext(ctx context.Context) error
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks the database and, when configured, Redis.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, checks, time"
// @Failure      503  {object}  map[string]interface{}  "ready: false, checks, error"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service.
// A nil Redis client is reported as "disabled" and does not fail the check.
func readinessHandler(db pinger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		checks := gin.H{}

		if err := db.PingContext(ctx); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		if rdb == nil {
			checks["redis"] = "disabled"
		} else if err := rdb.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "redis not ready",
			})
			return
		} else {
			checks["redis"] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the service and API versions.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured access logging. The output format follows the
// default slog handler installed by telemetry.SetupLogger.
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	skip := map[string]bool{"/health": true, "/ready": true}
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		if skip[path] && cfg.Logging.Level != "debug" {
			return
		}

		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", middleware.RequestID(c)),
			slog.String("user_agent", c.Request.UserAgent()),
		}
		if uid, ok := middleware.UserID(c); ok {
			attrs = append(attrs, slog.Int64("user_id", uid))
		}

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.LogAttrs(c.Request.Context(), level, "http request", attrs...)
	}
}
