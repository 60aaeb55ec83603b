// @title           Task Board API
// @version         1.0.0
// @description     Notification inbox, activity timeline, and audit trail for the task board service
// @basePath        /
// @schemes         http https
// @securityDefinitions.apiKey  Bearer
// @in                          header
// @name                         Authorization
// @description                  "JWT issued by the auth service: 'Bearer {token}'"
//
// @tag.name         System
// @tag.description  Health, readiness, and version endpoints.
//
// @tag.name         Observability
// @tag.description  Prometheus metrics are served on a dedicated side-channel port (default: 9090) separate from the API listener. Configure it with TASKBOARD_TELEMETRY_METRICS_PROMETHEUS_PORT. The path is always GET /metrics.

// Package main is the entry point for the task board server binary.
// It dispatches its subcommands (serve, migrate, sweep, token, version) via a switch
// on os.Args. The serve command runs migrations on startup.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/taskboard/taskboard/internal/api"
	"github.com/taskboard/taskboard/internal/audit"
	"github.com/taskboard/taskboard/internal/auth"
	"github.com/taskboard/taskboard/internal/config"
	"github.com/taskboard/taskboard/internal/db"
	"github.com/taskboard/taskboard/internal/db/repositories"
	"github.com/taskboard/taskboard/internal/jobs"
	"github.com/taskboard/taskboard/internal/notify"
	"github.com/taskboard/taskboard/internal/safego"
	"github.com/taskboard/taskboard/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	if command == "version" {
		fmt.Printf("Task Board v%s\n", api.Version)
		return nil
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	telemetry.SetServiceName(cfg.Telemetry.ServiceName)
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	switch command {
	case "serve":
		return serve(cfg)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down|force VERSION>", os.Args[0])
		}
		return runMigrations(cfg, os.Args[2:])
	case "sweep":
		return runSweep(cfg)
	case "token":
		return printDevToken(os.Args[2:])
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, sweep, token, version", command)
	}
}

func serve(cfg *config.Config) error {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Fails in production if the secret is not set
	if err := auth.ValidateJWTSecret(); err != nil {
		return fmt.Errorf("security configuration error: %w", err)
	}

	slog.Info("connecting to database",
		"host", cfg.Database.Host, "port", cfg.Database.Port,
		"name", cfg.Database.Name, "user", cfg.Database.User, "sslmode", cfg.Database.SSLMode)
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	telemetry.StartDBStatsCollector(ctx, database)

	if err := db.RunMigrations(database.DB, "up"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if version, dirty, err := db.GetMigrationVersion(database.DB); err != nil {
		slog.Warn("failed to get migration version", "error", err)
	} else {
		slog.Info("database schema ready", "version", version, "dirty", dirty)
	}

	var opts []api.Option
	rdb, err := db.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		// The in-memory limiter still protects a single instance
		slog.Warn("redis unavailable, falling back to in-memory rate limiting", "error", err)
	} else if rdb != nil {
		defer rdb.Close()
		opts = append(opts, api.WithRedis(rdb))
		slog.Info("connected to redis")
	}

	if cfg.Telemetry.Metrics.Enabled {
		startMetricsServer(cfg.Telemetry.Metrics.PrometheusPort)
	}

	router, bgServices, err := api.NewRouter(cfg, database, opts...)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("starting server", "addr", server.Addr, "base_url", cfg.Server.BaseURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Stop the sweeper, shippers, and limiter after in-flight requests drain
	bgServices.Shutdown()

	slog.Info("server stopped gracefully")
	return nil
}

// startMetricsServer serves /metrics on its own port so the scrape path stays off the
// public listener
func startMetricsServer(port int) {
	addr := fmt.Sprintf(":%d", port)
	safego.Go(func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		slog.Info("starting Prometheus metrics server", "addr", addr)
		srv := &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	})
}

// runMigrations applies migrations in one direction, or with "force VERSION" records
// VERSION as applied and clears a dirty flag left by an interrupted run
func runMigrations(cfg *config.Config, args []string) error {
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if args[0] == "force" {
		if len(args) < 2 {
			return fmt.Errorf("usage: %s migrate force VERSION", os.Args[0])
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid migration version %q", args[1])
		}
		slog.Warn("forcing migration version", "version", version)
		if err := db.ForceMigrationVersion(database.DB, version); err != nil {
			return err
		}
	} else {
		slog.Info("running migrations", "direction", args[0])
		if err := db.RunMigrations(database.DB, args[0]); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	version, dirty, err := db.GetMigrationVersion(database.DB)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	slog.Info("migration completed", "version", version, "dirty", dirty)
	return nil
}

// runSweep performs a single overdue sweep and exits. Intended for cron-driven
// deployments that disable the in-process sweeper.
func runSweep(cfg *config.Config) error {
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	return sweepOnce(context.Background(), cfg, database)
}

func sweepOnce(ctx context.Context, cfg *config.Config, database *sqlx.DB) error {
	userRepo := repositories.NewUserRepository(database)
	boardRepo := repositories.NewBoardRepository(database)
	notificationRepo := repositories.NewNotificationRepository(database)
	auditWriter := audit.NewWriter(repositories.NewAuditRepository(database), audit.WithSpawner(safego.Inline{}))

	engine := notify.NewEngine(notificationRepo, userRepo, boardRepo, cfg.Notifications.AppBaseURL)
	sweeper := jobs.NewOverdueSweeper(boardRepo, notificationRepo, engine, &cfg.Notifications)

	start := time.Now()
	created, err := sweeper.RunOnce(ctx)
	details := map[string]interface{}{
		"notifications_created": created,
		"duration_ms":           time.Since(start).Milliseconds(),
		"trigger":               "cli",
	}
	if err != nil {
		details["error"] = err.Error()
	}
	auditWriter.LogSystemOperation(ctx, audit.ActionCreate, "overdue_sweep", details)

	if err != nil {
		return fmt.Errorf("overdue sweep failed: %w", err)
	}
	slog.Info("overdue sweep complete", "notifications_created", created)
	return nil
}

// printDevToken mints a bearer token for local testing: token USER_ID [ROLE] [TTL]
func printDevToken(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: %s token USER_ID [ROLE] [TTL]", os.Args[0])
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || userID <= 0 {
		return fmt.Errorf("invalid user id %q", args[0])
	}
	role := "member"
	if len(args) > 1 {
		role = args[1]
	}
	ttl := 24 * time.Hour
	if len(args) > 2 {
		if ttl, err = time.ParseDuration(args[2]); err != nil {
			return fmt.Errorf("invalid ttl %q: %w", args[2], err)
		}
	}

	if err := auth.ValidateJWTSecret(); err != nil {
		return fmt.Errorf("security configuration error: %w", err)
	}
	token, err := auth.GenerateJWT(userID, role, uuid.NewString(), ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
