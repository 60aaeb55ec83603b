package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// DatabaseConfig.GetDSN
// ---------------------------------------------------------------------------

func TestGetDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "standard config",
			cfg: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "taskboard",
				Password: "secret",
				Name:     "taskboard",
				SSLMode:  "require",
			},
			want: "host=localhost port=5432 user=taskboard password=secret dbname=taskboard sslmode=require",
		},
		{
			name: "empty password",
			cfg: DatabaseConfig{
				Host:    "db.example.com",
				Port:    5433,
				User:    "user",
				Name:    "boards",
				SSLMode: "disable",
			},
			want: "host=db.example.com port=5433 user=user password= dbname=boards sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetDSN(); got != tt.want {
				t.Errorf("GetDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetAddress(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{"default", ServerConfig{Host: "0.0.0.0", Port: 8080}, "0.0.0.0:8080"},
		{"empty host", ServerConfig{Host: "", Port: 8080}, ":8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetAddress(); got != tt.want {
				t.Errorf("GetAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Config.Validate
// ---------------------------------------------------------------------------

func minimalValidConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host: "localhost",
			Name: "taskboard",
			User: "taskboard",
		},
		Logging: LoggingConfig{Level: "info"},
		Audit:   AuditConfig{Enabled: true, APIPrefix: "/api"},
		Notifications: NotificationsConfig{
			OverdueSweepInterval: 6 * time.Hour,
			DeadlineDedupWindow:  24 * time.Hour,
		},
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid minimal config passes", func(t *testing.T) {
		if err := minimalValidConfig().Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})

	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"invalid server port 0", func(c *Config) { c.Server.Port = 0 }},
		{"invalid server port 70000", func(c *Config) { c.Server.Port = 70000 }},
		{"missing database host", func(c *Config) { c.Database.Host = "" }},
		{"missing database name", func(c *Config) { c.Database.Name = "" }},
		{"missing database user", func(c *Config) { c.Database.User = "" }},
		{"relative api prefix", func(c *Config) { c.Audit.APIPrefix = "api" }},
		{"zero sweep interval", func(c *Config) { c.Notifications.OverdueSweepInterval = 0 }},
		{"negative dedup window", func(c *Config) { c.Notifications.DeadlineDedupWindow = -time.Hour }},
		{"rate limiting with zero rpm", func(c *Config) {
			c.Security.RateLimiting.Enabled = true
			c.Security.RateLimiting.RequestsPerMinute = 0
		}},
		{"invalid logging level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := minimalValidConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() expected error for %s, got nil", tc.name)
			}
		})
	}

	t.Run("api prefix ignored when audit disabled", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Audit.Enabled = false
		cfg.Audit.APIPrefix = ""
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

// writeTempConfig creates a temp YAML file and registers a cleanup to remove it.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "config-test-*.yaml")
	if err != nil {
		t.Fatal("CreateTemp:", err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })
	if _, err := f.WriteString(content); err != nil {
		t.Fatal("WriteString:", err)
	}
	f.Close()
	return f.Name()
}

func TestLoad_DefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		if !strings.Contains(err.Error(), "invalid configuration") &&
			!strings.Contains(err.Error(), "error reading config file") {
			t.Fatalf("Load() unexpected error kind: %v", err)
		}
		return
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default server port = %d, want 8080", cfg.Server.Port)
	}
}

func TestLoad_WithConfigFile(t *testing.T) {
	const content = `
server:
  host: "testhost"
  port: 9999
database:
  host: "dbhost"
  name: "testdb"
  user: "testuser"
logging:
  level: "debug"
notifications:
  overdue_sweep_interval: "1h"
  deadline_dedup_window: "12h"
audit:
  skip_routes:
    - "/api/ping"
`
	path := writeTempConfig(t, content)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Host != "testhost" {
		t.Errorf("Server.Host = %q, want testhost", cfg.Server.Host)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Database.Name != "testdb" {
		t.Errorf("Database.Name = %q, want testdb", cfg.Database.Name)
	}
	if cfg.Notifications.OverdueSweepInterval != time.Hour {
		t.Errorf("OverdueSweepInterval = %v, want 1h", cfg.Notifications.OverdueSweepInterval)
	}
	if cfg.Notifications.DeadlineDedupWindow != 12*time.Hour {
		t.Errorf("DeadlineDedupWindow = %v, want 12h", cfg.Notifications.DeadlineDedupWindow)
	}
	if len(cfg.Audit.SkipRoutes) != 1 || cfg.Audit.SkipRoutes[0] != "/api/ping" {
		t.Errorf("Audit.SkipRoutes = %v, want [/api/ping]", cfg.Audit.SkipRoutes)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	const content = `
database:
  host: "localhost"
  name: "taskboard"
  user: "taskboard"
`
	path := writeTempConfig(t, content)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.SSLMode != "require" {
		t.Errorf("default Database.SSLMode = %q, want require", cfg.Database.SSLMode)
	}
	if cfg.Notifications.OverdueSweepInterval != 6*time.Hour {
		t.Errorf("default OverdueSweepInterval = %v, want 6h", cfg.Notifications.OverdueSweepInterval)
	}
	if cfg.Notifications.DeadlineDedupWindow != 24*time.Hour {
		t.Errorf("default DeadlineDedupWindow = %v, want 24h", cfg.Notifications.DeadlineDedupWindow)
	}
	if cfg.Audit.APIPrefix != "/api" {
		t.Errorf("default Audit.APIPrefix = %q, want /api", cfg.Audit.APIPrefix)
	}
	if len(cfg.Audit.SkipRoutes) == 0 {
		t.Error("default Audit.SkipRoutes is empty, want health/token/polling routes")
	}
	for _, r := range cfg.Audit.SkipRoutes {
		if r == "/api/users/me" {
			t.Error("default Audit.SkipRoutes skips every method under /api/users/me, want GET only")
		}
	}
	if cfg.Audit.WriteTimeout != 5*time.Second {
		t.Errorf("default Audit.WriteTimeout = %v, want 5s", cfg.Audit.WriteTimeout)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	t.Setenv("TASKBOARD_NOTIFICATIONS_DEADLINE_DEDUP_WINDOW", "48h")
	const content = `
database:
  host: "localhost"
  name: "taskboard"
  user: "taskboard"
`
	path := writeTempConfig(t, content)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Notifications.DeadlineDedupWindow != 48*time.Hour {
		t.Errorf("DeadlineDedupWindow = %v, want 48h", cfg.Notifications.DeadlineDedupWindow)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PASS", "mysecret")
	const content = `
database:
  host: "localhost"
  name: "taskboard"
  user: "taskboard"
  password: "${TEST_DB_PASS}"
`
	path := writeTempConfig(t, content)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.Password != "mysecret" {
		t.Errorf("Database.Password = %q, want mysecret", cfg.Database.Password)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTempConfig(t, "server: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}
