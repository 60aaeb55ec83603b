package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a configured level name to a slog.Level. Unknown names report ok=false
// and fall back to info.
func ParseLevel(level string) (lvl slog.Level, ok bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// NewLogger builds a logger writing to w. format "json" selects the JSON handler, anything
// else the text handler. Source locations are included only at debug level.
func NewLogger(w io.Writer, format, level string) *slog.Logger {
	lvl, _ := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("service", serviceName)
}

// SetupLogger installs a stdout logger as the slog default so package-level
// slog.Info/Warn/Error calls throughout the service use it.
func SetupLogger(format, level string) {
	logger := NewLogger(os.Stdout, format, level)
	slog.SetDefault(logger)
	lvl, _ := ParseLevel(level)
	slog.Info("logger initialised", "format", format, "level", lvl.String())
}

var serviceName = "taskboard"

// SetServiceName sets the service attribute attached to loggers created afterwards.
func SetServiceName(name string) {
	if name != "" {
		serviceName = name
	}
}
