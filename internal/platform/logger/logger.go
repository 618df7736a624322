package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phrazzld/connkeeper/internal/ciutil"
	"github.com/phrazzld/connkeeper/internal/config"
)

// Setup initializes the application's logging system from cfg, writing to
// stdout, and installs the result as the slog default.
func Setup(cfg config.LogConfig) (*slog.Logger, error) {
	logger := NewWithWriter(cfg, os.Stdout)
	slog.SetDefault(logger)
	return logger, nil
}

// NewWithWriter builds a logger for cfg that writes to w. JSON output under
// a CI system is routed through CIHandler.
func NewWithWriter(cfg config.LogConfig, w io.Writer) *slog.Logger {
	level, ok := ParseLevel(cfg.Level)
	if !ok {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Warn(
			"invalid log level configured, using default level",
			"configured_level", cfg.Level,
			"default_level", "info")
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch {
	case strings.EqualFold(cfg.Format, "text"):
		handler = slog.NewTextHandler(w, opts)
	case ciutil.IsCI():
		handler = NewCIHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel converts a level name (case-insensitive) to a slog.Level.
// Unknown names yield slog.LevelInfo and false.
func ParseLevel(level string) (slog.Level, bool) {
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
