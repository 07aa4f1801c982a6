// Package logging builds the process logger from the logging config.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/dues-dev/dues/internal/config"
)

// New builds a slog.Logger writing to w. The text format renders through
// charmbracelet/log for terminals; json uses slog's JSON handler.
func New(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	level := ParseLevel(cfg.Level)

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: cfg.IncludeCaller,
		}))
	}

	handler := log.NewWithOptions(w, log.Options{
		Level:           charmLevel(level),
		ReportTimestamp: true,
		ReportCaller:    cfg.IncludeCaller,
	})
	return slog.New(handler)
}

// ParseLevel maps a config level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func charmLevel(l slog.Level) log.Level {
	switch {
	case l <= slog.LevelDebug:
		return log.DebugLevel
	case l <= slog.LevelInfo:
		return log.InfoLevel
	case l <= slog.LevelWarn:
		return log.WarnLevel
	default:
		return log.ErrorLevel
	}
}
