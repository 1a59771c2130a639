// Package logging builds the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/teazle/autosocialai/internal/config"
)

const service = "autosocial"

// New creates a slog.Logger writing to stdout in the configured format.
func New(cfg config.LoggingConfig) *slog.Logger {
	return NewWriter(os.Stdout, cfg)
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	level := levelFromString(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("service", service)
}

func levelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
