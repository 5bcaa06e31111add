package logging

import (
	"io"
	"log/slog"
	"os"
)

// New returns the process logger. Production writes JSON at info level; dev
// writes text at debug level.
func New(service, env string) *slog.Logger {
	var h slog.Handler
	if env == "prod" || env == "production" {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return slog.New(h).With("service", service)
}

// Discard drops everything. Used by tests and optional collaborators.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
