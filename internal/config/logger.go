package config

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger writes to stdout: JSON at Info in production, text at Debug
// with source locations otherwise.
func NewLogger(env string) *slog.Logger {
	return NewLoggerWithWriter(os.Stdout, env)
}

// NewLoggerWithWriter is NewLogger with an explicit destination. The CLI
// logs to stderr so that its stdout stays parseable JSON.
func NewLoggerWithWriter(w io.Writer, env string) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: env == "development",
		Level:     slog.LevelDebug,
	}

	if env == "production" {
		opts.Level = slog.LevelInfo
		return slog.New(slog.NewJSONHandler(w, opts)).With("service", "facematch")
	}

	return slog.New(slog.NewTextHandler(w, opts))
}
