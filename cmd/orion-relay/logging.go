package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/e7canasta/orion-relay/internal/config"
)

func newLogger(cfg config.LogConfig) *slog.Logger {
	return slog.New(newHandler(os.Stdout, cfg))
}

func newHandler(w io.Writer, cfg config.LogConfig) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
