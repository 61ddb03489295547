// Package common provides shared utilities used across the application.
package common

import (
	"log/slog"
	"os"
)

// SetupLogger configures the global logger with appropriate settings.
func SetupLogger(level slog.Level, format string) {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// ParseLevel maps a configuration string to a slog level, defaulting to
// info for anything unrecognized.
func ParseLevel(level string) slog.Level {
	switch level {
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
