// Package telemetry sets up the process-wide structured logger.
package telemetry

import (
	"io"
	"log/slog"
	"sync"
)

var initOnce sync.Once

// NewLogger builds a logger writing to sink. Unknown levels fall back to info
// and unknown formats to JSON.
func NewLogger(name, level, format string, sink io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(sink, opts)
	} else {
		handler = slog.NewJSONHandler(sink, opts)
	}

	return slog.New(handler).With("service", name)
}

// ParseLevel maps a config level name to a slog level.
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

// Init installs logger as the slog default. Only the first call has an
// effect; it reports whether this call installed the logger.
func Init(logger *slog.Logger) bool {
	installed := false
	initOnce.Do(func() {
		slog.SetDefault(logger)
		installed = true
	})
	return installed
}
