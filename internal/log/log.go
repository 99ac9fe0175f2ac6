// Package log provides the logging infrastructure for the websearch-mcp server.
//
// It exposes a type alias for *slog.Logger plus factory functions, so
// components receive a logger via constructor injection rather than
// reaching for a global:
//
//	logger := log.New(log.Config{Level: slog.LevelDebug})
//	searcher := search.NewDuckDuckGo(cfg, logger.With("component", "search"))
//
// In tests, use NewNop to silence output or NewWithWriter to capture it.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger is a type alias for *slog.Logger. Components accept log.Logger
// as a dependency and add context with With().
type Logger = *slog.Logger

// Config defines logger configuration options.
type Config struct {
	// Level sets the minimum log level. Default: slog.LevelInfo
	Level slog.Level

	// JSON enables JSON format output. Default: false (text format)
	JSON bool

	// AddSource adds source file information to log entries. Default: false
	AddSource bool
}

// New creates a new logger writing to os.Stderr.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter creates a new logger that writes to the specified writer.
// Useful for testing or custom output destinations.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// NewNop creates a logger that discards all output. Tests only: production
// code should always use New or NewWithWriter so failures stay visible.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
