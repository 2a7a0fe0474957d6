// Package log provides the logging infrastructure for coursechat.
//
// Loggers are plain *slog.Logger values injected through constructors;
// components add context with logger.With("component", ...). There is no
// package-global logger besides slog's default.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger is an alias for *slog.Logger so components can declare the
// dependency without importing log/slog themselves.
type Logger = *slog.Logger

// Config defines logger construction options.
type Config struct {
	// Level is the minimum level to emit. Default: slog.LevelInfo.
	Level slog.Level

	// JSON switches output to JSON records (text otherwise).
	JSON bool

	// AddSource includes the caller's file:line in each record.
	AddSource bool
}

// New creates a logger writing to os.Stderr.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter creates a logger writing to w. Tests pass a bytes.Buffer
// to inspect output.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewNop returns a logger that discards everything. Test-only: production
// code should always run with a real handler.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
