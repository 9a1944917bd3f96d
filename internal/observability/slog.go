// Package observability provides logging initialization.
package observability

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/stolasapp/recorrect/internal/config"
)

// InitSlog initializes a logger writing to stderr with the given config. When
// running in a terminal, it uses a human-readable text format; otherwise it
// uses JSON for structured logging.
func InitSlog(cfg *config.Config) *slog.Logger {
	return NewLogger(os.Stderr, cfg, term.IsTerminal(int(os.Stdin.Fd())))
}

// NewLogger builds the logger InitSlog uses for an arbitrary writer.
func NewLogger(out io.Writer, cfg *config.Config, text bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: cfg.DevMode,
		Level:     cfg.LogLevel.SlogLevel(),
	}
	var handler slog.Handler
	if text {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return slog.New(handler)
}
