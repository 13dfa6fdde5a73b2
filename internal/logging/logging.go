// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New returns a text logger writing to w. Only warnings and errors are
// shown unless verbose is set, which enables everything down to debug.
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Init installs a stderr logger as the slog default.
func Init(verbose bool) {
	slog.SetDefault(New(os.Stderr, verbose))
}
