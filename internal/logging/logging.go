// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"

	"github.com/lmittmann/tint"
)

// NewLogger returns a tint-backed logger writing to w. verbose enables debug output.
func NewLogger(w io.Writer, verbose, noColor bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
		NoColor:    noColor,
	}))
}

// Setup installs NewLogger as the default logger and returns it
func Setup(w io.Writer, verbose, noColor bool) *slog.Logger {
	logger := NewLogger(w, verbose, noColor)
	slog.SetDefault(logger)
	return logger
}
