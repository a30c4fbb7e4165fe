// ABOUTME: Logger construction from configuration
// ABOUTME: Builds a text or JSON slog handler at the configured level
package config

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger builds a slog logger from the logging section. Verbose forces
// debug level.
func (l *LoggingConfig) NewLogger(verbose bool) *slog.Logger {
	var w io.Writer = os.Stderr
	if l.Output == "stdout" {
		w = os.Stdout
	}
	return l.newLogger(w, verbose)
}

func (l *LoggingConfig) newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch l.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
