// Package logging configures the process-wide structured logger. All log
// output goes to standard error so the tool server's standard output stays
// reserved for protocol frames.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Setup installs a JSON slog handler writing to stderr and returns it.
// verbose lowers the level to Debug.
func Setup(verbose bool) *slog.Logger {
	return SetupWithWriter(os.Stderr, verbose)
}

// SetupWithWriter is Setup with an explicit destination, for tests.
func SetupWithWriter(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
