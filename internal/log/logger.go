// Package log builds the slog loggers used by the command line client.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options configures New.
type Options struct {
	// Level is debug, info, warn or error. Empty disables logging.
	Level string

	// JSON selects the JSON handler instead of the text handler.
	JSON bool

	// File additionally writes logs to a rotating file.
	File       string
	MaxSizeMB  int
	MaxBackups int

	// Output defaults to os.Stderr.
	Output io.Writer
}

// ParseLevel parses a level name.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
}

// New returns a redacting logger and a function that releases the log file.
// With an empty Level the logger discards everything.
func New(opts Options) (*slog.Logger, func() error, error) {
	noop := func() error { return nil }
	if opts.Level == "" {
		return slog.New(slog.DiscardHandler), noop, nil
	}

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, noop, err
	}

	var w io.Writer = os.Stderr
	if opts.Output != nil {
		w = opts.Output
	}

	closer := noop
	if opts.File != "" {
		rf, err := NewRotatingFile(opts.File, opts.MaxSizeMB, opts.MaxBackups)
		if err != nil {
			return nil, noop, err
		}
		w = io.MultiWriter(w, rf)
		closer = rf.Close
	}

	ho := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(w, ho)
	} else {
		h = slog.NewTextHandler(w, ho)
	}
	return slog.New(NewRedactingHandler(h)), closer, nil
}
