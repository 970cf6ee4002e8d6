package log

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
)

// NewRotatingFile returns a writer that appends to path and rotates it once
// it reaches maxSizeMB megabytes, keeping maxBackups old files.
// Non-positive values select the defaults.
func NewRotatingFile(path string, maxSizeMB, maxBackups int) (*lumberjack.Logger, error) {
	if path == "" {
		return nil, fmt.Errorf("log file path cannot be empty")
	}
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxSizeMB
	}
	if maxBackups <= 0 {
		maxBackups = DefaultMaxBackups
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Create the file up front so it gets owner-only permissions and so
	// permission problems surface here instead of on the first write.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	_ = f.Close()

	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,  // megabytes
		MaxBackups: maxBackups, // number of backups
		MaxAge:     0,          // don't delete old files based on age
		Compress:   false,
	}, nil
}
