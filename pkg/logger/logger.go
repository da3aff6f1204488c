// Package logger owns the process-wide structured logger. Sync components
// log through the package helpers so early startup paths work before
// configuration is resolved.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

var Log *slog.Logger

// Setup installs the global logger. level accepts slog level names
// ("debug", "info", "warn", "error"; anything else means info) and format
// selects "json" or "text" records. When QUORUM_LOG_FILE names a path,
// records append there instead of stdout; an unopenable file falls back to
// stdout with a notice on stderr.
func Setup(level, format string) {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lv = slog.LevelInfo
	}

	out := io.Writer(os.Stdout)
	if path := os.Getenv("QUORUM_LOG_FILE"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger: cannot append to %s (%v), using stdout\n", path, err)
		} else {
			out = f
		}
	}

	opts := &slog.HandlerOptions{Level: lv}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		Log = slog.New(slog.NewJSONHandler(out, opts))
	default:
		Log = slog.New(slog.NewTextHandler(out, opts))
	}
}

// Debug logs with slog-style key/value pairs.
func Debug(msg string, args ...any) {
	if Log != nil {
		Log.Debug(msg, args...)
	}
}

// Info logs with slog-style key/value pairs.
func Info(msg string, args ...any) {
	if Log != nil {
		Log.Info(msg, args...)
	}
}

// Warn logs with slog-style key/value pairs.
func Warn(msg string, args ...any) {
	if Log != nil {
		Log.Warn(msg, args...)
	}
}

// Error logs with slog-style key/value pairs.
func Error(msg string, args ...any) {
	if Log != nil {
		Log.Error(msg, args...)
	}
}
