// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the application-wide structured logger instance.
var Logger = slog.Default()

// InitLogger initializes the global logger with the specified level and format.
// level: "debug", "info", "warn", "error" (defaults to "info")
// format: "json" or "text" (defaults to "text")
// When file is non-empty, output goes to a size-rotated log file instead
// of stdout. The returned closer releases the file.
func InitLogger(level, format, file string) io.Closer {
	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}
	if file != "" {
		rotating := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    20, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
		out = rotating
		closer = rotating
	}

	Logger = slog.New(NewHandler(out, level, format))
	slog.SetDefault(Logger)
	return closer
}

// NewHandler builds a text or JSON handler at the given level.
func NewHandler(w io.Writer, level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithSubscriber returns a logger with the subscriber_id field.
func WithSubscriber(id string) *slog.Logger {
	return Logger.With("subscriber_id", id)
}

// WithComponent returns a logger tagged with a pipeline component name.
func WithComponent(name string) *slog.Logger {
	return Logger.With("component", name)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
