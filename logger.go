package fidsync

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with fidsync-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithTable adds the table path field to the logger.
func (l *Logger) WithTable(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("table", path),
	}
}

// LogBackup logs a slot-file backup.
func (l *Logger) LogBackup(ctx context.Context, path string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "backup failed",
			"path", path,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "backup written",
			"path", path,
		)
	}
}

// LogRewrite logs a slot-file rewrite.
func (l *Logger) LogRewrite(ctx context.Context, path string, remapped int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "slot file rewrite failed",
			"path", path,
			"remapped", remapped,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "slot file rewritten",
			"path", path,
			"remapped", remapped,
		)
	}
}

// LogPatch logs a sidecar index patch. A failed patch is a warning: the
// index is deleted and rebuilt out of band while the resync continues.
func (l *Logger) LogPatch(ctx context.Context, path string, err error) {
	if err != nil {
		l.WarnContext(ctx, "index unpatchable, deleting",
			"path", path,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "index patched",
			"path", path,
		)
	}
}
