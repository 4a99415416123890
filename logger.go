package mmapbits

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with store-specific context.
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
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithPath adds the backing file path to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// LogOpen logs opening and mapping a backing file.
func (l *Logger) LogOpen(ctx context.Context, mode string, size int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open failed",
			"mode", mode,
			"size", size,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "store opened",
			"mode", mode,
			"size", size,
		)
	}
}

// LogFlush logs a flush to stable storage.
func (l *Logger) LogFlush(ctx context.Context, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "flush failed; store closed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "flush completed",
			"duration", duration,
		)
	}
}

// LogClose logs releasing a store.
func (l *Logger) LogClose(ctx context.Context, err error) {
	if err != nil {
		l.WarnContext(ctx, "close completed with errors",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "store closed")
	}
}

// LogLoad logs a bulk load.
func (l *Logger) LogLoad(ctx context.Context, source string, lines int64, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"source", source,
			"lines", lines,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "load completed",
			"source", source,
			"lines", lines,
			"duration", duration,
		)
	}
}

// LogSnapshot logs a snapshot export or import.
func (l *Logger) LogSnapshot(ctx context.Context, op, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"op", op,
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot completed",
			"op", op,
			"name", name,
		)
	}
}
