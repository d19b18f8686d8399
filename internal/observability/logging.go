// Package observability carries build identity through a context so every
// log line of a build can be correlated.
package observability

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
)

// LogContext holds structured logging context information.
type LogContext struct {
	BuildID string
	Stage   string
}

type logContextKeyType string

const logContextKey logContextKeyType = "log-context"

// WithBuildID adds a build ID to the context.
func WithBuildID(ctx context.Context, buildID string) context.Context {
	lc := extractLogContext(ctx)
	lc.BuildID = buildID
	return context.WithValue(ctx, logContextKey, lc)
}

// WithStage adds a stage name to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	lc := extractLogContext(ctx)
	lc.Stage = stage
	return context.WithValue(ctx, logContextKey, lc)
}

// GetContext returns the structured log context from ctx.
func GetContext(ctx context.Context) LogContext {
	return extractLogContext(ctx)
}

func extractLogContext(ctx context.Context) LogContext {
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

// Attrs returns the context's values as canonical log attributes.
func Attrs(ctx context.Context) []slog.Attr {
	lc := extractLogContext(ctx)
	var attrs []slog.Attr
	if lc.BuildID != "" {
		attrs = append(attrs, logfields.BuildID(lc.BuildID))
	}
	if lc.Stage != "" {
		attrs = append(attrs, logfields.Stage(lc.Stage))
	}
	return attrs
}

// Logger returns base decorated with the context's build ID and stage.
func Logger(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	attrs := Attrs(ctx)
	if len(attrs) == 0 {
		return base
	}
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return base.With(args...)
}

// InfoContext logs an info message with context information.
func InfoContext(ctx context.Context, logger *slog.Logger, msg string, attrs ...slog.Attr) {
	logAttrs(ctx, logger, slog.LevelInfo, msg, attrs)
}

// WarnContext logs a warning message with context information.
func WarnContext(ctx context.Context, logger *slog.Logger, msg string, attrs ...slog.Attr) {
	logAttrs(ctx, logger, slog.LevelWarn, msg, attrs)
}

// ErrorContext logs an error message with context information.
func ErrorContext(ctx context.Context, logger *slog.Logger, msg string, attrs ...slog.Attr) {
	logAttrs(ctx, logger, slog.LevelError, msg, attrs)
}

// DebugContext logs a debug message with context information.
func DebugContext(ctx context.Context, logger *slog.Logger, msg string, attrs ...slog.Attr) {
	logAttrs(ctx, logger, slog.LevelDebug, msg, attrs)
}

func logAttrs(ctx context.Context, logger *slog.Logger, level slog.Level, msg string, attrs []slog.Attr) {
	if logger == nil {
		logger = slog.Default()
	}
	all := append(Attrs(ctx), attrs...)
	logger.LogAttrs(ctx, level, msg, all...)
}
