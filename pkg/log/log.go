// Package log provides the context-embedded slog.Logger the control loop,
// simulator, and vehicle/emissions clients log through.
package log

import (
	"context"
	"log/slog"
	"os"
)

var (
	defaultLogLevel slog.LevelVar
	defaultLogger   = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     &defaultLogLevel,
	}))
)

func init() {
	defaultLogLevel.Set(slog.LevelInfo)
}

type contextKey struct{}

var loggerKey = contextKey{}

// Ctx returns the logger embedded in ctx, or the package default logger if
// none was embedded (via With).
func Ctx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return defaultLogger
}

// With returns a copy of ctx carrying logger, for Ctx to retrieve later.
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// SetDefaultLogLevel adjusts the package default logger's level, e.g. from
// the CLI's -log-level flag or from llog's configured level.
func SetDefaultLogLevel(level slog.Level) {
	defaultLogLevel.Set(level)
}
