package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey string

const loggerKey contextKey = "logger"

// WithContext stores a logger in ctx.
func WithContext(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// Ctx returns the logger stored in ctx, or the global logger.
//
//	logging.Ctx(ctx).Warn().Err(err).Int64("analysis_id", id).Msg("linking track")
func Ctx(ctx context.Context) *zerolog.Logger {
	if l, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		return &l
	}
	l := Logger()
	return &l
}
