package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"projecttracker/pkg/trace"
)

var Log *zap.Logger

// NewLogger builds the process logger. Production JSON by default; the
// local config env gets a development console encoder.
func NewLogger(env string) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if env == "local" || env == "dev" {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		l, err = cfg.Build()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	Log = l
	return l
}

// WithTrace tags logger with the trace id carried by ctx.
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if traceID := trace.FromContext(ctx); traceID != "" {
		return logger.With(zap.String("trace_id", traceID))
	}
	return logger
}
