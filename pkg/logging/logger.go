// Package logging provides the structured logger used across the service.
package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appctx "github.com/CBPFGMS/GOmapping/pkg/context"
	"github.com/CBPFGMS/GOmapping/pkg/tracing"
)

// Logger is the logging interface consumed by repositories, services and routes
type Logger interface {
	WithContext(ctx context.Context) Logger
	WithError(err error) Logger
	WithField(key string, value any) Logger
	WithFields(fields map[string]any) Logger
	Debug(msg string)
	Debugf(format string, args ...any)
	Info(msg string)
	Infof(format string, args ...any)
	Warn(msg string)
	Warnf(format string, args ...any)
	Error(msg string)
	Errorf(format string, args ...any)
}

// Config holds logger configuration
type Config struct {
	Level  string
	Pretty bool
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// New creates a zap-backed Logger
func New(cfg Config) Logger {
	level := zapcore.InfoLevel
	if parsed, err := zapcore.ParseLevel(cfg.Level); err == nil {
		level = parsed
	}

	var zapCfg zap.Config
	if cfg.Pretty {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		logger = zap.NewNop()
	}

	return &zapLogger{sugar: logger.Sugar()}
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar()}
}

func (l *zapLogger) WithContext(ctx context.Context) Logger {
	if ctx == nil {
		return l
	}

	fields := []any{}
	if requestID := appctx.GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	if traceID := tracing.GetTraceID(ctx); traceID != "" {
		fields = append(fields, "trace_id", traceID)
	}
	if len(fields) == 0 {
		return l
	}

	return &zapLogger{sugar: l.sugar.With(fields...)}
}

func (l *zapLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return &zapLogger{sugar: l.sugar.With("error", err.Error())}
}

func (l *zapLogger) WithField(key string, value any) Logger {
	return &zapLogger{sugar: l.sugar.With(key, value)}
}

func (l *zapLogger) WithFields(fields map[string]any) Logger {
	args := make([]any, 0, len(fields)*2)
	for key, value := range fields {
		args = append(args, key, value)
	}
	return &zapLogger{sugar: l.sugar.With(args...)}
}

func (l *zapLogger) Debug(msg string)                  { l.sugar.Debug(msg) }
func (l *zapLogger) Debugf(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *zapLogger) Info(msg string)                   { l.sugar.Info(msg) }
func (l *zapLogger) Infof(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *zapLogger) Warn(msg string)                   { l.sugar.Warn(msg) }
func (l *zapLogger) Warnf(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *zapLogger) Error(msg string)                  { l.sugar.Error(msg) }
func (l *zapLogger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }
