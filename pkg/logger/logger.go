package logger

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const requestIDKey contextKey = "request_id"

var current atomic.Pointer[zap.Logger]

func init() {
	current.Store(zap.NewNop())
}

// Init builds the process-wide JSON logger at the given level.
func Init(level string) error {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(parseLevel(level))
	config.Encoding = "json"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.MessageKey = "message"
	config.EncoderConfig.LevelKey = "log_level"
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	config.EncoderConfig.StacktraceKey = ""
	config.OutputPaths = []string{"stdout"}

	log, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	Set(log)
	return nil
}

// Set replaces the process-wide logger.
func Set(log *zap.Logger) {
	current.Store(log)
}

// L returns the process-wide logger.
func L() *zap.Logger {
	return current.Load()
}

// Sync flushes buffered entries.
func Sync() {
	_ = L().Sync()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// WithRequestID returns a context carrying the request id for log correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

func withContext(ctx context.Context, fields []zap.Field) []zap.Field {
	if id := RequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	return fields
}

func CtxDebug(ctx context.Context, msg string, fields ...zap.Field) {
	L().Debug(msg, withContext(ctx, fields)...)
}

func CtxInfo(ctx context.Context, msg string, fields ...zap.Field) {
	L().Info(msg, withContext(ctx, fields)...)
}

func CtxWarn(ctx context.Context, msg string, fields ...zap.Field) {
	L().Warn(msg, withContext(ctx, fields)...)
}

// CtxError logs msg with err attached under the "error" key.
func CtxError(ctx context.Context, msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	L().Error(msg, withContext(ctx, fields)...)
}

func Info(msg string, fields ...zap.Field) {
	L().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	L().Warn(msg, fields...)
}

func Error(msg string, err error, fields ...zap.Field) {
	L().Error(msg, append(fields, zap.Error(err))...)
}
