package logging

import (
	"context"

	"go.uber.org/zap"
)

// Context keys for correlation ids. Their names double as field keys, so a
// pattern can render them with {X(trace_id)} or {X(request_id)}.
type ctxKey string

const (
	// TraceIDKey is the context key for trace ID.
	TraceIDKey ctxKey = "trace_id"
	// RequestIDKey is the context key for request ID.
	RequestIDKey ctxKey = "request_id"
)

var contextKeys = []ctxKey{TraceIDKey, RequestIDKey}

// WithContext creates a child logger carrying the correlation ids found in ctx.
func WithContext(logger Logger, ctx context.Context) Logger {
	if ctx == nil {
		return logger
	}

	var fields []zap.Field
	for _, key := range contextKeys {
		if v := stringValue(ctx, key); v != "" {
			fields = append(fields, zap.String(string(key), v))
		}
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(key).(string)
	return s
}

// GetTraceID extracts trace ID from context.
func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

// GetRequestID extracts request ID from context.
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

// SetTraceID adds trace ID to context.
func SetTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// SetRequestID adds request ID to context.
func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// loggerKey is the context key for storing a logger in context.
type loggerKey struct{}

// FromContext returns the Logger stored in the context, or the global logger if none.
func FromContext(ctx context.Context) Logger {
	if ctx == nil {
		return Global()
	}
	if l, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return l
	}
	return Global()
}

// ToContext stores the Logger in the context.
func ToContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}
