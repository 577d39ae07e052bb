package logging

import (
	"context"

	"github.com/sirupsen/logrus"
)

type contextKey string

const requestIDKey contextKey = "request-id"

// WithRequestID returns a copy of ctx carrying the request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id stored in ctx, if any.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// FromContext decorates log with the request id carried by ctx.
func FromContext(ctx context.Context, log logrus.FieldLogger) logrus.FieldLogger {
	if id := RequestID(ctx); id != "" {
		return log.WithField("request_id", id)
	}
	return log
}
