// Package audit emits append-only audit events for security-relevant
// actions: logins, token issuance, administrative changes.
package audit

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/jschappet/heron/internal/obs"
)

type ctxKey struct{}

// WithRequestID attaches the request identifier to the context so audit
// events can be correlated with access log lines.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// RequestIDFromContext returns the request id attached by the logging
// middleware, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit entry enriched with the request id. Fields
// land as structured zap fields under the "audit" logger name.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	zfields := make([]zap.Field, 0, len(fields)+2)
	zfields = append(zfields, zap.String("event", event))
	if rid := RequestIDFromContext(ctx); rid != "" {
		zfields = append(zfields, zap.String("request_id", rid))
	}
	for k, v := range fields {
		zfields = append(zfields, zap.Any(k, v))
	}
	obs.L().Named("audit").Info("audit", zfields...)
	return nil
}
