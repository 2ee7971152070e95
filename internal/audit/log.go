// Package audit writes structured audit events for security-relevant actions.
package audit

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"mamacare.app/internal/auth"
)

type requestIDKey struct{}

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext extracts the request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// Logger records audit events on a dedicated zap logger.
type Logger struct {
	log *zap.Logger
}

// New returns an audit logger writing through l. A nil l discards events.
func New(l *zap.Logger) *Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &Logger{log: l.Named("audit")}
}

// Record writes an audit entry enriched with request and actor context.
func (l *Logger) Record(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	if l == nil {
		return nil
	}
	zf := make([]zap.Field, 0, len(fields)+4)
	zf = append(zf, zap.String("type", "audit"), zap.String("event", event))
	if rid := RequestIDFromContext(ctx); rid != "" {
		zf = append(zf, zap.String("request_id", rid))
	}
	if admin, ok := auth.AdminFromContext(ctx); ok {
		zf = append(zf, zap.String("actor_id", admin.ID), zap.String("actor_kind", "admin"))
	} else if acc, ok := auth.AccountFromContext(ctx); ok {
		zf = append(zf, zap.String("actor_id", acc.ID), zap.String("actor_kind", "account"))
	}

	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	zf = append(zf, zap.Any("fields", copied))

	l.log.Info("audit", zf...)
	return nil
}
