// Package requestctx carries per-request values (caller id, token expiry,
// correlation id) explicitly on the request context.
package requestctx

import (
	"context"
	"time"
)

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	expiryKey    contextKey = "token_expiry"
	requestIDKey contextKey = "request_id"
)

// WithUser stores the verified caller.
func WithUser(ctx context.Context, userID string, expiresAt time.Time) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, expiryKey, expiresAt)
}

// UserID returns the verified caller id, if the request was authenticated.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

func TokenExpiry(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(expiryKey).(time.Time)
	return t, ok
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
