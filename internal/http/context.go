package http

import (
	"context"

	"knowledgehub/app/internal/auth"
)

type contextKey string

const (
	requestIDContextKey contextKey = "knowledgehub/request-id"
	userContextKey      contextKey = "knowledgehub/user"
)

// RequestIDFromContext extracts the request identifier from the context when available.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(requestIDContextKey).(string); ok {
		return value
	}
	return ""
}

// UserFromContext extracts the authenticated user, or nil for anonymous requests.
func UserFromContext(ctx context.Context) *auth.User {
	if ctx == nil {
		return nil
	}
	if user, ok := ctx.Value(userContextKey).(*auth.User); ok {
		return user
	}
	return nil
}
