package utils

import (
	"context"
	"net/http"

	"github.com/SmartBin/SmartBin-Backend/internal/gateway"
)

type contextKey string

const (
	ContextUserIDKey contextKey = "userID"
	ContextTokenKey  contextKey = "sessionToken"
	ContextAdminKey  contextKey = "isAdmin"
)

// GetUserIDFromContext returns the Clerk user id placed by the auth middleware.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID := ctx.Value(ContextUserIDKey)
	userIDStr, ok := userID.(string)
	return userIDStr, ok && userIDStr != ""
}

// GetTokenFromContext returns the raw session token of the caller, if any.
func GetTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(ContextTokenKey).(string)
	return token
}

// IsAdmin reports whether the admin middleware let this request through.
func IsAdmin(ctx context.Context) bool {
	admin, _ := ctx.Value(ContextAdminKey).(bool)
	return admin
}

// UpstreamContext forwards the caller's session token to the gateway.
func UpstreamContext(r *http.Request) context.Context {
	ctx := r.Context()
	if token := GetTokenFromContext(ctx); token != "" {
		return gateway.WithBearer(ctx, token)
	}
	return ctx
}
