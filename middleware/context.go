package middleware

import (
	"context"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/keyruu/ruscalimat/token"
)

// Context key type to avoid collisions
type contextKey string

const (
	// IdentityKey is the context key for the authenticated identity
	IdentityKey contextKey = "identity"
)

// GetRequestIDFromContext retrieves the chi request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	return chimiddleware.GetReqID(ctx)
}

// WithIdentity adds an authenticated identity to the context
func WithIdentity(ctx context.Context, id token.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// GetIdentityFromContext retrieves the identity attached by the auth middleware.
// The boolean is false when no authenticated identity is present.
func GetIdentityFromContext(ctx context.Context) (token.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(token.Identity)
	if !ok || id.Anonymous() {
		return token.Identity{}, false
	}
	return id, true
}

// GetUserClaimsFromContext returns the identity-provider claims, or nil for
// anonymous and PIN requests.
func GetUserClaimsFromContext(ctx context.Context) *token.UserClaims {
	id, _ := GetIdentityFromContext(ctx)
	return id.User
}
