package middleware

import (
	"net/http"

	"github.com/keyruu/ruscalimat/token"
	"github.com/keyruu/ruscalimat/utils"
	"go.uber.org/zap"
)

// Authenticator turns request headers into an identity
type Authenticator interface {
	// Authenticate treats a missing Authorization header as anonymous
	Authenticate(h http.Header) (token.Identity, error)
	// RequireAuthenticated rejects a missing Authorization header
	RequireAuthenticated(h http.Header) (token.Identity, error)
}

// unauthorizedMessage is the only 401 text clients ever see
const unauthorizedMessage = "Invalid or missing credentials"

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	gate   Authenticator
	logger *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(gate Authenticator, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		gate:   gate,
		logger: logger,
	}
}

// Authenticate is the optional-identity middleware. Requests without an
// Authorization header pass through anonymously; a header that is present
// but does not verify is rejected.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return m.authenticate(next, m.gate.Authenticate)
}

// RequireAuth is the mandatory-identity middleware
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return m.authenticate(next, m.gate.RequireAuthenticated)
}

func (m *AuthMiddleware) authenticate(next http.Handler, check func(http.Header) (token.Identity, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		id, err := check(r.Header)
		if err != nil {
			m.logger.Warn("authentication failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, unauthorizedMessage)
			return
		}

		if id.Anonymous() {
			next.ServeHTTP(w, r)
			return
		}

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("sub", id.Subject()),
			zap.Bool("pin", id.Pin != nil))

		next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
	})
}

// RequireUser requires an identity-provider user. PIN identities are
// authenticated but not allowed. Must run after Authenticate or RequireAuth.
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		id, ok := GetIdentityFromContext(ctx)
		if !ok {
			m.logger.Warn("identity not found in context",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, unauthorizedMessage)
			return
		}
		if id.User == nil {
			m.logger.Warn("pin identity used on a user-only route",
				zap.String("request_id", requestID),
				zap.String("sub", id.Subject()))
			_ = utils.WriteForbidden(w, "Sign in with your account to continue")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireAdmin requires an identity-provider user in the admin group.
// Must run after Authenticate or RequireAuth.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		id, ok := GetIdentityFromContext(ctx)
		if !ok {
			m.logger.Warn("identity not found in context",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, unauthorizedMessage)
			return
		}

		if !id.IsAdmin() {
			fields := []zap.Field{
				zap.String("request_id", requestID),
				zap.String("sub", id.Subject()),
			}
			if id.User != nil {
				fields = append(fields, zap.Strings("user_groups", id.User.Groups()))
			}
			m.logger.Warn("insufficient permissions", fields...)
			_ = utils.WriteForbidden(w, "Insufficient permissions")
			return
		}

		m.logger.Debug("admin check passed",
			zap.String("request_id", requestID),
			zap.String("sub", id.Subject()))

		next.ServeHTTP(w, r)
	})
}
