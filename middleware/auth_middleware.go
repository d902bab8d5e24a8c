package middleware

import (
	"net/http"
	"strings"

	"github.com/hirewise/llm-proxy/utils"
	"go.uber.org/zap"
)

// AuthMiddleware checks for an access token on proxied requests. Tokens are
// opaque bearer credentials minted by the surrounding platform; this service
// only checks presence and threads the token through, it never inspects or
// validates contents.
type AuthMiddleware struct {
	required bool
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(required bool, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		required: required,
		logger:   logger,
	}
}

// RequireToken is a middleware that rejects requests without a bearer token
func (m *AuthMiddleware) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.required {
			next.ServeHTTP(w, r)
			return
		}

		token := extractToken(r)
		if token == "" {
			m.logger.Warn("missing access token",
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr))
			_ = utils.WriteUnauthorized(w, "missing or invalid authorization")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithToken(r.Context(), token)))
	})
}

// extractToken pulls the bearer token from the Authorization header
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
