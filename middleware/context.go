package middleware

import (
	"context"
)

// Context key type to avoid collisions
type contextKey string

const (
	// TokenKey is the context key for the opaque access token
	TokenKey contextKey = "access_token"
)

// WithToken adds the access token to the context
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, TokenKey, token)
}

// GetTokenFromContext retrieves the access token from context
func GetTokenFromContext(ctx context.Context) string {
	if val := ctx.Value(TokenKey); val != nil {
		if token, ok := val.(string); ok {
			return token
		}
	}
	return ""
}
