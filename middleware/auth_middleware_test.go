package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRequireToken(t *testing.T) {
	passthrough := func(gotToken *string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if gotToken != nil {
				*gotToken = GetTokenFromContext(r.Context())
			}
			w.WriteHeader(http.StatusOK)
		})
	}

	t.Run("passes request with bearer token", func(t *testing.T) {
		var gotToken string
		mw := NewAuthMiddleware(true, zap.NewNop())
		handler := mw.RequireToken(passthrough(&gotToken))

		req := httptest.NewRequest(http.MethodPost, "/llm-proxy/chat", nil)
		req.Header.Set("Authorization", "Bearer abc123")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "abc123", gotToken)
	})

	t.Run("rejects request without authorization header", func(t *testing.T) {
		mw := NewAuthMiddleware(true, zap.NewNop())
		handler := mw.RequireToken(passthrough(nil))

		req := httptest.NewRequest(http.MethodPost, "/llm-proxy/chat", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "missing or invalid authorization")
	})

	t.Run("rejects malformed authorization header", func(t *testing.T) {
		for _, header := range []string{"abc123", "Basic abc123", "Bearer"} {
			mw := NewAuthMiddleware(true, zap.NewNop())
			handler := mw.RequireToken(passthrough(nil))

			req := httptest.NewRequest(http.MethodPost, "/llm-proxy/chat", nil)
			req.Header.Set("Authorization", header)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
		}
	})

	t.Run("bearer scheme is case insensitive", func(t *testing.T) {
		var gotToken string
		mw := NewAuthMiddleware(true, zap.NewNop())
		handler := mw.RequireToken(passthrough(&gotToken))

		req := httptest.NewRequest(http.MethodPost, "/llm-proxy/chat", nil)
		req.Header.Set("Authorization", "bearer abc123")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "abc123", gotToken)
	})

	t.Run("passes everything when auth is disabled", func(t *testing.T) {
		mw := NewAuthMiddleware(false, zap.NewNop())
		handler := mw.RequireToken(passthrough(nil))

		req := httptest.NewRequest(http.MethodPost, "/llm-proxy/chat", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
