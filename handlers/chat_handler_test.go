package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hirewise/llm-proxy/config"
	"github.com/hirewise/llm-proxy/metering"
	"github.com/hirewise/llm-proxy/models"
	"github.com/hirewise/llm-proxy/pricing"
	"github.com/hirewise/llm-proxy/providers"
	"github.com/hirewise/llm-proxy/router"
)

// stubProvider returns a fixed response or error for handler tests
type stubProvider struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *stubProvider) Name() string                    { return "stub" }
func (p *stubProvider) DefaultModel() string            { return "stub-model" }
func (p *stubProvider) SupportsModel(model string) bool { return model == "stub-model" }

func (p *stubProvider) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}
	return &providers.ChatResponse{
		Content:  "stub reply",
		Model:    req.Model,
		Provider: "stub",
		Usage:    &providers.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// discardUsageRepo drops usage records, handler tests only care about the
// synchronous path
type discardUsageRepo struct{}

func (discardUsageRepo) Insert(ctx context.Context, record *models.UsageRecord) error { return nil }
func (discardUsageRepo) GetBySessionID(ctx context.Context, sessionID string, limit, offset int) ([]*models.UsageRecord, error) {
	return nil, nil
}
func (discardUsageRepo) GetBySubmissionID(ctx context.Context, submissionID string, limit, offset int) ([]*models.UsageRecord, error) {
	return nil, nil
}
func (discardUsageRepo) SummarizeSession(ctx context.Context, sessionID string) (*models.UsageSummary, error) {
	return nil, nil
}

func newChatHandler(t *testing.T, provider providers.Provider) *ChatHandler {
	t.Helper()

	registry := providers.NewRegistry()
	require.NoError(t, registry.Register(provider))

	meter := metering.NewService(discardUsageRepo{}, pricing.NewTable(), zap.NewNop(), metering.Config{
		BufferSize:  10,
		WorkerCount: 1,
	})
	require.NoError(t, meter.Start())
	t.Cleanup(func() { meter.Stop(time.Second) })

	cfg := config.RouterConfig{
		DefaultProvider: "stub",
		MaxRetries:      2,
		RetryBackoff:    time.Millisecond,
		MaxElapsed:      5 * time.Second,
	}
	rt := router.New(cfg, registry, meter, zap.NewNop())

	return NewChatHandler(rt, zap.NewNop())
}

func postChat(t *testing.T, handler *ChatHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/llm-proxy/chat", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	handler.HandleChat(w, req)
	return w
}

func TestHandleChat(t *testing.T) {
	t.Run("returns result for valid request", func(t *testing.T) {
		provider := &stubProvider{}
		handler := newChatHandler(t, provider)

		w := postChat(t, handler, `{
			"sessionId": "sess-1",
			"submissionId": "sub-1",
			"messages": [{"role": "user", "content": "hello"}]
		}`)

		assert.Equal(t, http.StatusOK, w.Code)

		var result router.ChatResult
		require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
		assert.Equal(t, "stub reply", result.Content)
		assert.Equal(t, "stub", result.Provider)
		assert.Equal(t, "stub-model", result.Model)
		assert.Equal(t, 15, result.Usage.Tokens)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		handler := newChatHandler(t, &stubProvider{})

		w := postChat(t, handler, `{not json`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects missing session identity without provider call", func(t *testing.T) {
		provider := &stubProvider{}
		handler := newChatHandler(t, provider)

		w := postChat(t, handler, `{
			"submissionId": "sub-1",
			"messages": [{"role": "user", "content": "hello"}]
		}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 0, provider.callCount())

		var resp map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.NotEmpty(t, resp["error"])
	})

	t.Run("rejects empty messages", func(t *testing.T) {
		provider := &stubProvider{}
		handler := newChatHandler(t, provider)

		w := postChat(t, handler, `{
			"sessionId": "sess-1",
			"submissionId": "sub-1",
			"messages": []
		}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 0, provider.callCount())
	})

	t.Run("rejects invalid role", func(t *testing.T) {
		handler := newChatHandler(t, &stubProvider{})

		w := postChat(t, handler, `{
			"sessionId": "sess-1",
			"submissionId": "sub-1",
			"messages": [{"role": "robot", "content": "beep"}]
		}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("maps exhausted provider to bad gateway", func(t *testing.T) {
		provider := &stubProvider{
			err: providers.NewProviderError("stub", providers.KindUnavailable, "down", 503, nil),
		}
		handler := newChatHandler(t, provider)

		w := postChat(t, handler, `{
			"sessionId": "sess-1",
			"submissionId": "sub-1",
			"messages": [{"role": "user", "content": "hello"}]
		}`)

		assert.Equal(t, http.StatusBadGateway, w.Code)
		// Retries exhausted: first attempt plus two retries
		assert.Equal(t, 3, provider.callCount())
	})

	t.Run("maps auth failure to bad gateway without retries", func(t *testing.T) {
		provider := &stubProvider{
			err: providers.NewProviderError("stub", providers.KindAuthFailure, "bad key", 401, nil),
		}
		handler := newChatHandler(t, provider)

		w := postChat(t, handler, `{
			"sessionId": "sess-1",
			"submissionId": "sub-1",
			"messages": [{"role": "user", "content": "hello"}]
		}`)

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, 1, provider.callCount())
	})

	t.Run("maps timeout to gateway timeout", func(t *testing.T) {
		provider := &stubProvider{
			err: providers.NewProviderError("stub", providers.KindTimeout, "deadline", 0, nil),
		}
		handler := newChatHandler(t, provider)

		w := postChat(t, handler, `{
			"sessionId": "sess-1",
			"submissionId": "sub-1",
			"messages": [{"role": "user", "content": "hello"}]
		}`)

		// Exhausted retryable timeouts surface as provider_exhausted (502)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("maps invalid request to bad request", func(t *testing.T) {
		provider := &stubProvider{
			err: providers.NewProviderError("stub", providers.KindInvalidRequest, "bad payload", 400, nil),
		}
		handler := newChatHandler(t, provider)

		w := postChat(t, handler, `{
			"sessionId": "sess-1",
			"submissionId": "sub-1",
			"messages": [{"role": "user", "content": "hello"}]
		}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 1, provider.callCount())
	})
}
