package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hirewise/llm-proxy/providers"
)

func TestNewAdapter(t *testing.T) {
	adapter := NewAdapter(providers.Config{APIKey: "test-key"})

	if adapter == nil {
		t.Fatal("NewAdapter() returned nil")
	}

	if adapter.Name() != "anthropic" {
		t.Errorf("Name() = %s, want anthropic", adapter.Name())
	}

	if adapter.DefaultModel() != defaultModel {
		t.Errorf("DefaultModel() = %s, want %s", adapter.DefaultModel(), defaultModel)
	}
}

func TestAdapter_MaxTemperature(t *testing.T) {
	var bounded providers.TemperatureBounded = NewAdapter(providers.Config{})

	if got := bounded.MaxTemperature(); got != 1.0 {
		t.Errorf("MaxTemperature() = %v, want 1.0", got)
	}
}

func TestAdapter_SupportsModel(t *testing.T) {
	adapter := NewAdapter(providers.Config{})

	tests := []struct {
		model string
		want  bool
	}{
		{"claude-3-5-haiku-latest", true},
		{"claude-3-5-sonnet-latest", true},
		{"", true},
		{"gpt-4o", false},
		{"gemini-2.0-flash", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := adapter.SupportsModel(tt.model); got != tt.want {
				t.Errorf("SupportsModel(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestAdapter_ChatCompletion(t *testing.T) {
	var gotReq wireRequest
	var gotHeaders http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotHeaders = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotReq); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"model": "claude-3-5-haiku-20241022",
			"content": [{"type": "text", "text": "hello "}, {"type": "text", "text": "there"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 20, "output_tokens": 5}
		}`))
	}))
	defer server.Close()

	adapter := NewAdapter(providers.Config{APIKey: "ak-test", BaseURL: server.URL})

	resp, err := adapter.ChatCompletion(context.Background(), &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: "be brief"},
			{Role: providers.RoleSystem, Content: "answer in english"},
			{Role: providers.RoleUser, Content: "hello"},
		},
	})
	if err != nil {
		t.Fatalf("ChatCompletion() error = %v", err)
	}

	if gotHeaders.Get("x-api-key") != "ak-test" {
		t.Errorf("x-api-key = %s, want ak-test", gotHeaders.Get("x-api-key"))
	}
	if gotHeaders.Get("anthropic-version") != apiVersion {
		t.Errorf("anthropic-version = %s, want %s", gotHeaders.Get("anthropic-version"), apiVersion)
	}

	// System messages are hoisted out of the message list
	if gotReq.System != "be brief\nanswer in english" {
		t.Errorf("system = %q, want joined system prompts", gotReq.System)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Errorf("unexpected wire messages: %+v", gotReq.Messages)
	}
	if gotReq.MaxTokens != defaultMaxTokens {
		t.Errorf("max_tokens = %d, want default %d", gotReq.MaxTokens, defaultMaxTokens)
	}

	if resp.Content != "hello there" {
		t.Errorf("Content = %q, want joined text blocks", resp.Content)
	}
	if resp.Model != "claude-3-5-haiku-20241022" {
		t.Errorf("Model = %s, want claude-3-5-haiku-20241022", resp.Model)
	}
	if resp.Provider != "anthropic" {
		t.Errorf("Provider = %s, want anthropic", resp.Provider)
	}
	if resp.Usage == nil {
		t.Fatal("Usage not mapped")
	}
	if resp.Usage.PromptTokens != 20 || resp.Usage.CompletionTokens != 5 || resp.Usage.TotalTokens != 25 {
		t.Errorf("Usage = %+v, want 20/5/25", resp.Usage)
	}
}

func TestAdapter_ChatCompletion_MaxTokensOverride(t *testing.T) {
	var gotReq wireRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotReq)
		_, _ = w.Write([]byte(`{"content": [{"type": "text", "text": "ok"}]}`))
	}))
	defer server.Close()

	adapter := NewAdapter(providers.Config{BaseURL: server.URL})

	_, err := adapter.ChatCompletion(context.Background(), &providers.ChatRequest{
		Messages:  []providers.Message{{Role: providers.RoleUser, Content: "hi"}},
		MaxTokens: 256,
	})
	if err != nil {
		t.Fatalf("ChatCompletion() error = %v", err)
	}

	if gotReq.MaxTokens != 256 {
		t.Errorf("max_tokens = %d, want 256", gotReq.MaxTokens)
	}
}

func TestAdapter_ChatCompletion_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantKind   providers.ErrorKind
		wantMsg    string
	}{
		{
			name:       "401 maps to auth failure",
			statusCode: http.StatusUnauthorized,
			body:       `{"error": {"type": "authentication_error", "message": "invalid x-api-key"}}`,
			wantKind:   providers.KindAuthFailure,
			wantMsg:    "invalid x-api-key",
		},
		{
			name:       "429 maps to rate limited",
			statusCode: http.StatusTooManyRequests,
			body:       `{"error": {"type": "rate_limit_error", "message": "rate limited"}}`,
			wantKind:   providers.KindRateLimited,
			wantMsg:    "rate limited",
		},
		{
			name:       "400 maps to invalid request",
			statusCode: http.StatusBadRequest,
			body:       `{"error": {"type": "invalid_request_error", "message": "max_tokens required"}}`,
			wantKind:   providers.KindInvalidRequest,
			wantMsg:    "max_tokens required",
		},
		{
			name:       "529 overload maps to unavailable",
			statusCode: 529,
			body:       `{"error": {"type": "overloaded_error", "message": "overloaded"}}`,
			wantKind:   providers.KindUnavailable,
			wantMsg:    "overloaded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			adapter := NewAdapter(providers.Config{BaseURL: server.URL})

			_, err := adapter.ChatCompletion(context.Background(), &providers.ChatRequest{
				Messages: []providers.Message{{Role: providers.RoleUser, Content: "hi"}},
			})
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			var provErr *providers.ProviderError
			if !errors.As(err, &provErr) {
				t.Fatalf("error type = %T, want *ProviderError", err)
			}
			if provErr.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", provErr.Kind, tt.wantKind)
			}
			if provErr.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", provErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestAdapter_ChatCompletion_TransportError(t *testing.T) {
	adapter := NewAdapter(providers.Config{BaseURL: "http://127.0.0.1:1"})

	_, err := adapter.ChatCompletion(context.Background(), &providers.ChatRequest{
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var provErr *providers.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("error type = %T, want *ProviderError", err)
	}
	if !provErr.Retryable() {
		t.Errorf("Kind = %s, want a retryable transport error", provErr.Kind)
	}
}
