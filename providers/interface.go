package providers

import (
	"context"
	"time"
)

// Provider is the unified contract implemented by each LLM backend adapter.
// An adapter translates the normalized request into its backend's wire format,
// makes exactly one outbound call, and translates the response back. Retry
// policy lives in the router, never inside an adapter.
type Provider interface {
	// Name returns the provider name (e.g., "openai", "anthropic", "gemini")
	Name() string

	// DefaultModel returns the model used when the request does not name one
	DefaultModel() string

	// SupportsModel reports whether the adapter recognizes the model
	SupportsModel(model string) bool

	// ChatCompletion performs a single chat completion request
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// TemperatureBounded is implemented by adapters whose backend accepts a
// narrower temperature range than the common [0, 2]. The router clamps the
// request temperature to the adapter's ceiling before dispatch.
type TemperatureBounded interface {
	MaxTemperature() float64
}

// ChatRequest is the normalized chat completion request
type ChatRequest struct {
	// Model identifier; empty means the adapter's default model
	Model string `json:"model,omitempty"`

	// Messages in the conversation, in order
	Messages []Message `json:"messages"`

	// Temperature controls randomness; nil means provider default
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens limits the response length; 0 means provider default
	MaxTokens int `json:"max_tokens,omitempty"`
}

// Message is a single message in a conversation
type Message struct {
	// Role is "system", "user", or "assistant"
	Role string `json:"role"`

	// Content is the message text
	Content string `json:"content"`
}

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatResponse is the normalized chat completion response
type ChatResponse struct {
	// Content is the assistant's reply text
	Content string `json:"content"`

	// Model actually used for the completion
	Model string `json:"model"`

	// Provider that handled the request
	Provider string `json:"provider"`

	// Usage as reported by the provider; nil when the provider did not
	// report token counts (metering then estimates)
	Usage *Usage `json:"usage,omitempty"`

	// Latency of the outbound call
	Latency time.Duration `json:"-"`
}

// Usage holds provider-reported token counts
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Config holds common configuration for adapters
type Config struct {
	// APIKey for authentication
	APIKey string

	// BaseURL for the API (optional override)
	BaseURL string

	// Timeout bounds each outbound call
	Timeout time.Duration

	// Model overrides the adapter's built-in default model
	Model string
}

// DefaultConfig returns a sensible default adapter configuration
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
	}
}
