package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/hirewise/llm-proxy/providers"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
)

// Adapter implements the Provider interface for OpenAI-style backends
type Adapter struct {
	config     providers.Config
	httpClient *http.Client
}

// NewAdapter creates a new OpenAI adapter
func NewAdapter(config providers.Config) *Adapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Model == "" {
		config.Model = defaultModel
	}

	return &Adapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return "openai"
}

// DefaultModel returns the model used when the request does not name one
func (a *Adapter) DefaultModel() string {
	return a.config.Model
}

// SupportsModel reports whether the adapter recognizes the model.
// OpenAI model names all share a small set of prefixes; anything else is
// rejected before a network call is spent on it.
func (a *Adapter) SupportsModel(model string) bool {
	if model == "" {
		return true
	}
	for _, prefix := range []string{"gpt-", "o1", "o3", "chatgpt-"} {
		if len(model) >= len(prefix) && model[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

// ChatCompletion performs a single chat completion request.
// Exactly one outbound call; no internal retries.
func (a *Adapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	startTime := time.Now()

	model := req.Model
	if model == "" {
		model = a.config.Model
	}

	wireReq := wireRequest{
		Model:       model,
		Messages:    make([]wireMessage, len(req.Messages)),
		Temperature: req.Temperature,
	}
	for i, msg := range req.Messages {
		wireReq.Messages[i] = wireMessage{Role: msg.Role, Content: msg.Content}
	}
	if req.MaxTokens > 0 {
		wireReq.MaxTokens = &req.MaxTokens
	}

	reqBody, err := json.Marshal(wireReq)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindInvalidRequest, "failed to marshal request", 0, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindUnknown, "failed to create request", 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.WrapTransportError(a.Name(), err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindUnknown, "failed to read response", httpResp.StatusCode, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, a.handleErrorResponse(httpResp.StatusCode, respBody)
	}

	var wireResp wireResponse
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindUnknown, "failed to unmarshal response", httpResp.StatusCode, err)
	}

	if len(wireResp.Choices) == 0 {
		return nil, providers.NewProviderError(a.Name(), providers.KindUnknown, "empty choices in response", httpResp.StatusCode, nil)
	}

	resp := &providers.ChatResponse{
		Content:  wireResp.Choices[0].Message.Content,
		Model:    wireResp.Model,
		Provider: a.Name(),
		Latency:  time.Since(startTime),
	}
	if resp.Model == "" {
		resp.Model = model
	}
	if wireResp.Usage != nil {
		resp.Usage = &providers.Usage{
			PromptTokens:     wireResp.Usage.PromptTokens,
			CompletionTokens: wireResp.Usage.CompletionTokens,
			TotalTokens:      wireResp.Usage.TotalTokens,
		}
	}

	return resp, nil
}

// handleErrorResponse maps OpenAI error responses to the error taxonomy
func (a *Adapter) handleErrorResponse(statusCode int, body []byte) error {
	kind := providers.KindFromStatus(statusCode)

	var errResp wireErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return providers.NewProviderError(a.Name(), kind, string(body), statusCode, nil)
	}

	return providers.NewProviderError(a.Name(), kind, errResp.Error.Message, statusCode, nil)
}

// OpenAI wire-format types

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
	Usage   *wireUsage   `json:"usage"`
}

type wireChoice struct {
	Index        int         `json:"index"`
	Message      wireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type wireErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
