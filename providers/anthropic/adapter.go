package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hirewise/llm-proxy/providers"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-3-5-haiku-latest"
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 1024

	// The Messages API rejects temperature above 1.0 as invalid
	maxTemperature = 1.0
)

// Adapter implements the Provider interface for the Anthropic Messages API
type Adapter struct {
	config     providers.Config
	httpClient *http.Client
}

// NewAdapter creates a new Anthropic adapter
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
	return "anthropic"
}

// DefaultModel returns the model used when the request does not name one
func (a *Adapter) DefaultModel() string {
	return a.config.Model
}

// SupportsModel reports whether the adapter recognizes the model
func (a *Adapter) SupportsModel(model string) bool {
	return model == "" || strings.HasPrefix(model, "claude-")
}

// MaxTemperature returns the Messages API temperature ceiling
func (a *Adapter) MaxTemperature() float64 {
	return maxTemperature
}

// ChatCompletion performs a single chat completion request.
// The Messages API takes the system prompt as a top-level field rather than
// a message role, and requires max_tokens on every request.
func (a *Adapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	startTime := time.Now()

	model := req.Model
	if model == "" {
		model = a.config.Model
	}

	wireReq := wireRequest{
		Model:       model,
		MaxTokens:   defaultMaxTokens,
		Temperature: req.Temperature,
	}
	if req.MaxTokens > 0 {
		wireReq.MaxTokens = req.MaxTokens
	}
	for _, msg := range req.Messages {
		if msg.Role == providers.RoleSystem {
			if wireReq.System != "" {
				wireReq.System += "\n"
			}
			wireReq.System += msg.Content
			continue
		}
		wireReq.Messages = append(wireReq.Messages, wireMessage{Role: msg.Role, Content: msg.Content})
	}

	reqBody, err := json.Marshal(wireReq)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindInvalidRequest, "failed to marshal request", 0, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/v1/messages", bytes.NewReader(reqBody))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindUnknown, "failed to create request", 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.config.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

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

	var content strings.Builder
	for _, block := range wireResp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	resp := &providers.ChatResponse{
		Content:  content.String(),
		Model:    wireResp.Model,
		Provider: a.Name(),
		Latency:  time.Since(startTime),
	}
	if resp.Model == "" {
		resp.Model = model
	}
	if wireResp.Usage != nil {
		resp.Usage = &providers.Usage{
			PromptTokens:     wireResp.Usage.InputTokens,
			CompletionTokens: wireResp.Usage.OutputTokens,
			TotalTokens:      wireResp.Usage.InputTokens + wireResp.Usage.OutputTokens,
		}
	}

	return resp, nil
}

// handleErrorResponse maps Anthropic error responses to the error taxonomy.
// Anthropic reports overload as 529, outside the standard 5xx mapping.
func (a *Adapter) handleErrorResponse(statusCode int, body []byte) error {
	kind := providers.KindFromStatus(statusCode)
	if statusCode == 529 {
		kind = providers.KindUnavailable
	}

	var errResp wireErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return providers.NewProviderError(a.Name(), kind, string(body), statusCode, nil)
	}

	return providers.NewProviderError(a.Name(), kind, errResp.Error.Message, statusCode, nil)
}

// Anthropic wire-format types

type wireRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	Messages    []wireMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireResponse struct {
	ID         string             `json:"id"`
	Model      string             `json:"model"`
	Content    []wireContentBlock `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      *wireUsage         `json:"usage"`
}

type wireContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type wireErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
