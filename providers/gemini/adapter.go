package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hirewise/llm-proxy/providers"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.0-flash"
)

// Adapter implements the Provider interface for the Gemini generateContent API
type Adapter struct {
	config     providers.Config
	httpClient *http.Client
}

// NewAdapter creates a new Gemini adapter
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
	return "gemini"
}

// DefaultModel returns the model used when the request does not name one
func (a *Adapter) DefaultModel() string {
	return a.config.Model
}

// SupportsModel reports whether the adapter recognizes the model
func (a *Adapter) SupportsModel(model string) bool {
	return model == "" || strings.HasPrefix(model, "gemini-")
}

// ChatCompletion performs a single chat completion request.
// Gemini has no "assistant" role; prior assistant turns are sent as role
// "model", and system messages go into systemInstruction.
func (a *Adapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	startTime := time.Now()

	model := req.Model
	if model == "" {
		model = a.config.Model
	}

	wireReq := wireRequest{}
	for _, msg := range req.Messages {
		switch msg.Role {
		case providers.RoleSystem:
			if wireReq.SystemInstruction == nil {
				wireReq.SystemInstruction = &wireContent{}
			}
			wireReq.SystemInstruction.Parts = append(wireReq.SystemInstruction.Parts, wirePart{Text: msg.Content})
		case providers.RoleAssistant:
			wireReq.Contents = append(wireReq.Contents, wireContent{
				Role:  "model",
				Parts: []wirePart{{Text: msg.Content}},
			})
		default:
			wireReq.Contents = append(wireReq.Contents, wireContent{
				Role:  "user",
				Parts: []wirePart{{Text: msg.Content}},
			})
		}
	}
	if req.Temperature != nil || req.MaxTokens > 0 {
		wireReq.GenerationConfig = &wireGenerationConfig{
			Temperature: req.Temperature,
		}
		if req.MaxTokens > 0 {
			wireReq.GenerationConfig.MaxOutputTokens = &req.MaxTokens
		}
	}

	reqBody, err := json.Marshal(wireReq)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindInvalidRequest, "failed to marshal request", 0, err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", a.config.BaseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindUnknown, "failed to create request", 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", a.config.APIKey)

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

	if len(wireResp.Candidates) == 0 {
		return nil, providers.NewProviderError(a.Name(), providers.KindUnknown, "empty candidates in response", httpResp.StatusCode, nil)
	}

	var content strings.Builder
	for _, part := range wireResp.Candidates[0].Content.Parts {
		content.WriteString(part.Text)
	}

	resp := &providers.ChatResponse{
		Content:  content.String(),
		Model:    model,
		Provider: a.Name(),
		Latency:  time.Since(startTime),
	}
	if wireResp.UsageMetadata != nil {
		resp.Usage = &providers.Usage{
			PromptTokens:     wireResp.UsageMetadata.PromptTokenCount,
			CompletionTokens: wireResp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      wireResp.UsageMetadata.TotalTokenCount,
		}
	}

	return resp, nil
}

// handleErrorResponse maps Gemini error responses to the error taxonomy
func (a *Adapter) handleErrorResponse(statusCode int, body []byte) error {
	kind := providers.KindFromStatus(statusCode)

	var errResp wireErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return providers.NewProviderError(a.Name(), kind, string(body), statusCode, nil)
	}

	return providers.NewProviderError(a.Name(), kind, errResp.Error.Message, statusCode, nil)
}

// Gemini wire-format types

type wireRequest struct {
	Contents          []wireContent         `json:"contents"`
	SystemInstruction *wireContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *wireGenerationConfig `json:"generationConfig,omitempty"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

type wirePart struct {
	Text string `json:"text"`
}

type wireGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type wireResponse struct {
	Candidates    []wireCandidate    `json:"candidates"`
	UsageMetadata *wireUsageMetadata `json:"usageMetadata"`
}

type wireCandidate struct {
	Content      wireContent `json:"content"`
	FinishReason string      `json:"finishReason"`
}

type wireUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type wireErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
