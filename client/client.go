// Package client is the proxy client facade used by assessment runners.
// A Client binds one session/submission identity at construction time and
// sends every chat call through the proxy service with that identity.
package client

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hirewise/llm-proxy/providers"
	"github.com/hirewise/llm-proxy/router"
)

const chatPath = "/llm-proxy/chat"

// Options tune a single chat call. Zero values defer to server-side defaults.
type Options struct {
	Provider    string
	Model       string
	Temperature *float64
	MaxTokens   int
}

// Client is a proxy client bound to one session/submission pair
type Client struct {
	baseURL      string
	token        string
	sessionID    string
	submissionID string
	httpClient   *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithSessionID pins the session identifier instead of generating one
func WithSessionID(sessionID string) Option {
	return func(c *Client) {
		c.sessionID = sessionID
	}
}

// New creates a Client for one assessment attempt. A fresh session ID is
// generated unless WithSessionID is given.
func New(baseURL, token, submissionID string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        token,
		sessionID:    GenerateSessionID(),
		submissionID: submissionID,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionID returns the session identifier bound to this client
func (c *Client) SessionID() string {
	return c.sessionID
}

// GenerateSessionID produces an opaque accounting identifier, unique enough
// for correlation. It is not a security token.
func GenerateSessionID() string {
	suffix := make([]byte, 6)
	if _, err := rand.Read(suffix); err != nil {
		// Timestamp alone still gives a usable accounting key
		return fmt.Sprintf("session-%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("session-%d-%s", time.Now().UnixMilli(), hex.EncodeToString(suffix))
}

// chatRequestBody is the wire request for the chat endpoint
type chatRequestBody struct {
	SessionID    string              `json:"sessionId"`
	SubmissionID string              `json:"submissionId"`
	Provider     string              `json:"provider,omitempty"`
	Model        string              `json:"model,omitempty"`
	Messages     []providers.Message `json:"messages"`
	Temperature  *float64            `json:"temperature,omitempty"`
	MaxTokens    int                 `json:"maxTokens,omitempty"`
}

// errorResponseBody is the wire shape of a failed call
type errorResponseBody struct {
	Error string `json:"error"`
}

// Chat sends one chat request through the proxy. All failures collapse into
// a single uniform error carrying the underlying reason; the Client never
// retries, retry policy lives server-side.
func (c *Client) Chat(ctx context.Context, messages []providers.Message, opts *Options) (*router.ChatResult, error) {
	if opts == nil {
		opts = &Options{}
	}

	body := chatRequestBody{
		SessionID:    c.sessionID,
		SubmissionID: c.submissionID,
		Provider:     opts.Provider,
		Model:        opts.Model,
		Messages:     messages,
		Temperature:  opts.Temperature,
		MaxTokens:    opts.MaxTokens,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("llm call failed: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("llm call failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm call failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("llm call failed: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp errorResponseBody
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			return nil, fmt.Errorf("llm call failed: %s", errResp.Error)
		}
		return nil, fmt.Errorf("llm call failed: status %d", resp.StatusCode)
	}

	var result router.ChatResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("llm call failed: %v", err)
	}

	return &result, nil
}
