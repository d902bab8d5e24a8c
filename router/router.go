package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hirewise/llm-proxy/config"
	"github.com/hirewise/llm-proxy/metering"
	"github.com/hirewise/llm-proxy/providers"
	"go.uber.org/zap"
)

// Temperature bounds accepted across providers; values outside are clamped
const (
	minTemperature = 0.0
	maxTemperature = 2.0
)

// Router validates requests, resolves the provider and model, enforces the
// retry/fallback policy, and hands every concluded call to metering exactly
// once. Routers hold no per-call mutable state and are safe for concurrent
// use.
type Router struct {
	config   config.RouterConfig
	registry *providers.Registry
	meter    *metering.Service
	logger   *zap.Logger
}

// New creates a new Router
func New(cfg config.RouterConfig, registry *providers.Registry, meter *metering.Service, logger *zap.Logger) *Router {
	return &Router{
		config:   cfg,
		registry: registry,
		meter:    meter,
		logger:   logger,
	}
}

// Route dispatches one chat request and returns the completed result.
// Exactly one usage record is produced per call that passes validation,
// success or failure.
func (r *Router) Route(ctx context.Context, session SessionContext, req *Request) (*ChatResult, error) {
	if err := r.validate(session, req); err != nil {
		return nil, err
	}

	adapter, err := r.resolveProvider(req.Provider)
	if err != nil {
		return nil, err
	}
	model := r.resolveModel(adapter, req.Model)

	chatReq := &providers.ChatRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: clampTemperature(req.Temperature, maxTemperatureFor(adapter)),
		MaxTokens:   r.clampMaxTokens(req.MaxTokens),
	}

	if r.config.MaxElapsed > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.MaxElapsed)
		defer cancel()
	}

	start := time.Now()
	resp, callErr := r.dispatch(ctx, adapter, chatReq)

	// The fallback provider gets the same logical request after the
	// primary's retry budget is exhausted on a retryable failure
	if callErr != nil && providers.IsRetryable(callErr) {
		if fallback, ok := r.fallbackFor(adapter.Name()); ok {
			r.logger.Warn("primary provider exhausted, trying fallback",
				zap.String("primary", adapter.Name()),
				zap.String("fallback", fallback.Name()),
				zap.Error(callErr))

			adapter = fallback
			chatReq.Model = r.resolveModel(fallback, req.Model)
			chatReq.Temperature = clampTemperature(req.Temperature, maxTemperatureFor(fallback))
			model = chatReq.Model
			resp, callErr = r.dispatch(ctx, adapter, chatReq)
		}
	}

	latency := time.Since(start)
	record := r.meter.Record(metering.CallOutcome{
		SessionID:    session.SessionID,
		SubmissionID: session.SubmissionID,
		Provider:     adapter.Name(),
		Model:        model,
		Response:     resp,
		Err:          callErr,
		Latency:      latency,
		PromptChars:  promptChars(req.Messages),
	})

	if callErr != nil {
		r.logger.Error("chat request failed",
			zap.String("session_id", session.SessionID),
			zap.String("provider", adapter.Name()),
			zap.String("model", model),
			zap.Int("latency_ms", record.LatencyMs),
			zap.Error(callErr))

		var provErr *providers.ProviderError
		if errors.As(callErr, &provErr) && !provErr.Retryable() {
			// Terminal configuration or caller defect, propagated as-is
			return nil, callErr
		}
		return nil, NewError(KindProviderExhausted,
			fmt.Sprintf("provider %s exhausted after retries", adapter.Name()), callErr)
	}

	r.logger.Info("chat request completed",
		zap.String("session_id", session.SessionID),
		zap.String("provider", adapter.Name()),
		zap.String("model", resp.Model),
		zap.Int("tokens", record.TotalTokens),
		zap.Int("latency_ms", record.LatencyMs))

	return &ChatResult{
		Content:  resp.Content,
		Model:    resp.Model,
		Provider: adapter.Name(),
		Usage: ResultUsage{
			Tokens:    record.TotalTokens,
			Cost:      record.Cost,
			LatencyMs: record.LatencyMs,
		},
	}, nil
}

// validate rejects malformed requests before any adapter is invoked
func (r *Router) validate(session SessionContext, req *Request) error {
	if session.SessionID == "" {
		return NewError(KindValidationFailed, "session ID is required", nil)
	}
	if session.SubmissionID == "" {
		return NewError(KindValidationFailed, "submission ID is required", nil)
	}
	if req == nil || len(req.Messages) == 0 {
		return NewError(KindValidationFailed, "at least one message is required", nil)
	}
	for i, msg := range req.Messages {
		switch msg.Role {
		case providers.RoleSystem, providers.RoleUser, providers.RoleAssistant:
		default:
			return NewError(KindValidationFailed,
				fmt.Sprintf("message %d has invalid role %q", i, msg.Role), nil)
		}
		if msg.Content == "" {
			return NewError(KindValidationFailed,
				fmt.Sprintf("message %d has empty content", i), nil)
		}
	}
	return nil
}

// resolveProvider returns the adapter for the named provider, or the
// configured default when the request names none
func (r *Router) resolveProvider(name string) (providers.Provider, error) {
	if name == "" {
		name = r.config.DefaultProvider
	}
	adapter, err := r.registry.Get(name)
	if err != nil {
		return nil, NewError(KindValidationFailed,
			fmt.Sprintf("unknown provider %q", name), err)
	}
	return adapter, nil
}

// resolveModel returns the requested model when the adapter recognizes it,
// otherwise the adapter's default
func (r *Router) resolveModel(adapter providers.Provider, model string) string {
	if model != "" && adapter.SupportsModel(model) {
		return model
	}
	return adapter.DefaultModel()
}

// dispatch runs the retry loop against one adapter. RateLimited, Timeout
// and Unavailable failures are retried with linear backoff; anything else
// is terminal on the first occurrence.
func (r *Router) dispatch(ctx context.Context, adapter providers.Provider, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * r.config.RetryBackoff
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, providers.WrapTransportError(adapter.Name(), ctx.Err())
			}
		}

		resp, err := adapter.ChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !providers.IsRetryable(err) {
			return nil, err
		}

		r.logger.Warn("provider call failed, will retry",
			zap.String("provider", adapter.Name()),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	return nil, lastErr
}

// fallbackFor returns the configured fallback adapter when one exists and
// differs from the exhausted provider
func (r *Router) fallbackFor(exhausted string) (providers.Provider, bool) {
	name := r.config.FallbackProvider
	if name == "" || name == exhausted {
		return nil, false
	}
	adapter, err := r.registry.Get(name)
	if err != nil {
		r.logger.Warn("fallback provider not registered", zap.String("provider", name))
		return nil, false
	}
	return adapter, true
}

// maxTemperatureFor returns the adapter's temperature ceiling, defaulting to
// the common upper bound
func maxTemperatureFor(adapter providers.Provider) float64 {
	if bounded, ok := adapter.(providers.TemperatureBounded); ok {
		return bounded.MaxTemperature()
	}
	return maxTemperature
}

// clampTemperature bounds the temperature to the adapter's accepted range
func clampTemperature(t *float64, max float64) *float64 {
	if t == nil {
		return nil
	}
	v := *t
	if v < minTemperature {
		v = minTemperature
	}
	if v > max {
		v = max
	}
	return &v
}

// clampMaxTokens bounds the response length limit
func (r *Router) clampMaxTokens(maxTokens int) int {
	if maxTokens < 0 {
		return 0
	}
	if r.config.MaxTokensLimit > 0 && maxTokens > r.config.MaxTokensLimit {
		return r.config.MaxTokensLimit
	}
	return maxTokens
}

// promptChars sums the content length of the request messages, feeding the
// token estimation heuristic when a provider reports no usage
func promptChars(messages []providers.Message) int {
	total := 0
	for _, msg := range messages {
		total += len(msg.Content)
	}
	return total
}
