package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord is an append-only fact capturing the outcome and cost of one
// proxied LLM call. Records are never mutated after creation; downstream
// reporting only aggregates them.
type UsageRecord struct {
	ID           uuid.UUID `json:"id" db:"id"`
	SessionID    string    `json:"session_id" db:"session_id"`
	SubmissionID string    `json:"submission_id" db:"submission_id"`
	Provider     string    `json:"provider" db:"provider"`
	Model        string    `json:"model" db:"model"`

	PromptTokens     int     `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens" db:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens" db:"total_tokens"`
	Cost             float64 `json:"cost" db:"cost"`
	LatencyMs        int     `json:"latency_ms" db:"latency_ms"`

	Success   bool    `json:"success" db:"success"`
	ErrorKind *string `json:"error_kind,omitempty" db:"error_kind"`

	// TokensEstimated is set when the provider reported no token counts and
	// the totals come from the text-length heuristic
	TokensEstimated bool `json:"tokens_estimated" db:"tokens_estimated"`

	// PricingUnknown is set when no pricing entry existed for the
	// (provider, model) pair and the fallback rate was applied
	PricingUnknown bool `json:"pricing_unknown" db:"pricing_unknown"`

	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the UsageRecord model
func (UsageRecord) TableName() string {
	return "usage_records"
}

// NewUsageRecord creates a usage record for one call outcome
func NewUsageRecord(sessionID, submissionID, provider, model string) *UsageRecord {
	return &UsageRecord{
		ID:           uuid.New(),
		SessionID:    sessionID,
		SubmissionID: submissionID,
		Provider:     provider,
		Model:        model,
		Timestamp:    time.Now(),
	}
}

// WithTokens sets the token counts
func (r *UsageRecord) WithTokens(prompt, completion int, estimated bool) *UsageRecord {
	r.PromptTokens = prompt
	r.CompletionTokens = completion
	r.TotalTokens = prompt + completion
	r.TokensEstimated = estimated
	return r
}

// WithCost sets the computed cost
func (r *UsageRecord) WithCost(cost float64, pricingUnknown bool) *UsageRecord {
	r.Cost = cost
	r.PricingUnknown = pricingUnknown
	return r
}

// WithOutcome sets success and, on failure, the terminal error kind
func (r *UsageRecord) WithOutcome(success bool, errorKind string) *UsageRecord {
	r.Success = success
	if errorKind != "" {
		r.ErrorKind = &errorKind
	}
	return r
}

// UsageSummary is a per-session aggregate over usage records
type UsageSummary struct {
	SessionID    string  `json:"session_id"`
	Calls        int     `json:"calls"`
	FailedCalls  int     `json:"failed_calls"`
	TotalTokens  int     `json:"total_tokens"`
	TotalCost    float64 `json:"total_cost"`
	TotalLatency int     `json:"total_latency_ms"`
}

// PricingEntry is an operator-deployed pricing override for one
// (provider, model) pair. Read-only at request time.
type PricingEntry struct {
	Provider           string  `json:"provider" db:"provider"`
	Model              string  `json:"model" db:"model"`
	InputCostPerToken  float64 `json:"input_cost_per_token" db:"input_cost_per_token"`
	OutputCostPerToken float64 `json:"output_cost_per_token" db:"output_cost_per_token"`
}
