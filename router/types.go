package router

import (
	"errors"

	"github.com/hirewise/llm-proxy/providers"
)

// SessionContext identifies the assessment attempt and candidate submission
// a call is accounted against. It carries no authorization semantics.
type SessionContext struct {
	SessionID    string
	SubmissionID string
}

// Request is a normalized chat request before provider resolution
type Request struct {
	// Provider name; empty means the configured default provider
	Provider string

	// Model identifier; empty means the resolved adapter's default model
	Model string

	// Messages in the conversation, in order
	Messages []providers.Message

	// Temperature controls randomness; nil means provider default
	Temperature *float64

	// MaxTokens limits the response length; 0 means provider default
	MaxTokens int
}

// ResultUsage is the accounting summary attached to a successful result
type ResultUsage struct {
	Tokens    int     `json:"tokens"`
	Cost      float64 `json:"cost"`
	LatencyMs int     `json:"latency"`
}

// ChatResult is the completed call returned to the caller. Provider and
// Model always reflect what actually served the request.
type ChatResult struct {
	Content  string      `json:"content"`
	Model    string      `json:"model"`
	Provider string      `json:"provider"`
	Usage    ResultUsage `json:"usage"`
}

// ErrorKind classifies a routing failure
type ErrorKind string

const (
	KindValidationFailed  ErrorKind = "validation_failed"
	KindProviderExhausted ErrorKind = "provider_exhausted"
	KindInternal          ErrorKind = "internal"
)

// Error represents a routing failure that never reached, or exhausted,
// the provider layer
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Cause.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

// Unwrap implements error unwrapping
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new routing error
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

// KindOfError returns the routing error kind, or KindInternal for
// unclassified errors
func KindOfError(err error) ErrorKind {
	var routeErr *Error
	if errors.As(err, &routeErr) {
		return routeErr.Kind
	}
	return KindInternal
}
