package providers

import (
	"context"
	"errors"
	"net/http"
)

// ErrorKind classifies a provider failure for retry decisions and accounting
type ErrorKind string

const (
	KindAuthFailure    ErrorKind = "auth_failure"
	KindRateLimited    ErrorKind = "rate_limited"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindTimeout        ErrorKind = "timeout"
	KindUnavailable    ErrorKind = "unavailable"
	KindUnknown        ErrorKind = "unknown"
)

// ProviderError represents a failed call to a provider backend
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Kind is the error classification
	Kind ErrorKind

	// Message is the provider's error message
	Message string

	// StatusCode is the HTTP status code (0 when not applicable)
	StatusCode int

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Provider + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Provider + ": " + e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the router may retry this failure.
// AuthFailure and InvalidRequest are configuration or caller defects and
// are never retried.
func (e *ProviderError) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindTimeout, KindUnavailable:
		return true
	default:
		return false
	}
}

// NewProviderError creates a new provider error
func NewProviderError(provider string, kind ErrorKind, message string, statusCode int, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Kind:       kind,
		Message:    message,
		StatusCode: statusCode,
		Cause:      cause,
	}
}

// KindFromStatus maps an HTTP status code to an error kind
func KindFromStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthFailure
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500:
		return KindUnavailable
	case status >= 400:
		return KindInvalidRequest
	default:
		return KindUnknown
	}
}

// WrapTransportError converts a transport-level failure into a ProviderError.
// Context deadline expiry maps to KindTimeout per the adapter contract.
func WrapTransportError(provider string, err error) *ProviderError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError(provider, KindTimeout, "request timed out", 0, err)
	}
	if errors.Is(err, context.Canceled) {
		return NewProviderError(provider, KindTimeout, "request canceled", 0, err)
	}
	return NewProviderError(provider, KindUnavailable, "request failed", 0, err)
}

// IsRetryable checks if an error is a retryable provider error
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable()
	}
	return false
}

// KindOf returns the error kind of a provider error, or KindUnknown
func KindOf(err error) ErrorKind {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Kind
	}
	return KindUnknown
}
