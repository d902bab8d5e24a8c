package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestProviderError_Retryable(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want bool
	}{
		{KindRateLimited, true},
		{KindTimeout, true},
		{KindUnavailable, true},
		{KindAuthFailure, false},
		{KindInvalidRequest, false},
		{KindUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := NewProviderError("openai", tt.kind, "boom", 0, nil)
			if got := err.Retryable(); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKindFromStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorKind
	}{
		{http.StatusUnauthorized, KindAuthFailure},
		{http.StatusForbidden, KindAuthFailure},
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusRequestTimeout, KindTimeout},
		{http.StatusGatewayTimeout, KindTimeout},
		{http.StatusInternalServerError, KindUnavailable},
		{http.StatusServiceUnavailable, KindUnavailable},
		{529, KindUnavailable},
		{http.StatusBadRequest, KindInvalidRequest},
		{http.StatusNotFound, KindInvalidRequest},
		{http.StatusOK, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			if got := KindFromStatus(tt.status); got != tt.want {
				t.Errorf("KindFromStatus(%d) = %s, want %s", tt.status, got, tt.want)
			}
		})
	}
}

func TestWrapTransportError(t *testing.T) {
	deadlineErr := WrapTransportError("openai", fmt.Errorf("do: %w", context.DeadlineExceeded))
	if deadlineErr.Kind != KindTimeout {
		t.Errorf("deadline Kind = %s, want %s", deadlineErr.Kind, KindTimeout)
	}

	connErr := WrapTransportError("openai", errors.New("connection refused"))
	if connErr.Kind != KindUnavailable {
		t.Errorf("connection Kind = %s, want %s", connErr.Kind, KindUnavailable)
	}
	if !connErr.Retryable() {
		t.Error("transport failure should be retryable")
	}
}

func TestProviderError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewProviderError("gemini", KindUnknown, "wrapper", 0, cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is() did not find wrapped cause")
	}

	var provErr *ProviderError
	wrapped := fmt.Errorf("handler: %w", err)
	if !errors.As(wrapped, &provErr) {
		t.Fatal("errors.As() did not find ProviderError through wrapping")
	}
	if provErr.Kind != KindUnknown {
		t.Errorf("Kind = %s, want %s", provErr.Kind, KindUnknown)
	}
}

func TestKindOf(t *testing.T) {
	err := NewProviderError("openai", KindRateLimited, "slow down", 429, nil)

	if got := KindOf(err); got != KindRateLimited {
		t.Errorf("KindOf() = %s, want %s", got, KindRateLimited)
	}
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Errorf("KindOf(plain) = %s, want %s", got, KindUnknown)
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable() = false for rate limited error")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("IsRetryable() = true for plain error")
	}
}
