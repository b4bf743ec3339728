package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ProviderError is a failure surfaced by a model backend. Transient
// failures (rate limits, server errors, network drops) are marked
// retryable; the loop retries those with bounded backoff before giving
// up. Non-retryable failures abort immediately.
type ProviderError struct {
	// Provider names the backend ("anthropic", "bedrock").
	Provider string
	// StatusCode is the HTTP status, 0 for transport-level failures.
	StatusCode int
	// Retryable reports whether the failure is worth retrying.
	Retryable bool
	// RetryAfter is the backend-requested delay, 0 when absent. When
	// set it overrides the computed backoff delay.
	RetryAfter time.Duration
	// Err is the underlying error.
	Err error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s provider error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s provider error: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// providerErrorFromStatus classifies a backend failure by HTTP status.
// Timeouts, rate limits, and server errors are retryable; other client
// errors are not. Status 0 means the request never got a response
// (connection failure), which is treated as transient.
func providerErrorFromStatus(provider string, status int, retryAfter time.Duration, err error) *ProviderError {
	retryable := false
	switch {
	case status == 0:
		retryable = true
	case status == 408 || status == 429:
		retryable = true
	case status >= 500:
		retryable = true
	}
	return &ProviderError{
		Provider:   provider,
		StatusCode: status,
		Retryable:  retryable,
		RetryAfter: retryAfter,
		Err:        err,
	}
}

// IsRetryable reports whether err is a transient provider failure.
// Context cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// RetryAfterHint returns the backend-requested retry delay for err, or
// 0 when the error carries none.
func RetryAfterHint(err error) time.Duration {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.RetryAfter
	}
	return 0
}
