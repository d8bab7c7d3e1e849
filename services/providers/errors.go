package providers

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoProviderRegistered is returned when a capability has zero bindings
	ErrNoProviderRegistered = errors.New("no provider registered for capability")
)

// Common provider error codes
const (
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeUnavailable    = "UNAVAILABLE"
	ErrCodeTimeout        = "TIMEOUT"
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeInternal       = "INTERNAL"
)

// ProviderError represents a classified failure from a provider handler.
// StatusCode carries the HTTP-equivalent signal when one exists; Retryable
// is the classification the dispatcher acts on.
type ProviderError struct {
	Provider   string
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// NewStatusError creates a provider error classified from an HTTP-equivalent
// status code. Rate limits (429) and server-side failures (5xx) are
// retryable; everything else indicates a caller problem and is not.
func NewStatusError(provider, message string, statusCode int, cause error) *ProviderError {
	code := ErrCodeInternal
	switch {
	case statusCode == 429:
		code = ErrCodeRateLimited
	case statusCode == 401 || statusCode == 403:
		code = ErrCodeUnauthorized
	case statusCode >= 500:
		code = ErrCodeUnavailable
	case statusCode >= 400:
		code = ErrCodeInvalidRequest
	}
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  RetryableStatus(statusCode),
		Cause:      cause,
	}
}

// RetryableStatus reports whether an HTTP-equivalent status code signals
// transient unavailability of the specific provider
func RetryableStatus(statusCode int) bool {
	return statusCode == 429 || statusCode >= 500
}

// IsRetryable classifies an error as retryable (failover to the next
// provider) or terminal. Classification relies on structured metadata
// only: a ProviderError's Retryable flag, or a context deadline expiry.
// Unknown errors are terminal so a caller bug is never masked by trying
// unrelated providers.
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return errors.Is(err, context.DeadlineExceeded)
}
