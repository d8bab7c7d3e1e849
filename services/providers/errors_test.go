package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStatusError(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantCode   string
		retryable  bool
	}{
		{"rate limit", 429, ErrCodeRateLimited, true},
		{"service unavailable", 503, ErrCodeUnavailable, true},
		{"internal server error", 500, ErrCodeUnavailable, true},
		{"bad request", 400, ErrCodeInvalidRequest, false},
		{"unauthorized", 401, ErrCodeUnauthorized, false},
		{"forbidden", 403, ErrCodeUnauthorized, false},
		{"not found", 404, ErrCodeInvalidRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewStatusError("openai", "request failed", tt.statusCode, nil)
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, tt.statusCode, err.StatusCode)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	t.Run("provider error uses structured flag", func(t *testing.T) {
		assert.True(t, IsRetryable(NewStatusError("p", "rate limited", 429, nil)))
		assert.False(t, IsRetryable(NewStatusError("p", "bad request", 400, nil)))
	})

	t.Run("wrapped provider error", func(t *testing.T) {
		inner := NewStatusError("p", "overloaded", 529, nil)
		assert.True(t, IsRetryable(fmt.Errorf("invoke: %w", inner)))
	})

	t.Run("timeout is retryable", func(t *testing.T) {
		assert.True(t, IsRetryable(context.DeadlineExceeded))
		assert.True(t, IsRetryable(fmt.Errorf("attempt: %w", context.DeadlineExceeded)))
	})

	t.Run("unknown errors are terminal", func(t *testing.T) {
		assert.False(t, IsRetryable(errors.New("something broke")))
		assert.False(t, IsRetryable(context.Canceled))
	})
}

func TestProviderError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewProviderError("fallback", ErrCodeUnavailable, "upstream down", 502, true, cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "fallback")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestAsTextRequest(t *testing.T) {
	t.Run("typed payload passes through", func(t *testing.T) {
		req, err := AsTextRequest(TextRequest{Prompt: "hello"})
		assert.NoError(t, err)
		assert.Equal(t, "hello", req.Prompt)
	})

	t.Run("raw json decodes", func(t *testing.T) {
		req, err := AsTextRequest([]byte(`{"prompt":"hi","max_tokens":16}`))
		assert.NoError(t, err)
		assert.Equal(t, "hi", req.Prompt)
		assert.Equal(t, 16, req.MaxTokens)
	})

	t.Run("unsupported type fails", func(t *testing.T) {
		_, err := AsTextRequest(42)
		assert.Error(t, err)
	})
}
