package errors

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorType_IsTransient(t *testing.T) {
	transient := []ErrorType{
		ErrorTypeOverload, ErrorTypeTimeout, ErrorTypeNetwork, ErrorTypeProvider,
	}
	for _, et := range transient {
		assert.True(t, et.IsTransient(), "%s should be transient", et)
	}

	terminal := []ErrorType{
		ErrorTypeValidation, ErrorTypeUnavailable, ErrorTypeAPI,
		ErrorTypeParse, ErrorTypeUnknown,
	}
	for _, et := range terminal {
		assert.False(t, et.IsTransient(), "%s should not be transient", et)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   string
		want   ErrorType
	}{
		{"rate limited", http.StatusTooManyRequests, "", ErrorTypeOverload},
		{"anthropic overloaded status", 529, "", ErrorTypeOverload},
		{"overloaded code overrides status", http.StatusInternalServerError, "overloaded_error", ErrorTypeOverload},
		{"gateway timeout", http.StatusGatewayTimeout, "", ErrorTypeTimeout},
		{"request timeout", http.StatusRequestTimeout, "", ErrorTypeTimeout},
		{"bad request", http.StatusBadRequest, "", ErrorTypeValidation},
		{"unauthorized", http.StatusUnauthorized, "", ErrorTypeAPI},
		{"forbidden", http.StatusForbidden, "", ErrorTypeAPI},
		{"not found", http.StatusNotFound, "", ErrorTypeAPI},
		{"server error", http.StatusInternalServerError, "", ErrorTypeProvider},
		{"bad gateway", http.StatusBadGateway, "", ErrorTypeProvider},
		{"service unavailable", http.StatusServiceUnavailable, "", ErrorTypeProvider},
		{"unmapped 5xx", 599, "", ErrorTypeProvider},
		{"teapot", http.StatusTeapot, "", ErrorTypeUnknown},
		{"rate limit code", http.StatusOK, "rate_limit_exceeded", ErrorTypeOverload},
		{"auth code", http.StatusOK, "authentication_error", ErrorTypeAPI},
		{"invalid request code", http.StatusOK, "invalid_request_error", ErrorTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.status, tt.code))
		})
	}
}

func TestKindOf(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Equal(t, ErrorTypeUnknown, KindOf(nil))
	})

	t.Run("circuit open error", func(t *testing.T) {
		err := &CircuitOpenError{Key: "openai:gpt-4o", State: "open"}
		assert.Equal(t, ErrorTypeUnavailable, KindOf(err))
	})

	t.Run("wrapped circuit open", func(t *testing.T) {
		err := fmt.Errorf("call failed: %w", &CircuitOpenError{Key: "k", State: "open"})
		assert.Equal(t, ErrorTypeUnavailable, KindOf(err))
	})

	t.Run("validation error", func(t *testing.T) {
		assert.Equal(t, ErrorTypeValidation, KindOf(&ValidationError{Field: "prompt"}))
	})

	t.Run("provider error carries its own type", func(t *testing.T) {
		err := &ProviderError{Type: ErrorTypeOverload}
		assert.Equal(t, ErrorTypeOverload, KindOf(err))
	})

	t.Run("deadline exceeded is timeout", func(t *testing.T) {
		err := fmt.Errorf("request: %w", context.DeadlineExceeded)
		assert.Equal(t, ErrorTypeTimeout, KindOf(err))
	})

	t.Run("net error is network", func(t *testing.T) {
		err := &net.OpError{Op: "dial", Net: "tcp", Err: fmt.Errorf("connection refused")}
		assert.Equal(t, ErrorTypeNetwork, KindOf(err))
	})

	t.Run("plain error is unknown", func(t *testing.T) {
		assert.Equal(t, ErrorTypeUnknown, KindOf(fmt.Errorf("boom")))
	})
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))

	assert.False(t, IsRetryableError(&CircuitOpenError{Key: "k", State: "open"}),
		"circuit rejections reschedule, never retry in place")

	assert.True(t, IsRetryableError(&ProviderError{Type: ErrorTypeProvider}))
	assert.True(t, IsRetryableError(&ProviderError{Type: ErrorTypeOverload}))
	assert.False(t, IsRetryableError(&ProviderError{Type: ErrorTypeAPI}))
	assert.False(t, IsRetryableError(&ProviderError{Type: ErrorTypeValidation}))

	assert.True(t, IsRetryableError(fmt.Errorf("wrap: %w", context.DeadlineExceeded)))
	assert.True(t, IsRetryableError(&net.OpError{Op: "dial", Err: fmt.Errorf("refused")}))

	assert.False(t, IsRetryableError(fmt.Errorf("unclassified")))
}

func TestGetRetryAfter(t *testing.T) {
	assert.Zero(t, GetRetryAfter(nil))
	assert.Zero(t, GetRetryAfter(fmt.Errorf("no guidance")))

	err := fmt.Errorf("wrap: %w", &ProviderError{RetryAfter: 12})
	assert.Equal(t, 12, GetRetryAfter(err))
}

func TestProviderError_GetRetryAfter(t *testing.T) {
	assert.Equal(t, 5*time.Second, (&ProviderError{RetryAfter: 5}).GetRetryAfter())
	assert.Zero(t, (&ProviderError{}).GetRetryAfter())
}

func TestCircuitOpenError_Unwrap(t *testing.T) {
	err := &CircuitOpenError{Key: "openai:gpt-4o", State: "half-open"}
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Contains(t, err.Error(), "openai:gpt-4o")
}
