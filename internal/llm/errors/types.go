// Package errors defines the failure taxonomy for LLM gateway operations.
// Every provider or pipeline failure is classified into an ErrorType that
// determines whether the operation is retried in place, rescheduled after a
// cooldown, or surfaced to the grading unit as terminal.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ErrorType categorizes LLM operation failures for retry and rescheduling
// decisions.
type ErrorType string

const (
	// ErrorTypeValidation indicates a malformed request. Never retried.
	ErrorTypeValidation ErrorType = "validation"

	// ErrorTypeUnavailable indicates the circuit breaker rejected the call.
	// The caller reschedules after the breaker's cooldown rather than
	// treating this as fatal.
	ErrorTypeUnavailable ErrorType = "service_unavailable"

	// ErrorTypeOverload indicates the provider is rate limiting or
	// overloaded. Retryable with backoff; carries a provider-suggested
	// retry-after when available.
	ErrorTypeOverload ErrorType = "api_overload"

	// ErrorTypeTimeout indicates request timeout or deadline exceeded
	// (retryable).
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeNetwork indicates network connectivity issues (retryable).
	ErrorTypeNetwork ErrorType = "network"

	// ErrorTypeProvider indicates a provider-side 5xx (retryable).
	ErrorTypeProvider ErrorType = "provider_unavailable"

	// ErrorTypeAPI indicates a terminal provider error (auth, bad request,
	// content filter). Never retried; the grading unit fails.
	ErrorTypeAPI ErrorType = "api_error"

	// ErrorTypeParse indicates every response-parsing strategy failed.
	// Terminal: re-sending the same prompt is unlikely to help.
	ErrorTypeParse ErrorType = "parse_failure"

	// ErrorTypeUnknown indicates an unclassified error (not retried).
	ErrorTypeUnknown ErrorType = "unknown"
)

// Common gateway errors for consistent handling.
var (
	// ErrCircuitOpen indicates the circuit breaker is open for the model key.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrUnknownProvider indicates an unknown or unconfigured provider.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrUnknownModel indicates a model not present in the model registry.
	ErrUnknownModel = errors.New("unknown model")

	// ErrEmptyPrompt indicates a generation request without prompt text.
	ErrEmptyPrompt = errors.New("prompt must not be empty")

	// ErrMaxRetriesExceeded indicates the retry handler exhausted attempts.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

// IsTransient reports whether the error type is expected to resolve with
// time or backoff, as opposed to a terminal failure.
func (t ErrorType) IsTransient() bool {
	switch t {
	case ErrorTypeOverload, ErrorTypeTimeout, ErrorTypeNetwork, ErrorTypeProvider:
		return true
	default:
		return false
	}
}

// ProviderError captures structured error responses from LLM providers.
// Includes HTTP status codes, provider error codes, and retry timing to
// enable appropriate retry behavior and diagnosis.
type ProviderError struct {
	Provider   string    `json:"provider"`
	StatusCode int       `json:"status_code"`
	Message    string    `json:"message"`
	Code       string    `json:"code"`
	Type       ErrorType `json:"type"`
	RetryAfter int       `json:"retry_after"` // Retry-After header value in seconds
}

// Error returns the formatted provider error with status code context.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable reports whether the provider error warrants an in-place retry.
func (e *ProviderError) IsRetryable() bool {
	return e.Type.IsTransient()
}

// GetRetryAfter implements the RetryAfterProvider interface.
func (e *ProviderError) GetRetryAfter() time.Duration {
	if e.RetryAfter > 0 {
		return time.Duration(e.RetryAfter) * time.Second
	}
	return 0
}

// CircuitOpenError indicates the circuit breaker rejected a request for a
// model key. It carries the reset time so callers can compute a reschedule
// delay instead of busy-retrying a downed dependency.
type CircuitOpenError struct {
	Key     string `json:"key"`   // "{provider}:{model}"
	State   string `json:"state"` // "open" or "half-open"
	ResetAt int64  `json:"reset_at"`
}

// Error returns the formatted circuit breaker rejection.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %s for %s", e.State, e.Key)
}

// Unwrap makes CircuitOpenError match errors.Is(err, ErrCircuitOpen).
func (e *CircuitOpenError) Unwrap() error { return ErrCircuitOpen }

// ValidationError captures request validation failures with field context.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error returns the formatted validation failure.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// KindOf classifies an arbitrary error into an ErrorType. Unknown errors are
// deliberately non-transient to avoid retry loops.
func KindOf(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	var circuitErr *CircuitOpenError
	if errors.As(err, &circuitErr) {
		return ErrorTypeUnavailable
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ErrorTypeValidation
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Type
	}

	if errors.Is(err, ErrCircuitOpen) {
		return ErrorTypeUnavailable
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTypeTimeout
		}
		return ErrorTypeNetwork
	}

	return ErrorTypeUnknown
}

// IsRetryableError reports whether an error warrants an in-place retry
// attempt by the retry handler. Circuit-open rejections are explicitly not
// retryable in place; they are rescheduled at the orchestrator boundary.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var circuitErr *CircuitOpenError
	if errors.As(err, &circuitErr) {
		return false
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.IsRetryable()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Conservative default for unclassified errors.
	return false
}

// GetRetryAfter extracts a provider-suggested retry delay in seconds from an
// error chain, or 0 when no guidance is available.
func GetRetryAfter(err error) int {
	if err == nil {
		return 0
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.RetryAfter
	}

	return 0
}

// Classify determines the ErrorType from an HTTP status and an optional
// provider error code string.
func Classify(statusCode int, errorCode string) ErrorType {
	if t, ok := classifyByCode(errorCode); ok {
		return t
	}

	switch statusCode {
	case http.StatusTooManyRequests:
		return ErrorTypeOverload
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ErrorTypeTimeout
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrorTypeValidation
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return ErrorTypeAPI
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return ErrorTypeProvider
	default:
		// Anthropic signals overload with 529.
		if statusCode == 529 {
			return ErrorTypeOverload
		}
		if statusCode >= 500 {
			return ErrorTypeProvider
		}
		return ErrorTypeUnknown
	}
}
