package retry

import (
	"math/rand/v2"
	"time"

	llmerrors "github.com/gradepipe/gradepipe/internal/llm/errors"
)

// calculateBackoff computes the retry delay for an attempt. A
// provider-specified Retry-After takes precedence; otherwise exponential
// backoff applies, with full jitter when enabled.
func (r *retryMiddleware) calculateBackoff(attempt int, err error) time.Duration {
	if retryAfter := llmerrors.GetRetryAfter(err); retryAfter > 0 {
		return time.Duration(retryAfter) * time.Second
	}
	return Exponential(attempt, r.config)
}

// Exponential calculates the backoff for an attempt number using the
// configured multiplier and interval cap, with optional full jitter.
// Returns zero for non-positive attempt numbers. Thread-safe via
// math/rand/v2.
func Exponential(attempt int, cfg Config) time.Duration {
	if attempt <= 0 {
		return 0
	}

	backoff := cfg.InitialInterval
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * cfg.Multiplier)
		if backoff > cfg.MaxInterval {
			backoff = cfg.MaxInterval
			break
		}
	}

	if cfg.UseJitter {
		// Full jitter: random between 0 and the calculated backoff.
		return rand.N(backoff + 1)
	}

	return backoff
}
