package configuration

import (
	"time"
)

// HTTP constants.
const (
	DefaultHTTPTimeout = 60 * time.Second
)

// Retry and circuit breaker constants.
const (
	DefaultMaxAttempts       = 3
	DefaultInitialInterval   = 250 * time.Millisecond
	DefaultMaxInterval       = 5 * time.Second
	DefaultBackoffMultiplier = 2.0
	DefaultFailureThreshold  = 5
	DefaultFailureWindow     = 60 * time.Second
	DefaultSuccessThreshold  = 1
	DefaultOpenTimeout       = 30 * time.Second
)

// Scheduling constants.
const (
	DefaultMaxSubmissionAttempts = 3
	DefaultCircuitOpenBuffer     = 15 * time.Second
	DefaultRetryDelay            = 30 * time.Second
	DefaultMaxConcurrentUnits    = 8
)

// DefaultConfig returns production-ready configuration with sensible
// defaults. Provider credentials and endpoint addresses still have to come
// from the environment or config file.
func DefaultConfig() *Config {
	return &Config{
		HTTPTimeout: DefaultHTTPTimeout,
		Retry: RetryConfig{
			MaxAttempts:     DefaultMaxAttempts,
			InitialInterval: DefaultInitialInterval,
			MaxInterval:     DefaultMaxInterval,
			Multiplier:      DefaultBackoffMultiplier,
			UseJitter:       true,
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: DefaultFailureThreshold,
			FailureWindow:    DefaultFailureWindow,
			SuccessThreshold: DefaultSuccessThreshold,
			OpenTimeout:      DefaultOpenTimeout,
		},
		Scheduling: SchedulingConfig{
			MaxSubmissionAttempts: DefaultMaxSubmissionAttempts,
			CircuitOpenBuffer:     DefaultCircuitOpenBuffer,
			DefaultRetryDelay:     DefaultRetryDelay,
			MaxConcurrentUnits:    DefaultMaxConcurrentUnits,
		},
		Storage: StorageConfig{
			Path: "gradepipe.db",
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Channel: "gradepipe:updates",
		},
		Temporal: TemporalConfig{
			HostPort:  "localhost:7233",
			Namespace: "default",
			TaskQueue: "gradepipe",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}
