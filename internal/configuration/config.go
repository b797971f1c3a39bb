// Package configuration holds the runtime configuration for the grading
// worker: provider credentials, resilience tuning, storage and queue
// endpoints, and scheduling knobs. Values load from an optional YAML file
// overridden by environment variables.
package configuration

import (
	"net/http"
	"time"
)

// Config holds comprehensive configuration for the grading worker.
type Config struct {
	// HTTP client configuration for provider calls.
	HTTPTimeout time.Duration `koanf:"http_timeout" json:"http_timeout"`
	HTTPClient  *http.Client  `koanf:"-" json:"-"`

	// Provider configurations keyed by provider name.
	Providers map[string]ProviderConfig `koanf:"providers" json:"providers"`

	// Retry configuration for in-place attempt retries.
	Retry RetryConfig `koanf:"retry" json:"retry"`

	// Circuit breaker configuration, shared by all model keys.
	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker" json:"circuit_breaker"`

	// Scheduling controls rescheduling of grading units across attempts.
	Scheduling SchedulingConfig `koanf:"scheduling" json:"scheduling"`

	// Storage configuration for the durable store.
	Storage StorageConfig `koanf:"storage" json:"storage"`

	// Redis configuration for state-change notifications.
	Redis RedisConfig `koanf:"redis" json:"redis"`

	// Temporal configuration for the job queue.
	Temporal TemporalConfig `koanf:"temporal" json:"temporal"`

	// Documents configuration for submission content retrieval.
	Documents DocumentsConfig `koanf:"documents" json:"documents"`

	// Observability configuration.
	Observability ObservabilityConfig `koanf:"observability" json:"observability"`
}

// ProviderConfig holds provider-specific configuration and authentication.
type ProviderConfig struct {
	Endpoint  string            `koanf:"endpoint" json:"endpoint"`
	APIKey    string            `koanf:"api_key" json:"-"` // Sensitive, not serialized
	APIKeyEnv string            `koanf:"api_key_env" json:"api_key_env"`
	Timeout   time.Duration     `koanf:"timeout" json:"timeout"`
	Headers   map[string]string `koanf:"headers" json:"headers"`
}

// RetryConfig controls in-place retry behavior for failed LLM calls.
type RetryConfig struct {
	MaxAttempts     int           `koanf:"max_attempts" json:"max_attempts"`
	InitialInterval time.Duration `koanf:"initial_interval" json:"initial_interval"`
	MaxInterval     time.Duration `koanf:"max_interval" json:"max_interval"`
	Multiplier      float64       `koanf:"multiplier" json:"multiplier"`
	UseJitter       bool          `koanf:"use_jitter" json:"use_jitter"`
}

// CircuitBreakerConfig controls fail-fast behavior per model key.
type CircuitBreakerConfig struct {
	FailureThreshold int           `koanf:"failure_threshold" json:"failure_threshold"`
	FailureWindow    time.Duration `koanf:"failure_window" json:"failure_window"`
	SuccessThreshold int           `koanf:"success_threshold" json:"success_threshold"`
	OpenTimeout      time.Duration `koanf:"open_timeout" json:"open_timeout"`
}

// SchedulingConfig controls cross-attempt rescheduling of grading units.
type SchedulingConfig struct {
	// MaxSubmissionAttempts bounds how many times a submission is graded
	// before it is marked failed.
	MaxSubmissionAttempts int `koanf:"max_submission_attempts" json:"max_submission_attempts"`

	// CircuitOpenBuffer is added to the breaker's open timeout when
	// rescheduling a unit rejected by an open circuit.
	CircuitOpenBuffer time.Duration `koanf:"circuit_open_buffer" json:"circuit_open_buffer"`

	// DefaultRetryDelay applies to transient failures that carry no
	// provider-suggested retry-after.
	DefaultRetryDelay time.Duration `koanf:"default_retry_delay" json:"default_retry_delay"`

	// MaxConcurrentUnits caps how many grading units the worker processes
	// concurrently.
	MaxConcurrentUnits int `koanf:"max_concurrent_units" json:"max_concurrent_units"`
}

// StorageConfig configures the SQLite-backed durable store.
type StorageConfig struct {
	Path string `koanf:"path" json:"path"`
}

// RedisConfig configures the pub/sub notification channel.
type RedisConfig struct {
	Addr     string `koanf:"addr" json:"addr"`
	Password string `koanf:"password" json:"-"` // Sensitive
	DB       int    `koanf:"db" json:"db"`
	Channel  string `koanf:"channel" json:"channel"`
}

// TemporalConfig configures the job queue connection.
type TemporalConfig struct {
	HostPort  string `koanf:"host_port" json:"host_port"`
	Namespace string `koanf:"namespace" json:"namespace"`
	TaskQueue string `koanf:"task_queue" json:"task_queue"`
}

// DocumentsConfig configures submission document retrieval.
type DocumentsConfig struct {
	// BaseURL prefixes relative document references. Absolute URLs in
	// submissions are used as-is.
	BaseURL string `koanf:"base_url" json:"base_url"`
}

// ObservabilityConfig controls logging behavior.
type ObservabilityConfig struct {
	LogLevel  string `koanf:"log_level" json:"log_level"`
	LogFormat string `koanf:"log_format" json:"log_format"`
}
