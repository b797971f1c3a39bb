package circuitbreaker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	llmerrors "github.com/gradepipe/gradepipe/internal/llm/errors"
	"github.com/gradepipe/gradepipe/internal/llm/transport"
)

// Registry owns the circuit breakers for all model keys. Breakers are
// created lazily on first use and shared across concurrent callers for the
// same key. The registry is passed explicitly through construction rather
// than living in ambient global state.
type Registry struct {
	shards [shardCount]shard
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

type shard struct {
	mu       sync.RWMutex
	breakers map[string]*breaker
}

// Option customizes registry construction.
type Option func(*Registry)

// WithClock injects a time source, used by tests to drive open-timeout
// expiry deterministically.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a breaker registry with the given configuration.
func NewRegistry(cfg Config, opts ...Option) *Registry {
	r := &Registry{
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default().With("component", "circuit_breaker"),
	}
	for i := range r.shards {
		r.shards[i].breakers = make(map[string]*breaker)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// shardFor hashes the key onto a shard to reduce lock contention.
func (r *Registry) shardFor(key string) *shard {
	var hash uint32
	for i := 0; i < len(key); i++ {
		hash = hash*31 + uint32(key[i])
	}
	return &r.shards[hash%shardCount]
}

// getOrCreate returns the breaker for a key, creating it lazily.
// Double-checked locking keeps the read path contention-free.
func (r *Registry) getOrCreate(key string) *breaker {
	s := r.shardFor(key)

	s.mu.RLock()
	b, ok := s.breakers[key]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.breakers[key]; ok {
		return b
	}
	b = newBreaker(r.cfg, r.now, r.logger.With("key", key))
	s.breakers[key] = b
	return b
}

// AllowRequest reports whether a request for the model key may proceed.
// Returns nil when allowed, or a CircuitOpenError the caller must treat as
// a reschedulable service-unavailable condition, never silently dropped.
func (r *Registry) AllowRequest(key string) error {
	b := r.getOrCreate(key)
	if b.allow() {
		return nil
	}
	return &llmerrors.CircuitOpenError{
		Key:     key,
		State:   State(b.state.Load()).String(),
		ResetAt: b.resetAt().Unix(),
	}
}

// RecordSuccess resets failure tracking for the key and closes the circuit.
func (r *Registry) RecordSuccess(key string) {
	r.getOrCreate(key).recordSuccess()
}

// RecordFailure counts a failure for the key, opening the circuit at the
// configured threshold.
func (r *Registry) RecordFailure(key string) {
	r.getOrCreate(key).recordFailure()
}

// ReleaseProbe frees the half-open trial slot for the key without recording
// an outcome. Used when a trial fails for a reason that says nothing about
// provider availability, so the next caller may probe again.
func (r *Registry) ReleaseProbe(key string) {
	r.getOrCreate(key).releaseProbe()
}

// StateOf returns the current state for a key. Unknown keys are closed.
func (r *Registry) StateOf(key string) State {
	s := r.shardFor(key)
	s.mu.RLock()
	b, ok := s.breakers[key]
	s.mu.RUnlock()
	if !ok {
		return StateClosed
	}
	return State(b.state.Load())
}

// OpenTimeout exposes the configured open duration so orchestrators can
// compute reschedule delays for circuit-open rejections.
func (r *Registry) OpenTimeout() time.Duration {
	return r.cfg.OpenTimeout
}

// Middleware wraps a handler with circuit breaking keyed by provider:model.
// Only transient failure kinds count against the breaker; validation and
// terminal provider errors pass through without affecting circuit health.
func (r *Registry) Middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			key := req.ModelKey()
			if err := r.AllowRequest(key); err != nil {
				return nil, err
			}

			resp, err := next.Handle(ctx, req)
			if err != nil {
				if llmerrors.KindOf(err).IsTransient() {
					r.RecordFailure(key)
				} else {
					// Terminal errors say nothing about availability; the
					// trial slot must still come back so probing continues.
					r.ReleaseProbe(key)
				}
				return nil, err
			}

			r.RecordSuccess(key)
			return resp, nil
		})
	}
}
