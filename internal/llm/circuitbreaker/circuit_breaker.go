// Package circuitbreaker provides per-model-key failure tracking that fails
// fast once a provider is judged unhealthy and probes it periodically to
// detect recovery. State mutation is lock-free via atomic compare-and-swap,
// so concurrent callers for the same model key never lose updates.
package circuitbreaker

import (
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"
)

// shardCount fixes the breaker registry shard fan-out.
const shardCount = 16

// jitterDivisor sizes the random jitter as a fraction of the open timeout.
const jitterDivisor = 10

// State represents the current state of a circuit breaker.
type State int32

const (
	// StateClosed allows requests through.
	StateClosed State = iota
	// StateOpen blocks all requests until the open timeout elapses.
	StateOpen
	// StateHalfOpen allows a single trial request to test recovery.
	StateHalfOpen
)

// String returns the string representation of the circuit state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config controls breaker behavior: how many consecutive failures within
// the window open the circuit, and how long it stays open before a trial
// request is allowed.
type Config struct {
	// FailureThreshold is the number of consecutive failures required to
	// open the circuit.
	FailureThreshold int `json:"failure_threshold"`
	// FailureWindow bounds how far apart failures may be and still count as
	// consecutive; a failure after a quiet period restarts the count.
	FailureWindow time.Duration `json:"failure_window"`
	// OpenTimeout is how long the circuit stays open before transitioning
	// to half-open.
	OpenTimeout time.Duration `json:"open_timeout"`
	// SuccessThreshold is the number of half-open successes required to
	// close the circuit.
	SuccessThreshold int `json:"success_threshold"`
}

// breaker tracks failure state for one model key.
type breaker struct {
	state           atomic.Int32
	failures        atomic.Int32
	successes       atomic.Int32
	lastFailureNano atomic.Int64
	halfOpenProbe   atomic.Bool

	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

func newBreaker(cfg Config, now func() time.Time, logger *slog.Logger) *breaker {
	b := &breaker{cfg: cfg, now: now, logger: logger}
	b.state.Store(int32(StateClosed))
	return b
}

// jitter returns a random delay up to 10% of the open timeout so breakers
// for different keys don't probe in lockstep.
func (b *breaker) jitter() time.Duration {
	jit := b.cfg.OpenTimeout / jitterDivisor
	if jit <= 0 {
		return 0
	}
	return rand.N(jit)
}

// allow reports whether a request may proceed. While open, it transitions
// to half-open exactly once after the open timeout elapses and admits a
// single trial request.
func (b *breaker) allow() bool {
	state := State(b.state.Load())

	switch state {
	case StateClosed:
		return true

	case StateOpen:
		lastFailure := time.Unix(0, b.lastFailureNano.Load())
		if b.now().Sub(lastFailure) <= b.cfg.OpenTimeout+b.jitter() {
			return false
		}
		b.transitionTo(StateOpen, StateHalfOpen)
		return b.acquireProbe()

	case StateHalfOpen:
		return b.acquireProbe()

	default:
		return false
	}
}

// acquireProbe admits at most one in-flight trial request in half-open.
func (b *breaker) acquireProbe() bool {
	return b.halfOpenProbe.CompareAndSwap(false, true)
}

// releaseProbe frees the trial slot without judging provider health. Every
// probe outcome must release the slot one way or another or the breaker
// stays half-open with no probe ever admitted again.
func (b *breaker) releaseProbe() {
	if State(b.state.Load()) == StateHalfOpen {
		b.halfOpenProbe.Store(false)
	}
}

// recordSuccess resets failure tracking and closes the circuit from
// half-open once the success threshold is met.
func (b *breaker) recordSuccess() {
	for {
		state := b.state.Load()
		switch State(state) {
		case StateClosed:
			b.failures.Store(0)
			return

		case StateHalfOpen:
			successes := b.successes.Add(1)
			if int(successes) >= b.cfg.SuccessThreshold {
				if b.state.CompareAndSwap(state, int32(StateClosed)) {
					b.reset()
					b.logger.Info("circuit breaker state transition",
						"from", StateHalfOpen.String(), "to", StateClosed.String())
					return
				}
				b.successes.Add(-1)
				continue
			}
			// More probes needed; free the slot for the next trial.
			b.halfOpenProbe.Store(false)
			return

		case StateOpen:
			// Stale success from before the circuit opened.
			return
		}
	}
}

// recordFailure counts a failure and opens the circuit when the threshold
// is reached within the window. A half-open failure reopens immediately.
func (b *breaker) recordFailure() {
	now := b.now()
	prevNano := b.lastFailureNano.Swap(now.UnixNano())

	for {
		state := b.state.Load()
		switch State(state) {
		case StateClosed:
			if b.cfg.FailureWindow > 0 && prevNano > 0 &&
				now.Sub(time.Unix(0, prevNano)) > b.cfg.FailureWindow {
				b.failures.Store(0)
			}
			failures := b.failures.Add(1)
			if int(failures) >= b.cfg.FailureThreshold {
				if b.state.CompareAndSwap(state, int32(StateOpen)) {
					b.reset()
					b.logger.Info("circuit breaker state transition",
						"from", StateClosed.String(), "to", StateOpen.String())
					return
				}
				continue
			}
			return

		case StateHalfOpen:
			if b.state.CompareAndSwap(state, int32(StateOpen)) {
				b.reset()
				b.logger.Info("circuit breaker state transition",
					"from", StateHalfOpen.String(), "to", StateOpen.String())
				return
			}
			continue

		case StateOpen:
			return
		}
	}
}

// transitionTo swaps states only if the breaker is still in the expected
// state, keeping concurrent open->half-open transitions single-shot.
func (b *breaker) transitionTo(from, to State) {
	if b.state.CompareAndSwap(int32(from), int32(to)) {
		b.successes.Store(0)
		b.halfOpenProbe.Store(false)
		b.logger.Info("circuit breaker state transition",
			"from", from.String(), "to", to.String())
	}
}

func (b *breaker) reset() {
	b.failures.Store(0)
	b.successes.Store(0)
	b.halfOpenProbe.Store(false)
}

// resetAt returns when the open circuit becomes eligible for a trial.
func (b *breaker) resetAt() time.Time {
	return time.Unix(0, b.lastFailureNano.Load()).Add(b.cfg.OpenTimeout)
}
