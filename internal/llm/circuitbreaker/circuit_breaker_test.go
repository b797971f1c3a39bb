package circuitbreaker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmerrors "github.com/gradepipe/gradepipe/internal/llm/errors"
	"github.com/gradepipe/gradepipe/internal/llm/transport"
)

const testKey = "openai:gpt-4o"

// fakeClock is a settable time source for driving open-timeout expiry.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() Config {
	return Config{
		FailureThreshold: 3,
		FailureWindow:    time.Minute,
		SuccessThreshold: 1,
		OpenTimeout:      30 * time.Second,
	}
}

func newTestRegistry(clock *fakeClock) *Registry {
	return NewRegistry(testConfig(), WithClock(clock.Now))
}

func tripBreaker(t *testing.T, r *Registry, key string) {
	t.Helper()
	for i := 0; i < testConfig().FailureThreshold; i++ {
		require.NoError(t, r.AllowRequest(key))
		r.RecordFailure(key)
	}
	require.Equal(t, StateOpen, r.StateOf(key))
}

func TestRegistry_ClosedAllowsRequests(t *testing.T) {
	r := newTestRegistry(newFakeClock())

	assert.NoError(t, r.AllowRequest(testKey))
	assert.Equal(t, StateClosed, r.StateOf(testKey))
}

func TestRegistry_OpensAtFailureThreshold(t *testing.T) {
	r := newTestRegistry(newFakeClock())

	r.RecordFailure(testKey)
	r.RecordFailure(testKey)
	assert.Equal(t, StateClosed, r.StateOf(testKey), "below threshold stays closed")

	r.RecordFailure(testKey)
	assert.Equal(t, StateOpen, r.StateOf(testKey))

	err := r.AllowRequest(testKey)
	require.Error(t, err)
	require.ErrorIs(t, err, llmerrors.ErrCircuitOpen)

	var openErr *llmerrors.CircuitOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, testKey, openErr.Key)
}

func TestRegistry_QuietPeriodRestartsFailureCount(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegistry(clock)

	r.RecordFailure(testKey)
	r.RecordFailure(testKey)

	// A failure after the window restarts the consecutive count, so the
	// third failure is not the third consecutive one.
	clock.Advance(2 * time.Minute)
	r.RecordFailure(testKey)
	assert.Equal(t, StateClosed, r.StateOf(testKey))
}

func TestRegistry_HalfOpenAfterTimeout(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegistry(clock)
	tripBreaker(t, r, testKey)

	require.Error(t, r.AllowRequest(testKey), "still open before timeout")

	// Jitter extends the open period by at most a tenth of the timeout.
	clock.Advance(testConfig().OpenTimeout + testConfig().OpenTimeout/10 + time.Second)

	assert.NoError(t, r.AllowRequest(testKey), "trial request admitted after timeout")
	assert.Equal(t, StateHalfOpen, r.StateOf(testKey))
}

func TestRegistry_HalfOpenAdmitsSingleProbe(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegistry(clock)
	tripBreaker(t, r, testKey)
	clock.Advance(2 * testConfig().OpenTimeout)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.AllowRequest(testKey) == nil {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), admitted.Load(), "exactly one probe may be in flight")
}

func TestRegistry_ProbeSuccessClosesCircuit(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegistry(clock)
	tripBreaker(t, r, testKey)
	clock.Advance(2 * testConfig().OpenTimeout)

	require.NoError(t, r.AllowRequest(testKey))
	r.RecordSuccess(testKey)

	assert.Equal(t, StateClosed, r.StateOf(testKey))
	assert.NoError(t, r.AllowRequest(testKey))
}

func TestRegistry_ProbeFailureReopensCircuit(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegistry(clock)
	tripBreaker(t, r, testKey)
	clock.Advance(2 * testConfig().OpenTimeout)

	require.NoError(t, r.AllowRequest(testKey))
	r.RecordFailure(testKey)

	assert.Equal(t, StateOpen, r.StateOf(testKey))
	assert.Error(t, r.AllowRequest(testKey))
}

func TestRegistry_TerminalProbeErrorFreesTrialSlot(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegistry(clock)
	tripBreaker(t, r, testKey)
	clock.Advance(2 * testConfig().OpenTimeout)

	terminal := &llmerrors.ProviderError{
		Provider:   "openai",
		StatusCode: 401,
		Message:    "invalid api key",
		Type:       llmerrors.ErrorTypeAPI,
	}
	handler := r.Middleware()(transport.HandlerFunc(
		func(context.Context, *transport.Request) (*transport.Response, error) {
			return nil, terminal
		}))
	req := &transport.Request{Provider: "openai", Model: "gpt-4o"}

	_, err := handler.Handle(context.Background(), req)
	require.ErrorIs(t, err, terminal, "terminal error passes through the breaker")
	assert.Equal(t, StateHalfOpen, r.StateOf(testKey),
		"a terminal probe result neither reopens nor closes the circuit")

	// The slot is free again, so the very next call may probe without
	// waiting for another timeout.
	require.NoError(t, r.AllowRequest(testKey))
	r.RecordSuccess(testKey)
	assert.Equal(t, StateClosed, r.StateOf(testKey))
}

func TestRegistry_KeysAreIndependent(t *testing.T) {
	r := newTestRegistry(newFakeClock())
	tripBreaker(t, r, testKey)

	otherKey := "anthropic:claude-sonnet-4-20250514"
	assert.NoError(t, r.AllowRequest(otherKey), "an open circuit must not affect other model keys")
	assert.Equal(t, StateClosed, r.StateOf(otherKey))
}

func TestRegistry_SuccessResetsFailureCount(t *testing.T) {
	r := newTestRegistry(newFakeClock())

	r.RecordFailure(testKey)
	r.RecordFailure(testKey)
	r.RecordSuccess(testKey)
	r.RecordFailure(testKey)
	r.RecordFailure(testKey)

	assert.Equal(t, StateClosed, r.StateOf(testKey),
		"a success between failures restarts the consecutive count")
}

func TestRegistry_OpenTimeoutExposed(t *testing.T) {
	r := newTestRegistry(newFakeClock())
	assert.Equal(t, testConfig().OpenTimeout, r.OpenTimeout())
}
