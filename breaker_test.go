package resilient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Hour})

	for i := 0; i < 3; i++ {
		assert.True(t, cb.Allow())
		cb.RecordFailure()
	}

	assert.Equal(t, StateOpen, cb.Stats().State)
	assert.False(t, cb.Allow(), "an open breaker within its reset timeout must reject calls")
}

func TestCircuitBreakerHalfOpenSingleProbe(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond})

	assert.True(t, cb.Allow())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.Stats().State)

	time.Sleep(20 * time.Millisecond)

	// First caller after the reset timeout gets the probe...
	assert.True(t, cb.Allow())
	// ...every concurrent caller during the same half-open window is rejected.
	assert.False(t, cb.Allow())
}

func TestCircuitBreakerHalfOpenSuccessCloses(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond})
	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	assert.True(t, cb.Allow()) // the probe
	cb.RecordSuccess()

	assert.Equal(t, StateClosed, cb.Stats().State)
	assert.True(t, cb.Allow())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond})
	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	assert.True(t, cb.Allow()) // the probe
	cb.RecordFailure()

	assert.Equal(t, StateOpen, cb.Stats().State)
}

func TestCircuitBreakerCallFallback(t *testing.T) {
	fallbackResp := &Response{Status: 200}
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Hour,
		Fallback:         func() (*Response, error) { return fallbackResp, nil },
	})
	cb.RecordFailure()

	resp, err := cb.Call(func() (*Response, error) {
		t.Fatal("thunk must not run while the breaker is open")
		return nil, nil
	})
	assert.NoError(t, err)
	assert.Same(t, fallbackResp, resp)
}

func TestCircuitBreakerRegistryIsPerHost(t *testing.T) {
	reg := NewCircuitBreakerRegistry(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})

	a := reg.Get("a.example.com")
	b := reg.Get("b.example.com")
	assert.NotSame(t, a, b)

	a.RecordFailure()
	assert.Equal(t, StateOpen, a.Stats().State)
	assert.Equal(t, StateClosed, b.Stats().State, "a failing host must not trip another host's breaker")

	assert.Same(t, a, reg.Get("a.example.com"), "repeated lookups for the same host return the same breaker")
}

func TestCircuitBreakerRegistryReset(t *testing.T) {
	reg := NewCircuitBreakerRegistry(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	reg.Get("a.example.com").RecordFailure()
	assert.Equal(t, StateOpen, reg.Get("a.example.com").Stats().State)

	reg.Reset()

	assert.Equal(t, StateClosed, reg.Get("a.example.com").Stats().State)
}
