package resilient

import (
	"sync/atomic"
	"time"
)

// CircuitState is the state of a CircuitBreaker (spec §4.4).
type CircuitState int32

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures a CircuitBreaker (spec §4.1: failure
// threshold [1,100] default 5, reset timeout [1s,1h] default 60s).
type CircuitBreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	// Fallback, if set, supplies a substitute result instead of ErrCircuitOpen
	// when the breaker rejects a call (spec §4.4).
	Fallback func() (*Response, error)
}

func normalizeCircuitBreakerConfig(cfg CircuitBreakerConfig) CircuitBreakerConfig {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	cfg.FailureThreshold = clampInt(cfg.FailureThreshold, minFailureThreshold, maxFailureThreshold)
	cfg.ResetTimeout = clampDuration(cfg.ResetTimeout, minResetTimeout, maxResetTimeout, defaultResetTimeout)
	return cfg
}

// CircuitBreaker is a three-state gate protecting a thunk from a failing
// downstream (spec §4.4). Lock-free: all state transitions happen through
// atomic compare-and-swaps so `Allow`/`RecordFailure`/`RecordSuccess` never
// block, preserving the "never hold a lock across an await" guidance of §5.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	state       int32 // CircuitState
	failures    int64
	successes   int64
	lastFailure int64 // UnixNano
	probeSent   int32 // atomic bool, valid only while state == half_open
}

// NewCircuitBreaker constructs a breaker with normalized configuration.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{config: normalizeCircuitBreakerConfig(config)}
}

// Allow reports whether a call may proceed, performing the open->half_open
// transition (and half_open's single-probe gating) as a side effect.
func (cb *CircuitBreaker) Allow() bool {
	state := CircuitState(atomic.LoadInt32(&cb.state))

	switch state {
	case StateClosed:
		return true
	case StateOpen:
		last := atomic.LoadInt64(&cb.lastFailure)
		if time.Now().UnixNano()-last <= int64(cb.config.ResetTimeout) {
			return false
		}
		if atomic.CompareAndSwapInt32(&cb.state, int32(StateOpen), int32(StateHalfOpen)) {
			atomic.StoreInt32(&cb.probeSent, 0)
		}
		// Fall through to half_open gating below, whether or not we won the CAS.
		return cb.allowHalfOpenProbe()
	case StateHalfOpen:
		return cb.allowHalfOpenProbe()
	default:
		return false
	}
}

// allowHalfOpenProbe admits exactly one in-flight probe per half-open period
// (spec §3 invariant (b)).
func (cb *CircuitBreaker) allowHalfOpenProbe() bool {
	return atomic.CompareAndSwapInt32(&cb.probeSent, 0, 1)
}

// RecordFailure transitions closed->open once failures reach the threshold,
// and any half_open failure back to open (spec §3 invariant (c)).
func (cb *CircuitBreaker) RecordFailure() {
	now := time.Now().UnixNano()
	atomic.StoreInt64(&cb.lastFailure, now)

	for {
		state := CircuitState(atomic.LoadInt32(&cb.state))
		switch state {
		case StateClosed:
			failures := atomic.AddInt64(&cb.failures, 1)
			if failures >= int64(cb.config.FailureThreshold) {
				atomic.CompareAndSwapInt32(&cb.state, int32(StateClosed), int32(StateOpen))
			}
			return
		case StateHalfOpen:
			if atomic.CompareAndSwapInt32(&cb.state, int32(StateHalfOpen), int32(StateOpen)) {
				atomic.StoreInt32(&cb.probeSent, 0)
				atomic.StoreInt64(&cb.successes, 0)
			}
			return
		case StateOpen:
			return
		default:
			return
		}
	}
}

// RecordSuccess resets a closed breaker's failure count and closes a
// half_open breaker on probe success (spec §3 invariant (c)).
func (cb *CircuitBreaker) RecordSuccess() {
	state := CircuitState(atomic.LoadInt32(&cb.state))
	switch state {
	case StateClosed:
		atomic.StoreInt64(&cb.failures, 0)
	case StateHalfOpen:
		if atomic.CompareAndSwapInt32(&cb.state, int32(StateHalfOpen), int32(StateClosed)) {
			atomic.StoreInt64(&cb.failures, 0)
			atomic.StoreInt64(&cb.successes, 0)
			atomic.StoreInt32(&cb.probeSent, 0)
		}
	}
}

// Call gates thunk through the breaker, serving the configured fallback (or
// ErrCircuitOpen) when the breaker rejects the call (spec §4.4).
func (cb *CircuitBreaker) Call(thunk func() (*Response, error)) (*Response, error) {
	if !cb.Allow() {
		if cb.config.Fallback != nil {
			return cb.config.Fallback()
		}
		return nil, ErrCircuitOpen
	}

	resp, err := thunk()
	if err != nil || (resp != nil && resp.Status >= 500) {
		cb.RecordFailure()
	} else {
		cb.RecordSuccess()
	}
	return resp, err
}

// BreakerStats is a snapshot of breaker state for introspection.
type BreakerStats struct {
	State     CircuitState
	Failures  int64
	Successes int64
	IsHealthy bool
}

// Stats returns a point-in-time snapshot (spec §4.4: isHealthy = closed ∧
// failures < threshold).
func (cb *CircuitBreaker) Stats() BreakerStats {
	state := CircuitState(atomic.LoadInt32(&cb.state))
	failures := atomic.LoadInt64(&cb.failures)
	return BreakerStats{
		State:     state,
		Failures:  failures,
		Successes: atomic.LoadInt64(&cb.successes),
		IsHealthy: state == StateClosed && failures < int64(cb.config.FailureThreshold),
	}
}

// Reset forces the breaker back to closed, clearing all counters.
func (cb *CircuitBreaker) Reset() {
	atomic.StoreInt32(&cb.state, int32(StateClosed))
	atomic.StoreInt64(&cb.failures, 0)
	atomic.StoreInt64(&cb.successes, 0)
	atomic.StoreInt32(&cb.probeSent, 0)
}
