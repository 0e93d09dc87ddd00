package resilient

import "sync"

// CircuitBreakerRegistry maintains one CircuitBreaker per host, so a failing
// downstream trips its own breaker without affecting requests to any other
// host (spec §4.4 "per-host circuit breaking"). New hosts get a breaker
// built from the registry's template config on first use.
type CircuitBreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	template CircuitBreakerConfig
}

// NewCircuitBreakerRegistry constructs a registry that lazily creates
// per-host breakers using template as their configuration.
func NewCircuitBreakerRegistry(template CircuitBreakerConfig) *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{
		breakers: make(map[string]*CircuitBreaker),
		template: template,
	}
}

// Get returns the breaker for host, creating it on first access.
func (r *CircuitBreakerRegistry) Get(host string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[host]; ok {
		return cb
	}
	cb := NewCircuitBreaker(r.template)
	r.breakers[host] = cb
	return cb
}

// Snapshot returns every known host's current breaker stats, for
// introspection and metrics export.
func (r *CircuitBreakerRegistry) Snapshot() map[string]BreakerStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]BreakerStats, len(r.breakers))
	for host, cb := range r.breakers {
		out[host] = cb.Stats()
	}
	return out
}

// Reset forces every known host's breaker back to closed.
func (r *CircuitBreakerRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cb := range r.breakers {
		cb.Reset()
	}
}
