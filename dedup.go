package resilient

import (
	"context"
	"sync"
)

// inFlightEntry represents a single coalesced request shared between
// callers (spec §3 "In-flight registry").
type inFlightEntry struct {
	done chan struct{}

	mu   sync.Mutex
	resp *Response
	err  error
}

// newInFlightEntry returns an entry in the pending state.
func newInFlightEntry() *inFlightEntry {
	return &inFlightEntry{done: make(chan struct{})}
}

// settle records the outcome and releases every waiter. Safe to call once.
func (e *inFlightEntry) settle(resp *Response, err error) {
	e.mu.Lock()
	e.resp, e.err = resp, err
	e.mu.Unlock()
	close(e.done)
}

// wait blocks until the owning call settles or ctx is cancelled. A caller
// whose context cancels observes its own error without disturbing the
// in-flight entry or any other waiter (spec §5 cancellation semantics).
func (e *inFlightEntry) wait(ctx context.Context) (*Response, error) {
	select {
	case <-e.done:
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.resp, e.err
	case <-ctx.Done():
		return nil, &CancellationError{Cause: ctx.Err()}
	}
}

// InFlightRegistry maps a cache fingerprint to the single pending request
// currently satisfying it, coalescing concurrent identical callers (spec
// §3 invariant: "an entry is present from dispatch until settlement;
// settlement removes the entry on all paths").
type InFlightRegistry struct {
	mu      sync.Mutex
	entries map[string]*inFlightEntry
}

// NewInFlightRegistry constructs an empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{entries: make(map[string]*inFlightEntry)}
}

// GetOrRegister returns the existing in-flight entry for key (owner=false)
// or installs a fresh one (owner=true). The caller that gets owner=true is
// responsible for calling Settle exactly once.
func (r *InFlightRegistry) GetOrRegister(key string) (entry *inFlightEntry, owner bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[key]; ok {
		return e, false
	}
	e := newInFlightEntry()
	r.entries[key] = e
	return e, true
}

// Settle finalizes the entry for key and removes it from the registry on
// every path, so a subsequent request dispatches fresh.
func (r *InFlightRegistry) Settle(key string, resp *Response, err error) {
	r.mu.Lock()
	e, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
	}
	r.mu.Unlock()

	if ok {
		e.settle(resp, err)
	}
}

// Len reports the number of requests currently in flight.
func (r *InFlightRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// DefaultDeduplicationCondition enables coalescing for safe, idempotent
// methods (spec §3, grounded on deduplication.go's DefaultDeduplicationCondition).
func DefaultDeduplicationCondition(req *RequestConfig) bool {
	return req.Method == MethodGet || req.Method == MethodHead || req.Method == MethodOptions
}
