package resilient

import (
	"context"
	"net/http"
	"time"
)

// Transport sends a raw HTTP request and returns a raw HTTP response. It is
// the one seam the pipeline never retries around internally — everything
// above it (retry, breaker, cache, dedup) is pipeline concern, everything
// below it is wire concern (spec §6 "Transport contract").
type Transport interface {
	RoundTrip(req *http.Request) (*http.Response, error)
}

// RoundTripperFunc adapts a function to a Transport, mirroring the
// RoundTripper/RoundTripperFunc pairing the teacher uses for its middleware
// chain (grounded on types.go's RoundTripperFunc).
type RoundTripperFunc func(req *http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// DefaultTransport wraps a *http.Client, the concrete Transport installed
// when a caller doesn't supply one of their own (spec §6).
type DefaultTransport struct {
	client *http.Client
}

// NewDefaultTransport constructs a DefaultTransport with the given overall
// request timeout. A timeout of 0 leaves http.Client's own Timeout unset,
// relying entirely on the context deadline the pipeline attaches per-request.
func NewDefaultTransport(timeout time.Duration) *DefaultTransport {
	return &DefaultTransport{client: &http.Client{Timeout: timeout}}
}

func (t *DefaultTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.client.Do(req)
}

// Middleware wraps a Transport to add cross-cutting behavior (auth headers,
// logging, tracing) around the underlying round trip, composed outermost
// first (spec §4.5, grounded on types.go's Middleware/executeMiddleware).
type Middleware func(req *http.Request, next Transport) (*http.Response, error)

// chainMiddleware composes middleware around base, outermost-to-innermost,
// exactly mirroring executeMiddleware's reverse-iteration wrapping.
func chainMiddleware(base Transport, mws []Middleware) Transport {
	current := base
	for i := len(mws) - 1; i >= 0; i-- {
		mw := mws[i]
		next := current
		current = RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			return mw(req, next)
		})
	}
	return current
}

// withRequestTimeout attaches a deadline derived from timeout to req's
// context, returning the replacement request and a cancel func the caller
// must invoke once the round trip completes (spec §4.7, §5: "the internal
// timeout governor races the context deadline against the transport call").
func withRequestTimeout(req *http.Request, timeout time.Duration) (*http.Request, context.CancelFunc) {
	if timeout <= 0 {
		return req, func() {}
	}
	ctx, cancel := context.WithTimeout(req.Context(), timeout)
	return req.WithContext(ctx), cancel
}
