package resilient

import (
	"context"

	"golang.org/x/time/rate"
)

// XTimeLimiter adapts golang.org/x/time/rate.Limiter to the Limiter
// interface, an alternative to TokenBucketLimiter for callers who want
// standard-library-grade token bucket semantics (burst sizing, WaitN) rather
// than the hand-rolled atomic bucket (grounded on the rate.Limiter usage
// pattern in the wider example pack's HTTP option structs).
type XTimeLimiter struct {
	limiter *rate.Limiter
}

// NewXTimeLimiter constructs a limiter allowing eventsPerSecond sustained
// throughput with burst headroom of burst tokens.
func NewXTimeLimiter(eventsPerSecond float64, burst int) *XTimeLimiter {
	return &XTimeLimiter{limiter: rate.NewLimiter(rate.Limit(eventsPerSecond), burst)}
}

// Allow reports whether a token is available right now, without blocking.
func (l *XTimeLimiter) Allow() bool {
	return l.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done, for callers who
// would rather pace themselves than fail fast.
func (l *XTimeLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
