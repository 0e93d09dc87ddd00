package resilient

import (
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/wasqwf/resilient/internal/backoff"
)

// BackoffStrategy selects the shape of the retry delay curve (spec §4.2).
type BackoffStrategy int

const (
	ExponentialJitter BackoffStrategy = iota
	DecorrelatedJitter
)

// RetryPolicy decides whether and how long to wait before a retry attempt.
type RetryPolicy interface {
	// ShouldRetry inspects the outcome of an attempt and returns the delay to
	// wait (honoring Retry-After when present) and whether to retry at all.
	ShouldRetry(resp *Response, err error, attempt int) (time.Duration, bool)
}

// RetryConfig configures a DefaultRetryPolicy (spec §4.1: maxAttempts
// clamped to [0,10] default 3; attempts=0 means dispatch once, no retries).
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	Jitter            float64
	Strategy          BackoffStrategy
	Condition         RetryCondition
}

func normalizeRetryConfig(cfg RetryConfig) RetryConfig {
	cfg.MaxAttempts = clampInt(cfg.MaxAttempts, minRetryAttempts, maxRetryAttempts)
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 100 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = 2.0
	}
	if cfg.Jitter < 0 || cfg.Jitter > 1 {
		cfg.Jitter = 0.1
	}
	if cfg.Condition == nil {
		cfg.Condition = DefaultRetryCondition
	}
	return cfg
}

// DefaultRetryPolicy retries requests using an exponential or decorrelated
// jittered backoff, honoring Retry-After when the server sends one (spec
// §4.2, grounded on retry_policy.go's DefaultRetryPolicy).
type DefaultRetryPolicy struct {
	config     RetryConfig
	calculator *backoff.Calculator
}

// NewDefaultRetryPolicy constructs a policy from normalized config.
func NewDefaultRetryPolicy(cfg RetryConfig) *DefaultRetryPolicy {
	cfg = normalizeRetryConfig(cfg)

	var calc *backoff.Calculator
	switch cfg.Strategy {
	case DecorrelatedJitter:
		calc = backoff.GetDecorrelatedJitterCalculator()
	default:
		calc = backoff.GetExponentialJitterCalculator()
	}

	return &DefaultRetryPolicy{config: cfg, calculator: calc}
}

// ShouldRetry implements RetryPolicy. attempt is zero-based: attempt 0 is
// the first retry decision after the initial dispatch. With MaxAttempts=0
// the request is dispatched once and never retried (spec §11 decision).
func (p *DefaultRetryPolicy) ShouldRetry(resp *Response, err error, attempt int) (time.Duration, bool) {
	if attempt >= p.config.MaxAttempts {
		return 0, false
	}
	if !p.config.Condition(resp, err) {
		return 0, false
	}

	var delay time.Duration
	if resp != nil && (resp.Status == 429 || resp.Status == 503) {
		delay = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	if delay == 0 {
		delay = p.calculator.Calculate(attempt, p.config.InitialBackoff, p.config.MaxBackoff, p.config.BackoffMultiplier, p.config.Jitter)
	}
	return delay, true
}

// parseRetryAfter parses a Retry-After header in either delay-seconds or
// HTTP-date form, capping the result at 1 hour (spec §4.2).
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds > 0 {
			delay := time.Duration(seconds) * time.Second
			if delay > time.Hour {
				delay = time.Hour
			}
			return delay
		}
	}

	if t, err := http.ParseTime(value); err == nil {
		delay := time.Until(t)
		if delay > 0 && delay <= time.Hour {
			return delay
		}
	}

	return 0
}

// RetryBudget caps the number of retries permitted within a rolling time
// window, independent of any single request's own retry count — protecting
// a downstream from a retry storm across many concurrent requests (spec
// §10 supplemented feature, grounded on retry_policy.go's RetryBudget).
type RetryBudget struct {
	maxRetries  int64
	perWindow   time.Duration
	current     int64
	windowStart int64 // UnixNano
}

// NewRetryBudget constructs a budget allowing maxRetries retries per window.
func NewRetryBudget(maxRetries int, perWindow time.Duration) *RetryBudget {
	return &RetryBudget{
		maxRetries:  int64(maxRetries),
		perWindow:   perWindow,
		windowStart: time.Now().UnixNano(),
	}
}

// Allow reports whether one more retry may be spent from the current
// window, rolling the window over and resetting the count if it has
// elapsed.
func (rb *RetryBudget) Allow() bool {
	now := time.Now().UnixNano()
	windowStart := atomic.LoadInt64(&rb.windowStart)

	if now-windowStart >= int64(rb.perWindow) {
		if atomic.CompareAndSwapInt64(&rb.windowStart, windowStart, now) {
			atomic.StoreInt64(&rb.current, 0)
		}
	}

	current := atomic.LoadInt64(&rb.current)
	if current >= rb.maxRetries {
		return false
	}
	return atomic.AddInt64(&rb.current, 1) <= rb.maxRetries
}

// RetryBudgetStats is a snapshot for introspection.
type RetryBudgetStats struct {
	Current     int64
	Max         int64
	WindowStart time.Time
}

// Stats returns a point-in-time snapshot of the budget.
func (rb *RetryBudget) Stats() RetryBudgetStats {
	return RetryBudgetStats{
		Current:     atomic.LoadInt64(&rb.current),
		Max:         rb.maxRetries,
		WindowStart: time.Unix(0, atomic.LoadInt64(&rb.windowStart)),
	}
}
