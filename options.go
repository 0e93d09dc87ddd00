package resilient

import (
	"fmt"
	"net/http"
	"time"
)

// New constructs a Client from functional options. Configuration is
// normalized by clamping out-of-range values to sane defaults rather than
// failing construction (spec §4.1, a deliberate redesign from the teacher's
// reject-with-error ValidateConfiguration). Call StrictValidate afterward
// for callers who want fail-fast semantics instead.
func New(options ...Option) *Client {
	c := &Client{
		defaultHeaders:  normalizeDefaultHeaders(http.Header{}),
		timeout:         defaultTimeout,
		authHeaders:     defaultAuthHeaders(),
		transport:       NewDefaultTransport(defaultTimeout),
		retryPolicy:     NewDefaultRetryPolicy(RetryConfig{MaxAttempts: defaultRetryAttempts}),
		breakers:        NewCircuitBreakerRegistry(CircuitBreakerConfig{FailureThreshold: defaultFailureThreshold, ResetTimeout: defaultResetTimeout}),
		cache:           NewCache(defaultCacheSize, defaultCacheTTL),
		cacheCondition:  nil, // caching storage is opt-in; WithCache/WithCacheCondition enable it
		dedupCondition:  nil, // disabled by default; WithDeduplication enables it
		debug:           DefaultDebugConfig(),
		maxRequestSize:  defaultMaxRequestSize,
		maxResponseSize: defaultMaxResponseSize,
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// WithBaseURL sets the base URL relative URLs resolve against. An invalid
// value normalizes to "" (no base URL) rather than erroring.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = normalizeBaseURL(base) }
}

// WithDefaultHeader adds a default header sent with every request unless
// overridden per-request.
func WithDefaultHeader(key, value string) Option {
	return func(c *Client) { c.defaultHeaders.Add(key, value) }
}

// WithTimeout sets the overall per-request timeout, clamped to
// [100ms, 300s].
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = clampDuration(d, minTimeout, maxTimeout, defaultTimeout)
		c.transport = NewDefaultTransport(c.timeout)
	}
}

// WithAuthHeaders overrides which header names are considered auth-relevant
// for cache fingerprinting (spec §3).
func WithAuthHeaders(names ...string) Option {
	return func(c *Client) { c.authHeaders = names }
}

// WithTransport installs a custom Transport instead of the default
// *http.Client-backed one.
func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithHTTPClient installs a custom *http.Client, wrapped as the Transport.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.transport = &DefaultTransport{client: client} }
}

// WithMiddleware appends Transport-wrapping middleware, composed outermost
// first (spec §4.5).
func WithMiddleware(mws ...Middleware) Option {
	return func(c *Client) { c.middleware = append(c.middleware, mws...) }
}

// WithRequestInterceptor appends a request interceptor, run in registration
// order before dispatch.
func WithRequestInterceptor(ic RequestInterceptor) Option {
	return func(c *Client) { c.interceptors.request = append(c.interceptors.request, ic) }
}

// WithResponseInterceptor appends a response interceptor, run in
// registration order after dispatch (including on cache hits).
func WithResponseInterceptor(ic ResponseInterceptor) Option {
	return func(c *Client) { c.interceptors.response = append(c.interceptors.response, ic) }
}

// WithErrorInterceptor appends an error interceptor, given a chance to
// recover a terminal error with a substitute response.
func WithErrorInterceptor(ic ErrorInterceptor) Option {
	return func(c *Client) { c.interceptors.onError = append(c.interceptors.onError, ic) }
}

// WithRetry configures the default retry policy from cfg.
func WithRetry(cfg RetryConfig) Option {
	return func(c *Client) { c.retryPolicy = NewDefaultRetryPolicy(cfg) }
}

// WithRetryPolicy installs a custom RetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retryPolicy = p }
}

// WithRetryBudget caps total retries per rolling window across all requests.
func WithRetryBudget(maxRetries int, perWindow time.Duration) Option {
	return func(c *Client) { c.retryBudget = NewRetryBudget(maxRetries, perWindow) }
}

// WithCircuitBreaker configures the per-host circuit breaker template.
func WithCircuitBreaker(cfg CircuitBreakerConfig) Option {
	return func(c *Client) { c.breakers = NewCircuitBreakerRegistry(cfg) }
}

// WithCache enables caching with the given bounds.
func WithCache(maxSize int, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = NewCache(maxSize, ttl)
		c.cacheCondition = DefaultCacheCondition
	}
}

// WithCacheCondition sets a custom cache-eligibility predicate.
func WithCacheCondition(fn CacheCondition) Option {
	return func(c *Client) { c.cacheCondition = fn }
}

// WithDeduplication enables in-flight request coalescing using the default
// condition (safe, idempotent methods).
func WithDeduplication() Option {
	return func(c *Client) { c.dedupCondition = DefaultDeduplicationCondition }
}

// WithDeduplicationCondition enables coalescing with a custom predicate.
func WithDeduplicationCondition(fn DeduplicationCondition) Option {
	return func(c *Client) { c.dedupCondition = fn }
}

// WithRateLimiter installs a single global rate limiter applied to every
// host.
func WithRateLimiter(limiter Limiter) Option {
	return func(c *Client) {
		c.rateLimiters = NewRateLimiterRegistry(nil, limiter)
	}
}

// WithRateLimiterRegistry installs a per-key rate limiter registry (e.g.
// keyed by DefaultHostKeyFunc for per-host limiting).
func WithRateLimiterRegistry(reg *RateLimiterRegistry) Option {
	return func(c *Client) { c.rateLimiters = reg }
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) { c.metrics = NewMetricsCollector() }
}

// WithMetricsCollector installs a custom metrics collector.
func WithMetricsCollector(mc *MetricsCollector) Option {
	return func(c *Client) { c.metrics = mc }
}

// WithDebug enables debug logging with default stage flags.
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig installs a custom debug configuration.
func WithDebugConfig(cfg *DebugConfig) Option {
	return func(c *Client) { c.debug = cfg }
}

// WithLogger installs a custom Logger for debug output.
func WithLogger(logger Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithSimpleLogger enables debug logging backed by SimpleLogger.
func WithSimpleLogger() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithUnmarshaler installs a custom Unmarshaler for the typed JSON API.
func WithUnmarshaler(u Unmarshaler) Option {
	return func(c *Client) { c.unmarshaler = u }
}

// WithMaxRequestSize caps outbound request body size; 0 disables the check.
func WithMaxRequestSize(n int64) Option {
	return func(c *Client) { c.maxRequestSize = n }
}

// WithMaxResponseSize caps inbound response body size; 0 disables the check.
func WithMaxResponseSize(n int64) Option {
	return func(c *Client) { c.maxResponseSize = n }
}

// Create returns a fresh *Client that inherits c's normalized settings
// (base URL, headers, timeout, transport, retry policy, debug/metrics
// config, size ceilings) with overrides applied on top, but owns its own
// Cache and CircuitBreakerRegistry rather than sharing the parent's (spec §3
// Lifecycle: "create() yields a fresh instance with its own owned state";
// §4.8 "create(options) produces a new instance inheriting the parent's
// settings with overrides applied"). Middleware and interceptor slices are
// copied, not shared, so appending to the child via With* options never
// mutates the parent's chain.
func (c *Client) Create(options ...Option) *Client {
	child := &Client{
		baseURL:        c.baseURL,
		defaultHeaders: c.defaultHeaders.Clone(),
		timeout:        c.timeout,
		authHeaders:    append([]string(nil), c.authHeaders...),

		transport:  c.transport,
		middleware: append([]Middleware(nil), c.middleware...),

		retryPolicy: c.retryPolicy,
		retryBudget: c.retryBudget,

		cacheCondition: c.cacheCondition,
		dedupCondition: c.dedupCondition,

		rateLimiters: c.rateLimiters,

		metrics: c.metrics,
		debug:   c.debug,
		logger:  c.logger,

		unmarshaler: c.unmarshaler,

		maxRequestSize:  c.maxRequestSize,
		maxResponseSize: c.maxResponseSize,
	}

	if c.breakers != nil {
		child.breakers = NewCircuitBreakerRegistry(c.breakers.template)
	} else {
		child.breakers = NewCircuitBreakerRegistry(CircuitBreakerConfig{FailureThreshold: defaultFailureThreshold, ResetTimeout: defaultResetTimeout})
	}
	if c.cache != nil {
		child.cache = NewCache(c.cache.maxSize, c.cache.ttl)
	} else {
		child.cache = NewCache(defaultCacheSize, defaultCacheTTL)
	}

	child.interceptors.request = append([]RequestInterceptor(nil), c.interceptors.request...)
	child.interceptors.response = append([]ResponseInterceptor(nil), c.interceptors.response...)
	child.interceptors.onError = append([]ErrorInterceptor(nil), c.interceptors.onError...)

	for _, opt := range options {
		opt(child)
	}

	return child
}

// StrictValidate re-checks the client's configuration and returns an error
// describing every problem found, for callers who want fail-fast semantics
// instead of New's clamp-and-continue default (spec §4.1, grounded on
// options.go's ValidateConfiguration/validateExtremeValues).
func (c *Client) StrictValidate() error {
	var problems []string

	if c.transport == nil {
		problems = append(problems, "transport cannot be nil")
	}
	if c.timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}
	if c.timeout > 10*time.Minute {
		problems = append(problems, "timeout > 10m may cause requests to hang for too long")
	}
	if c.cache != nil && c.cache.ttl > 24*time.Hour {
		problems = append(problems, "cache TTL > 24h may cause stale data issues")
	}
	if c.debug != nil && c.debug.Enabled && c.logger == nil {
		problems = append(problems, "logger must be set when debug logging is enabled")
	}
	for i, mw := range c.middleware {
		if mw == nil {
			problems = append(problems, fmt.Sprintf("middleware[%d] cannot be nil", i))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("resilient: invalid client configuration: %v", problems)
	}
	return nil
}
