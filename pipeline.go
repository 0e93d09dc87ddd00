package resilient

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a resilient HTTP client layering retry/backoff, response
// caching, per-host circuit breaking, in-flight request coalescing, an
// interceptor pipeline, and cancellation control around a pluggable
// Transport (spec §1 OVERVIEW). It is safe for concurrent use.
type Client struct {
	baseURL        string
	defaultHeaders http.Header
	timeout        time.Duration
	authHeaders    []string

	transport  Transport
	middleware []Middleware

	retryPolicy RetryPolicy
	retryBudget *RetryBudget

	breakers *CircuitBreakerRegistry

	cache          *Cache
	cacheCondition CacheCondition

	dedupCondition DeduplicationCondition

	rateLimiters *RateLimiterRegistry

	interceptors interceptorChain

	metrics *MetricsCollector
	debug   *DebugConfig
	logger  Logger

	unmarshaler Unmarshaler

	maxRequestSize  int64
	maxResponseSize int64

	validationError error
}

// getEndpoint returns a simplified host+path string used as a metrics label
// (spec §4.7, grounded on client.go's getEndpointFromRequest).
func getEndpoint(u *url.URL) string {
	if u == nil {
		return "unknown"
	}
	var b strings.Builder
	b.WriteString(u.Host)
	if u.Path != "" && u.Path != "/" {
		b.WriteString(u.Path)
	} else {
		b.WriteByte('/')
	}
	return b.String()
}

// Do executes req through the full resilience pipeline: request
// interceptors, cache lookup, in-flight coalescing, rate limiting, per-host
// circuit breaking, retrying transport dispatch, cache population,
// and response/error interceptors (spec §4.7, §5).
func (c *Client) Do(ctx context.Context, req *RequestConfig) (*Response, error) {
	if req.Context != nil {
		ctx = req.Context
	}
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()

	req, err := c.interceptors.runRequest(ctx, req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordInterceptorError("request", "", "")
		}
		return c.recoverOrFail(ctx, req, err)
	}

	resolvedURL, err := buildURL(c.baseURL, req.URL, req.Params)
	if err != nil {
		return c.recoverOrFail(ctx, req, err)
	}
	parsed, _ := url.Parse(resolvedURL)
	endpoint := getEndpoint(parsed)
	host := ""
	if parsed != nil {
		host = parsed.Host
	}

	header := mergeHeaders(c.defaultHeaders, req.Header)

	if c.debug != nil && c.debug.Enabled && c.debug.LogRequests && c.logger != nil {
		c.logger.Debug("starting request", "method", string(req.Method), "url", resolvedURL)
	}
	if c.metrics != nil {
		c.metrics.RecordRequestStart(string(req.Method), endpoint)
		defer c.metrics.RecordRequestEnd(string(req.Method), endpoint)
	}

	fingerprint := Fingerprint(string(req.Method), resolvedURL, req.Params, header, c.authHeaders, c.cache.memo)

	cacheEnabled := c.cacheEnabledFor(ctx, req)
	if cacheEnabled {
		if entry, ok := c.cache.Get(fingerprint); ok {
			if c.metrics != nil {
				c.metrics.RecordCacheHit(string(req.Method), endpoint)
				c.metrics.RecordRequest(string(req.Method), endpoint, entry.Response.Status, time.Since(start))
			}
			resp := cloneResponse(entry.Response)
			resp.FromCache = true
			if entry.IsStale {
				go c.revalidate(context.Background(), req, fingerprint, resolvedURL, header, entry)
			}
			return c.interceptors.runResponse(ctx, resp)
		}
		if c.metrics != nil {
			c.metrics.RecordCacheMiss(string(req.Method), endpoint)
		}
	}

	dedupEnabled := c.dedupCondition != nil && c.dedupCondition(req)
	if dedupEnabled {
		entry, owner := c.cache.GetOrRegisterInFlight(fingerprint)
		if !owner {
			resp, err := entry.wait(ctx)
			if c.metrics != nil {
				c.metrics.RecordDeduplicationHit(string(req.Method), endpoint)
			}
			if err != nil {
				return c.recoverOrFail(ctx, req, err)
			}
			return c.interceptors.runResponse(ctx, resp)
		}
	}

	resp, dispatchErr := c.dispatchWithRetry(ctx, req, resolvedURL, header, host, endpoint, start)

	if dedupEnabled {
		c.cache.SettleInFlight(fingerprint, resp, dispatchErr)
	}

	if c.metrics != nil {
		status := 0
		if resp != nil {
			status = resp.Status
		}
		c.metrics.RecordRequest(string(req.Method), endpoint, status, time.Since(start))
	}

	if dispatchErr != nil {
		return c.recoverOrFail(ctx, req, dispatchErr)
	}

	if cacheEnabled && resp.Status < 400 {
		c.storeInCache(ctx, fingerprint, resp, req)
	}

	return c.interceptors.runResponse(ctx, resp)
}

// recoverOrFail gives the error interceptor chain a chance to substitute a
// response before propagating err to the caller (spec §4.5).
func (c *Client) recoverOrFail(ctx context.Context, req *RequestConfig, err error) (*Response, error) {
	resp, finalErr := c.interceptors.runError(ctx, req, err)
	if resp != nil {
		return resp, nil
	}
	return nil, finalErr
}

// cacheEnabledFor resolves whether caching applies to req, honoring a
// per-request context override over the client-wide condition (spec §3
// "Per-request cache override"). Caching is opt-in: a nil cacheCondition
// (the default until WithCache/WithCacheCondition is used) means disabled,
// mirroring the teacher's nil-cache-by-default convention even though the
// Cache instance itself always exists here to back in-flight coalescing.
func (c *Client) cacheEnabledFor(ctx context.Context, req *RequestConfig) bool {
	if req.Cache != nil {
		return *req.Cache
	}
	if cc, ok := ctx.Value(cacheControlKey).(*CacheControl); ok {
		return cc.Enabled
	}
	if c.cacheCondition == nil {
		return false
	}
	return c.cacheCondition(req)
}

// cacheTTLFor resolves the TTL to store a response under, honoring a
// per-request override over the cache's own default.
func (c *Client) cacheTTLFor(ctx context.Context, req *RequestConfig) time.Duration {
	if req.Cache != nil {
		// explicit bool override carries no TTL of its own
	}
	if cc, ok := ctx.Value(cacheControlKey).(*CacheControl); ok && cc.TTL > 0 {
		return cc.TTL
	}
	return 0 // Cache.Set treats <=0 as "use cache default"
}

func (c *Client) storeInCache(ctx context.Context, fingerprint string, resp *Response, req *RequestConfig) {
	ttl := c.cacheTTLFor(ctx, req)
	c.cache.Set(fingerprint, resp, ttl, resp.ETag)
	if c.metrics != nil {
		c.metrics.RecordCacheSize("default", c.cache.Stats().Size)
	}
}

// DefaultCacheCondition caches only GET requests (spec §3, grounded on
// cache.go's DefaultCacheCondition).
func DefaultCacheCondition(req *RequestConfig) bool {
	return req.Method == MethodGet
}

func cloneResponse(resp *Response) *Response {
	cp := *resp
	cp.Header = resp.Header.Clone()
	return &cp
}
