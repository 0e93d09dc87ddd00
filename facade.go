package resilient

import (
	"context"
)

// Get issues a GET request for url.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	return c.Do(ctx, &RequestConfig{Method: MethodGet, URL: rawURL})
}

// Post issues a POST request with body.
func (c *Client) Post(ctx context.Context, rawURL string, body any) (*Response, error) {
	return c.Do(ctx, &RequestConfig{Method: MethodPost, URL: rawURL, Body: body})
}

// Put issues a PUT request with body.
func (c *Client) Put(ctx context.Context, rawURL string, body any) (*Response, error) {
	return c.Do(ctx, &RequestConfig{Method: MethodPut, URL: rawURL, Body: body})
}

// Patch issues a PATCH request with body.
func (c *Client) Patch(ctx context.Context, rawURL string, body any) (*Response, error) {
	return c.Do(ctx, &RequestConfig{Method: MethodPatch, URL: rawURL, Body: body})
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, rawURL string) (*Response, error) {
	return c.Do(ctx, &RequestConfig{Method: MethodDelete, URL: rawURL})
}

// Head issues a HEAD request.
func (c *Client) Head(ctx context.Context, rawURL string) (*Response, error) {
	return c.Do(ctx, &RequestConfig{Method: MethodHead, URL: rawURL})
}

// Form issues a multipart/form-data request. data is either an already-built
// *MultipartForm (from NewMultipartForm, for file uploads) or a
// map[string]any promoted into one field-by-field, omitting nil values (spec
// §4.8 form()).
func (c *Client) Form(ctx context.Context, method Method, rawURL string, data any) (*Response, error) {
	form, err := asMultipartForm(data)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, &RequestConfig{Method: method, URL: rawURL, Body: form})
}

// InvalidateCache removes cached entries whose fingerprint matches pattern.
func (c *Client) InvalidateCache(pattern string) (int, error) {
	if c.cache == nil {
		return 0, nil
	}
	return c.cache.Invalidate(pattern)
}

// ClearCache drops every cached entry, in-flight registration, and memo.
func (c *Client) ClearCache() {
	if c.cache != nil {
		c.cache.Clear()
	}
}

// CacheStats reports the cache's current size and counters.
func (c *Client) CacheStats() CacheStats {
	if c.cache == nil {
		return CacheStats{}
	}
	return c.cache.Stats()
}

// BreakerStats reports per-host circuit breaker state.
func (c *Client) BreakerStats() map[string]BreakerStats {
	if c.breakers == nil {
		return nil
	}
	return c.breakers.Snapshot()
}

// ResetBreakers forces every known host's breaker back to closed.
func (c *Client) ResetBreakers() {
	if c.breakers != nil {
		c.breakers.Reset()
	}
}

// IsValid reports whether a configuration error is recorded on the client.
// New and the With* options normalize values instead of recording errors
// (a malformed base URL becomes ""), so clients they build always report
// true; StrictValidate is the check that reports configuration problems.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration error recorded on the client, if
// any. New and the With* options never record one.
func (c *Client) ValidationError() error {
	return c.validationError
}

// Metrics returns the client's metrics collector, or nil if metrics are
// disabled.
func (c *Client) Metrics() *MetricsCollector {
	return c.metrics
}
