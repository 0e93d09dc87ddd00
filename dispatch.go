package resilient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"
)

// dispatchWithRetry sends req through the per-host rate limiter and circuit
// breaker, gating the *entire* retry loop as the breaker's thunk (spec §4.4
// "call(thunk) is the only public operation", §4.7 step 5 "invoke the
// breaker's call with the retry loop as its thunk") so a single logical
// request's internal retries are recorded as one success or failure, never
// tripping or re-probing the breaker mid-retry.
func (c *Client) dispatchWithRetry(ctx context.Context, req *RequestConfig, resolvedURL string, header http.Header, host, endpoint string, start time.Time) (*Response, error) {
	if c.rateLimiters != nil {
		probe, probeErr := http.NewRequest(http.MethodGet, resolvedURL, nil)
		if probeErr != nil {
			probe = &http.Request{Host: host, URL: &url.URL{Host: host}}
		}
		if allowed, key := c.rateLimiters.Allow(probe); !allowed {
			if c.debug != nil && c.debug.Enabled && c.debug.LogRateLimit && c.logger != nil {
				c.logger.Warn("rate limit exceeded", "key", key, "endpoint", endpoint)
			}
			if c.metrics != nil {
				c.metrics.RecordError("RateLimit", string(req.Method), endpoint)
			}
			return nil, ErrRateLimited
		}
	}

	breaker := c.breakers.Get(host)
	resp, err := breaker.Call(func() (*Response, error) {
		return c.retryLoop(ctx, req, resolvedURL, header, host, endpoint, 0, start)
	})

	if c.metrics != nil {
		c.metrics.RecordCircuitBreakerState(host, breaker.Stats().State)
	}
	if errors.Is(err, ErrCircuitOpen) {
		if c.debug != nil && c.debug.Enabled && c.debug.LogCircuit && c.logger != nil {
			c.logger.Warn("circuit breaker open", "host", host, "endpoint", endpoint)
		}
		if c.metrics != nil {
			c.metrics.RecordError("CircuitBreaker", string(req.Method), endpoint)
		}
	}

	return resp, err
}

// retryLoop dispatches req, retrying according to c.retryPolicy and the
// overall timeout, independent of the circuit breaker (spec §4.2, §4.7;
// grounded on client.go's doWithRetry, with breaker gating hoisted out to
// dispatchWithRetry per the Call-wraps-the-whole-loop invariant above).
func (c *Client) retryLoop(ctx context.Context, req *RequestConfig, resolvedURL string, header http.Header, host, endpoint string, attempt int, start time.Time) (*Response, error) {
	if attempt > 0 && c.debug != nil && c.debug.Enabled && c.debug.LogRetries && c.logger != nil {
		c.logger.Info("retry attempt", "attempt", attempt, "endpoint", endpoint)
	}
	if attempt > 0 && c.metrics != nil {
		c.metrics.RecordRetry(string(req.Method), endpoint, attempt)
	}

	resp, err := c.dispatchOnce(ctx, req, resolvedURL, header)

	if c.metrics != nil {
		if err != nil {
			c.metrics.RecordError("Network", string(req.Method), endpoint)
		} else if resp != nil && resp.Status >= 500 {
			c.metrics.RecordError("Server", string(req.Method), endpoint)
		}
	}

	var shouldRetry bool
	var delay time.Duration
	if c.retryPolicy != nil {
		delay, shouldRetry = c.retryPolicy.ShouldRetry(resp, err, attempt)
	}

	if shouldRetry {
		if c.retryBudget != nil && !c.retryBudget.Allow() {
			if c.metrics != nil {
				c.metrics.RecordRetryBudgetExceeded(host)
			}
			return nil, ErrRetryBudgetExceeded
		}

		if c.debug != nil && c.debug.Enabled && c.debug.LogRetries && c.logger != nil {
			c.logger.Info("scheduling retry", "attempt", attempt+1, "backoff", delay, "endpoint", endpoint)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &CancellationError{URL: resolvedURL, Cause: ctx.Err()}
		}
		return c.retryLoop(ctx, req, resolvedURL, header, host, endpoint, attempt+1, start)
	}

	return resp, err
}

// dispatchOnce performs a single wire round trip and decodes the result,
// mapping context cancellation/deadline to CancellationError/TimeoutError
// rather than a bare context error (spec §11 decision).
func (c *Client) dispatchOnce(ctx context.Context, req *RequestConfig, resolvedURL string, header http.Header) (*Response, error) {
	httpReq, err := buildHTTPRequest(ctx, req, resolvedURL, header.Clone(), c.maxRequestSize)
	if err != nil {
		return nil, err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	httpReq, cancel := withRequestTimeout(httpReq, timeout)
	defer cancel()

	transport := c.transport
	if len(c.middleware) > 0 {
		transport = chainMiddleware(transport, c.middleware)
	}

	httpResp, err := transport.RoundTrip(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return nil, &TimeoutError{URL: resolvedURL, Timeout: timeout}
			}
			return nil, &CancellationError{URL: resolvedURL, Cause: ctx.Err()}
		}
		if httpReq.Context().Err() == context.DeadlineExceeded {
			return nil, &TimeoutError{URL: resolvedURL, Timeout: timeout}
		}
		return nil, &NetworkError{URL: resolvedURL, Cause: err}
	}

	resp, err := c.decodeResponse(httpResp, resolvedURL, req.RespType)
	var httpErr *HTTPError
	if err != nil && !errors.As(err, &httpErr) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if ctxErr == context.DeadlineExceeded {
				return nil, &TimeoutError{URL: resolvedURL, Timeout: timeout}
			}
			return nil, &CancellationError{URL: resolvedURL, Cause: ctxErr}
		}
		if httpReq.Context().Err() == context.DeadlineExceeded {
			return nil, &TimeoutError{URL: resolvedURL, Timeout: timeout}
		}
	}
	return resp, err
}

// decodeResponse converts a wire response into the pipeline's Response type,
// enforcing the configured response size ceiling (spec §4.2, §4.6).
func (c *Client) decodeResponse(httpResp *http.Response, resolvedURL string, respType ResponseType) (*Response, error) {
	defer httpResp.Body.Close()

	raw, err := readLimited(httpResp.Body, c.maxResponseSize)
	if err != nil {
		if err == ErrBodyTooLarge {
			return nil, err
		}
		return nil, &NetworkError{URL: resolvedURL, Cause: err}
	}

	resp := &Response{
		Success:    httpResp.StatusCode >= 200 && httpResp.StatusCode < 300,
		Status:     httpResp.StatusCode,
		StatusText: httpResp.Status,
		Header:     httpResp.Header.Clone(),
		URL:        resolvedURL,
		Raw:        raw,
		ETag:       httpResp.Header.Get("ETag"),
	}

	if httpResp.StatusCode >= 400 {
		return resp, &HTTPError{Status: httpResp.StatusCode, StatusText: httpResp.Status, URL: resolvedURL, Response: resp}
	}

	if err := decodeResponseData(resp, respType, c.unmarshaler); err != nil {
		return resp, err
	}

	return resp, nil
}

func decodeResponseData(resp *Response, respType ResponseType, unmarshaler Unmarshaler) error {
	if len(resp.Raw) == 0 {
		return nil
	}

	rt := respType
	if rt == "" || rt == ResponseAuto {
		if isJSONContentType(resp.Header.Get("Content-Type")) {
			rt = ResponseJSON
		} else {
			rt = ResponseText
		}
	}

	switch rt {
	case ResponseJSON:
		var data any
		if unmarshaler != nil {
			if err := unmarshaler.Unmarshal(resp.Raw, &data); err != nil {
				return err
			}
		} else if err := json.Unmarshal(resp.Raw, &data); err != nil {
			return err
		}
		resp.Data = data
	case ResponseText:
		resp.Data = string(resp.Raw)
	case ResponseBlob, ResponseArrayBuffer, ResponseStream:
		resp.Data = resp.Raw
	}
	return nil
}

// conditionalHeaders layers If-None-Match/If-Modified-Since onto base for a
// revalidation request, without mutating the caller's header map (spec
// §4.3's stale-while-revalidate, §4.7 step 3g).
func conditionalHeaders(base http.Header, entry *CacheEntry) http.Header {
	h := base.Clone()
	if entry.ETag != "" {
		h.Set("If-None-Match", entry.ETag)
	}
	if entry.LastModified != nil {
		h.Set("If-Modified-Since", entry.LastModified.UTC().Format(http.TimeFormat))
	}
	return h
}

// revalidate issues a conditional GET for a stale cache entry in the
// background: a 304 extends the entry's freshness window, a fresh 2xx
// replaces it, and any error is swallowed since the original caller already
// received the stale response (spec §4.3 stale-while-revalidate).
func (c *Client) revalidate(ctx context.Context, req *RequestConfig, fingerprint, resolvedURL string, header http.Header, entry *CacheEntry) {
	condHeader := conditionalHeaders(header, entry)
	resp, err := c.dispatchOnce(ctx, req, resolvedURL, condHeader)
	if err != nil {
		if c.debug != nil && c.debug.Enabled && c.debug.LogCache && c.logger != nil {
			c.logger.Warn("revalidation failed", "url", resolvedURL, "error", err.Error())
		}
		return
	}
	if resp.Status == http.StatusNotModified {
		c.cache.Refresh(fingerprint)
		return
	}
	if resp.Status < 400 {
		c.cache.Set(fingerprint, resp, 0, resp.ETag)
	}
}

func isJSONContentType(ct string) bool {
	for _, want := range []string{"application/json", "+json"} {
		if len(ct) >= len(want) {
			for i := 0; i+len(want) <= len(ct); i++ {
				if ct[i:i+len(want)] == want {
					return true
				}
			}
		}
	}
	return false
}

