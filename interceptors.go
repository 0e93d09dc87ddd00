package resilient

import "context"

// RequestInterceptor observes or rewrites a request before dispatch. Returning
// a non-nil *RequestConfig replaces the request passed to the next
// interceptor (and eventually the pipeline); returning an error aborts the
// request without ever reaching the transport (spec §4.5).
type RequestInterceptor func(ctx context.Context, req *RequestConfig) (*RequestConfig, error)

// ResponseInterceptor observes or rewrites a response after dispatch,
// including responses served from cache (spec §11: cache hits ARE observed
// by response interceptors, since a caller-installed interceptor has no way
// to distinguish a structurally valid response's origin).
type ResponseInterceptor func(ctx context.Context, resp *Response) (*Response, error)

// ErrorInterceptor observes or replaces a terminal error after every retry
// attempt has been exhausted. Returning a non-nil *Response recovers the
// call with that response instead of propagating the error (spec §4.5).
type ErrorInterceptor func(ctx context.Context, req *RequestConfig, err error) (*Response, error)

// interceptorChain holds the three independent, insertion-ordered pipelines
// described in spec §4.5. Each chain runs in registration order; a chain is
// a NEW orchestration-level concept layered above the teacher's single
// Middleware hook, which only wraps the transport round trip.
type interceptorChain struct {
	request  []RequestInterceptor
	response []ResponseInterceptor
	onError  []ErrorInterceptor
}

func (c *interceptorChain) runRequest(ctx context.Context, req *RequestConfig) (*RequestConfig, error) {
	for _, ic := range c.request {
		next, err := ic(ctx, req)
		if err != nil {
			return nil, err
		}
		if next != nil {
			req = next
		}
	}
	return req, nil
}

func (c *interceptorChain) runResponse(ctx context.Context, resp *Response) (*Response, error) {
	for _, ic := range c.response {
		next, err := ic(ctx, resp)
		if err != nil {
			return nil, err
		}
		if next != nil {
			resp = next
		}
	}
	return resp, nil
}

// runError gives every error interceptor a chance to recover the call with
// a substitute response. The first interceptor to return a non-nil response
// wins; later interceptors in the chain are skipped.
func (c *interceptorChain) runError(ctx context.Context, req *RequestConfig, err error) (*Response, error) {
	for _, ic := range c.onError {
		resp, recovered := ic(ctx, req, err)
		if resp != nil {
			return resp, nil
		}
		if recovered != nil {
			err = recovered
		}
	}
	return nil, err
}
