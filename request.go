package resilient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// buildHTTPRequest turns a RequestConfig plus a resolved URL and merged
// header set into a wire-level *http.Request (spec §4.6/§4.7). This has no
// teacher equivalent — client.go only ever accepts a pre-built *http.Request
// — so JSON/string/byte/reader bodies are encoded here the way encoding/json
// is used throughout the pack (e.g. cache.go's entry (de)serialization).
func buildHTTPRequest(ctx context.Context, cfg *RequestConfig, resolvedURL string, header http.Header, maxRequestSize int64) (*http.Request, error) {
	body, err := buildRequestBody(cfg.Body, maxRequestSize)
	if err != nil {
		if err == ErrBodyTooLarge {
			return nil, err
		}
		return nil, fmt.Errorf("resilient: failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, string(cfg.Method), resolvedURL, body)
	if err != nil {
		return nil, fmt.Errorf("resilient: failed to build request: %w", err)
	}
	req.Header = header
	if form, ok := cfg.Body.(*MultipartForm); ok {
		req.Header.Set("Content-Type", form.contentType)
	}
	return req, nil
}

// buildRequestBody accepts nil, string, []byte, io.Reader, *MultipartForm, or
// any other value (marshaled as JSON), matching the loose Body type
// RequestConfig exposes (spec §3). A body whose size is known up front is
// rejected before a request is ever built when it exceeds maxRequestSize
// (spec §4.6: "request bodies exceeding maxRequestSize are rejected before
// dispatch"); maxRequestSize <= 0 disables the check, mirroring
// readLimited's own sentinel.
func buildRequestBody(body any, maxRequestSize int64) (io.Reader, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		if maxRequestSize > 0 && int64(len(v)) > maxRequestSize {
			return nil, ErrBodyTooLarge
		}
		return bytes.NewReader([]byte(v)), nil
	case []byte:
		if len(v) == 0 {
			return nil, nil
		}
		if maxRequestSize > 0 && int64(len(v)) > maxRequestSize {
			return nil, ErrBodyTooLarge
		}
		return bytes.NewReader(v), nil
	case *MultipartForm:
		if maxRequestSize > 0 && int64(v.buf.Len()) > maxRequestSize {
			return nil, ErrBodyTooLarge
		}
		return bytes.NewReader(v.buf.Bytes()), nil
	case io.Reader:
		if maxRequestSize <= 0 {
			return v, nil
		}
		// Length is unknown up front for an arbitrary reader, so the limit is
		// enforced by reading it fully now rather than by content-length
		// inspection (grounded on readLimited's own read-then-check shape).
		data, err := readLimited(v, maxRequestSize)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(data), nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		if maxRequestSize > 0 && int64(len(encoded)) > maxRequestSize {
			return nil, ErrBodyTooLarge
		}
		return bytes.NewReader(encoded), nil
	}
}

// mergeHeaders layers req on top of defaults, without mutating either.
func mergeHeaders(defaults, req http.Header) http.Header {
	out := make(http.Header, len(defaults)+len(req))
	for k, vs := range defaults {
		for _, v := range vs {
			out.Add(k, v)
		}
	}
	for k, vs := range req {
		out.Del(k)
		for _, v := range vs {
			out.Add(k, v)
		}
	}
	return out
}

// readLimited reads r up to limit+1 bytes, returning ErrBodyTooLarge if the
// body turns out to exceed limit (spec §4.2: request/response size ceilings).
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	lr := io.LimitReader(r, limit+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrBodyTooLarge
	}
	return data, nil
}
