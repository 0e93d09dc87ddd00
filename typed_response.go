package resilient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Unmarshaler decodes a JSON response body into target, letting a caller
// substitute a non-standard JSON implementation (spec §10 supplemented
// feature; this file's implementation is reconstructed from call-site usage
// since no surviving source carried it, only its test expectations).
type Unmarshaler interface {
	Unmarshal(data []byte, target any) error
}

type jsonUnmarshaler struct{}

func (jsonUnmarshaler) Unmarshal(data []byte, target any) error {
	return json.Unmarshal(data, target)
}

// TypedResponse pairs a decoded value with the underlying Response metadata
// (status, headers) for callers who need both.
type TypedResponse[T any] struct {
	Response *Response
	Value    T
}

// GetJSON issues a GET and unmarshals the JSON body into target. An empty
// body is not an error; target is left unchanged.
func (c *Client) GetJSON(ctx context.Context, rawURL string, target any) error {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return jsonCallError(resp, err)
	}
	return c.unmarshalInto(resp, target)
}

// PostJSON issues a POST with body JSON-encoded and unmarshals the response
// into target. A nil body is tolerated and sent as no body at all.
func (c *Client) PostJSON(ctx context.Context, rawURL string, body any, target any) error {
	resp, err := c.Post(ctx, rawURL, body)
	if err != nil {
		return jsonCallError(resp, err)
	}
	return c.unmarshalInto(resp, target)
}

// GetTyped issues a GET and returns both the decoded value and response
// metadata.
func (c *Client) GetTyped(ctx context.Context, rawURL string, target any) (*TypedResponse[any], error) {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, jsonCallError(resp, err)
	}
	if err := c.unmarshalInto(resp, target); err != nil {
		return nil, err
	}
	return &TypedResponse[any]{Response: resp, Value: target}, nil
}

// PostTyped issues a POST and returns both the decoded value and response
// metadata.
func (c *Client) PostTyped(ctx context.Context, rawURL string, body any, target any) (*TypedResponse[any], error) {
	resp, err := c.Post(ctx, rawURL, body)
	if err != nil {
		return nil, jsonCallError(resp, err)
	}
	if err := c.unmarshalInto(resp, target); err != nil {
		return nil, err
	}
	return &TypedResponse[any]{Response: resp, Value: target}, nil
}

// DoJSON executes req through the full pipeline and unmarshals the response
// body into target.
func (c *Client) DoJSON(ctx context.Context, req *RequestConfig, target any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return jsonCallError(resp, err)
	}
	return c.unmarshalInto(resp, target)
}

func (c *Client) unmarshalInto(resp *Response, target any) error {
	if len(resp.Raw) == 0 {
		return nil
	}
	u := c.unmarshaler
	if u == nil {
		u = jsonUnmarshaler{}
	}
	if err := u.Unmarshal(resp.Raw, target); err != nil {
		return fmt.Errorf("resilient: failed to unmarshal response: %w", err)
	}
	return nil
}

// jsonCallError surfaces an HTTPError's status in the returned error text so
// a caller string-matching "HTTP error 400" (a common pattern in hand-rolled
// client wrappers) still gets a recognizable message from the typed API.
func jsonCallError(resp *Response, err error) error {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return fmt.Errorf("resilient: HTTP error %d %s for %s", httpErr.Status, httpErr.StatusText, httpErr.URL)
	}
	return err
}
