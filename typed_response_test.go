package resilient

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSONDecodesBody(t *testing.T) {
	transport := RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"id":7,"name":"a"}`, nil), nil
	})
	c := New(WithBaseURL("https://api.example.com"), WithTransport(transport))

	var out struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	err := c.GetJSON(context.Background(), "/things/7", &out)
	require.NoError(t, err)
	assert.Equal(t, 7, out.ID)
	assert.Equal(t, "a", out.Name)
}

func TestUnmarshalIntoEmptyBodyIsNoOp(t *testing.T) {
	c := New()
	target := map[string]any{"untouched": true}

	err := c.unmarshalInto(&Response{Raw: nil}, &target)
	require.NoError(t, err)
	assert.Equal(t, true, target["untouched"])
}

func TestUnmarshalIntoUsesCustomUnmarshaler(t *testing.T) {
	called := false
	c := New(WithUnmarshaler(unmarshalerFunc(func(data []byte, target any) error {
		called = true
		return nil
	})))

	err := c.unmarshalInto(&Response{Raw: []byte(`{}`)}, &struct{}{})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestJSONCallErrorFormatsHTTPErrorStatus(t *testing.T) {
	transport := RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(400, `{"error":"bad"}`, nil), nil
	})
	c := New(WithBaseURL("https://api.example.com"), WithTransport(transport))

	var out any
	err := c.GetJSON(context.Background(), "/broken", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP error 400")
}

func TestPostJSONToleratesNilBody(t *testing.T) {
	transport := RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		assert.Nil(t, req.Body)
		return jsonResponse(200, `{"ok":true}`, nil), nil
	})
	c := New(WithBaseURL("https://api.example.com"), WithTransport(transport))

	var out struct {
		OK bool `json:"ok"`
	}
	err := c.PostJSON(context.Background(), "/items", nil, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
}

type unmarshalerFunc func(data []byte, target any) error

func (f unmarshalerFunc) Unmarshal(data []byte, target any) error { return f(data, target) }
