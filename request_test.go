package resilient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequestBodyNil(t *testing.T) {
	r, err := buildRequestBody(nil, 0)
	assert.NoError(t, err)
	assert.Nil(t, r)
}

func TestBuildRequestBodyEmptyStringIsNil(t *testing.T) {
	r, err := buildRequestBody("", 0)
	assert.NoError(t, err)
	assert.Nil(t, r)
}

func TestBuildRequestBodyString(t *testing.T) {
	r, err := buildRequestBody("hello", 0)
	require.NoError(t, err)
	data, _ := io.ReadAll(r)
	assert.Equal(t, "hello", string(data))
}

func TestBuildRequestBodyBytes(t *testing.T) {
	r, err := buildRequestBody([]byte("raw"), 0)
	require.NoError(t, err)
	data, _ := io.ReadAll(r)
	assert.Equal(t, "raw", string(data))
}

func TestBuildRequestBodyReaderPassedThrough(t *testing.T) {
	src := bytes.NewReader([]byte("stream"))
	r, err := buildRequestBody(src, 0)
	require.NoError(t, err)
	assert.Same(t, io.Reader(src), r)
}

func TestBuildRequestBodyStructMarshalsJSON(t *testing.T) {
	r, err := buildRequestBody(map[string]int{"n": 1}, 0)
	require.NoError(t, err)
	data, _ := io.ReadAll(r)
	assert.Equal(t, `{"n":1}`, string(data))
}

func TestBuildRequestBodyStringOverLimitRejected(t *testing.T) {
	_, err := buildRequestBody("this body is too long", 5)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestBuildRequestBodyBytesOverLimitRejected(t *testing.T) {
	_, err := buildRequestBody(bytes.Repeat([]byte("a"), 20), 10)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestBuildRequestBodyJSONOverLimitRejected(t *testing.T) {
	_, err := buildRequestBody(map[string]string{"name": "something long enough to exceed the limit"}, 10)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestBuildRequestBodyReaderOverLimitRejected(t *testing.T) {
	src := bytes.NewReader(bytes.Repeat([]byte("a"), 20))
	_, err := buildRequestBody(src, 10)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestBuildRequestBodyWithinLimitAccepted(t *testing.T) {
	r, err := buildRequestBody("short", 10)
	require.NoError(t, err)
	data, _ := io.ReadAll(r)
	assert.Equal(t, "short", string(data))
}

func TestBuildHTTPRequestMultipartSetsBoundaryContentType(t *testing.T) {
	form, err := NewMultipartForm(map[string]any{"name": "alice"}, FormFile{
		FieldName: "avatar",
		FileName:  "a.png",
		Content:   bytes.NewReader([]byte("png-bytes")),
	})
	require.NoError(t, err)

	header := http.Header{"Content-Type": []string{"application/json"}}
	req, err := buildHTTPRequest(context.Background(), &RequestConfig{Method: MethodPost, Body: form}, "https://example.com/upload", header, 0)
	require.NoError(t, err)

	ct := req.Header.Get("Content-Type")
	assert.Contains(t, ct, "multipart/form-data")
	assert.Contains(t, ct, "boundary=")
}

func TestBuildHTTPRequestMultipartOverLimitRejected(t *testing.T) {
	form, err := NewMultipartForm(map[string]any{"name": "a very long value to push this over the limit"})
	require.NoError(t, err)

	_, err = buildHTTPRequest(context.Background(), &RequestConfig{Method: MethodPost, Body: form}, "https://example.com/upload", http.Header{}, 10)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestAsMultipartFormPromotesMap(t *testing.T) {
	form, err := asMultipartForm(map[string]any{"a": 1, "b": nil})
	require.NoError(t, err)
	assert.Contains(t, form.buf.String(), `name="a"`)
	assert.NotContains(t, form.buf.String(), `name="b"`, "nil fields must be omitted")
}

func TestMergeHeadersRequestOverridesDefault(t *testing.T) {
	defaults := http.Header{"Content-Type": []string{"application/json"}, "X-Default": []string{"1"}}
	req := http.Header{"Content-Type": []string{"text/plain"}}

	out := mergeHeaders(defaults, req)

	assert.Equal(t, "text/plain", out.Get("Content-Type"))
	assert.Equal(t, "1", out.Get("X-Default"))
	// originals must not be mutated
	assert.Equal(t, "application/json", defaults.Get("Content-Type"))
}

func TestReadLimitedWithinBoundsSucceeds(t *testing.T) {
	data, err := readLimited(bytes.NewReader([]byte("small")), 100)
	assert.NoError(t, err)
	assert.Equal(t, "small", string(data))
}

func TestReadLimitedOverBoundsErrors(t *testing.T) {
	_, err := readLimited(bytes.NewReader(bytes.Repeat([]byte("a"), 20)), 10)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestReadLimitedNoLimitReadsAll(t *testing.T) {
	data, err := readLimited(bytes.NewReader(bytes.Repeat([]byte("a"), 1000)), 0)
	assert.NoError(t, err)
	assert.Len(t, data, 1000)
}
