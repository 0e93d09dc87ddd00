package resilient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClampDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, clampDuration(5*time.Second, time.Second, 10*time.Second, time.Second))
	assert.Equal(t, time.Second, clampDuration(0, time.Second, 10*time.Second, time.Second))
	assert.Equal(t, time.Second, clampDuration(-1, time.Second, 10*time.Second, time.Second))
	assert.Equal(t, time.Second, clampDuration(100*time.Millisecond, time.Second, 10*time.Second, time.Second), "below lo clamps to lo")
	assert.Equal(t, 10*time.Second, clampDuration(time.Hour, time.Second, 10*time.Second, time.Second), "above hi clamps to hi")
}

func TestClampInt(t *testing.T) {
	assert.Equal(t, 5, clampInt(5, 1, 10))
	assert.Equal(t, 1, clampInt(0, 1, 10), "below lo clamps to lo")
	assert.Equal(t, 1, clampInt(-1, 1, 10), "negative clamps to lo")
	assert.Equal(t, 10, clampInt(100, 1, 10), "above hi clamps to hi")
}

func TestNormalizeBaseURL(t *testing.T) {
	assert.Equal(t, "https://api.example.com", normalizeBaseURL("https://api.example.com/"))
	assert.Equal(t, "", normalizeBaseURL(""))
	assert.Equal(t, "", normalizeBaseURL("not a url"))
	assert.Equal(t, "", normalizeBaseURL("ftp://example.com"))
}

func TestNormalizeDefaultHeadersAddsJSONContentType(t *testing.T) {
	h := normalizeDefaultHeaders(nil)
	assert.Equal(t, "application/json", h.Get("Content-Type"))
}
