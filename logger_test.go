package resilient

import (
	"bytes"
	"log"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSimpleLoggerFormatsLevelAndKeyValues(t *testing.T) {
	var buf bytes.Buffer
	l := &SimpleLogger{out: log.New(&buf, "", 0)}

	l.Info("cache hit", "requestID", "req_1", "status", 200)

	assert.Contains(t, buf.String(), "[INFO] cache hit")
	assert.Contains(t, buf.String(), "requestID=req_1")
	assert.Contains(t, buf.String(), "status=200")
}

func TestSimpleLoggerOddKeyValuesIgnoresTrailing(t *testing.T) {
	var buf bytes.Buffer
	l := &SimpleLogger{out: log.New(&buf, "", 0)}

	l.Warn("partial", "onlyKey")

	assert.Contains(t, buf.String(), "[WARN] partial")
	assert.NotContains(t, buf.String(), "onlyKey=")
}

func TestToStringPrefersStringer(t *testing.T) {
	assert.Equal(t, "plain", toString("plain"))
	assert.Equal(t, "5", toString(5))
	assert.Equal(t, "open", toString(StateOpen))
}

func TestZerologAdapterEmitsKeyValues(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	adapter := NewZerologAdapter(base)

	adapter.Error("dispatch failed", "host", "api.example.com", "attempt", 2)

	out := buf.String()
	assert.Contains(t, out, `"message":"dispatch failed"`)
	assert.Contains(t, out, `"host":"api.example.com"`)
}

func TestDefaultDebugConfigStartsDisabledWithRequestIDGen(t *testing.T) {
	cfg := DefaultDebugConfig()
	assert.False(t, cfg.Enabled)
	assert.NotNil(t, cfg.RequestIDGen)
	assert.Contains(t, cfg.RequestIDGen(), "req_")
}
