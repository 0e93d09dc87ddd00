package resilient

import (
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
)

// Logger is the structured debug-logging hook the pipeline calls into at
// each stage (dedup, cache, retry, circuit breaker, rate limiter). Calls
// pass an even number of key/value pairs after the message, matching the
// variadic call sites throughout the pipeline (e.g.
// logger.Debug("cache hit", "requestID", id, "cacheKey", key)).
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

// DebugConfig toggles which pipeline stages emit debug logging, so a caller
// can turn on retry/cache/circuit tracing without drowning in request-level
// noise (spec §4.7 "observability hooks").
type DebugConfig struct {
	Enabled      bool
	LogRequests  bool
	LogCache     bool
	LogRetries   bool
	LogCircuit   bool
	LogRateLimit bool
	// RequestIDGen, if set, produces a correlation ID attached to every log
	// line for a single request's lifecycle.
	RequestIDGen func() string
}

// DefaultDebugConfig returns logging disabled, with request-ID generation
// wired to generateRequestID so enabling it later needs no further setup.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:      false,
		LogRequests:  true,
		LogCache:     true,
		LogRetries:   true,
		LogCircuit:   true,
		LogRateLimit: true,
		RequestIDGen: generateRequestID,
	}
}

// generateRequestID produces a short, prefixed correlation ID for a single
// request's debug trace.
func generateRequestID() string {
	return "req_" + uuid.NewString()
}

// SimpleLogger writes leveled, key/value lines to the standard library
// logger. WithSimpleLogger installs it; no Logger is installed by default,
// so enabling debug logging without one produces no output.
type SimpleLogger struct {
	out *log.Logger
}

// NewSimpleLogger constructs a SimpleLogger writing to stderr.
func NewSimpleLogger() *SimpleLogger {
	return &SimpleLogger{out: log.New(os.Stderr, "", log.LstdFlags)}
}

func (l *SimpleLogger) Debug(msg string, kv ...any) { l.log("DEBUG", msg, kv...) }
func (l *SimpleLogger) Info(msg string, kv ...any)  { l.log("INFO", msg, kv...) }
func (l *SimpleLogger) Warn(msg string, kv ...any)  { l.log("WARN", msg, kv...) }
func (l *SimpleLogger) Error(msg string, kv ...any) { l.log("ERROR", msg, kv...) }

func (l *SimpleLogger) log(level, msg string, kv ...any) {
	line := "[" + level + "] " + msg
	for i := 0; i+1 < len(kv); i += 2 {
		line += " " + toString(kv[i]) + "="
		line += toString(kv[i+1])
	}
	l.out.Println(line)
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}
