// Package resilient provides a resilient HTTP client with composable
// reliability primitives:
//
//   - Retries with exponential or decorrelated jitter backoff
//   - Per-host circuit breaking (closed / half-open / open states)
//   - Response caching with ETag/Last-Modified revalidation and
//     stale-while-revalidate
//   - In-flight request coalescing (merges concurrent identical requests)
//   - A request/response/error interceptor pipeline for cross-cutting
//     concerns (auth, logging, tracing)
//   - Rate limiting (token bucket, per-host or global)
//   - Prometheus metrics and structured debug logging
//
// Design goals:
//   - Small surface area — functional options configure everything
//   - Safe concurrent use of a single *Client instance
//   - Extensibility via user-supplied middleware, interceptors, and a
//     pluggable transport
//
// Typical usage:
//
//	client := resilient.New(
//	    resilient.WithBaseURL("https://api.example.com"),
//	    resilient.WithRetry(resilient.RetryConfig{MaxAttempts: 3}),
//	    resilient.WithCache(100, 5*time.Minute),
//	    resilient.WithCircuitBreaker(resilient.CircuitBreakerConfig{}),
//	    resilient.WithDeduplication(),
//	)
//	resp, err := client.Get(ctx, "/data")
//
// Only network errors and 5xx/408/429 responses trigger retries by default;
// override with RetryConfig.Condition via WithRetry. The library avoids
// opinionated logging:
// provide a Logger (e.g. via WithSimpleLogger) and enable debug flags
// selectively (WithDebug / WithDebugConfig) for insight without noise.
package resilient
