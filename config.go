package resilient

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config normalizer bounds (spec §4.1). Every field is clamped independently;
// an invalid value falls back to its default rather than raising an error —
// a client must tolerate misconfiguration without crashing at call time.
const (
	minTimeout     = 100 * time.Millisecond
	maxTimeout     = 300 * time.Second
	defaultTimeout = 30 * time.Second

	minCacheTTL     = 1 * time.Second
	maxCacheTTL     = 24 * time.Hour
	defaultCacheTTL = 5 * time.Minute

	minCacheSize     = 1
	maxCacheSize     = 10000
	defaultCacheSize = 100

	minRetryAttempts     = 0
	maxRetryAttempts     = 10
	defaultRetryAttempts = 3

	minFailureThreshold     = 1
	maxFailureThreshold     = 100
	defaultFailureThreshold = 5

	minResetTimeout     = 1 * time.Second
	maxResetTimeout     = 1 * time.Hour
	defaultResetTimeout = 60 * time.Second

	defaultMaxRequestSize  = 10 * 1024 * 1024
	defaultMaxResponseSize = 50 * 1024 * 1024
)

// defaultAuthHeaders are the header names considered auth-relevant for cache
// fingerprinting when the caller does not override them (spec §3).
func defaultAuthHeaders() []string {
	return []string{"authorization", "x-api-key", "cookie"}
}

// clampDuration returns def when d is zero or negative, otherwise d clamped
// to the nearest bound in [lo, hi].
func clampDuration(d, lo, hi, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

// clampInt clamps n to the nearest bound in [lo, hi], mirroring
// clampDuration's clamp-to-bound semantics. Unlike clampDuration there is no
// sentinel-zero-means-default case: zero is itself a legitimate value for
// some callers (RetryConfig.MaxAttempts == 0 means "dispatch once, never
// retry"), so it must clamp like any other out-of-range input, not reset.
func clampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// normalizeBaseURL keeps base only if it parses as an absolute http(s) URL,
// stripping any trailing slash. An invalid value yields "" (no base URL).
func normalizeBaseURL(base string) string {
	if base == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return strings.TrimSuffix(base, "/")
}

// normalizeDefaultHeaders keeps only string-valued headers and adds a JSON
// Content-Type default when the caller did not specify one (spec §4.1).
func normalizeDefaultHeaders(h http.Header) http.Header {
	out := make(http.Header, len(h)+1)
	for k, vs := range h {
		for _, v := range vs {
			out.Add(k, v)
		}
	}
	if out.Get("Content-Type") == "" {
		out.Set("Content-Type", "application/json")
	}
	return out
}
