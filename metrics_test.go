package resilient

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCollectorRecordsRequestCounterAndHistogram(t *testing.T) {
	mc := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())

	mc.RecordRequest("GET", "api.example.com/users", 200, 15*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(mc.requestsTotal.WithLabelValues("GET", "200", "api.example.com/users")))
}

func TestMetricsCollectorTracksInFlightGauge(t *testing.T) {
	mc := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())

	mc.RecordRequestStart("GET", "api.example.com/users")
	assert.Equal(t, float64(1), testutil.ToFloat64(mc.requestsInFlight.WithLabelValues("GET", "api.example.com/users")))

	mc.RecordRequestEnd("GET", "api.example.com/users")
	assert.Equal(t, float64(0), testutil.ToFloat64(mc.requestsInFlight.WithLabelValues("GET", "api.example.com/users")))
}

func TestMetricsCollectorCircuitBreakerStateLabels(t *testing.T) {
	mc := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())

	mc.RecordCircuitBreakerState("api.example.com", StateOpen)
	assert.Equal(t, float64(1), testutil.ToFloat64(mc.circuitBreakerState.WithLabelValues("api.example.com")))

	mc.RecordCircuitBreakerState("api.example.com", StateHalfOpen)
	assert.Equal(t, float64(2), testutil.ToFloat64(mc.circuitBreakerState.WithLabelValues("api.example.com")))

	mc.RecordCircuitBreakerState("api.example.com", StateClosed)
	assert.Equal(t, float64(0), testutil.ToFloat64(mc.circuitBreakerState.WithLabelValues("api.example.com")))
}

func TestMetricsCollectorCacheAndDedupCounters(t *testing.T) {
	mc := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())

	mc.RecordCacheHit("GET", "api.example.com/x")
	mc.RecordCacheMiss("GET", "api.example.com/y")
	mc.RecordDeduplicationHit("GET", "api.example.com/x")

	assert.Equal(t, float64(1), testutil.ToFloat64(mc.cacheHits.WithLabelValues("GET", "api.example.com/x")))
	assert.Equal(t, float64(1), testutil.ToFloat64(mc.cacheMisses.WithLabelValues("GET", "api.example.com/y")))
	assert.Equal(t, float64(1), testutil.ToFloat64(mc.deduplicationHits.WithLabelValues("GET", "api.example.com/x")))
}

func TestMetricsCollectorNilReceiverIsNoOp(t *testing.T) {
	var mc *MetricsCollector
	assert.NotPanics(t, func() {
		mc.RecordRequest("GET", "x", 200, time.Millisecond)
		mc.RecordRequestStart("GET", "x")
		mc.RecordRequestEnd("GET", "x")
		mc.RecordCacheHit("GET", "x")
		mc.RecordError("network", "GET", "x")
	})
}
