package resilient

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainMiddlewareOrdersOutermostFirst(t *testing.T) {
	var order []string

	record := func(name string) Middleware {
		return func(req *http.Request, next Transport) (*http.Response, error) {
			order = append(order, name)
			return next.RoundTrip(req)
		}
	}

	base := RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		order = append(order, "base")
		return &http.Response{StatusCode: 200}, nil
	})

	chained := chainMiddleware(base, []Middleware{record("outer"), record("inner")})

	req, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)
	_, err := chained.RoundTrip(req)
	require.NoError(t, err)

	assert.Equal(t, []string{"outer", "inner", "base"}, order)
}

func TestChainMiddlewareNoneReturnsBase(t *testing.T) {
	base := RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 204}, nil
	})

	chained := chainMiddleware(base, nil)

	req, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)
	resp, err := chained.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)
}

func TestWithRequestTimeoutAttachesDeadline(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)

	timed, cancel := withRequestTimeout(req, 50*time.Millisecond)
	defer cancel()

	deadline, ok := timed.Context().Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 25*time.Millisecond)
}

func TestWithRequestTimeoutZeroLeavesRequestUntouched(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)

	timed, cancel := withRequestTimeout(req, 0)
	defer cancel()

	assert.Same(t, req, timed)
	_, ok := timed.Context().Deadline()
	assert.False(t, ok)
}
