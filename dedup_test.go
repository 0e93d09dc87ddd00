package resilient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInFlightRegistryCoalescesWaiters(t *testing.T) {
	reg := NewInFlightRegistry()

	entry, owner := reg.GetOrRegister("k1")
	assert.True(t, owner)

	_, owner2 := reg.GetOrRegister("k1")
	assert.False(t, owner2, "a second caller for the same key must not become owner")

	want := &Response{Status: 200}
	go func() {
		time.Sleep(5 * time.Millisecond)
		reg.Settle("k1", want, nil)
	}()

	got, err := entry.wait(context.Background())
	assert.NoError(t, err)
	assert.Same(t, want, got)

	_, owner3 := reg.GetOrRegister("k1")
	assert.True(t, owner3, "a settled key must accept a fresh owner")
}

func TestInFlightEntryWaitHonorsCallerCancellation(t *testing.T) {
	entry := newInFlightEntry()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := entry.wait(ctx)
	assert.Error(t, err)
	var cancelErr *CancellationError
	assert.ErrorAs(t, err, &cancelErr)

	// The entry itself is unaffected by one waiter's cancellation; another
	// waiter still observes the eventual settlement.
	want := &Response{Status: 200}
	entry.settle(want, nil)
	got, err := entry.wait(context.Background())
	assert.NoError(t, err)
	assert.Same(t, want, got)
}

func TestDefaultDeduplicationCondition(t *testing.T) {
	assert.True(t, DefaultDeduplicationCondition(&RequestConfig{Method: MethodGet}))
	assert.True(t, DefaultDeduplicationCondition(&RequestConfig{Method: MethodHead}))
	assert.False(t, DefaultDeduplicationCondition(&RequestConfig{Method: MethodPost}))
}

func TestInFlightRegistryLen(t *testing.T) {
	reg := NewInFlightRegistry()
	reg.GetOrRegister("k1")
	reg.GetOrRegister("k2")
	assert.Equal(t, 2, reg.Len())

	reg.Settle("k1", &Response{}, nil)
	assert.Equal(t, 1, reg.Len())
}
