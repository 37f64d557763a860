/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, rate Rate, maxKeys int) (*SlidingWindow, *time.Time) {
	t.Helper()
	l, err := NewSlidingWindow(rate, maxKeys, nil)
	require.NoError(t, err)
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	l.nowFn = func() time.Time { return now }
	return l, &now
}

func TestSlidingWindowCheckAndRecord(t *testing.T) {
	l, now := newTestLimiter(t, Rate{Count: 3, Window: time.Second}, 100)

	for i := 0; i < 3; i++ {
		res := l.CheckAndRecord("client")
		require.True(t, res.Allowed, "call %d within the window must be allowed", i+1)
		require.Zero(t, res.RetryAfter)
	}

	res := l.CheckAndRecord("client")
	require.False(t, res.Allowed)
	require.Equal(t, time.Second, res.RetryAfter)
	require.Equal(t, 1, res.RetryAfterSeconds())

	// Other keys are unaffected.
	require.True(t, l.CheckAndRecord("other").Allowed)

	// After the window elapses, a new call succeeds again.
	*now = now.Add(time.Second + time.Millisecond)
	res = l.CheckAndRecord("client")
	require.True(t, res.Allowed)
}

func TestSlidingWindowRetryAfterShrinks(t *testing.T) {
	l, now := newTestLimiter(t, Rate{Count: 1, Window: 10 * time.Second}, 100)

	require.True(t, l.CheckAndRecord("client").Allowed)

	*now = now.Add(4 * time.Second)
	res := l.CheckAndRecord("client")
	require.False(t, res.Allowed)
	assert.Equal(t, 6*time.Second, res.RetryAfter)
	assert.Equal(t, 6, res.RetryAfterSeconds())
}

func TestSlidingWindowSweep(t *testing.T) {
	l, now := newTestLimiter(t, Rate{Count: 3, Window: time.Minute}, 100)

	l.CheckAndRecord("a")
	l.CheckAndRecord("b")
	*now = now.Add(30 * time.Second)
	l.CheckAndRecord("c")
	require.Equal(t, 3, l.Len())

	// Only "a" and "b" windows are empty 40 seconds later.
	*now = now.Add(40 * time.Second)
	removed := l.Sweep()
	require.Equal(t, 2, removed)
	require.Equal(t, 1, l.Len())

	// "c" still counts against the limit.
	l.CheckAndRecord("c")
	l.CheckAndRecord("c")
	require.False(t, l.CheckAndRecord("c").Allowed)
}

func TestSlidingWindowKeyCapIsLRUNotTime(t *testing.T) {
	l, _ := newTestLimiter(t, Rate{Count: 1, Window: time.Hour}, 3)

	for i := 0; i < 4; i++ {
		l.CheckAndRecord(fmt.Sprintf("client-%d", i))
	}
	require.Equal(t, 3, l.Len())

	// client-0 was evicted by capacity, so its exhausted window is forgotten.
	require.True(t, l.CheckAndRecord("client-0").Allowed)
	// client-3 is still tracked and still over the limit.
	require.False(t, l.CheckAndRecord("client-3").Allowed)
}

func TestNewSlidingWindowValidation(t *testing.T) {
	_, err := NewSlidingWindow(Rate{Count: 0, Window: time.Second}, 10, nil)
	require.Error(t, err)
	_, err = NewSlidingWindow(Rate{Count: 1, Window: 0}, 10, nil)
	require.Error(t, err)
	_, err = NewSlidingWindow(Rate{Count: 1, Window: time.Second}, 0, nil)
	require.Error(t, err)
}
