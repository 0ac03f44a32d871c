package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newLimiter(limit int) (*SlidingWindowLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewSlidingWindowLimiter(limit, time.Minute, WithNow(clock.Now)), clock
}

func allow(t *testing.T, l Limiter, key string) bool {
	t.Helper()
	ok, err := l.Allow(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func TestSlidingWindow_Limit(t *testing.T) {
	l, clock := newLimiter(2)

	assert.True(t, allow(t, l, "10.0.0.1"))
	clock.Advance(20 * time.Second)
	assert.True(t, allow(t, l, "10.0.0.1"))
	assert.False(t, allow(t, l, "10.0.0.1"))
	assert.True(t, allow(t, l, "10.0.0.2"), "keys are independent")

	assert.Equal(t, 40*time.Second, l.RetryAfter("10.0.0.1"))
	assert.Zero(t, l.RetryAfter("10.0.0.2"))
	assert.Zero(t, l.RetryAfter("unknown"))

	clock.Advance(40 * time.Second)
	assert.True(t, allow(t, l, "10.0.0.1"), "first call left the window")
	assert.False(t, allow(t, l, "10.0.0.1"))
}

func TestSlidingWindow_Reset(t *testing.T) {
	l, _ := newLimiter(1)

	assert.True(t, allow(t, l, "k"))
	assert.False(t, allow(t, l, "k"))

	require.NoError(t, l.Reset(context.Background(), "k"))
	assert.True(t, allow(t, l, "k"))
}

func TestSlidingWindow_Prune(t *testing.T) {
	l, clock := newLimiter(5)

	allow(t, l, "old")
	clock.Advance(45 * time.Second)
	allow(t, l, "new")

	assert.Equal(t, 2, l.Prune())

	clock.Advance(30 * time.Second)
	assert.Equal(t, 1, l.Prune())
	assert.Zero(t, l.RetryAfter("old"))
}

func TestSlidingWindow_Run(t *testing.T) {
	l := NewSlidingWindowLimiter(1, time.Millisecond)
	allow(t, l, "k")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx, time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return l.Prune() == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
