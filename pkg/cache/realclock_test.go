package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests run against the wall clock and take a couple of seconds.

func TestRealClock_AbsoluteExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping wall-clock test in short mode")
	}

	c, err := New[payload]()
	require.NoError(t, err)
	defer c.Close()

	ok, err := c.Put("k", newPayload(), WithDuration(time.Second))
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(500 * time.Millisecond)
	_, found := c.Get("k")
	assert.True(t, found)

	time.Sleep(800 * time.Millisecond)
	assert.Eventually(t, func() bool { return c.Size() == 0 }, time.Second, 10*time.Millisecond)
	_, found = c.Get("k")
	assert.False(t, found)
}

func TestRealClock_SlidingSurvivesReads(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping wall-clock test in short mode")
	}

	c, err := New[payload]()
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Put("k", newPayload(), WithDuration(time.Second), WithSlidingExpiration(true))
	require.NoError(t, err)

	time.Sleep(500 * time.Millisecond)
	_, found := c.Get("k")
	require.True(t, found)

	time.Sleep(700 * time.Millisecond)
	_, found = c.Get("k")
	require.True(t, found, "read at 500ms extends the lifetime past 1.2s")

	// Size does not count as a read, so polling it lets the entry lapse.
	assert.Eventually(t, func() bool { return c.Size() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRealClock_DeferredEviction(t *testing.T) {
	c, err := New[string](WithMaxSize[string](1), WithCanPutWhenFull[string](true))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Put("a", "x", WithDuration(time.Minute))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = c.Put("b", "y", WithDuration(time.Minute))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return c.Size() == 1 }, time.Second, time.Millisecond)
	_, found := c.Get("a")
	assert.False(t, found)
	got, found := c.Get("b")
	assert.True(t, found)
	assert.Equal(t, "y", got)
}
