package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move time forward without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMemory() (*Memory, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	return newMemory(clock.Now), clock
}

func TestMemory_GetSetExpire(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory()

	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, m.Set(ctx, "k", "v", time.Minute))
	v, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	clock.Advance(time.Minute)
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss, "entry expires exactly at its ttl")

	require.NoError(t, m.Set(ctx, "forever", "x", 0))
	clock.Advance(24 * time.Hour)
	v, err = m.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}

func TestMemory_SetNX(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory()

	ok, err := m.SetNX(ctx, "lock", "1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.SetNX(ctx, "lock", "2", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	clock.Advance(time.Hour)
	ok, err = m.SetNX(ctx, "lock", "3", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "expired key can be claimed again")
}

func TestMemory_IncrWindow(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory()

	n, ttl, err := m.Incr(ctx, "rl", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, time.Minute, ttl)

	clock.Advance(20 * time.Second)
	n, ttl, err = m.Incr(ctx, "rl", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 40*time.Second, ttl, "later increments keep the first expiry")

	clock.Advance(40 * time.Second)
	n, _, err = m.Incr(ctx, "rl", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "new window after expiry")
}

func TestMemory_DeleteAndSweep(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory()

	require.NoError(t, m.Set(ctx, "a", "1", time.Second))
	require.NoError(t, m.Set(ctx, "b", "2", 0))
	require.NoError(t, m.Delete(ctx, "b"))
	require.NoError(t, m.Delete(ctx, "missing"))

	clock.Advance(time.Second)
	m.sweep()

	m.mu.Lock()
	assert.Empty(t, m.items)
	m.mu.Unlock()
}

func TestMemory_ConcurrentIncr(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour)
	t.Cleanup(func() { m.Close() })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = m.Incr(ctx, "hits", time.Minute)
		}()
	}
	wg.Wait()

	v, err := m.Get(ctx, "hits")
	require.NoError(t, err)
	assert.Equal(t, "50", v)
	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close(), "Close is idempotent")
}
