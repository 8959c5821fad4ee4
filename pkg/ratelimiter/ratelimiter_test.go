package ratelimiter_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/rollcall/pkg/ratelimiter"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var cfg = ratelimiter.Config{Capacity: 3, RefillRate: 1, RefillInterval: time.Second}

// stores returns every Store implementation driven by the same clock.
func stores(t *testing.T, c *clock) map[string]ratelimiter.Store {
	t.Helper()

	mem := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0), ratelimiter.WithClock(c.Now))
	t.Cleanup(mem.Close)

	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]ratelimiter.Store{
		"memory": mem,
		"redis":  ratelimiter.NewRedisStore(client, ratelimiter.WithRedisClock(c.Now)),
	}
}

func TestBucket_ConsumeAndRefill(t *testing.T) {
	t.Parallel()

	c := newClock()
	for name, store := range stores(t, c) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := "consume-" + name
			b, err := ratelimiter.NewBucket(store, cfg)
			require.NoError(t, err)

			for want := 2; want >= 0; want-- {
				res, err := b.Allow(ctx, key)
				require.NoError(t, err)
				assert.True(t, res.Allowed())
				assert.Equal(t, want, res.Remaining)
				assert.Equal(t, 3, res.Limit)
			}

			denied, err := b.Allow(ctx, key)
			require.NoError(t, err)
			assert.False(t, denied.Allowed())
			assert.Equal(t, time.Second, denied.RetryAfter(c.Now()))

			status, err := b.Status(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, 0, status.Remaining, "denied requests must not dig the bucket deeper")

			require.NoError(t, b.Reset(ctx, key))
			res, err := b.AllowN(ctx, key, 3)
			require.NoError(t, err)
			assert.Equal(t, 0, res.Remaining)
		})
	}
}

func TestRefillAcrossStores(t *testing.T) {
	t.Parallel()

	c := newClock()
	ctx := context.Background()
	all := stores(t, c)
	buckets := map[string]*ratelimiter.Bucket{}
	for name, store := range all {
		b, err := ratelimiter.NewBucket(store, cfg)
		require.NoError(t, err)
		buckets[name] = b

		_, err = b.AllowN(ctx, "k", 3)
		require.NoError(t, err)
	}

	c.Advance(2 * time.Second)
	for name, b := range buckets {
		res, err := b.Status(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Remaining, name)
	}

	c.Advance(time.Hour)
	for name, b := range buckets {
		res, err := b.Status(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, 3, res.Remaining, name)
	}
}

func TestNewBucket_Validation(t *testing.T) {
	t.Parallel()

	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	for _, bad := range []ratelimiter.Config{
		{Capacity: 0, RefillRate: 1, RefillInterval: time.Second},
		{Capacity: 1, RefillRate: 0, RefillInterval: time.Second},
		{Capacity: 1, RefillRate: 1},
	} {
		_, err := ratelimiter.NewBucket(store, bad)
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
	}

	b, err := ratelimiter.NewBucket(store, cfg)
	require.NoError(t, err)
	_, err = b.AllowN(context.Background(), "k", 0)
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidTokenCount)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	t.Parallel()

	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	b, err := ratelimiter.NewBucket(store, ratelimiter.Config{Capacity: 50, RefillRate: 1, RefillInterval: time.Hour})
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := b.Allow(context.Background(), "shared")
			if err == nil && res.Allowed() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestRedisStore_Unavailable(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	srv.Close()

	store := ratelimiter.NewRedisStore(client)
	_, _, err := store.ConsumeTokens(context.Background(), "k", 1, cfg)
	assert.ErrorIs(t, err, ratelimiter.ErrStoreUnavailable)
}
