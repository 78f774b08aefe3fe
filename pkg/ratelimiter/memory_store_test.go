package ratelimiter_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arakoodev/cliscale/pkg/ratelimiter"
)

func TestMemoryStore_Take(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	config := ratelimiter.Config{
		Limit:  5,
		Window: time.Minute,
	}

	t.Run("admits requests up to the limit", func(t *testing.T) {
		store := ratelimiter.NewMemoryStore()

		for i := range config.Limit {
			remaining, resetAt, err := store.Take(ctx, "fresh-key", config)
			require.NoError(t, err)
			assert.Equal(t, config.Limit-i-1, remaining)
			assert.NotZero(t, resetAt)
		}
	})

	t.Run("denies the request over the limit", func(t *testing.T) {
		store := ratelimiter.NewMemoryStore()

		key := "over-limit"
		for range config.Limit {
			_, _, err := store.Take(ctx, key, config)
			require.NoError(t, err)
		}

		remaining, resetAt, err := store.Take(ctx, key, config)
		require.NoError(t, err)
		assert.Negative(t, remaining)
		assert.True(t, resetAt.After(time.Now()))
	})

	t.Run("entries expire after the window", func(t *testing.T) {
		store := ratelimiter.NewMemoryStore()

		short := ratelimiter.Config{Limit: 2, Window: 100 * time.Millisecond}
		key := "expiring"

		_, _, err := store.Take(ctx, key, short)
		require.NoError(t, err)
		_, _, err = store.Take(ctx, key, short)
		require.NoError(t, err)

		remaining, _, err := store.Take(ctx, key, short)
		require.NoError(t, err)
		require.Negative(t, remaining)

		time.Sleep(short.Window + 20*time.Millisecond)

		remaining, _, err = store.Take(ctx, key, short)
		require.NoError(t, err)
		assert.Equal(t, 1, remaining)
	})

	t.Run("reset time tracks the oldest entry", func(t *testing.T) {
		store := ratelimiter.NewMemoryStore()

		key := "reset-tracking"
		before := time.Now()

		_, first, err := store.Take(ctx, key, config)
		require.NoError(t, err)

		time.Sleep(20 * time.Millisecond)

		_, second, err := store.Take(ctx, key, config)
		require.NoError(t, err)

		// Both requests report when the first entry leaves the window.
		assert.WithinDuration(t, first, second, 10*time.Millisecond)
		assert.WithinDuration(t, before.Add(config.Window), first, 15*time.Millisecond)
	})

	t.Run("keys are independent", func(t *testing.T) {
		store := ratelimiter.NewMemoryStore()

		for range config.Limit {
			_, _, err := store.Take(ctx, "busy", config)
			require.NoError(t, err)
		}

		remaining, _, err := store.Take(ctx, "quiet", config)
		require.NoError(t, err)
		assert.Equal(t, config.Limit-1, remaining)
	})
}

func TestMemoryStore_Reset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	config := ratelimiter.Config{Limit: 3, Window: time.Minute}

	t.Run("clears recorded requests", func(t *testing.T) {
		store := ratelimiter.NewMemoryStore()

		key := "test-reset"
		for range config.Limit {
			_, _, err := store.Take(ctx, key, config)
			require.NoError(t, err)
		}

		require.NoError(t, store.Reset(ctx, key))

		remaining, _, err := store.Take(ctx, key, config)
		require.NoError(t, err)
		assert.Equal(t, config.Limit-1, remaining)
	})

	t.Run("reset non-existent key succeeds", func(t *testing.T) {
		store := ratelimiter.NewMemoryStore()

		assert.NoError(t, store.Reset(ctx, "non-existent"))
	})
}

func TestMemoryStore_StartStop(t *testing.T) {
	t.Parallel()

	t.Run("start and stop cleanup successfully", func(t *testing.T) {
		store := ratelimiter.NewMemoryStore(
			ratelimiter.WithCleanupInterval(50 * time.Millisecond),
		)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			_ = store.Start(ctx)
		}()

		time.Sleep(10 * time.Millisecond)

		stats := store.Stats()
		assert.True(t, stats.IsRunning)

		err := store.Stop()
		assert.NoError(t, err)

		stats = store.Stats()
		assert.False(t, stats.IsRunning)
	})

	t.Run("fails to start when already started", func(t *testing.T) {
		store := ratelimiter.NewMemoryStore(
			ratelimiter.WithCleanupInterval(50 * time.Millisecond),
		)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			_ = store.Start(ctx)
		}()

		time.Sleep(10 * time.Millisecond)

		err := store.Start(ctx)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "already started")

		_ = store.Stop()
	})

	t.Run("fails to stop when not started", func(t *testing.T) {
		store := ratelimiter.NewMemoryStore()

		err := store.Stop()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not started")
	})

	t.Run("fails to start with zero cleanup interval", func(t *testing.T) {
		store := ratelimiter.NewMemoryStore(
			ratelimiter.WithCleanupInterval(0),
		)

		err := store.Start(context.Background())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not configured")
	})
}

func TestMemoryStore_Run(t *testing.T) {
	t.Parallel()

	t.Run("run with errgroup pattern", func(t *testing.T) {
		store := ratelimiter.NewMemoryStore(
			ratelimiter.WithCleanupInterval(50 * time.Millisecond),
		)

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		errCh := make(chan error, 1)
		go func() {
			errCh <- store.Run(ctx)()
		}()

		time.Sleep(10 * time.Millisecond)

		stats := store.Stats()
		assert.True(t, stats.IsRunning)

		cancel()

		err := <-errCh
		assert.NoError(t, err)

		stats = store.Stats()
		assert.False(t, stats.IsRunning)
	})
}

func TestMemoryStore_Stats(t *testing.T) {
	t.Parallel()

	t.Run("tracks key creation", func(t *testing.T) {
		store := ratelimiter.NewMemoryStore()

		ctx := context.Background()
		config := ratelimiter.Config{Limit: 10, Window: time.Minute}

		_, _, _ = store.Take(ctx, "key1", config)
		_, _, _ = store.Take(ctx, "key2", config)
		_, _, _ = store.Take(ctx, "key3", config)

		stats := store.Stats()
		assert.Equal(t, int64(3), stats.KeysCreated)
		assert.Equal(t, 3, stats.ActiveKeys)
		assert.Equal(t, int64(0), stats.KeysRemoved)
		assert.False(t, stats.IsRunning)
	})
}

func TestMemoryStore_Healthcheck(t *testing.T) {
	t.Parallel()

	t.Run("healthy when cleanup disabled", func(t *testing.T) {
		store := ratelimiter.NewMemoryStore(
			ratelimiter.WithCleanupInterval(0),
		)

		assert.NoError(t, store.Healthcheck(context.Background()))
	})

	t.Run("unhealthy when cleanup configured but not running", func(t *testing.T) {
		store := ratelimiter.NewMemoryStore(
			ratelimiter.WithCleanupInterval(50 * time.Millisecond),
		)

		err := store.Healthcheck(context.Background())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not running")
	})

	t.Run("healthy when cleanup running", func(t *testing.T) {
		store := ratelimiter.NewMemoryStore(
			ratelimiter.WithCleanupInterval(50 * time.Millisecond),
		)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			_ = store.Start(ctx)
		}()

		time.Sleep(10 * time.Millisecond)

		assert.NoError(t, store.Healthcheck(context.Background()))

		_ = store.Stop()
	})
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("admits exactly the limit under contention", func(t *testing.T) {
		store := ratelimiter.NewMemoryStore()

		config := ratelimiter.Config{Limit: 25, Window: time.Minute}
		key := "contended"
		goroutines := 100

		var wg sync.WaitGroup
		wg.Add(goroutines)

		var admitted atomic.Int64
		for range goroutines {
			go func() {
				defer wg.Done()
				remaining, _, err := store.Take(ctx, key, config)
				if err == nil && remaining >= 0 {
					admitted.Add(1)
				}
			}()
		}

		wg.Wait()

		assert.Equal(t, int64(config.Limit), admitted.Load())
	})

	t.Run("concurrent take and reset", func(t *testing.T) {
		store := ratelimiter.NewMemoryStore()

		config := ratelimiter.Config{Limit: 10, Window: time.Minute}
		key := "reset-race"
		goroutines := 20

		var wg sync.WaitGroup
		wg.Add(goroutines * 2)

		for range goroutines {
			go func() {
				defer wg.Done()
				for range 50 {
					_, _, _ = store.Take(ctx, key, config)
				}
			}()

			go func() {
				defer wg.Done()
				for range 10 {
					_ = store.Reset(ctx, key)
					time.Sleep(time.Microsecond)
				}
			}()
		}

		wg.Wait()
	})
}
