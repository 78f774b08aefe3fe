package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arakoodev/cliscale/core/session"
)

func TestResolver(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("fills the endpoint in the background", func(t *testing.T) {
		t.Parallel()

		store := session.NewMemoryStore()
		pending := testSession("s1")
		require.NoError(t, store.PutSession(ctx, pending))

		r := session.NewResolver(store, &fakeOrchestrator{})

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- r.Run(runCtx)() }()

		require.True(t, r.Enqueue("s1", pending.WorkerName, pending.ExpiresAt))

		assert.Eventually(t, func() bool {
			got, err := store.GetSession(ctx, "s1")
			return err == nil && got.WorkerEndpoint != ""
		}, 2*time.Second, 10*time.Millisecond)

		cancel()
		assert.NoError(t, <-done)
	})

	t.Run("tolerates an endpoint filled elsewhere", func(t *testing.T) {
		t.Parallel()

		store := session.NewMemoryStore()
		pending := testSession("s1")
		require.NoError(t, store.PutSession(ctx, pending))
		require.NoError(t, store.UpdateSessionEndpoint(ctx, "s1", "10.9.9.9:7681"))

		r := session.NewResolver(store, &fakeOrchestrator{})

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- r.Run(runCtx)() }()

		require.True(t, r.Enqueue("s1", pending.WorkerName, pending.ExpiresAt))

		// The one-shot write never regresses the earlier fill.
		assert.Never(t, func() bool {
			got, err := store.GetSession(ctx, "s1")
			return err != nil || got.WorkerEndpoint != "10.9.9.9:7681"
		}, 200*time.Millisecond, 20*time.Millisecond)

		cancel()
		assert.NoError(t, <-done)
	})

	t.Run("gives up when the session expires first", func(t *testing.T) {
		t.Parallel()

		store := session.NewMemoryStore()
		pending := testSession("s1")
		require.NoError(t, store.PutSession(ctx, pending))

		r := session.NewResolver(store, &fakeOrchestrator{neverResolve: true})

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- r.Run(runCtx)() }()

		// A deadline in the past bounds the job immediately.
		require.True(t, r.Enqueue("s1", pending.WorkerName, time.Now().Add(50*time.Millisecond)))

		assert.Never(t, func() bool {
			got, err := store.GetSession(ctx, "s1")
			return err != nil || got.WorkerEndpoint != ""
		}, 300*time.Millisecond, 20*time.Millisecond)

		cancel()
		assert.NoError(t, <-done)
	})

	t.Run("full queue refuses without blocking", func(t *testing.T) {
		t.Parallel()

		r := session.NewResolver(session.NewMemoryStore(), &fakeOrchestrator{}, session.WithResolverQueueSize(1))

		assert.True(t, r.Enqueue("s1", "worker-s1", time.Now().Add(time.Minute)))
		assert.False(t, r.Enqueue("s2", "worker-s2", time.Now().Add(time.Minute)))
	})
}
