package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arakoodev/cliscale/core/logger"
)

// resolveJob is one deferred endpoint resolution.
type resolveJob struct {
	sessionID  string
	workerName string
	expiresAt  time.Time
}

// Resolver fills worker endpoints for sessions whose resolution outlived the
// create request's in-flight budget. Jobs run until the worker's endpoint
// appears or the session expires; the endpoint update is one-shot, so a
// concurrent fill from another path is not an error.
type Resolver struct {
	store Store
	orch  Orchestrator
	log   *slog.Logger

	opTimeout       time.Duration
	shutdownTimeout time.Duration
	workers         int
	jobs            chan resolveJob

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger for resolution diagnostics.
func WithResolverLogger(log *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// WithResolverQueueSize sets the pending job buffer (default 64).
func WithResolverQueueSize(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.jobs = make(chan resolveJob, n)
		}
	}
}

// WithResolverWorkers sets the number of concurrent resolution workers
// (default 4).
func WithResolverWorkers(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithResolverStoreTimeout sets the budget for the endpoint update write.
func WithResolverStoreTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.opTimeout = d
		}
	}
}

// WithResolverShutdownTimeout sets the graceful shutdown timeout.
func WithResolverShutdownTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.shutdownTimeout = d
		}
	}
}

// NewResolver creates a background endpoint resolver.
// Call Start() to begin processing enqueued sessions.
func NewResolver(store Store, orch Orchestrator, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:           store,
		orch:            orch,
		log:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		opTimeout:       5 * time.Second,
		shutdownTimeout: 30 * time.Second,
		workers:         4,
		jobs:            make(chan resolveJob, 64),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Enqueue hands a session to the resolver without blocking. Returns false
// when the queue is full; the session then stays pending until the
// gateway's attach-time poll or expiry.
func (r *Resolver) Enqueue(sessionID, workerName string, expiresAt time.Time) bool {
	select {
	case r.jobs <- resolveJob{sessionID: sessionID, workerName: workerName, expiresAt: expiresAt}:
		return true
	default:
		return false
	}
}

// Start begins processing resolution jobs. This is a blocking operation
// that runs until the context is cancelled. Use Run() for errgroup pattern
// or call this in a goroutine.
func (r *Resolver) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return fmt.Errorf("resolver already started")
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	r.running.Store(true)
	defer r.running.Store(false)

	r.log.InfoContext(r.ctx, "endpoint resolver started",
		slog.Int("workers", r.workers), slog.Int("queue_size", cap(r.jobs)))

	sem := make(chan struct{}, r.workers)
	for {
		select {
		case <-r.ctx.Done():
			r.log.InfoContext(context.Background(), "endpoint resolver stopping")
			return r.ctx.Err()
		case job := <-r.jobs:
			select {
			case sem <- struct{}{}:
			case <-r.ctx.Done():
				return r.ctx.Err()
			}

			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				defer func() { <-sem }()
				r.process(job)
			}()
		}
	}
}

// Stop gracefully shuts down the resolver, waiting for in-flight jobs up to
// the shutdown timeout.
func (r *Resolver) Stop() error {
	r.mu.Lock()
	if r.cancel == nil {
		r.mu.Unlock()
		return fmt.Errorf("resolver not started")
	}

	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	cancel()

	ctx, ctxCancel := context.WithTimeout(context.Background(), r.shutdownTimeout)
	defer ctxCancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.log.WarnContext(context.Background(), "resolver shutdown timeout exceeded",
			slog.Duration("timeout", r.shutdownTimeout))
		return fmt.Errorf("shutdown timeout exceeded after %s", r.shutdownTimeout)
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
func (r *Resolver) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- r.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = r.Stop()
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// process resolves one worker's endpoint, bounded by the session expiry.
func (r *Resolver) process(job resolveJob) {
	jobCtx, cancel := context.WithDeadline(r.ctx, job.expiresAt)
	defer cancel()

	endpoint, err := r.orch.ResolveEndpoint(jobCtx, job.workerName)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, ErrEndpointPending) {
			// Session expired before the worker came up; the pruner
			// collects the row, the orchestrator TTL collects the worker.
			level = slog.LevelInfo
		}
		r.log.LogAttrs(context.Background(), level, "Background endpoint resolution gave up",
			logger.SessionID(job.sessionID), logger.WorkerName(job.workerName), logger.Error(err))
		return
	}

	upCtx, upCancel := context.WithTimeout(context.Background(), r.opTimeout)
	defer upCancel()

	err = r.store.UpdateSessionEndpoint(upCtx, job.sessionID, endpoint)
	switch {
	case err == nil:
		r.log.Info("Worker endpoint resolved in background",
			logger.SessionID(job.sessionID), logger.Endpoint(endpoint))
	case errors.Is(err, ErrEndpointAlreadySet):
		// Filled by the create request or another replica.
	case errors.Is(err, ErrNotFound):
		// Session pruned while resolving.
	default:
		r.log.Error("Background endpoint update failed",
			logger.SessionID(job.sessionID), logger.Endpoint(endpoint), logger.Error(err))
	}
}
