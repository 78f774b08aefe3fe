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

// Pruner periodically deletes expired session and token rows. Pruning is
// idempotent and safe under concurrent pruners across replicas: each pass
// deletes whatever is expired at that instant and overlapping deletes
// simply remove fewer rows each.
type Pruner struct {
	store Store
	log   *slog.Logger

	interval        time.Duration
	opTimeout       time.Duration
	shutdownTimeout time.Duration

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup

	sessionsPruned atomic.Int64
	tokensPruned   atomic.Int64
}

// PrunerStats provides observability counters for monitoring.
type PrunerStats struct {
	SessionsPruned int64
	TokensPruned   int64
	IsRunning      bool
}

// PrunerOption configures a Pruner.
type PrunerOption func(*Pruner)

// WithPruneInterval sets the wake-up interval (default 60s).
func WithPruneInterval(interval time.Duration) PrunerOption {
	return func(p *Pruner) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithPrunerStoreTimeout sets the budget for one prune pass.
func WithPrunerStoreTimeout(d time.Duration) PrunerOption {
	return func(p *Pruner) {
		if d > 0 {
			p.opTimeout = d
		}
	}
}

// WithPrunerShutdownTimeout sets the graceful shutdown timeout.
func WithPrunerShutdownTimeout(d time.Duration) PrunerOption {
	return func(p *Pruner) {
		if d > 0 {
			p.shutdownTimeout = d
		}
	}
}

// WithPrunerLogger sets the logger for prune diagnostics.
func WithPrunerLogger(log *slog.Logger) PrunerOption {
	return func(p *Pruner) {
		if log != nil {
			p.log = log
		}
	}
}

// NewPruner creates a TTL pruner. Call Start() to begin pruning.
func NewPruner(store Store, opts ...PrunerOption) *Pruner {
	p := &Pruner{
		store:           store,
		log:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		interval:        60 * time.Second,
		opTimeout:       5 * time.Second,
		shutdownTimeout: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Start begins the prune loop. This is a blocking operation that runs until
// the context is cancelled. Use Run() for errgroup pattern or call this in
// a goroutine.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return fmt.Errorf("pruner already started")
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	p.running.Store(true)
	defer p.running.Store(false)

	p.log.InfoContext(p.ctx, "ttl pruner started", slog.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			p.log.InfoContext(context.Background(), "ttl pruner stopping")
			return p.ctx.Err()
		case <-ticker.C:
			p.pruneWithWait()
		}
	}
}

// Stop gracefully shuts down the pruner with a timeout.
func (p *Pruner) Stop() error {
	p.mu.Lock()
	if p.cancel == nil {
		p.mu.Unlock()
		return fmt.Errorf("pruner not started")
	}

	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	cancel()

	ctx, ctxCancel := context.WithTimeout(context.Background(), p.shutdownTimeout)
	defer ctxCancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.log.WarnContext(context.Background(), "pruner shutdown timeout exceeded",
			slog.Duration("timeout", p.shutdownTimeout))
		return fmt.Errorf("shutdown timeout exceeded after %s", p.shutdownTimeout)
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
func (p *Pruner) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- p.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = p.Stop()
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

// Prune runs a single pass immediately, deleting rows expired before now.
func (p *Pruner) Prune(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, p.opTimeout)
	defer cancel()

	sessions, tokens, err := p.store.PruneExpired(opCtx, time.Now().UTC())
	if err != nil {
		return err
	}

	p.sessionsPruned.Add(sessions)
	p.tokensPruned.Add(tokens)

	if sessions > 0 || tokens > 0 {
		p.log.Info("Pruned expired rows",
			logger.Count64("sessions", sessions), logger.Count64("tokens", tokens))
	}
	return nil
}

// Stats returns observability counters.
func (p *Pruner) Stats() PrunerStats {
	return PrunerStats{
		SessionsPruned: p.sessionsPruned.Load(),
		TokensPruned:   p.tokensPruned.Load(),
		IsRunning:      p.running.Load(),
	}
}

// pruneWithWait wraps Prune so Stop can wait for an in-flight pass.
func (p *Pruner) pruneWithWait() {
	p.mu.Lock()
	if p.cancel == nil {
		p.mu.Unlock()
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	defer p.wg.Done()
	if err := p.Prune(context.Background()); err != nil {
		p.log.Error("Prune pass failed", logger.Error(err))
	}
}
