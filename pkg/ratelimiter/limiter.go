package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Config defines a sliding window limit.
type Config struct {
	// Limit is the maximum number of requests admitted per window.
	Limit int
	// Window is the length of the sliding window.
	Window time.Duration
}

// Result reports the outcome of a rate limit check.
type Result struct {
	Limit     int       // Configured window limit
	Remaining int       // Requests left in the window; negative when denied
	ResetAt   time.Time // When the oldest recorded request leaves the window
}

// Allowed reports whether the request was admitted.
func (r *Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter returns how long the caller should wait before retrying.
// It is zero for admitted requests.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	if d := time.Until(r.ResetAt); d > 0 {
		return d
	}
	return 0
}

// RateLimiter is the contract consumed by HTTP middleware.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// Store persists per-key request logs for sliding window accounting.
// The count-and-admit step must be atomic under concurrent callers.
type Store interface {
	// Take counts the requests inside the window ending at now, admits the
	// current request when the count is below cfg.Limit, and reports the
	// remaining allowance. Remaining is negative when the request was not
	// admitted. ResetAt is the instant the oldest recorded request leaves
	// the window.
	Take(ctx context.Context, key string, cfg Config) (remaining int, resetAt time.Time, err error)

	// Reset removes all recorded requests for the key.
	Reset(ctx context.Context, key string) error
}

// Limiter applies a sliding window limit backed by a Store.
type Limiter struct {
	store Store
	cfg   Config
}

// NewLimiter creates a sliding window limiter. Limit and Window must both
// be positive.
func NewLimiter(store Store, cfg Config) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidConfig, cfg.Limit)
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("%w: window must be positive, got %s", ErrInvalidConfig, cfg.Window)
	}

	return &Limiter{store: store, cfg: cfg}, nil
}

// Allow records one request against the key and reports whether it fits
// inside the window.
func (l *Limiter) Allow(ctx context.Context, key string) (*Result, error) {
	remaining, resetAt, err := l.store.Take(ctx, key, l.cfg)
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	return &Result{
		Limit:     l.cfg.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the recorded requests for the key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Reset(ctx, key)
}
