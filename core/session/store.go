package session

import (
	"context"
	"time"
)

// Store is the durable mapping shared by the controller and gateway planes.
// Every operation is atomic; implementations must be safe for concurrent
// use across goroutines and replicas.
type Store interface {
	// PutSession inserts a new session row. Returns ErrAlreadyExists on a
	// duplicate session ID.
	PutSession(ctx context.Context, s Session) error

	// UpdateSessionEndpoint fills the worker endpoint exactly once. Returns
	// ErrEndpointAlreadySet when the endpoint is already filled and
	// ErrNotFound when no such session exists.
	UpdateSessionEndpoint(ctx context.Context, sessionID, endpoint string) error

	// GetSession reads a session row. Returns ErrNotFound when absent.
	GetSession(ctx context.Context, sessionID string) (Session, error)

	// PutJti inserts a token record. Returns ErrAlreadyExists on a
	// duplicate token ID.
	PutJti(ctx context.Context, rec TokenRecord) error

	// ConsumeJti deletes the token record and returns its session ID.
	// Exactly one concurrent caller succeeds; all others get
	// ErrTokenConsumed.
	ConsumeJti(ctx context.Context, tokenID string) (string, error)

	// PruneExpired bulk-deletes rows with expiry before the given instant
	// from both tables and reports the deleted counts. Idempotent and safe
	// under concurrent pruners.
	PruneExpired(ctx context.Context, before time.Time) (sessions, tokens int64, err error)

	// Healthcheck verifies store reachability.
	Healthcheck(ctx context.Context) error
}
