package session

import "time"

// Status is the externally visible lifecycle state of a session, derived
// from endpoint presence and expiry rather than stored.
type Status string

const (
	// StatusPending means the worker endpoint has not resolved yet.
	StatusPending Status = "pending"
	// StatusReady means the session is routable: endpoint known, not expired.
	StatusReady Status = "ready"
	// StatusExpired means the session lifetime has passed.
	StatusExpired Status = "expired"
)

// Session is one admitted job request with its lifecycle record. ID and
// WorkerName are immutable after creation; WorkerEndpoint transitions from
// empty to set exactly once and is never cleared.
type Session struct {
	// ID is the opaque globally unique session identifier
	ID string

	// OwnerID is the external subject the capability token is minted for
	OwnerID string

	// WorkerName is the orchestrator object handle, unique per session
	WorkerName string

	// WorkerEndpoint is the worker's host:port, empty until resolved
	WorkerEndpoint string

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session lifetime has passed.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Routable reports whether an attach can proceed: the worker endpoint is
// known and the session has not expired.
func (s Session) Routable(now time.Time) bool {
	return s.WorkerEndpoint != "" && !s.Expired(now)
}

// Status derives the session's lifecycle state at the given instant.
func (s Session) Status(now time.Time) Status {
	switch {
	case s.Expired(now):
		return StatusExpired
	case s.WorkerEndpoint == "":
		return StatusPending
	default:
		return StatusReady
	}
}

// TokenRecord is the durable one-shot record backing a capability token.
// It exists from mint until first successful consumption or TTL pruning,
// whichever comes first.
type TokenRecord struct {
	// TokenID is the token's jti claim, the one-shot key
	TokenID string

	// SessionID references the session the token attaches to
	SessionID string

	ExpiresAt time.Time
}
