package pg

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arakoodev/cliscale/core/session"
)

// SessionStore implements session.Store on a pgx connection pool. Each
// operation is a single statement, so atomicity comes from PostgreSQL row
// semantics rather than transactions; in particular ConsumeJti's
// delete-and-return admits exactly one winner under concurrent attaches.
type SessionStore struct {
	pool      *pgxpool.Pool
	closeOnce sync.Once
}

// NewSessionStore creates the PostgreSQL-backed session store.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// Close closes the underlying pool exactly once; repeat calls are no-ops.
func (s *SessionStore) Close() {
	s.closeOnce.Do(s.pool.Close)
}

func (s *SessionStore) PutSession(ctx context.Context, sess session.Session) error {
	const q = `
		INSERT INTO sessions (session_id, owner_id, worker_name, worker_endpoint, created_at, expires_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)`

	_, err := s.pool.Exec(ctx, q,
		sess.ID, sess.OwnerID, sess.WorkerName, sess.WorkerEndpoint, sess.CreatedAt, sess.ExpiresAt)
	if err != nil {
		if IsDuplicateKeyError(err) {
			return errors.Join(session.ErrAlreadyExists, err)
		}
		return wrapTransient(err)
	}
	return nil
}

func (s *SessionStore) UpdateSessionEndpoint(ctx context.Context, sessionID, endpoint string) error {
	const q = `
		UPDATE sessions SET worker_endpoint = $2
		WHERE session_id = $1 AND worker_endpoint IS NULL`

	tag, err := s.pool.Exec(ctx, q, sessionID, endpoint)
	if err != nil {
		return wrapTransient(err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// No row changed: either the endpoint is already filled or the session
	// is gone.
	var filled bool
	err = s.pool.QueryRow(ctx,
		`SELECT worker_endpoint IS NOT NULL FROM sessions WHERE session_id = $1`, sessionID).Scan(&filled)
	switch {
	case IsNotFoundError(err):
		return session.ErrNotFound
	case err != nil:
		return wrapTransient(err)
	case filled:
		return session.ErrEndpointAlreadySet
	default:
		return session.ErrNotFound
	}
}

func (s *SessionStore) GetSession(ctx context.Context, sessionID string) (session.Session, error) {
	const q = `
		SELECT session_id, owner_id, worker_name, COALESCE(worker_endpoint, ''), created_at, expires_at
		FROM sessions WHERE session_id = $1`

	var sess session.Session
	err := s.pool.QueryRow(ctx, q, sessionID).Scan(
		&sess.ID, &sess.OwnerID, &sess.WorkerName, &sess.WorkerEndpoint, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		if IsNotFoundError(err) {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, wrapTransient(err)
	}
	return sess, nil
}

func (s *SessionStore) PutJti(ctx context.Context, rec session.TokenRecord) error {
	const q = `INSERT INTO jti (token_id, session_id, expires_at) VALUES ($1, $2, $3)`

	_, err := s.pool.Exec(ctx, q, rec.TokenID, rec.SessionID, rec.ExpiresAt)
	if err != nil {
		if IsDuplicateKeyError(err) {
			return errors.Join(session.ErrAlreadyExists, err)
		}
		return wrapTransient(err)
	}
	return nil
}

func (s *SessionStore) ConsumeJti(ctx context.Context, tokenID string) (string, error) {
	const q = `DELETE FROM jti WHERE token_id = $1 RETURNING session_id`

	var sessionID string
	err := s.pool.QueryRow(ctx, q, tokenID).Scan(&sessionID)
	if err != nil {
		if IsNotFoundError(err) {
			return "", session.ErrTokenConsumed
		}
		return "", wrapTransient(err)
	}
	return sessionID, nil
}

func (s *SessionStore) PruneExpired(ctx context.Context, before time.Time) (int64, int64, error) {
	sessTag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, before)
	if err != nil {
		return 0, 0, wrapTransient(err)
	}
	jtiTag, err := s.pool.Exec(ctx, `DELETE FROM jti WHERE expires_at < $1`, before)
	if err != nil {
		return sessTag.RowsAffected(), 0, wrapTransient(err)
	}
	return sessTag.RowsAffected(), jtiTag.RowsAffected(), nil
}

func (s *SessionStore) Healthcheck(ctx context.Context) error {
	return Healthcheck(s.pool)(ctx)
}

// wrapTransient tags retriable driver failures with the domain sentinel so
// retry policy upstream stays backend-agnostic.
func wrapTransient(err error) error {
	if IsTransientError(err) {
		return errors.Join(session.ErrTransient, err)
	}
	return err
}
