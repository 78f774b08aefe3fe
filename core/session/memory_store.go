package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and single-process
// development. Operations are mutex-guarded and mirror the durable
// implementation's semantics, including one-shot endpoint updates and
// delete-and-return token consumption.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	tokens   map[string]TokenRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		tokens:   make(map[string]TokenRecord),
	}
}

func (m *MemoryStore) PutSession(ctx context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.ID]; exists {
		return ErrAlreadyExists
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) UpdateSessionEndpoint(ctx context.Context, sessionID, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[sessionID]
	if !exists {
		return ErrNotFound
	}
	if s.WorkerEndpoint != "" {
		return ErrEndpointAlreadySet
	}
	s.WorkerEndpoint = endpoint
	m.sessions[sessionID] = s
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, sessionID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[sessionID]
	if !exists {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) PutJti(ctx context.Context, rec TokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tokens[rec.TokenID]; exists {
		return ErrAlreadyExists
	}
	m.tokens[rec.TokenID] = rec
	return nil
}

func (m *MemoryStore) ConsumeJti(ctx context.Context, tokenID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.tokens[tokenID]
	if !exists {
		return "", ErrTokenConsumed
	}
	delete(m.tokens, tokenID)
	return rec.SessionID, nil
}

func (m *MemoryStore) PruneExpired(ctx context.Context, before time.Time) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sessions, tokens int64
	for id, s := range m.sessions {
		if s.ExpiresAt.Before(before) {
			delete(m.sessions, id)
			sessions++
		}
	}
	for id, rec := range m.tokens {
		if rec.ExpiresAt.Before(before) {
			delete(m.tokens, id)
			tokens++
		}
	}
	return sessions, tokens, nil
}

func (m *MemoryStore) Healthcheck(ctx context.Context) error {
	return nil
}
