package session

import "errors"

var (
	// ErrNotFound is returned when a session does not exist in the store.
	ErrNotFound = errors.New("session not found")
	// ErrAlreadyExists is returned on duplicate session or token inserts.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrEndpointAlreadySet is returned when a worker endpoint update targets
	// a session whose endpoint is already filled.
	ErrEndpointAlreadySet = errors.New("worker endpoint already set")
	// ErrTokenConsumed is returned when consuming a token record that is
	// absent, either already consumed or never minted.
	ErrTokenConsumed = errors.New("token already consumed or unknown")

	// ErrInvalidParams is returned for request bodies failing validation.
	// The wrapped detail is safe to surface to the caller.
	ErrInvalidParams = errors.New("invalid session parameters")
	// ErrOrchestratorFailure is returned when worker submission fails.
	ErrOrchestratorFailure = errors.New("orchestrator submission failed")
	// ErrStoreFailure is returned when a store operation fails beyond the
	// retry budget.
	ErrStoreFailure = errors.New("store operation failed")

	// ErrEndpointPending reports that the worker endpoint was still
	// unassigned when the resolution deadline expired.
	ErrEndpointPending = errors.New("worker endpoint pending")

	// ErrTransient marks store failures safe to retry. Store
	// implementations wrap retriable driver errors with this sentinel so
	// retry policy stays backend-agnostic.
	ErrTransient = errors.New("transient store failure")
)
