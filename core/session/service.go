package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arakoodev/cliscale/core/logger"
)

// storeRetryLimit bounds retries of a failed store write. Only failures
// wrapped with ErrTransient are retried.
const storeRetryLimit = 2

// Orchestrator launches and tears down isolated workers. Implementations
// enforce the isolation contract: dedicated namespace, network policy
// restricting ingress to the gateway, active deadline, and hardened
// security context.
type Orchestrator interface {
	// Submit creates the worker lifecycle object and returns its unique
	// orchestrator handle.
	Submit(ctx context.Context, spec WorkerSpec) (workerName string, err error)

	// ResolveEndpoint blocks until the worker's host:port is known or ctx
	// expires. ErrEndpointPending reports that the deadline passed while
	// the worker was still coming up.
	ResolveEndpoint(ctx context.Context, workerName string) (string, error)

	// BestEffortDelete requests asynchronous worker teardown. It never
	// blocks the caller and never reports failure.
	BestEffortDelete(workerName string)
}

// WorkerSpec describes the worker to launch for one session.
type WorkerSpec struct {
	SessionID  string
	CodeURL    string
	Command    string
	InstallCmd string
	Prompt     string

	// TTL becomes the worker's active deadline
	TTL time.Duration
}

// TokenIssuer mints single-use capability tokens bound to a session.
type TokenIssuer interface {
	Issue(sessionID, ownerID string, ttl time.Duration) (token, tokenID string, expiresAt time.Time, err error)
}

// Config holds session service settings with environment variable mapping.
type Config struct {
	SessionTTL            time.Duration `env:"SESSION_TTL" envDefault:"10m"`
	TokenTTL              time.Duration `env:"TOKEN_TTL" envDefault:"5m"`
	ResolveTimeout        time.Duration `env:"ENDPOINT_RESOLVE_TIMEOUT" envDefault:"30s"`
	StoreOpTimeout        time.Duration `env:"STORE_OP_TIMEOUT" envDefault:"5s"`
	OrchestratorOpTimeout time.Duration `env:"ORCHESTRATOR_OP_TIMEOUT" envDefault:"15s"`
	OwnerID               string        `env:"SESSION_OWNER_ID" envDefault:"api"`
}

// CreateResult carries the outcome of an admitted session request.
type CreateResult struct {
	SessionID string
	Token     string
	Status    Status
	ExpiresAt time.Time
}

// Service implements the session controller operations: admission,
// worker submission, token mint, and endpoint resolution with the
// durable write order putSession, issue, putJti.
type Service struct {
	store    Store
	orch     Orchestrator
	issuer   TokenIssuer
	resolver *Resolver
	log      *slog.Logger
	cfg      Config
}

// ServiceOption configures optional Service dependencies.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger for service diagnostics.
func WithServiceLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithResolver attaches a background resolver that takes over endpoint
// resolution when the in-request budget expires.
func WithResolver(r *Resolver) ServiceOption {
	return func(s *Service) {
		s.resolver = r
	}
}

// NewService creates a session service. Zero config fields fall back to
// production defaults; a session TTL below the token TTL is rejected since
// a token must never outlive its session.
func NewService(store Store, orch Orchestrator, issuer TokenIssuer, cfg Config, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("session service requires a store")
	}
	if orch == nil {
		return nil, errors.New("session service requires an orchestrator")
	}
	if issuer == nil {
		return nil, errors.New("session service requires a token issuer")
	}

	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 10 * time.Minute
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 5 * time.Minute
	}
	if cfg.SessionTTL < cfg.TokenTTL {
		return nil, fmt.Errorf("session TTL %s must be at least token TTL %s", cfg.SessionTTL, cfg.TokenTTL)
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = 30 * time.Second
	}
	if cfg.StoreOpTimeout <= 0 {
		cfg.StoreOpTimeout = 5 * time.Second
	}
	if cfg.OrchestratorOpTimeout <= 0 {
		cfg.OrchestratorOpTimeout = 15 * time.Second
	}
	if cfg.OwnerID == "" {
		cfg.OwnerID = "api"
	}

	s := &Service{
		store:  store,
		orch:   orch,
		issuer: issuer,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateSession admits a job request: validates the body, submits the
// worker, inserts the session row, mints the capability token, records the
// jti, and waits a bounded time for the worker endpoint. A resolution
// timeout is not a failure; the session returns with pending status and
// the background resolver fills the endpoint later.
func (s *Service) CreateSession(ctx context.Context, params CreateParams) (*CreateResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	id := uuid.NewString()

	submitCtx, cancel := context.WithTimeout(ctx, s.cfg.OrchestratorOpTimeout)
	workerName, err := s.orch.Submit(submitCtx, WorkerSpec{
		SessionID:  id,
		CodeURL:    params.CodeURL,
		Command:    params.Command,
		InstallCmd: params.InstallCmd,
		Prompt:     params.Prompt,
		TTL:        s.cfg.SessionTTL,
	})
	cancel()
	if err != nil {
		return nil, errors.Join(ErrOrchestratorFailure, err)
	}

	sess := Session{
		ID:         id,
		OwnerID:    s.cfg.OwnerID,
		WorkerName: workerName,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.cfg.SessionTTL),
	}

	if err := s.storeWrite(ctx, func(ctx context.Context) error {
		return s.store.PutSession(ctx, sess)
	}); err != nil {
		s.orch.BestEffortDelete(workerName)
		return nil, errors.Join(ErrStoreFailure, err)
	}

	token, tokenID, tokenExp, err := s.issuer.Issue(id, s.cfg.OwnerID, s.cfg.TokenTTL)
	if err != nil {
		s.orch.BestEffortDelete(workerName)
		return nil, fmt.Errorf("issue token: %w", err)
	}

	if err := s.storeWrite(ctx, func(ctx context.Context) error {
		return s.store.PutJti(ctx, TokenRecord{TokenID: tokenID, SessionID: id, ExpiresAt: tokenExp})
	}); err != nil {
		s.orch.BestEffortDelete(workerName)
		return nil, errors.Join(ErrStoreFailure, err)
	}

	result := &CreateResult{
		SessionID: id,
		Token:     token,
		Status:    s.fillEndpoint(ctx, sess),
		ExpiresAt: sess.ExpiresAt,
	}
	return result, nil
}

// fillEndpoint waits for the worker endpoint within the in-request budget
// and persists it. Any resolution or update failure degrades to pending
// status: the session and token are already durable, so the background
// resolver and the gateway's attach-time poll pick up from here.
func (s *Service) fillEndpoint(ctx context.Context, sess Session) Status {
	resolveCtx, cancel := context.WithTimeout(ctx, s.cfg.ResolveTimeout)
	endpoint, err := s.orch.ResolveEndpoint(resolveCtx, sess.WorkerName)
	cancel()
	if err != nil {
		if !errors.Is(err, ErrEndpointPending) {
			s.log.Warn("Worker endpoint resolution failed",
				logger.SessionID(sess.ID), logger.WorkerName(sess.WorkerName), logger.Error(err))
		}
		s.deferResolution(sess)
		return StatusPending
	}

	if err := s.storeWrite(ctx, func(ctx context.Context) error {
		return s.store.UpdateSessionEndpoint(ctx, sess.ID, endpoint)
	}); err != nil {
		if errors.Is(err, ErrEndpointAlreadySet) {
			return StatusReady
		}
		s.log.Warn("Worker endpoint update failed",
			logger.SessionID(sess.ID), logger.Endpoint(endpoint), logger.Error(err))
		s.deferResolution(sess)
		return StatusPending
	}

	s.log.Info("Worker endpoint resolved",
		logger.SessionID(sess.ID), logger.Endpoint(endpoint))
	return StatusReady
}

func (s *Service) deferResolution(sess Session) {
	if s.resolver == nil {
		return
	}
	if !s.resolver.Enqueue(sess.ID, sess.WorkerName, sess.ExpiresAt) {
		s.log.Warn("Background resolver rejected session",
			logger.SessionID(sess.ID), logger.WorkerName(sess.WorkerName))
	}
}

// GetSession reads one session row. Expired rows still pending deletion by
// the pruner are returned as-is; the summary's derived status reports them
// as expired.
func (s *Service) GetSession(ctx context.Context, sessionID string) (Session, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreOpTimeout)
	defer cancel()

	sess, err := s.store.GetSession(opCtx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrNotFound
		}
		return Session{}, errors.Join(ErrStoreFailure, err)
	}
	return sess, nil
}

// storeWrite runs one store operation under the per-op timeout, retrying
// transient failures at most storeRetryLimit times with a short backoff.
func (s *Service) storeWrite(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreOpTimeout)
		err = op(opCtx)
		cancel()
		if err == nil || !errors.Is(err, ErrTransient) || attempt >= storeRetryLimit {
			return err
		}

		s.log.Debug("Retrying store write", logger.Attempt(attempt+1), logger.Error(err))
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt+1) * 50 * time.Millisecond):
		}
	}
}
