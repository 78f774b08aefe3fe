package controller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arakoodev/cliscale/core/health"
	"github.com/arakoodev/cliscale/core/session"
	"github.com/arakoodev/cliscale/core/token"
	"github.com/arakoodev/cliscale/middleware"
	"github.com/arakoodev/cliscale/pkg/ratelimiter"
)

// App is the controller plane's HTTP surface.
type App struct {
	cfg     Config
	svc     *session.Service
	store   session.Store
	signer  *token.Signer
	limiter ratelimiter.RateLimiter
	log     *slog.Logger
}

// Option configures optional App dependencies.
type Option func(*App)

// WithLogger sets the logger for the app's middleware and probes.
func WithLogger(log *slog.Logger) Option {
	return func(a *App) {
		if log != nil {
			a.log = log
		}
	}
}

// New wires the controller app. The limiter gates session creation only;
// reads and probes stay unthrottled.
func New(cfg Config, svc *session.Service, store session.Store, signer *token.Signer, limiter ratelimiter.RateLimiter, opts ...Option) (*App, error) {
	if svc == nil {
		return nil, errors.New("controller app requires the session service")
	}
	if store == nil {
		return nil, errors.New("controller app requires the store")
	}
	if signer == nil {
		return nil, errors.New("controller app requires the signer")
	}
	if limiter == nil {
		return nil, errors.New("controller app requires a rate limiter")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("controller app requires an API key")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	a := &App{
		cfg:     cfg,
		svc:     svc,
		store:   store,
		signer:  signer,
		limiter: limiter,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Router builds the controller's HTTP surface.
func (a *App) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	r.Use(middleware.ClientIP())
	r.Use(middleware.LoggingWithConfig(middleware.LoggingConfig{
		Logger: a.log,
		Skip:   probeSkip,
	}))
	r.Use(middleware.SecurityHeaders())

	r.Get("/healthz", health.Handler(a.log, a.store.Healthcheck))
	r.Get("/readyz", health.Handler(a.log, a.store.Healthcheck, a.signingKeyLoaded))
	r.Get("/.well-known/jwks.json", token.JWKSHandler(a.signer))

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.BearerAuth(a.cfg.APIKey))
		api.Use(middleware.BodyLimitWithSize(a.cfg.MaxBodyBytes))

		api.With(middleware.RateLimit(a.limiter)).Post("/sessions", a.createSession)
		api.Get("/sessions/{id}", a.getSession)
	})

	return r
}

// signingKeyLoaded is the readiness check for the key material: the app
// cannot be constructed without a signer, so once running it always
// passes. It exists so readiness and liveness stay distinct probes.
func (a *App) signingKeyLoaded(context.Context) error {
	if a.signer == nil {
		return errors.New("signing key not loaded")
	}
	return nil
}

func probeSkip(r *http.Request) bool {
	return r.URL.Path == "/healthz" || r.URL.Path == "/readyz"
}
