package gateway

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/arakoodev/cliscale/core/health"
	"github.com/arakoodev/cliscale/core/proxy"
	"github.com/arakoodev/cliscale/core/session"
	"github.com/arakoodev/cliscale/core/token"
	"github.com/arakoodev/cliscale/middleware"
)

// ttydSubprotocol is the terminal server's WebSocket subprotocol; the
// gateway negotiates it on both halves and relays the protocol untouched.
const ttydSubprotocol = "tty"

// App is the gateway plane's HTTP and WebSocket surface.
type App struct {
	cfg      Config
	store    session.Store
	verifier token.Verifier
	relay    *proxy.Proxy
	log      *slog.Logger

	upgrader websocket.Upgrader
	dialer   *websocket.Dialer
}

// Option configures optional App dependencies.
type Option func(*App)

// WithLogger sets the logger for attach diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(a *App) {
		if log != nil {
			a.log = log
		}
	}
}

// New wires the gateway app over the shared store, a token verifier, and
// the relay.
func New(cfg Config, store session.Store, verifier token.Verifier, relay *proxy.Proxy, opts ...Option) (*App, error) {
	if store == nil {
		return nil, errors.New("gateway app requires the store")
	}
	if verifier == nil {
		return nil, errors.New("gateway app requires a token verifier")
	}
	if relay == nil {
		return nil, errors.New("gateway app requires the relay")
	}
	if cfg.AttachPollTimeout <= 0 {
		cfg.AttachPollTimeout = 5 * time.Second
	}
	if cfg.AttachPollInterval <= 0 {
		cfg.AttachPollInterval = 250 * time.Millisecond
	}
	if cfg.StoreOpTimeout <= 0 {
		cfg.StoreOpTimeout = 5 * time.Second
	}
	if cfg.WorkerDialTimeout <= 0 {
		cfg.WorkerDialTimeout = 10 * time.Second
	}

	a := &App{
		cfg:      cfg,
		store:    store,
		verifier: verifier,
		relay:    relay,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			Subprotocols:    []string{ttydSubprotocol},
			// The terminal page may be opened from the controller-returned
			// terminal URL on another origin; the capability token is the
			// access control, not the Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		dialer: &websocket.Dialer{
			Subprotocols: []string{ttydSubprotocol},
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.dialer.HandshakeTimeout = a.cfg.WorkerDialTimeout
	return a, nil
}

// Router builds the gateway's HTTP surface.
func (a *App) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	r.Use(middleware.ClientIP())
	r.Use(middleware.LoggingWithConfig(middleware.LoggingConfig{
		Logger: a.log,
		Skip:   func(r *http.Request) bool { return r.URL.Path == "/healthz" },
	}))

	r.Get("/healthz", health.Handler(a.log, a.store.Healthcheck))
	r.With(middleware.SecurityHeadersWithConfig(middleware.TerminalSecurity)).
		Get("/ws/{sessionID}", a.attach)

	return r
}
