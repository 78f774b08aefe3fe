package gateway

import "time"

// Config holds gateway plane settings with environment variable mapping.
// Exactly one of JWKSURL or PublicKeyPEM selects the verification path:
// remote key set with caching, or a locally shared public key.
type Config struct {
	// JWKSURL is the controller's published key set endpoint.
	JWKSURL string `env:"JWKS_URL"`

	// PublicKeyPEM is the signing key's public half in PEM form, for
	// deployments that share the key by config instead of JWKS.
	PublicKeyPEM string `env:"JWT_PUBLIC_KEY"`

	// AttachPollTimeout bounds the wait for a still-unresolved worker
	// endpoint at attach time.
	AttachPollTimeout time.Duration `env:"ATTACH_POLL_TIMEOUT" envDefault:"5s"`
	// AttachPollInterval paces the endpoint re-reads during that wait.
	AttachPollInterval time.Duration `env:"ATTACH_POLL_INTERVAL" envDefault:"250ms"`

	// StoreOpTimeout bounds a single store operation.
	StoreOpTimeout time.Duration `env:"STORE_OP_TIMEOUT" envDefault:"5s"`

	// WorkerDialTimeout bounds the worker-side WebSocket handshake.
	WorkerDialTimeout time.Duration `env:"WORKER_DIAL_TIMEOUT" envDefault:"10s"`
}
