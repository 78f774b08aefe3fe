package controller

import "time"

// Config holds controller plane settings with environment variable
// mapping. The signing key arrives as PEM, inline or by file path;
// exactly one source must be set.
type Config struct {
	// APIKey is the shared secret API callers present as a bearer
	// credential.
	APIKey string `env:"API_KEY,required"`

	// SigningKeyPEM is the RSA private key in PEM form.
	SigningKeyPEM string `env:"JWT_PRIVATE_KEY"`
	// SigningKeyFile is a path to the PEM key, for secret-mount
	// deployments.
	SigningKeyFile string `env:"JWT_PRIVATE_KEY_FILE"`

	// GatewayBaseURL prefixes the terminal URL returned to callers.
	GatewayBaseURL string `env:"GATEWAY_BASE_URL" envDefault:"http://localhost:8081"`

	// RateLimit admits this many session creations per caller identity
	// within RateLimitWindow.
	RateLimit       int           `env:"RATE_LIMIT_REQUESTS" envDefault:"5"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`

	// RedisURL switches the rate limiter to a shared Redis window across
	// controller replicas. Empty keeps the per-replica memory store.
	RedisURL string `env:"REDIS_URL"`

	// MaxBodyBytes caps request bodies ahead of JSON decoding.
	MaxBodyBytes int64 `env:"MAX_BODY_BYTES" envDefault:"1048576"`
}
