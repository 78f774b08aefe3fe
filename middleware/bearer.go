package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/arakoodev/cliscale/core/response"
)

// BearerAuthConfig configures the static bearer credential middleware.
type BearerAuthConfig struct {
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(r *http.Request) bool
	// APIKey is the expected bearer credential. An empty key denies all
	// requests rather than disabling the check.
	APIKey string
	// ErrorHandler handles rejected requests (default: 401 JSON error)
	ErrorHandler func(w http.ResponseWriter, r *http.Request)
}

// BearerAuth creates middleware that authenticates requests against a
// static API key carried in the Authorization header.
func BearerAuth(apiKey string) func(http.Handler) http.Handler {
	return BearerAuthWithConfig(BearerAuthConfig{APIKey: apiKey})
}

// BearerAuthWithConfig creates the bearer credential middleware with custom
// configuration. The key comparison is constant-time so the credential
// cannot be probed through response timing.
func BearerAuthWithConfig(cfg BearerAuthConfig) func(http.Handler) http.Handler {
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(w http.ResponseWriter, r *http.Request) {
			httpErr := response.ErrUnauthorized
			if id, ok := GetRequestID(r.Context()); ok {
				httpErr = httpErr.WithRequestID(id)
			}
			_ = response.Error(w, httpErr)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" || cfg.APIKey == "" ||
				subtle.ConstantTimeCompare([]byte(token), []byte(cfg.APIKey)) != 1 {
				cfg.ErrorHandler(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
