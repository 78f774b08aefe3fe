package middleware

import (
	"net/http"
	"strconv"

	"github.com/arakoodev/cliscale/core/response"
	"github.com/arakoodev/cliscale/pkg/clientip"
	"github.com/arakoodev/cliscale/pkg/ratelimiter"
)

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(r *http.Request) bool
	// Limiter makes the admission decision (required)
	Limiter ratelimiter.RateLimiter
	// KeyFunc derives the rate limit key from the request (default: client IP)
	KeyFunc func(r *http.Request) string
	// ErrorHandler handles denied requests (default: 429 JSON error with Retry-After)
	ErrorHandler func(w http.ResponseWriter, r *http.Request, result *ratelimiter.Result)
	// FailOpen admits requests when the limiter backend fails instead of
	// responding 500 (default: fail closed)
	FailOpen bool
}

// RateLimit creates rate limiting middleware keyed by client IP with
// default configuration.
func RateLimit(limiter ratelimiter.RateLimiter) func(http.Handler) http.Handler {
	return RateLimitWithConfig(RateLimitConfig{Limiter: limiter})
}

// RateLimitWithConfig creates rate limiting middleware with custom
// configuration. Every response carries X-RateLimit-* headers; denied
// requests additionally get Retry-After. Panics if no limiter is provided.
func RateLimitWithConfig(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Limiter == nil {
		panic("ratelimit middleware: limiter is required")
	}

	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(r *http.Request) string {
			if ip, ok := GetClientIP(r.Context()); ok {
				return ip
			}
			return clientip.GetIP(r)
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(w http.ResponseWriter, r *http.Request, result *ratelimiter.Result) {
			retryAfter := int(result.RetryAfter().Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

			httpErr := response.ErrTooManyRequests
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

			result, err := cfg.Limiter.Allow(r.Context(), cfg.KeyFunc(r))
			if err != nil {
				if cfg.FailOpen {
					next.ServeHTTP(w, r)
					return
				}

				httpErr := response.ErrInternalServerError
				if id, ok := GetRequestID(r.Context()); ok {
					httpErr = httpErr.WithRequestID(id)
				}
				_ = response.Error(w, httpErr)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(result.Remaining, 0)))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed() {
				cfg.ErrorHandler(w, r, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
