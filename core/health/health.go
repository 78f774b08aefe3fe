package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/arakoodev/cliscale/core/logger"
)

// checkTimeout bounds the total time spent on dependency checks so a hung
// dependency cannot stall the probe endpoint.
const checkTimeout = 5 * time.Second

// Handler creates a health check handler that can serve as both a liveness
// and readiness probe depending on the provided dependency functions.
//
// When no dependency functions are provided, the handler always reports ok,
// indicating only that the process is running.
//
// When dependency functions are provided, each is executed in sequence under
// a shared timeout. If all succeed the handler reports ok; if any fails, the
// error is logged and the handler responds 503.
//
// Example:
//
//	// Liveness probe with a store connectivity check.
//	mux.Get("/healthz", health.Handler(log, pg.Healthcheck(pool)))
//
//	// Readiness probe additionally requires the signing key.
//	mux.Get("/readyz", health.Handler(log, pg.Healthcheck(pool), signer.Healthcheck()))
func Handler(log *slog.Logger, fn ...func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(fn) > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()

			for _, f := range fn {
				if err := f(ctx); err != nil {
					log.ErrorContext(ctx, "Health check failed", logger.Error(err))
					writeStatus(w, http.StatusServiceUnavailable, "unavailable")
					return
				}
			}
		}

		writeStatus(w, http.StatusOK, "ok")
	}
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"status":"` + status + `"}`))
}
