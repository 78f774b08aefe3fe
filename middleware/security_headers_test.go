package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arakoodev/cliscale/middleware"
)

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("default api configuration", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		middleware.SecurityHeaders()(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
		assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
		assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")
		assert.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=")
	})

	t.Run("terminal configuration allows inline script and websocket", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		middleware.SecurityHeadersWithConfig(middleware.TerminalSecurity)(okHandler).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/abc", nil))

		csp := rec.Header().Get("Content-Security-Policy")
		assert.Contains(t, csp, "script-src 'unsafe-inline'")
		assert.Contains(t, csp, "connect-src 'self' ws: wss:")
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	})

	t.Run("development mode drops hsts", func(t *testing.T) {
		t.Parallel()

		cfg := middleware.APISecurity
		cfg.IsDevelopment = true

		rec := httptest.NewRecorder()
		middleware.SecurityHeadersWithConfig(cfg)(okHandler).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	})

	t.Run("custom headers applied", func(t *testing.T) {
		t.Parallel()

		cfg := middleware.SecurityHeadersConfig{
			CustomHeaders: map[string]string{"X-Service": "gateway"},
		}

		rec := httptest.NewRecorder()
		middleware.SecurityHeadersWithConfig(cfg)(okHandler).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, "gateway", rec.Header().Get("X-Service"))
	})

	t.Run("skip bypasses headers", func(t *testing.T) {
		t.Parallel()

		cfg := middleware.APISecurity
		cfg.Skip = func(r *http.Request) bool { return true }

		rec := httptest.NewRecorder()
		middleware.SecurityHeadersWithConfig(cfg)(okHandler).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Empty(t, rec.Header().Get("X-Content-Type-Options"))
	})
}
