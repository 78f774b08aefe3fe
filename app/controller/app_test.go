package controller_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arakoodev/cliscale/app/controller"
	"github.com/arakoodev/cliscale/core/session"
	"github.com/arakoodev/cliscale/core/token"
	"github.com/arakoodev/cliscale/pkg/ratelimiter"
)

const testAPIKey = "test-api-key"

// fakeOrchestrator satisfies session.Orchestrator for handler tests.
type fakeOrchestrator struct {
	mu           sync.Mutex
	submitErr    error
	neverResolve bool
	endpoint     string
	submitted    int
	deleted      []string
}

func (f *fakeOrchestrator) Submit(ctx context.Context, spec session.WorkerSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted++
	return fmt.Sprintf("worker-%d", f.submitted), nil
}

func (f *fakeOrchestrator) ResolveEndpoint(ctx context.Context, workerName string) (string, error) {
	f.mu.Lock()
	never := f.neverResolve
	endpoint := f.endpoint
	f.mu.Unlock()

	if never {
		<-ctx.Done()
		return "", fmt.Errorf("%w: %w", session.ErrEndpointPending, ctx.Err())
	}
	if endpoint == "" {
		endpoint = "10.0.0.1:7681"
	}
	return endpoint, nil
}

func (f *fakeOrchestrator) BestEffortDelete(workerName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, workerName)
}

type testEnv struct {
	srv    *httptest.Server
	store  *session.MemoryStore
	orch   *fakeOrchestrator
	signer *token.Signer
}

func newTestEnv(t *testing.T, orch *fakeOrchestrator) *testEnv {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signer, err := token.NewSigner(key)
	require.NoError(t, err)

	store := session.NewMemoryStore()
	svc, err := session.NewService(store, orch, signer, session.Config{
		SessionTTL:     10 * time.Minute,
		TokenTTL:       5 * time.Minute,
		ResolveTimeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)

	limiter, err := ratelimiter.NewLimiter(ratelimiter.NewMemoryStore(), ratelimiter.Config{
		Limit:  5,
		Window: time.Minute,
	})
	require.NoError(t, err)

	app, err := controller.New(controller.Config{
		APIKey:         testAPIKey,
		GatewayBaseURL: "https://terminal.example.com",
	}, svc, store, signer, limiter)
	require.NoError(t, err)

	srv := httptest.NewServer(app.Router())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: store, orch: orch, signer: signer}
}

func (e *testEnv) post(t *testing.T, apiKey string, body map[string]any) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/api/sessions", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func validBody() map[string]any {
	return map[string]any{
		"code_url": "https://github.com/x/y/tree/main/p",
		"command":  "node index.js",
	}
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestCreateSession(t *testing.T) {
	t.Parallel()

	t.Run("happy path", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &fakeOrchestrator{})
		resp := env.post(t, testAPIKey, validBody())
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode[map[string]any](t, resp)
		sessionID, _ := body["sessionId"].(string)
		assert.Len(t, sessionID, 36)
		assert.Equal(t, "/ws/"+sessionID, body["wsUrl"])
		assert.Equal(t, "ready", body["status"])

		tok, _ := body["token"].(string)
		assert.Len(t, strings.Split(tok, "."), 3)

		terminalURL, _ := body["terminalUrl"].(string)
		assert.Contains(t, terminalURL, sessionID)
		assert.Contains(t, terminalURL, "token=")

		// The returned token must verify against the concurrently
		// published key set.
		claims, err := token.NewVerifier(env.signer.PublicKey()).Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, sessionID, claims.SessionID)

		// And its jti must already be durable: consumption succeeds once.
		sid, err := env.store.ConsumeJti(context.Background(), claims.ID)
		require.NoError(t, err)
		assert.Equal(t, sessionID, sid)
	})

	t.Run("wrong api key is unauthorized", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &fakeOrchestrator{})
		resp := env.post(t, "wrong-key", validBody())
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("validation failures are bad requests", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &fakeOrchestrator{})

		for name, body := range map[string]map[string]any{
			"missing command":      {"code_url": "https://github.com/x/y/tree/main/p"},
			"backtick in code url": {"code_url": "https://example.com/a`b.zip", "command": "node index.js"},
			"shell expansion":      {"code_url": "https://github.com/x/y/tree/main/p", "command": "node $(whoami)"},
			"unsupported code url": {"code_url": "https://example.com/code", "command": "node index.js"},
		} {
			resp := env.post(t, testAPIKey, body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, name)
		}
	})

	t.Run("command length boundary", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &fakeOrchestrator{})

		body := validBody()
		body["command"] = strings.Repeat("a", 500)
		resp := env.post(t, testAPIKey, body)
		assert.Equal(t, http.StatusOK, resp.StatusCode, "exactly 500 bytes is accepted")

		body["command"] = strings.Repeat("a", 501)
		resp = env.post(t, testAPIKey, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "501 bytes is rejected")
	})

	t.Run("sixth request in the window is throttled", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &fakeOrchestrator{})

		for i := 1; i <= 5; i++ {
			resp := env.post(t, testAPIKey, validBody())
			assert.Equal(t, http.StatusOK, resp.StatusCode, "request %d", i)
		}

		resp := env.post(t, testAPIKey, validBody())
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	})

	t.Run("unresolved endpoint reports pending", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &fakeOrchestrator{neverResolve: true})
		resp := env.post(t, testAPIKey, validBody())
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode[map[string]any](t, resp)
		assert.Equal(t, "pending", body["status"])
		assert.NotEmpty(t, body["token"])
	})

	t.Run("orchestrator failure is a bad gateway", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &fakeOrchestrator{submitErr: fmt.Errorf("quota exceeded")})
		resp := env.post(t, testAPIKey, validBody())
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

		body := decode[map[string]any](t, resp)
		assert.NotContains(t, fmt.Sprint(body["message"]), "quota", "internals must not leak")
	})
}

func TestGetSession(t *testing.T) {
	t.Parallel()

	t.Run("existing session summary", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &fakeOrchestrator{})
		created := decode[map[string]any](t, env.post(t, testAPIKey, validBody()))
		sessionID, _ := created["sessionId"].(string)

		req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/api/sessions/"+sessionID, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		summary := decode[map[string]any](t, resp)
		assert.Equal(t, sessionID, summary["sessionId"])
		assert.Equal(t, "ready", summary["status"])
	})

	t.Run("unknown session is not found", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &fakeOrchestrator{})
		req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/api/sessions/does-not-exist", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestProbesAndJWKS(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &fakeOrchestrator{})

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(env.srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	resp, err := http.Get(env.srv.URL + "/.well-known/jwks.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "public, max-age=300", resp.Header.Get("Cache-Control"))

	var doc token.JWKS
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	require.Len(t, doc.Keys, 1)
	assert.Equal(t, env.signer.KeyID(), doc.Keys[0].Kid)
}
