package gateway_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arakoodev/cliscale/app/gateway"
	"github.com/arakoodev/cliscale/core/proxy"
	"github.com/arakoodev/cliscale/core/session"
	"github.com/arakoodev/cliscale/core/token"
)

type testEnv struct {
	srv    *httptest.Server
	store  *session.MemoryStore
	signer *token.Signer
	worker *httptest.Server
}

// newTestEnv builds a gateway over a memory store, a local-key verifier,
// and a fake worker terminal server that greets then echoes.
func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvBase(t, nil)
}

// newTestEnvBase additionally threads base into every request context,
// standing in for the lifecycle context the production server derives
// request contexts from.
func newTestEnvBase(t *testing.T, base context.Context) *testEnv {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signer, err := token.NewSigner(key)
	require.NoError(t, err)

	upgrader := websocket.Upgrader{Subprotocols: []string{"tty"}}
	worker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if err := conn.WriteMessage(websocket.TextMessage, []byte("ready")); err != nil {
			return
		}
		for {
			msgType, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(msgType, payload); err != nil {
				return
			}
		}
	}))
	t.Cleanup(worker.Close)

	store := session.NewMemoryStore()
	app, err := gateway.New(gateway.Config{
		AttachPollTimeout:  300 * time.Millisecond,
		AttachPollInterval: 20 * time.Millisecond,
	}, store, token.NewVerifier(signer.PublicKey()), proxy.New(proxy.Config{}))
	require.NoError(t, err)

	var handler http.Handler = app.Router()
	if base != nil {
		inner := handler
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			inner.ServeHTTP(w, r.WithContext(base))
		})
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, store: store, signer: signer, worker: worker}
}

func (e *testEnv) workerEndpoint() string {
	return strings.TrimPrefix(e.worker.URL, "http://")
}

// mintSession mirrors the controller's write order: session row, token,
// jti record. An empty endpoint leaves the session pending.
func (e *testEnv) mintSession(t *testing.T, endpoint string, tokenTTL time.Duration) (sessionID, tok string) {
	t.Helper()

	now := time.Now().UTC()
	sessionID = "11111111-2222-3333-4444-555555555555"

	require.NoError(t, e.store.PutSession(context.Background(), session.Session{
		ID:             sessionID,
		OwnerID:        "api",
		WorkerName:     "worker-1",
		WorkerEndpoint: endpoint,
		CreatedAt:      now,
		ExpiresAt:      now.Add(10 * time.Minute),
	}))

	tok, jti, exp, err := e.signer.Issue(sessionID, "api", tokenTTL)
	require.NoError(t, err)
	require.NoError(t, e.store.PutJti(context.Background(), session.TokenRecord{
		TokenID: jti, SessionID: sessionID, ExpiresAt: exp,
	}))
	return sessionID, tok
}

func (e *testEnv) dial(sessionID, tok string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws/" + sessionID + "?token=" + tok
	return websocket.DefaultDialer.Dial(url, nil)
}

// readResult reads one frame: the worker greeting on success, or the
// close error the gateway rejected with.
func readResult(t *testing.T, conn *websocket.Conn) (payload string, closeErr *websocket.CloseError) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	if err == nil {
		return string(data), nil
	}
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce, "expected close frame, got: %v", err)
	return "", ce
}

func TestAttach(t *testing.T) {
	t.Parallel()

	t.Run("plain GET serves the terminal page", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		resp, err := http.Get(env.srv.URL + "/ws/some-session")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "WebSocket")
	})

	t.Run("happy path proxies to the worker", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		sid, tok := env.mintSession(t, env.workerEndpoint(), 5*time.Minute)

		conn, resp, err := env.dial(sid, tok)
		require.NoError(t, err)
		defer conn.Close()
		resp.Body.Close()

		greeting, closeErr := readResult(t, conn)
		require.Nil(t, closeErr)
		assert.Equal(t, "ready", greeting)

		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("ls -la\r")))
		echoed, closeErr := readResult(t, conn)
		require.Nil(t, closeErr)
		assert.Equal(t, "ls -la\r", echoed)
	})

	t.Run("concurrent replays admit exactly one attach", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		sid, tok := env.mintSession(t, env.workerEndpoint(), 5*time.Minute)

		const attempts = 2
		results := make(chan *websocket.CloseError, attempts)
		var wg sync.WaitGroup
		for range attempts {
			wg.Add(1)
			go func() {
				defer wg.Done()
				conn, resp, err := env.dial(sid, tok)
				if err != nil {
					results <- &websocket.CloseError{Code: -1, Text: err.Error()}
					return
				}
				defer conn.Close()
				resp.Body.Close()

				_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
				_, _, err = conn.ReadMessage()
				if err == nil {
					results <- nil
					return
				}
				var closeErr *websocket.CloseError
				if !errors.As(err, &closeErr) {
					closeErr = &websocket.CloseError{Code: -1, Text: err.Error()}
				}
				results <- closeErr
			}()
		}
		wg.Wait()
		close(results)

		var proxying, replayed int
		for closeErr := range results {
			switch {
			case closeErr == nil:
				proxying++
			case closeErr.Code == websocket.ClosePolicyViolation && closeErr.Text == "replayed":
				replayed++
			default:
				t.Fatalf("unexpected outcome: %+v", closeErr)
			}
		}
		assert.Equal(t, 1, proxying)
		assert.Equal(t, 1, replayed)
	})

	t.Run("expired token closes without consuming the jti", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		sid, tok := env.mintSession(t, env.workerEndpoint(), time.Millisecond)
		time.Sleep(10 * time.Millisecond)

		conn, resp, err := env.dial(sid, tok)
		require.NoError(t, err)
		defer conn.Close()
		resp.Body.Close()

		_, closeErr := readResult(t, conn)
		require.NotNil(t, closeErr)
		assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
		assert.Equal(t, "expired", closeErr.Text)

		// Verification failed before consumption, so the one-shot record
		// must survive.
		claims, err := parseUnverifiedJTI(tok)
		require.NoError(t, err)
		_, err = env.store.ConsumeJti(context.Background(), claims)
		assert.NoError(t, err)
	})

	t.Run("token for another session is rejected", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		_, tok := env.mintSession(t, env.workerEndpoint(), 5*time.Minute)

		conn, resp, err := env.dial("99999999-8888-7777-6666-555555555555", tok)
		require.NoError(t, err)
		defer conn.Close()
		resp.Body.Close()

		_, closeErr := readResult(t, conn)
		require.NotNil(t, closeErr)
		assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
		assert.Equal(t, "session mismatch", closeErr.Text)
	})

	t.Run("missing session row closes with internal error", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		sid := "11111111-2222-3333-4444-555555555555"
		tok, jti, exp, err := env.signer.Issue(sid, "api", 5*time.Minute)
		require.NoError(t, err)
		require.NoError(t, env.store.PutJti(context.Background(), session.TokenRecord{
			TokenID: jti, SessionID: sid, ExpiresAt: exp,
		}))

		conn, resp, err := env.dial(sid, tok)
		require.NoError(t, err)
		defer conn.Close()
		resp.Body.Close()

		_, closeErr := readResult(t, conn)
		require.NotNil(t, closeErr)
		assert.Equal(t, websocket.CloseInternalServerErr, closeErr.Code)
		assert.Equal(t, "unknown session", closeErr.Text)
	})

	t.Run("endpoint resolved during the attach poll", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		sid, tok := env.mintSession(t, "", 5*time.Minute)

		go func() {
			time.Sleep(60 * time.Millisecond)
			_ = env.store.UpdateSessionEndpoint(context.Background(), sid, env.workerEndpoint())
		}()

		conn, resp, err := env.dial(sid, tok)
		require.NoError(t, err)
		defer conn.Close()
		resp.Body.Close()

		greeting, closeErr := readResult(t, conn)
		require.Nil(t, closeErr)
		assert.Equal(t, "ready", greeting)
	})

	t.Run("endpoint never resolving closes after the poll budget", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		sid, tok := env.mintSession(t, "", 5*time.Minute)

		conn, resp, err := env.dial(sid, tok)
		require.NoError(t, err)
		defer conn.Close()
		resp.Body.Close()

		_, closeErr := readResult(t, conn)
		require.NotNil(t, closeErr)
		assert.Equal(t, websocket.CloseInternalServerErr, closeErr.Code)
		assert.Equal(t, "worker not ready", closeErr.Text)
	})

	t.Run("shutdown drains a live relay going away", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		env := newTestEnvBase(t, ctx)
		sid, tok := env.mintSession(t, env.workerEndpoint(), 5*time.Minute)

		conn, resp, err := env.dial(sid, tok)
		require.NoError(t, err)
		defer conn.Close()
		resp.Body.Close()

		greeting, closeErr := readResult(t, conn)
		require.Nil(t, closeErr)
		require.Equal(t, "ready", greeting)

		cancel()

		_, closeErr = readResult(t, conn)
		require.NotNil(t, closeErr)
		assert.Equal(t, websocket.CloseGoingAway, closeErr.Code)
		assert.Equal(t, "shutting down", closeErr.Text)
	})

	t.Run("missing token is a pre-upgrade unauthorized", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws/some-session"
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	resp, err := http.Get(env.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// parseUnverifiedJTI extracts the jti claim without verification; the
// test only needs the one-shot key.
func parseUnverifiedJTI(tok string) (string, error) {
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return "", errors.New("not a compact JWS")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", err
	}
	claims := struct {
		JTI string `json:"jti"`
	}{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", err
	}
	return claims.JTI, nil
}
