package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/arakoodev/cliscale/core/logger"
	"github.com/arakoodev/cliscale/core/response"
	"github.com/arakoodev/cliscale/core/session"
	"github.com/arakoodev/cliscale/core/token"
	"github.com/arakoodev/cliscale/middleware"
)

// attach runs the gateway's connection state machine. A plain GET serves
// the terminal page; an upgrade walks Received → Verified → Consumed →
// Resolved → Proxying, with WebSocket close codes as the sole failure
// channel once the upgrade succeeds.
func (a *App) attach(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if !websocket.IsWebSocketUpgrade(r) {
		a.serveTerminalPage(w)
		return
	}

	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		_ = response.Error(w, response.ErrUnauthorized.WithMessage("missing token"))
		return
	}

	// Received.
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		a.log.Debug("Upgrade failed", logger.SessionID(sessionID), logger.Error(err))
		return
	}
	defer conn.Close()

	// Verified.
	claims, err := a.verifier.Verify(tokenString)
	if err != nil {
		a.closeWith(conn, websocket.ClosePolicyViolation, verifyCloseReason(err))
		return
	}
	if claims.SessionID != sessionID {
		a.closeWith(conn, websocket.ClosePolicyViolation, "session mismatch")
		return
	}

	// Consumed: the atomic one-shot. Exactly one concurrent attach per
	// token gets past this line.
	consumeCtx, cancel := context.WithTimeout(r.Context(), a.cfg.StoreOpTimeout)
	consumedSession, err := a.store.ConsumeJti(consumeCtx, claims.ID)
	cancel()
	switch {
	case errors.Is(err, session.ErrTokenConsumed):
		a.closeWith(conn, websocket.ClosePolicyViolation, "replayed")
		return
	case err != nil:
		a.logAttachError(r, sessionID, "Token consumption failed", err)
		a.closeWith(conn, websocket.CloseInternalServerErr, "store unavailable")
		return
	case consumedSession != sessionID:
		a.closeWith(conn, websocket.ClosePolicyViolation, "session mismatch")
		return
	}

	// Resolved.
	endpoint, closeCode, closeReason := a.resolveRoutable(r.Context(), sessionID)
	if endpoint == "" {
		a.closeWith(conn, closeCode, closeReason)
		return
	}

	workerConn, resp, err := a.dialer.DialContext(r.Context(), "ws://"+endpoint+"/ws", nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		a.logAttachError(r, sessionID, "Worker dial failed", err)
		a.closeWith(conn, websocket.CloseInternalServerErr, "worker unreachable")
		return
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer workerConn.Close()

	// Proxying.
	a.log.Info("Attach proxying",
		logger.SessionID(sessionID), logger.Endpoint(endpoint))
	if err := a.relay.Relay(r.Context(), conn, workerConn); err != nil {
		a.logAttachError(r, sessionID, "Relay ended abnormally", err)
	}
}

// resolveRoutable reads the session and waits a short bounded time for a
// still-unset worker endpoint. It returns the endpoint, or the close code
// and reason when the session cannot be attached.
func (a *App) resolveRoutable(ctx context.Context, sessionID string) (endpoint string, closeCode int, closeReason string) {
	deadline := time.Now().Add(a.cfg.AttachPollTimeout)

	for {
		opCtx, cancel := context.WithTimeout(ctx, a.cfg.StoreOpTimeout)
		sess, err := a.store.GetSession(opCtx, sessionID)
		cancel()

		switch {
		case errors.Is(err, session.ErrNotFound):
			return "", websocket.CloseInternalServerErr, "unknown session"
		case err != nil:
			a.log.Error("Session read failed", logger.SessionID(sessionID), logger.Error(err))
			return "", websocket.CloseInternalServerErr, "store unavailable"
		}

		now := time.Now().UTC()
		if sess.Expired(now) {
			return "", websocket.ClosePolicyViolation, "expired"
		}
		if sess.Routable(now) {
			return sess.WorkerEndpoint, 0, ""
		}

		// Endpoint still unset; the background resolver may fill it
		// within the attach budget.
		if time.Now().After(deadline) {
			return "", websocket.CloseInternalServerErr, "worker not ready"
		}
		select {
		case <-ctx.Done():
			return "", websocket.CloseGoingAway, "shutting down"
		case <-time.After(a.cfg.AttachPollInterval):
		}
	}
}

func verifyCloseReason(err error) string {
	if errors.Is(err, token.ErrTokenExpired) {
		return "expired"
	}
	return "invalid token"
}

func (a *App) closeWith(conn *websocket.Conn, code int, reason string) {
	a.log.Info("Attach rejected", logger.CloseCode(code), logger.Key("reason", reason))
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func (a *App) logAttachError(r *http.Request, sessionID, msg string, err error) {
	attrs := []any{logger.SessionID(sessionID), logger.Error(err)}
	if id, ok := middleware.GetRequestID(r.Context()); ok {
		attrs = append(attrs, logger.RequestID(id))
	}
	a.log.Error(msg, attrs...)
}
