package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arakoodev/cliscale/core/logger"
	"github.com/arakoodev/cliscale/core/response"
	"github.com/arakoodev/cliscale/core/session"
	"github.com/arakoodev/cliscale/middleware"
)

type createSessionResponse struct {
	SessionID   string    `json:"sessionId"`
	WsURL       string    `json:"wsUrl"`
	Token       string    `json:"token"`
	TerminalURL string    `json:"terminalUrl"`
	Status      string    `json:"status"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type sessionSummaryResponse struct {
	SessionID string    `json:"sessionId"`
	WsURL     string    `json:"wsUrl"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (a *App) createSession(w http.ResponseWriter, r *http.Request) {
	var params session.CreateParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		_ = response.Error(w, a.httpError(r, response.ErrBadRequest.WithMessage("malformed JSON body")))
		return
	}

	result, err := a.svc.CreateSession(r.Context(), params)
	if err != nil {
		a.logError(r, "Session creation failed", err)
		_ = response.Error(w, a.mapServiceError(r, err))
		return
	}

	wsPath := "/ws/" + result.SessionID
	_ = response.JSON(w, http.StatusOK, createSessionResponse{
		SessionID:   result.SessionID,
		WsURL:       wsPath,
		Token:       result.Token,
		TerminalURL: a.terminalURL(wsPath, result.Token),
		Status:      string(result.Status),
		ExpiresAt:   result.ExpiresAt,
	})
}

func (a *App) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sess, err := a.svc.GetSession(r.Context(), id)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			a.logError(r, "Session read failed", err)
		}
		_ = response.Error(w, a.mapServiceError(r, err))
		return
	}

	_ = response.JSON(w, http.StatusOK, sessionSummaryResponse{
		SessionID: sess.ID,
		WsURL:     "/ws/" + sess.ID,
		Status:    string(sess.Status(time.Now().UTC())),
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	})
}

func (a *App) terminalURL(wsPath, tok string) string {
	base := strings.TrimSuffix(a.cfg.GatewayBaseURL, "/")
	return base + wsPath + "?token=" + url.QueryEscape(tok)
}

// mapServiceError translates domain errors into the minimal HTTP bodies
// callers see. Validation details are caller-safe and pass through;
// everything else collapses to its taxonomy class.
func (a *App) mapServiceError(r *http.Request, err error) response.HTTPError {
	var httpErr response.HTTPError
	switch {
	case errors.Is(err, session.ErrInvalidParams):
		httpErr = response.ErrBadRequest.WithMessage(err.Error())
	case errors.Is(err, session.ErrNotFound):
		httpErr = response.ErrNotFound.WithMessage("session not found")
	case errors.Is(err, session.ErrOrchestratorFailure):
		httpErr = response.ErrBadGateway.WithMessage("worker submission failed")
	default:
		httpErr = response.ErrInternalServerError
	}
	return a.httpError(r, httpErr)
}

func (a *App) httpError(r *http.Request, httpErr response.HTTPError) response.HTTPError {
	if id, ok := middleware.GetRequestID(r.Context()); ok {
		return httpErr.WithRequestID(id)
	}
	return httpErr
}

func (a *App) logError(r *http.Request, msg string, err error) {
	attrs := []any{logger.Error(err)}
	if id, ok := middleware.GetRequestID(r.Context()); ok {
		attrs = append(attrs, logger.RequestID(id))
	}
	a.log.Error(msg, attrs...)
}
