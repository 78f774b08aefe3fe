package response

import (
	"encoding/json"
	"errors"
	"net/http"
)

// JSON writes v as an application/json response with the given status.
// Encoding is performed directly to the response writer.
func JSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	// No body for statuses that must not carry one.
	if v == nil || status == http.StatusNoContent || status == http.StatusNotModified {
		return nil
	}

	return json.NewEncoder(w).Encode(v)
}

// String writes s as a text/plain response with the given status.
func String(w http.ResponseWriter, status int, s string) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write([]byte(s))
	return err
}

// Error writes err as a JSON error response. Errors that are not HTTPError
// values are written as 500 internal_server_error so internals never leak
// to clients.
func Error(w http.ResponseWriter, err error) error {
	var httpErr HTTPError
	if !errors.As(err, &httpErr) {
		httpErr = ErrInternalServerError
	}
	return JSON(w, httpErr.Status, httpErr)
}
