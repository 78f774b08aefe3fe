// Package response provides JSON response and structured error writing for
// HTTP handlers.
//
// Success responses:
//
//	response.JSON(w, http.StatusCreated, session)
//
// Error responses use HTTPError values, which implement the error interface
// and map to a status code plus a machine-readable code in the body:
//
//	err := response.ErrNotFound.
//		WithMessage("session not found").
//		WithRequestID(reqID)
//	response.Error(w, err)
//
// writes HTTP 404 with body:
//
//	{"code":"not_found","message":"session not found","request_id":"..."}
//
// Unknown error types passed to Error become a generic 500 so internal
// details never reach clients.
package response
