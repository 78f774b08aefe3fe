// Package middleware provides HTTP middleware for common cross-cutting
// concerns: request ID propagation, client IP extraction, structured request
// logging, bearer token authentication, rate limiting, request body limits,
// and security headers.
//
// All middleware are standard func(http.Handler) http.Handler wrappers and
// compose with any net/http compatible router:
//
//	r := chi.NewRouter()
//	r.Use(middleware.RequestID())
//	r.Use(middleware.ClientIP())
//	r.Use(middleware.LoggingWithLogger(log))
//	r.Use(middleware.SecurityHeaders())
//
// Each middleware follows a consistent pattern: a zero-argument constructor
// (or one taking the single required dependency) for common use, plus a
// WithConfig constructor for full control. Configuration structs expose a
// Skip predicate to bypass the middleware per request.
//
// # Context helpers
//
// RequestID and ClientIP store their values in the request context.
// Handlers and downstream middleware retrieve them with:
//
//	id, ok := middleware.GetRequestID(r.Context())
//	ip, ok := middleware.GetClientIP(r.Context())
//
// # Ordering
//
// RequestID and ClientIP should run before Logging so the log record
// carries both. RateLimit should run after ClientIP so its default key
// function finds the extracted IP in context. BearerAuth runs after
// RequestID so denial responses carry the request id.
package middleware
