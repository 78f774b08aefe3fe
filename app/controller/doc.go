// Package controller assembles the session controller plane: the HTTP
// surface that admits job requests, launches workers, mints capability
// tokens, and publishes the verification key set.
//
// The package wires the domain service, signer, store, and rate limiter
// into a chi router; process assembly (config loading, store connection,
// background pruner and resolver) lives in cmd/controller.
package controller
