// Package gateway assembles the WebSocket gateway plane: it serves the
// terminal page, verifies and atomically consumes capability tokens, and
// proxies attached clients to their worker's terminal server.
//
// The gateway never calls the controller. Token verification runs against
// the controller's published JWKS (or a locally configured public key),
// and session state comes from the shared store; the two planes couple
// only through durable state.
package gateway
