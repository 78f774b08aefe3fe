// Package proxy relays bytes between two live WebSocket connections, the
// browser terminal on one side and the worker's terminal server on the
// other.
//
// Frames are forwarded unmodified in both directions. The relay enforces
// the connection discipline on each side independently: keepalive pings
// with a pong deadline, an overall idle timeout, and a backpressure stall
// budget on writes. Either side closing ends the relay; the worker's close
// code propagates to the client while a client-initiated close shuts the
// worker side down normally.
//
// Usage:
//
//	p := proxy.New(proxy.Config{}, proxy.WithLogger(log))
//	err := p.Relay(ctx, clientConn, workerConn)
package proxy
