package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arakoodev/cliscale/core/logger"
)

// Config holds relay settings with environment variable mapping. The zero
// value falls back to production defaults on New.
type Config struct {
	// PingInterval is how often a keepalive ping goes to each side.
	PingInterval time.Duration `env:"PROXY_PING_INTERVAL" envDefault:"30s"`
	// PongTimeout closes both sides when a side stays silent this long.
	PongTimeout time.Duration `env:"PROXY_PONG_TIMEOUT" envDefault:"60s"`
	// IdleTimeout closes the relay when no data crosses in either
	// direction for this long.
	IdleTimeout time.Duration `env:"PROXY_IDLE_TIMEOUT" envDefault:"1h"`
	// StallTimeout bounds a single write; a side that cannot accept
	// writes for this long takes the whole relay down.
	StallTimeout time.Duration `env:"PROXY_STALL_TIMEOUT" envDefault:"10s"`
}

// Proxy relays frames between paired WebSocket connections. One Proxy is
// shared across all attaches of a gateway replica; per-connection state
// lives in Relay.
type Proxy struct {
	cfg Config
	log *slog.Logger
}

// Option configures a Proxy.
type Option func(*Proxy)

// WithLogger sets the logger for relay diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(p *Proxy) {
		if log != nil {
			p.log = log
		}
	}
}

// New creates a relay with the given discipline settings. Zero config
// fields fall back to the production defaults.
func New(cfg Config, opts ...Option) *Proxy {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 60 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = time.Hour
	}
	if cfg.StallTimeout <= 0 {
		cfg.StallTimeout = 10 * time.Second
	}

	p := &Proxy{
		cfg: cfg,
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// side is one half of the relay: the connection plus its write lock, since
// the data pump and the ping loop both write to it.
type side struct {
	name string
	conn *websocket.Conn

	writeMu sync.Mutex
}

// outcome is the first terminal event of a relay; whichever goroutine
// observes it first decides the close codes for both sides.
type outcome struct {
	source string // side name, or "idle" / "shutdown"
	code   int
	reason string
	err    error
}

// Relay forwards frames between client and worker until either side
// closes, a deadline trips, or ctx is cancelled. It blocks for the relay
// lifetime and always leaves both connections closed. The returned error
// reports abnormal termination only; a clean close by either side is nil.
func (p *Proxy) Relay(ctx context.Context, client, worker *websocket.Conn) error {
	if client == nil || worker == nil {
		return errors.New("proxy: both connections are required")
	}

	c := &side{name: "client", conn: client}
	w := &side{name: "worker", conn: worker}

	var lastActivity atomic.Int64
	lastActivity.Store(time.Now().UnixNano())

	var once sync.Once
	result := make(chan outcome, 1)
	report := func(o outcome) {
		once.Do(func() { result <- o })
	}

	relayCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(4)
	go p.pump(&wg, c, w, &lastActivity, report)
	go p.pump(&wg, w, c, &lastActivity, report)
	go p.keepalive(relayCtx, &wg, c, report)
	go p.keepalive(relayCtx, &wg, w, report)

	idle := time.NewTicker(idleCheckInterval(p.cfg.IdleTimeout))
	defer idle.Stop()

	var final outcome
loop:
	for {
		select {
		case final = <-result:
			break loop
		case <-ctx.Done():
			final = outcome{source: "shutdown", code: websocket.CloseGoingAway, reason: "shutting down"}
			report(final)
			break loop
		case <-idle.C:
			if time.Since(time.Unix(0, lastActivity.Load())) > p.cfg.IdleTimeout {
				final = outcome{source: "idle", code: websocket.CloseGoingAway, reason: "idle timeout"}
				report(final)
				break loop
			}
		}
	}

	p.shutdown(c, w, final)
	cancel()

	// Force-close unblocks any pump still parked in ReadMessage.
	_ = client.Close()
	_ = worker.Close()
	wg.Wait()

	if final.err != nil {
		return fmt.Errorf("proxy relay ended abnormally: %w", final.err)
	}
	return nil
}

// pump forwards frames from src to dst until src fails or closes.
func (p *Proxy) pump(wg *sync.WaitGroup, src, dst *side, lastActivity *atomic.Int64, report func(outcome)) {
	defer wg.Done()

	conn := src.conn
	_ = conn.SetReadDeadline(time.Now().Add(p.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(p.cfg.PongTimeout))
	})

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			report(p.readOutcome(src, err))
			return
		}

		lastActivity.Store(time.Now().UnixNano())
		_ = conn.SetReadDeadline(time.Now().Add(p.cfg.PongTimeout))

		if err := p.write(dst, msgType, payload); err != nil {
			report(outcome{
				source: dst.name,
				code:   websocket.CloseInternalServerErr,
				reason: "write stalled",
				err:    fmt.Errorf("write to %s: %w", dst.name, err),
			})
			return
		}
	}
}

// readOutcome translates a read failure into the relay's terminal event. A
// worker-initiated close propagates its code to the client; a client
// close shuts the worker down normally; everything else is an internal
// failure.
func (p *Proxy) readOutcome(src *side, err error) outcome {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		if src.name == "worker" {
			return outcome{source: src.name, code: closeErr.Code, reason: closeErr.Text}
		}
		return outcome{source: src.name, code: websocket.CloseNormalClosure, reason: ""}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return outcome{
			source: src.name,
			code:   websocket.CloseInternalServerErr,
			reason: "keepalive timeout",
			err:    fmt.Errorf("%s pong deadline passed: %w", src.name, err),
		}
	}

	return outcome{
		source: src.name,
		code:   websocket.CloseInternalServerErr,
		reason: "connection failed",
		err:    fmt.Errorf("read from %s: %w", src.name, err),
	}
}

// keepalive pings one side every PingInterval. The pong lands in that
// side's read pump, which extends its read deadline.
func (p *Proxy) keepalive(ctx context.Context, wg *sync.WaitGroup, s *side, report func(outcome)) {
	defer wg.Done()

	ticker := time.NewTicker(p.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(p.cfg.StallTimeout))
			s.writeMu.Unlock()
			if err != nil {
				report(outcome{
					source: s.name,
					code:   websocket.CloseInternalServerErr,
					reason: "keepalive failed",
					err:    fmt.Errorf("ping %s: %w", s.name, err),
				})
				return
			}
		}
	}
}

// idleCheckInterval keeps the idle sweep coarse for the production
// one-hour timeout while staying responsive for short test timeouts.
func idleCheckInterval(idleTimeout time.Duration) time.Duration {
	interval := idleTimeout / 4
	if interval > time.Minute {
		return time.Minute
	}
	if interval < 10*time.Millisecond {
		return 10 * time.Millisecond
	}
	return interval
}

func (p *Proxy) write(s *side, msgType int, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(p.cfg.StallTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(msgType, payload)
}

// shutdown sends close frames carrying the outcome's codes: the side that
// ended the relay already closed itself, the other side learns why.
func (p *Proxy) shutdown(client, worker *side, final outcome) {
	clientCode, workerCode := final.code, final.code
	// Only a clean close by either side ends the worker normally; a
	// keepalive timeout or stalled write carries its failure code to both
	// sides. The worker's own code still propagates to the client as-is.
	if final.err == nil && (final.source == "client" || final.source == "worker") {
		workerCode = websocket.CloseNormalClosure
	}

	level := slog.LevelInfo
	if final.err != nil {
		level = slog.LevelWarn
	}
	p.log.LogAttrs(context.Background(), level, "Relay closed",
		logger.Key("source", final.source),
		logger.CloseCode(final.code),
		logger.Error(final.err))

	p.sendClose(client, clientCode, final.reason)
	p.sendClose(worker, workerCode, final.reason)
}

func (p *Proxy) sendClose(s *side, code int, reason string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}
