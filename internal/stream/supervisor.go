package stream

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/logs"

	"main/internal/obs"
	"main/pkg/exception"
)

// SessionSource is the connectivity collaborator: it mints the session
// token and resolves the stream endpoint. Every reconnect re-establishes
// the listen key through it.
type SessionSource interface {
	CreateListenKey(ctx context.Context) (string, error)
	KeepAliveListenKey(ctx context.Context) error
	StreamURL(listenKey string) string
}

// Handler consumes one raw user-data payload. It must not block; decode
// and hand off, or drop.
type Handler func(ctx context.Context, raw []byte)

// Config defines one supervisor's runtime configuration.
type Config struct {
	Account           string
	Source            SessionSource
	Handler           Handler
	Backoff           Backoff
	ReadTimeout       time.Duration
	PingInterval      time.Duration
	KeepAliveInterval time.Duration
	Metrics           *obs.Metrics

	// SessionExpired reports that a payload announces server-side session
	// expiry; the supervisor then cycles the session for a fresh listen key.
	SessionExpired func(raw []byte) bool

	// Dial overrides the websocket dialer, used by tests.
	Dial func(ctx context.Context, url string) (*websocket.Conn, error)
}

func (cfg Config) withDefaults() Config {
	if cfg.Backoff.Min == 0 && cfg.Backoff.Max == 0 && cfg.Backoff.Factor == 0 && cfg.Backoff.Jitter == 0 {
		cfg.Backoff = DefaultBackoff()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Minute
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 3 * time.Minute
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = 25 * time.Minute
	}
	if cfg.Dial == nil {
		cfg.Dial = func(ctx context.Context, url string) (*websocket.Conn, error) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			return conn, err
		}
	}
	return cfg
}

// Supervisor owns exactly one live user-data session for one account. It
// reconnects forever on transient failure and returns only when the
// context is cancelled. Raw events flow to the configured handler; a
// session drop is never visible downstream.
type Supervisor struct {
	cfg Config
}

// NewSupervisor validates config and builds a supervisor.
func NewSupervisor(cfg Config) (*Supervisor, error) {
	if cfg.Source == nil || cfg.Handler == nil || cfg.Account == "" {
		return nil, exception.ErrInvalidArgument
	}
	return &Supervisor{cfg: cfg.withDefaults()}, nil
}

// Run blocks until the context is done, cycling sessions as they drop.
func (s *Supervisor) Run(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		listenKey, err := s.cfg.Source.CreateListenKey(ctx)
		if err != nil {
			logs.Errorf("create listen key, account=%s, err: %+v", s.cfg.Account, err)
			attempt++
			sleepBackoff(ctx, s.cfg.Backoff, attempt)
			continue
		}

		conn, err := s.cfg.Dial(ctx, s.cfg.Source.StreamURL(listenKey))
		if err != nil {
			logs.Errorf("dial user data stream, account=%s, err: %+v", s.cfg.Account, err)
			attempt++
			sleepBackoff(ctx, s.cfg.Backoff, attempt)
			continue
		}

		attempt = 0
		s.cfg.Metrics.IncReconnect()
		logs.Infof("user data stream connected, account=%s", s.cfg.Account)

		err = s.runSession(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logs.Warnf("user data stream dropped, account=%s, err: %+v", s.cfg.Account, err)
		attempt++
		sleepBackoff(ctx, s.cfg.Backoff, attempt)
	}
}

func (s *Supervisor) runSession(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	})

	go s.maintainSession(ctx, conn, done)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			return err
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if s.cfg.SessionExpired != nil && s.cfg.SessionExpired(raw) {
			return exception.ErrStreamConnectionClose
		}
		s.cfg.Handler(ctx, raw)
	}
}

// maintainSession pings the peer and keeps the listen key alive until the
// session ends. Cancellation closes the connection to unblock the reader.
func (s *Supervisor) maintainSession(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	pingTicker := time.NewTicker(s.cfg.PingInterval)
	defer pingTicker.Stop()
	keepAliveTicker := time.NewTicker(s.cfg.KeepAliveInterval)
	defer keepAliveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close()
			return
		case <-done:
			return
		case <-pingTicker.C:
			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				logs.Warnf("ping failed, account=%s, err: %+v", s.cfg.Account, err)
			}
		case <-keepAliveTicker.C:
			if err := s.cfg.Source.KeepAliveListenKey(ctx); err != nil {
				logs.Warnf("listen key keepalive failed, account=%s, err: %+v", s.cfg.Account, err)
			}
		}
	}
}
