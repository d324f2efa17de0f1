package push

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DefaultReconnectDelay is the pause between dropped connections and redials.
const DefaultReconnectDelay = 2 * time.Second

// ErrEmptyURL is returned by Run when the listener has no endpoint.
var ErrEmptyURL = errors.New("push: empty url")

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithLogger sets the listener logger.
func WithLogger(l *zap.Logger) ListenerOption {
	return func(ln *Listener) {
		if l != nil {
			ln.log = l
		}
	}
}

// WithHeader adds headers (e.g. Authorization) to the websocket handshake.
func WithHeader(h http.Header) ListenerOption {
	return func(ln *Listener) { ln.header = h.Clone() }
}

// WithReconnectDelay sets the redial pause. Zero disables reconnecting: Run
// returns the first connection error.
func WithReconnectDelay(d time.Duration) ListenerOption {
	return func(ln *Listener) { ln.reconnectDelay = d }
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) ListenerOption {
	return func(ln *Listener) {
		if d != nil {
			ln.dialer = d
		}
	}
}

// Listener reads push frames from a websocket into a Hub.
type Listener struct {
	url            string
	header         http.Header
	dialer         *websocket.Dialer
	hub            *Hub
	log            *zap.Logger
	reconnectDelay time.Duration
}

// NewListener builds a Listener for url dispatching into hub.
func NewListener(url string, hub *Hub, opts ...ListenerOption) *Listener {
	ln := &Listener{
		url:            url,
		dialer:         websocket.DefaultDialer,
		hub:            hub,
		log:            zap.NewNop(),
		reconnectDelay: DefaultReconnectDelay,
	}
	for _, opt := range opts {
		opt(ln)
	}
	return ln
}

// Run connects and dispatches frames until ctx is done. It returns ctx.Err()
// on cancellation, or the connection error when reconnecting is disabled.
func (ln *Listener) Run(ctx context.Context) error {
	if ln.url == "" {
		return ErrEmptyURL
	}
	for {
		err := ln.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if ln.reconnectDelay <= 0 {
			return err
		}
		ln.log.Warn("push connection lost, reconnecting", zap.Error(err), zap.Duration("delay", ln.reconnectDelay))

		t := time.NewTimer(ln.reconnectDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (ln *Listener) session(ctx context.Context) error {
	conn, resp, err := ln.dialer.DialContext(ctx, ln.url, ln.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	ln.log.Info("push connected", zap.String("url", ln.url))
	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		ev, err := DecodeFrame(data)
		if err != nil {
			ln.log.Warn("dropping malformed push frame", zap.Error(err), zap.Int("bytes", len(data)))
			continue
		}
		n := ln.hub.Dispatch(ctx, ev)
		ln.log.Debug("push event", zap.String("name", ev.Name), zap.Int("handlers", n))
	}
}
