package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatty-relay/errors"
	"chatty-relay/protocol"
)

// transportEvents are the connection-level notifications surfaced to the
// state machine. Exactly one of them fires per transition.
type transportEvents struct {
	onFrame        func(protocol.ServerFrame)
	onReconnecting func(error)
	onReconnected  func()
	onClosed       func(error)
}

// transport owns one physical connection across its automatic
// reconnects. A fresh instance is created per Start; close is terminal.
// All writes go through send, guarded by a mutex, though the outbound
// serializer already guarantees a single in-flight send.
type transport struct {
	url        string
	log        *slog.Logger
	dialer     *websocket.Dialer
	retryDelay time.Duration
	events     transportEvents

	mu     sync.Mutex
	conn   *websocket.Conn
	stop   chan struct{}
	closed bool
}

func newTransport(url string, retryDelay time.Duration, events transportEvents, log *slog.Logger) *transport {
	return &transport{
		url:        url,
		log:        log,
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		retryDelay: retryDelay,
		events:     events,
		stop:       make(chan struct{}),
	}
}

// dial opens the physical connection and starts the read pump.
func (t *transport) dial(ctx context.Context) error {
	conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = conn.Close()
		return errors.ErrClientStopped
	}
	t.conn = conn
	t.mu.Unlock()

	go t.readPump(conn)
	return nil
}

// send writes one frame. Fails fast when no connection is up; the
// outbound serializer owns the retry policy.
func (t *transport) send(frame protocol.ClientFrame) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errors.ErrClientStopped
	}
	if t.conn == nil {
		return errors.ErrNotConnected
	}
	_ = t.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return t.conn.WriteJSON(frame)
}

// readPump decodes pushes until the connection fails, then hands over to
// the reconnect schedule unless the transport was stopped.
func (t *transport) readPump(conn *websocket.Conn) {
	for {
		var frame protocol.ServerFrame
		if err := conn.ReadJSON(&frame); err != nil {
			t.mu.Lock()
			stopped := t.closed
			t.conn = nil
			t.mu.Unlock()

			if stopped {
				t.events.onClosed(nil)
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.events.onClosed(nil)
				return
			}
			t.reconnectLoop(err)
			return
		}
		t.events.onFrame(frame)
	}
}

// reconnectLoop redials on a fixed schedule until it succeeds or the
// transport is stopped. It is a cancellable background task, not a bare
// sleep loop: the stop channel aborts the wait immediately.
func (t *transport) reconnectLoop(cause error) {
	t.events.onReconnecting(cause)

	ticker := time.NewTicker(t.retryDelay)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			t.events.onClosed(nil)
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := t.dial(ctx)
			cancel()
			if err == nil {
				t.events.onReconnected()
				return
			}
			if err == errors.ErrClientStopped {
				t.events.onClosed(nil)
				return
			}
			t.log.Debug("Redial failed", "err", err)
		}
	}
}

// dialContext bounds one dial attempt.
func dialContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// close tears the connection down and aborts any reconnect schedule.
// Idempotent.
func (t *transport) close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	close(t.stop)
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
}
