package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chatty-relay/domain/event"
	"chatty-relay/protocol"
	"chatty-relay/runtime"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// Session serves one duplex connection: a read loop decoding client
// frames into orchestrator calls and a write loop draining the sink.
// The write loop is the only goroutine touching the connection's write
// side; the sink channel keeps push submission order intact.
type Session struct {
	handle string
	conn   *websocket.Conn
	sink   *Sink
	orch   *runtime.Orchestrator
	log    *slog.Logger
}

func NewSession(conn *websocket.Conn, orch *runtime.Orchestrator, bufferSize int, log *slog.Logger) *Session {
	return &Session{
		handle: uuid.NewString(),
		conn:   conn,
		sink:   NewSink(bufferSize),
		orch:   orch,
		log:    log,
	}
}

// Serve blocks until the client disconnects or a network error occurs.
// Cleanup is ensured via deferred disconnection to prevent leaks in the
// registry.
func (s *Session) Serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	defer func() {
		s.orch.Disconnect(context.WithoutCancel(ctx), s.handle)
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go s.writeLoop(ctx)

	s.orch.Connect(ctx, s.handle, s.sink)
	s.readLoop(ctx)
}

func (s *Session) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var frame protocol.ClientFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Info("Client closed connection", "handle", s.handle)
			} else if ctx.Err() == nil {
				s.log.Warn("Read failed", "handle", s.handle, "err", err)
			}
			return
		}
		s.dispatch(ctx, frame)
	}
}

func (s *Session) dispatch(ctx context.Context, frame protocol.ClientFrame) {
	switch frame.Type {
	case protocol.ActionRegisterUsername:
		if err := validateUsername(frame.Username); err != nil {
			s.pushError(fmt.Sprintf("Invalid username %q", frame.Username))
			return
		}
		// Conflicts are pushed to this connection by the orchestrator.
		_ = s.orch.Register(ctx, s.handle, frame.Username)

	case protocol.ActionSendMessage:
		if frame.Message == nil {
			return
		}
		m, err := protocol.ToMessage(*frame.Message)
		if err != nil {
			s.log.Warn("Undecodable message frame", "handle", s.handle, "err", err)
			return
		}
		s.orch.Submit(ctx, s.handle, m.ID, m.Sender, m.Content, m.Recipient)

	default:
		s.log.Debug("Unknown client frame", "handle", s.handle, "type", frame.Type)
	}
}

func (s *Session) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case p := <-s.sink.Events:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(protocol.FromPush(p)); err != nil {
				s.log.Warn("Write failed", "handle", s.handle, "err", err)
				_ = s.conn.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = s.conn.Close()
				return
			}
		}
	}
}

func (s *Session) pushError(text string) {
	select {
	case s.sink.Events <- event.ErrorNotice{Text: text}:
	default:
		s.log.Debug("Error notice dropped, sink full", "handle", s.handle)
	}
}
