package server

import (
	"context"

	"chatty-relay/contract"
	"chatty-relay/domain/event"
)

var _ contract.EventSink = (*Sink)(nil)

// Sink decouples the router from one connection's write loop through a
// buffered channel. A full buffer blocks only until the caller's
// per-push deadline expires, so a stuck connection costs the router at
// most that bound.
type Sink struct {
	Events chan event.Push
}

func NewSink(bufferSize int) *Sink {
	return &Sink{Events: make(chan event.Push, bufferSize)}
}

// Consume is called by the router's fan-out.
// Redirects the push through the channel owned by this connection;
// the websocket write loop takes it from there.
func (s *Sink) Consume(ctx context.Context, p event.Push) error {
	select {
	case s.Events <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
