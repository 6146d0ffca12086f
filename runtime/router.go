package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chatty-relay/contract"
	"chatty-relay/domain"
	"chatty-relay/domain/event"
	"chatty-relay/observability"
)

type RouteOutcome int

const (
	RouteInvalid RouteOutcome = iota
	RouteBroadcast
	RouteUnicast
	RouteRecipientNotFound
)

func (o RouteOutcome) String() string {
	switch o {
	case RouteBroadcast:
		return "broadcast"
	case RouteUnicast:
		return "unicast"
	case RouteRecipientNotFound:
		return "recipient_not_found"
	default:
		return "invalid"
	}
}

// Router decides broadcast vs unicast delivery and owns the fan-out.
// Every push runs in its own goroutine bounded by pushTimeout, so a
// stuck recipient never delays delivery to the others.
type Router struct {
	log         *slog.Logger
	registry    contract.IRegistry
	backlog     contract.IBacklog
	monitor     *observability.MonitoringManager
	pushTimeout time.Duration
}

func NewRouter(log *slog.Logger, registry contract.IRegistry, backlog contract.IBacklog,
	monitor *observability.MonitoringManager, pushTimeout time.Duration) *Router {
	return &Router{
		log:         log,
		registry:    registry,
		backlog:     backlog,
		monitor:     monitor,
		pushTimeout: pushTimeout,
	}
}

// Route validates, stores, and delivers one message.
// Invalid messages are dropped silently. Valid messages are appended to
// the backlog unconditionally, then pushed to every registered
// connection (broadcast) or to the single registered recipient
// (unicast). An unknown recipient yields an error notice to the sender
// only, which is informational and never stored.
func (r *Router) Route(ctx context.Context, senderHandle string, m domain.Message) RouteOutcome {
	if !m.IsValid() {
		r.monitor.DroppedInvalid()
		return RouteInvalid
	}

	if err := r.backlog.Append(m); err != nil {
		// Delivery still proceeds; history is best-effort in-memory state.
		r.log.Error("Failed to append message to backlog", "id", m.ID, "err", err)
	}

	r.log.Info("New message", "id", m.ID, "sender", m.Sender.Username, "kind", m.Kind)

	if m.IsBroadcast() {
		for handle, sink := range r.registry.RegisteredSinks() {
			r.push(ctx, handle, sink, event.MessageReceived{Message: m})
		}
		r.monitor.Broadcast()
		return RouteBroadcast
	}

	recipientHandle, ok := r.registry.Lookup(m.Recipient.Username)
	if !ok {
		r.monitor.RecipientMiss()
		r.log.Info(fmt.Sprintf("Failed to DM message %s: recipient %q not registered", m.ID, m.Recipient.Username))
		r.NotifySender(ctx, senderHandle, "Recipient not found")
		return RouteRecipientNotFound
	}

	sink, ok := r.registry.Sink(recipientHandle)
	if !ok {
		// Recipient vanished between lookup and push.
		r.monitor.RecipientMiss()
		r.NotifySender(ctx, senderHandle, "Recipient not found")
		return RouteRecipientNotFound
	}
	r.push(ctx, recipientHandle, sink, event.MessageReceived{Message: m})
	r.monitor.Unicast()
	return RouteUnicast
}

// PushToAll fans a presence push out to every live connection.
func (r *Router) PushToAll(ctx context.Context, p event.Push) {
	for handle, sink := range r.registry.AllSinks() {
		r.push(ctx, handle, sink, p)
	}
}

// NotifySender pushes an informational error notice back to one handle.
func (r *Router) NotifySender(ctx context.Context, handle, text string) {
	if handle == "" {
		return
	}
	sink, ok := r.registry.Sink(handle)
	if !ok {
		return
	}
	r.push(ctx, handle, sink, event.ErrorNotice{Text: text})
}

// push delivers independently of its siblings: one goroutine per
// recipient with a per-push deadline.
func (r *Router) push(ctx context.Context, handle string, sink contract.EventSink, p event.Push) {
	go func() {
		pushCtx, cancel := context.WithTimeout(ctx, r.pushTimeout)
		defer cancel()

		if err := sink.Consume(pushCtx, p); err != nil {
			r.monitor.DeliveryFailure()
			r.log.Warn("Push not delivered", "handle", handle, "kind", p.PushKind(), "err", err)
		}
	}()
}
