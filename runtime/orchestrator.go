package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"chatty-relay/contract"
	"chatty-relay/domain"
	"chatty-relay/domain/event"
	"chatty-relay/errors"
	"chatty-relay/moderation"
	"chatty-relay/observability"
)

// Orchestrator owns the connection lifecycle of the relay: connects,
// registrations with backlog replay, message submission, disconnects,
// and the administrative surface. It holds no transport knowledge; the
// server layer hands it handles and sinks.
type Orchestrator struct {
	log         *slog.Logger
	registry    contract.IRegistry
	backlog     contract.IBacklog
	router      *Router
	moderator   *moderation.Moderator // nil when moderation is disabled
	monitor     *observability.MonitoringManager
	pushTimeout time.Duration
	now         func() time.Time
}

func NewOrchestrator(log *slog.Logger, registry contract.IRegistry, backlog contract.IBacklog,
	router *Router, moderator *moderation.Moderator,
	monitor *observability.MonitoringManager, pushTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		log:         log,
		registry:    registry,
		backlog:     backlog,
		router:      router,
		moderator:   moderator,
		monitor:     monitor,
		pushTimeout: pushTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Connect attaches a new connection with an unset username and announces
// the handle to every live connection, mirroring the hub contract.
func (o *Orchestrator) Connect(ctx context.Context, handle string, sink contract.EventSink) {
	o.registry.Add(handle, sink)
	o.monitor.ConnectionOpened()
	o.log.Info("New connection", "handle", handle)
	o.router.PushToAll(ctx, event.UserConnected{Handle: handle})
}

// Disconnect removes a connection. A leave notice is synthesized and
// routed only when the handle had a registered username.
func (o *Orchestrator) Disconnect(ctx context.Context, handle string) {
	user, ok := o.registry.Remove(handle)
	if !ok {
		return
	}
	o.monitor.ConnectionClosed()
	o.log.Info("Connection ended", "handle", handle, "username", user.Username)

	if !user.IsRegistered() {
		return
	}
	o.monitor.Deregistered()
	o.router.PushToAll(ctx, event.UserDisconnected{User: user})
	o.router.Route(ctx, "", domain.NewSystemMessage(fmt.Sprintf("%s has left", user.Username), o.now()))
}

// Register claims a username for a connection. On success the owner is
// confirmed, the full backlog is replayed to that connection alone, and
// a join notice is routed to everyone. The replay is enqueued
// synchronously before Register returns, so any message routed after
// registration completes lands behind the history in the owner's sink.
func (o *Orchestrator) Register(ctx context.Context, handle, username string) error {
	if !o.registry.SetUsername(handle, username) {
		o.log.Info("Registration conflict", "handle", handle, "username", username)
		o.router.NotifySender(ctx, handle, fmt.Sprintf("Username %q already taken", username))
		return errors.ErrUsernameTaken
	}
	o.monitor.Registered()
	o.log.Info("Username registered", "handle", handle, "username", username)

	sink, ok := o.registry.Sink(handle)
	if !ok {
		// Connection dropped in the middle of registering.
		return errors.ErrUnknownHandle
	}
	if err := o.consume(ctx, sink, event.UsernameRegistered{Username: username}); err != nil {
		o.log.Warn("Registration confirmation not delivered", "handle", handle, "err", err)
	}
	if err := o.replayTo(ctx, handle, sink); err != nil {
		o.log.Error("Backlog replay failed", "handle", handle, "err", err)
	}

	o.router.Route(ctx, "", domain.NewSystemMessage(fmt.Sprintf("%s has joined", username), o.now()))
	return nil
}

// Submit accepts a message composed by a client. The timestamp is
// assigned here, at receipt, and the complete immutable message is built
// before anything is stored or published. The message ID from the wire is
// kept so a retransmission after reconnect carries the same identity.
func (o *Orchestrator) Submit(ctx context.Context, senderHandle string, id uuid.UUID,
	sender domain.User, content string, recipient *domain.User) RouteOutcome {
	if o.moderator != nil {
		content = o.moderator.Censor(content)
	}
	m := domain.NewMessage(id, domain.KindChat, sender, content, recipient, o.now())
	return o.router.Route(ctx, senderHandle, m)
}

// replayTo pushes the whole history, in original append order, to one
// connection. Pushes are sequential on purpose: replay order is part of
// the contract.
func (o *Orchestrator) replayTo(ctx context.Context, handle string, sink contract.EventSink) error {
	messages, err := o.backlog.All()
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}

	o.log.Info(fmt.Sprintf("Forwarding %d messages to connection %s", len(messages), handle))
	for _, m := range messages {
		if err := o.consume(ctx, sink, event.MessageReceived{Message: m}); err != nil {
			return err
		}
	}
	o.monitor.Replayed(len(messages))
	return nil
}

func (o *Orchestrator) consume(ctx context.Context, sink contract.EventSink, p event.Push) error {
	pushCtx, cancel := context.WithTimeout(ctx, o.pushTimeout)
	defer cancel()
	return sink.Consume(pushCtx, p)
}

// Snapshot exposes the current registry for the admin surface.
func (o *Orchestrator) Snapshot() map[string]string {
	return o.registry.Snapshot()
}

// History exposes the full backlog for the admin surface.
func (o *Orchestrator) History() ([]domain.Message, error) {
	return o.backlog.All()
}

// ClearHistory drops the backlog (admin only).
func (o *Orchestrator) ClearHistory() error {
	return o.backlog.Clear()
}

// Stats returns the current monitoring snapshot.
func (o *Orchestrator) Stats() observability.RelayStats {
	return o.monitor.GetLatest()
}
