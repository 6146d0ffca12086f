// Package client implements the relay's client-side core: the
// connection lifecycle state machine, the outbound send serializer, the
// liveness poller, and press-to-wire plumbing around the projection
// timeline.
package client

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"chatty-relay/domain"
	"chatty-relay/domain/event"
	"chatty-relay/errors"
	"chatty-relay/projection"
	"chatty-relay/protocol"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Events is one observer's callback set. Unset callbacks are skipped.
// Callbacks run on the transport's goroutine; observers must do their
// own handoff to a presentation thread.
type Events struct {
	OnMessageReceived    func(m domain.Message)
	OnUserConnected      func(handle string)
	OnUserDisconnected   func(user domain.User)
	OnUsernameRegistered func(username string)
	OnErrorMessage       func(text string)
	OnClosed             func(err error)
	OnReconnecting       func(err error)
	OnReconnected        func()
}

// registerRetryGap bounds how often an unconfirmed registration is
// re-sent by the outbound path.
const registerRetryGap = time.Second

// Client is the connection state machine. It owns the physical
// connection exclusively; sends flow only through the Sender worker, so
// at most one outbound call is ever in flight.
type Client struct {
	log        *slog.Logger
	hubURL     string
	retryDelay time.Duration
	timeline   *projection.Timeline

	mu           sync.Mutex
	state        State
	username     string
	registered   bool
	lastRegister time.Time
	transport    *transport
	subscribers  []Events

	sender *Sender
}

func NewClient(log *slog.Logger, hubURL string, retryDelay time.Duration, timeline *projection.Timeline) *Client {
	c := &Client{
		log:        log,
		hubURL:     hubURL,
		retryDelay: retryDelay,
		timeline:   timeline,
	}
	c.sender = NewSender(log, c.ensureReady)
	return c
}

// Sender exposes the outbound serializer worker for supervision.
func (c *Client) Sender() *Sender { return c.sender }

// Timeline exposes the visible message sequence.
func (c *Client) Timeline() *projection.Timeline { return c.timeline }

// Subscribe adds an observer. The router-side equivalent of this list is
// the registry: explicit pairs, called directly, no hidden multicast.
func (c *Client) Subscribe(ev Events) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, ev)
}

// Start opens the transport and registers the username. Calling it
// while the connection is up or being (re)established is a no-op: no
// second physical connection, no double registration. Reconnecting
// counts as running; the existing transport owns the redial schedule.
// Any failure during open or registration tears down the partial
// connection and is returned to the caller; Start never retries
// silently.
func (c *Client) Start(username string) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.username = username
	tr := newTransport(c.hubURL, c.retryDelay, transportEvents{
		onFrame:        c.handleFrame,
		onReconnecting: c.handleReconnecting,
		onReconnected:  c.handleReconnected,
		onClosed:       c.handleClosed,
	}, c.log)
	c.transport = tr
	c.mu.Unlock()

	fail := func(err error) error {
		tr.close()
		c.mu.Lock()
		c.state = StateDisconnected
		c.transport = nil
		c.mu.Unlock()
		return err
	}

	ctx, cancel := dialContext()
	defer cancel()
	if err := tr.dial(ctx); err != nil {
		return fail(fmt.Errorf("open transport: %w", err))
	}
	if err := c.sendRegister(tr, username); err != nil {
		return fail(fmt.Errorf("register username: %w", err))
	}

	c.mu.Lock()
	c.state = StateConnected
	c.mu.Unlock()
	return nil
}

// Stop closes the transport from any state. It is idempotent and the
// only cancellation primitive: queued sends stay queued and abandon
// cleanly until a later Start.
func (c *Client) Stop() {
	c.mu.Lock()
	tr := c.transport
	c.transport = nil
	c.state = StateDisconnected
	c.registered = false
	c.mu.Unlock()

	if tr != nil {
		tr.close()
	}
}

// Compose queues one message for delivery. The message identity is fixed
// here, so every retry and retransmission carries the same ID. An empty
// or "all" recipient broadcasts.
func (c *Client) Compose(content, recipient string) {
	c.mu.Lock()
	sender := c.username
	c.mu.Unlock()

	if strings.TrimSpace(content) == "" {
		return
	}
	if recipient == "" {
		recipient = domain.RecipientAll
	}

	frame := protocol.ClientFrame{
		Type: protocol.ActionSendMessage,
		Message: &protocol.WireMessage{
			ID:      uuid.NewString(),
			Kind:    string(domain.KindChat),
			Sender:  protocol.WireUser{Username: sender},
			Content: content,
			Recipient: lo.ToPtr(protocol.WireUser{
				Username: recipient,
			}),
		},
	}
	c.sender.Enqueue(func() error {
		c.mu.Lock()
		tr := c.transport
		c.mu.Unlock()
		if tr == nil {
			return errors.ErrNotConnected
		}
		return tr.send(frame)
	})
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) IsStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != StateDisconnected
}

func (c *Client) IsRegistered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registered
}

func (c *Client) ActiveUsername() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

// ensureReady is the gate the outbound serializer runs before every send
// attempt: re-Start the connection when it dropped completely, and
// re-register after a reconnect, each retried the same way sends are.
func (c *Client) ensureReady() error {
	c.mu.Lock()
	state := c.state
	registered := c.registered
	username := c.username
	tr := c.transport
	lastRegister := c.lastRegister
	c.mu.Unlock()

	switch {
	case state == StateConnected && registered:
		return nil

	case state == StateDisconnected:
		if username == "" {
			return errors.ErrNotRegistered
		}
		c.log.Info("Send is re-initializing the relay connection", "username", username)
		if err := c.Start(username); err != nil {
			return err
		}
		return errors.ErrNotRegistered // wait for the confirmation push

	case state == StateConnected && !registered:
		if time.Since(lastRegister) >= registerRetryGap && tr != nil {
			if err := c.sendRegister(tr, username); err != nil {
				return err
			}
		}
		return errors.ErrNotRegistered

	default: // Connecting or Reconnecting
		return errors.ErrNotConnected
	}
}

func (c *Client) sendRegister(tr *transport, username string) error {
	c.mu.Lock()
	c.lastRegister = time.Now()
	c.mu.Unlock()
	return tr.send(protocol.ClientFrame{Type: protocol.ActionRegisterUsername, Username: username})
}

func (c *Client) handleFrame(frame protocol.ServerFrame) {
	push, err := protocol.ToPush(frame)
	if err != nil {
		c.log.Debug("Skipping undecodable frame", "type", frame.Type, "err", err)
		return
	}

	switch e := push.(type) {
	case event.MessageReceived:
		if !c.timeline.Observe(e.Message) {
			return // invalid or already seen: reconciled silently
		}
		c.emit(func(ev Events) {
			if ev.OnMessageReceived != nil {
				ev.OnMessageReceived(e.Message)
			}
		})

	case event.UsernameRegistered:
		c.mu.Lock()
		mine := e.Username == c.username
		if mine {
			c.registered = true
		}
		c.mu.Unlock()
		if mine {
			c.timeline.SetOwner(e.Username)
		}
		c.emit(func(ev Events) {
			if ev.OnUsernameRegistered != nil {
				ev.OnUsernameRegistered(e.Username)
			}
		})

	case event.UserConnected:
		c.emit(func(ev Events) {
			if ev.OnUserConnected != nil {
				ev.OnUserConnected(e.Handle)
			}
		})

	case event.UserDisconnected:
		c.emit(func(ev Events) {
			if ev.OnUserDisconnected != nil {
				ev.OnUserDisconnected(e.User)
			}
		})

	case event.ErrorNotice:
		c.emit(func(ev Events) {
			if ev.OnErrorMessage != nil {
				ev.OnErrorMessage(e.Text)
			}
		})
	}
}

func (c *Client) handleReconnecting(cause error) {
	c.mu.Lock()
	c.state = StateReconnecting
	c.registered = false // registration does not survive a reconnect
	c.mu.Unlock()

	c.log.Warn("Connection lost, reconnecting", "err", cause)
	c.emit(func(ev Events) {
		if ev.OnReconnecting != nil {
			ev.OnReconnecting(cause)
		}
	})
}

func (c *Client) handleReconnected() {
	c.mu.Lock()
	c.state = StateConnected
	tr := c.transport
	username := c.username
	c.mu.Unlock()

	c.log.Info("Connection resumed, re-registering", "username", username)
	// Re-registration over the new physical connection. A failure here is
	// retried by the outbound path exactly like a send failure.
	if tr != nil && username != "" {
		if err := c.sendRegister(tr, username); err != nil {
			c.log.Warn("Re-registration failed, outbound path will retry", "err", err)
		}
	}
	c.emit(func(ev Events) {
		if ev.OnReconnected != nil {
			ev.OnReconnected()
		}
	})
}

func (c *Client) handleClosed(cause error) {
	c.mu.Lock()
	if c.transport == nil && cause == nil {
		// Stop already transitioned the state; nothing more to report.
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected
	c.registered = false
	c.transport = nil
	c.mu.Unlock()

	c.emit(func(ev Events) {
		if ev.OnClosed != nil {
			ev.OnClosed(cause)
		}
	})
}

func (c *Client) emit(fn func(Events)) {
	c.mu.Lock()
	subscribers := make([]Events, len(c.subscribers))
	copy(subscribers, c.subscribers)
	c.mu.Unlock()

	for _, ev := range subscribers {
		fn(ev)
	}
}

// HealthURL derives the liveness endpoint from the hub URL: same host,
// /healthcheck path, HTTP scheme.
func HealthURL(hubURL string) (string, error) {
	u, err := url.Parse(hubURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = "/healthcheck"
	return u.String(), nil
}
