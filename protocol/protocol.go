// Package protocol defines the JSON frames exchanged over the duplex
// channel. Frame types mirror the relay's push and action names so a
// capture reads like the logical contract.
package protocol

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"chatty-relay/domain"
	"chatty-relay/domain/event"
)

const (
	ActionSendMessage      = "SendMessage"
	ActionRegisterUsername = "RegisterUsername"
)

// WireMessage is the transport form of a domain.Message.
type WireMessage struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Sender    WireUser  `json:"sender"`
	Content   string    `json:"content"`
	Recipient *WireUser `json:"recipient,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type WireUser struct {
	Username string `json:"username"`
}

// ClientFrame is a client-to-server action.
type ClientFrame struct {
	Type     string       `json:"type"`
	Username string       `json:"username,omitempty"`
	Message  *WireMessage `json:"message,omitempty"`
}

// ServerFrame is a server-to-client push.
type ServerFrame struct {
	Type     string       `json:"type"`
	Message  *WireMessage `json:"message,omitempty"`
	Username string       `json:"username,omitempty"`
	Handle   string       `json:"connectionId,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// FromPush converts a relay push into its wire frame.
func FromPush(p event.Push) ServerFrame {
	frame := ServerFrame{Type: string(p.PushKind())}
	switch e := p.(type) {
	case event.MessageReceived:
		frame.Message = lo.ToPtr(FromMessage(e.Message))
	case event.UserConnected:
		frame.Handle = e.Handle
	case event.UserDisconnected:
		frame.Username = e.User.Username
	case event.UsernameRegistered:
		frame.Username = e.Username
	case event.ErrorNotice:
		frame.Error = e.Text
	}
	return frame
}

// ToPush converts a received frame back into a relay push. The client
// read pump uses it; unknown frame types yield an error and are skipped.
func ToPush(f ServerFrame) (event.Push, error) {
	switch event.Kind(f.Type) {
	case event.KindReceiveMessage:
		if f.Message == nil {
			return nil, fmt.Errorf("frame %s without message body", f.Type)
		}
		m, err := ToMessage(*f.Message)
		if err != nil {
			return nil, err
		}
		return event.MessageReceived{Message: m}, nil
	case event.KindUserConnected:
		return event.UserConnected{Handle: f.Handle}, nil
	case event.KindUserDisconnected:
		return event.UserDisconnected{User: domain.NewUser(f.Username)}, nil
	case event.KindUsernameRegistered:
		return event.UsernameRegistered{Username: f.Username}, nil
	case event.KindErrorMessage:
		return event.ErrorNotice{Text: f.Error}, nil
	default:
		return nil, fmt.Errorf("unknown frame type %q", f.Type)
	}
}

func FromMessage(m domain.Message) WireMessage {
	var recipient *WireUser
	if m.Recipient != nil {
		recipient = &WireUser{Username: m.Recipient.Username}
	}
	return WireMessage{
		ID:        m.ID.String(),
		Kind:      string(m.Kind),
		Sender:    WireUser{Username: m.Sender.Username},
		Content:   m.Content,
		Recipient: recipient,
		CreatedAt: m.CreatedAt,
	}
}

func FromMessages(messages []domain.Message) []WireMessage {
	return lo.Map(messages, func(m domain.Message, _ int) WireMessage {
		return FromMessage(m)
	})
}

// ToMessage parses a wire message. The embedded timestamp is kept as-is;
// the server overrides it at receipt time, replay and clients trust it.
func ToMessage(w WireMessage) (domain.Message, error) {
	id, err := uuid.Parse(w.ID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("parse message id: %w", err)
	}
	var recipient *domain.User
	if w.Recipient != nil {
		recipient = lo.ToPtr(domain.NewUser(w.Recipient.Username))
	}
	kind := domain.Kind(w.Kind)
	if kind != domain.KindSystem {
		kind = domain.KindChat
	}
	return domain.NewMessage(id, kind, domain.NewUser(w.Sender.Username), w.Content, recipient, w.CreatedAt), nil
}
