// Package domain contains core concepts of the chat relay.
// This file defines Message events and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	// KindChat is content composed by a user.
	KindChat Kind = "chat"
	// KindSystem is a server notice (join, leave).
	KindSystem Kind = "system"
)

// Message represents an immutable chat event.
// The ID is stable across retransmission and replay; the timestamp is
// assigned exactly once, at construction, before the message is published
// to any shared collection.
type Message struct {
	ID        uuid.UUID
	Kind      Kind
	Sender    User
	Content   string
	Recipient *User // nil or RecipientAll means broadcast
	CreatedAt time.Time
}

// NewMessage builds a fully-formed message from wire fields. The caller
// supplies the authoritative timestamp (server receipt time).
func NewMessage(id uuid.UUID, kind Kind, sender User, content string, recipient *User, at time.Time) Message {
	return Message{
		ID:        id,
		Kind:      kind,
		Sender:    sender,
		Content:   content,
		Recipient: recipient,
		CreatedAt: at,
	}
}

// NewChatMessage creates a user-composed message with a fresh identity.
func NewChatMessage(sender User, content string, recipient *User, at time.Time) Message {
	return NewMessage(uuid.New(), KindChat, sender, content, recipient, at)
}

// NewSystemMessage creates a broadcast server notice.
func NewSystemMessage(content string, at time.Time) Message {
	return NewMessage(uuid.New(), KindSystem, SystemUser, content, nil, at)
}

// IsValid reports whether the message may be routed or stored.
// Invalid messages are dropped silently by both router and client.
func (m Message) IsValid() bool {
	return m.Content != "" && m.Sender.IsRegistered()
}

// IsBroadcast reports whether the message addresses every registered connection.
func (m Message) IsBroadcast() bool {
	return m.Recipient == nil || m.Recipient.Username == RecipientAll
}
