package runtime

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"chatty-relay/domain"
)

// storedMessage is the Badger value encoding. Timestamps are stored as
// UnixNano so the stored form stays byte-stable across Go versions.
type storedMessage struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind"`
	Sender    string  `json:"sender"`
	Content   string  `json:"content"`
	Recipient *string `json:"recipient,omitempty"`
	At        int64   `json:"at"`
}

func toStoredMessage(m domain.Message) storedMessage {
	var recipient *string
	if m.Recipient != nil {
		recipient = lo.ToPtr(m.Recipient.Username)
	}
	return storedMessage{
		ID:        m.ID.String(),
		Kind:      string(m.Kind),
		Sender:    m.Sender.Username,
		Content:   m.Content,
		Recipient: recipient,
		At:        m.CreatedAt.UnixNano(),
	}
}

func (s storedMessage) toDomain() (domain.Message, error) {
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("corrupt backlog entry: %w", err)
	}
	var recipient *domain.User
	if s.Recipient != nil {
		recipient = lo.ToPtr(domain.NewUser(*s.Recipient))
	}
	return domain.NewMessage(
		id,
		domain.Kind(s.Kind),
		domain.NewUser(s.Sender),
		s.Content,
		recipient,
		time.Unix(0, s.At).UTC(),
	), nil
}
