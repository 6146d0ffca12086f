package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestMessage_IsValid(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()

	// Given a message with content and a registered sender
	valid := NewChatMessage(NewUser("alice"), "hello", nil, at)
	req.True(valid.IsValid())

	// When the content is empty
	empty := NewChatMessage(NewUser("alice"), "", nil, at)
	// Then it never routes nor stores
	req.False(empty.IsValid())

	// When the sender never registered
	anonymous := NewChatMessage(User{}, "hello", nil, at)
	req.False(anonymous.IsValid())
}

func TestMessage_IsBroadcast(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()

	// Given no recipient
	req.True(NewChatMessage(NewUser("alice"), "hi", nil, at).IsBroadcast())

	// Given the reserved broadcast recipient
	toAll := NewChatMessage(NewUser("alice"), "hi", lo.ToPtr(NewUser(RecipientAll)), at)
	req.True(toAll.IsBroadcast())

	// Given a named recipient
	toBob := NewChatMessage(NewUser("alice"), "hi", lo.ToPtr(NewUser("bob")), at)
	req.False(toBob.IsBroadcast())
}

func TestNewSystemMessage(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()

	m := NewSystemMessage("alice has joined", at)

	req.Equal(KindSystem, m.Kind)
	req.Equal(SystemUser, m.Sender)
	req.True(m.IsBroadcast())
	req.True(m.IsValid())
	req.Equal(at, m.CreatedAt)
	req.NotEqual(uuid.Nil, m.ID)
}

func TestNewChatMessage_FreshIdentity(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()

	first := NewChatMessage(NewUser("alice"), "hi", nil, at)
	second := NewChatMessage(NewUser("alice"), "hi", nil, at)

	// Identical content still gets a distinct identity.
	req.NotEqual(first.ID, second.ID)
}
