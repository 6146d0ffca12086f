package runtime

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"chatty-relay/domain"
)

func newTestBacklog(t *testing.T) *Backlog {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewBacklog(db, logs.GetLoggerFromLevel(slog.LevelError))
}

func TestBacklog_Append_PreservesOrder(t *testing.T) {
	req := require.New(t)
	backlog := newTestBacklog(t)
	at := time.Now().UTC()

	// Given three messages appended in sequence
	var appended []domain.Message
	for i := 0; i < 3; i++ {
		m := domain.NewChatMessage(domain.NewUser("alice"), fmt.Sprintf("message %d", i), nil, at.Add(time.Duration(i)*time.Millisecond))
		req.NoError(backlog.Append(m))
		appended = append(appended, m)
	}

	// When the whole history is read back
	messages, err := backlog.All()
	req.NoError(err)

	// Then order and identity survive the round trip
	req.Len(messages, 3)
	req.Equal(3, backlog.Len())
	for i, m := range messages {
		req.Equal(appended[i].ID, m.ID)
		req.Equal(appended[i].Content, m.Content)
		req.Equal(appended[i].Sender, m.Sender)
	}
}

func TestBacklog_Append_KeepsUnicastRecipient(t *testing.T) {
	req := require.New(t)
	backlog := newTestBacklog(t)

	m := domain.NewChatMessage(domain.NewUser("alice"), "psst", lo.ToPtr(domain.NewUser("bob")), time.Now().UTC())
	req.NoError(backlog.Append(m))

	messages, err := backlog.All()
	req.NoError(err)
	req.Len(messages, 1)
	req.NotNil(messages[0].Recipient)
	req.Equal("bob", messages[0].Recipient.Username)
}

func TestBacklog_Clear(t *testing.T) {
	req := require.New(t)
	backlog := newTestBacklog(t)
	at := time.Now().UTC()

	req.NoError(backlog.Append(domain.NewChatMessage(domain.NewUser("alice"), "before", nil, at)))
	req.NoError(backlog.Clear())

	messages, err := backlog.All()
	req.NoError(err)
	req.Empty(messages)
	req.Equal(0, backlog.Len())

	// Appends after a clear start a fresh history
	req.NoError(backlog.Append(domain.NewChatMessage(domain.NewUser("alice"), "after", nil, at)))
	messages, err = backlog.All()
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("after", messages[0].Content)
}

func TestBacklog_StoresDuplicateIDs(t *testing.T) {
	req := require.New(t)
	backlog := newTestBacklog(t)

	// A retransmitted message keeps its ID; the history stores both
	// entries, clients collapse them by ID.
	m := domain.NewChatMessage(domain.NewUser("alice"), "again", nil, time.Now().UTC())
	req.NoError(backlog.Append(m))
	req.NoError(backlog.Append(m))

	messages, err := backlog.All()
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal(m.ID, messages[0].ID)
	req.Equal(m.ID, messages[1].ID)
}
