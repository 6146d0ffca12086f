package projection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatty-relay/domain"
)

type recordingNotifier struct {
	notified []domain.Message
}

func (n *recordingNotifier) Notify(m domain.Message) {
	n.notified = append(n.notified, m)
}

func TestTimeline_Observe_DeduplicatesByID(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline(nil, 0)
	m := domain.NewChatMessage(domain.NewUser("alice"), "hello", nil, time.Now().UTC())

	// First sight changes the sequence
	req.True(timeline.Observe(m))
	// Replay and re-delivery collapse silently
	req.False(timeline.Observe(m))
	req.False(timeline.Observe(m))

	req.Equal(1, timeline.Len())
}

func TestTimeline_Observe_OrdersByTimestamp(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline(nil, 0)
	base := time.Now().UTC()

	late := domain.NewChatMessage(domain.NewUser("alice"), "third", nil, base.Add(2*time.Second))
	early := domain.NewChatMessage(domain.NewUser("alice"), "first", nil, base)
	middle := domain.NewChatMessage(domain.NewUser("alice"), "second", nil, base.Add(time.Second))

	// Arrival order does not match timestamp order
	req.True(timeline.Observe(late))
	req.True(timeline.Observe(early))
	req.True(timeline.Observe(middle))

	messages := timeline.Messages()
	req.Len(messages, 3)
	req.Equal("first", messages[0].Content)
	req.Equal("second", messages[1].Content)
	req.Equal("third", messages[2].Content)
}

func TestTimeline_Observe_EqualTimestampsKeepArrivalOrder(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline(nil, 0)
	at := time.Now().UTC()

	first := domain.NewChatMessage(domain.NewUser("alice"), "arrived first", nil, at)
	second := domain.NewChatMessage(domain.NewUser("bob"), "arrived second", nil, at)

	req.True(timeline.Observe(first))
	req.True(timeline.Observe(second))

	messages := timeline.Messages()
	req.Equal("arrived first", messages[0].Content)
	req.Equal("arrived second", messages[1].Content)
}

func TestTimeline_Observe_DropsInvalid(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline(nil, 0)

	empty := domain.NewChatMessage(domain.NewUser("alice"), "", nil, time.Now().UTC())
	req.False(timeline.Observe(empty))
	req.Equal(0, timeline.Len())
}

func TestTimeline_Notifier_FiresForRecentForeignMessage(t *testing.T) {
	req := require.New(t)
	notifier := &recordingNotifier{}
	timeline := NewTimeline(notifier, 0)
	timeline.SetOwner("me")

	m := domain.NewChatMessage(domain.NewUser("alice"), "fresh news", nil, time.Now().UTC())
	req.True(timeline.Observe(m))

	req.Len(notifier.notified, 1)
	req.Equal("fresh news", notifier.notified[0].Content)
}

func TestTimeline_Notifier_SilentWhileObserved(t *testing.T) {
	req := require.New(t)
	notifier := &recordingNotifier{}
	timeline := NewTimeline(notifier, 0)
	timeline.SetOwner("me")
	timeline.SetObserved(true)

	m := domain.NewChatMessage(domain.NewUser("alice"), "you are watching", nil, time.Now().UTC())
	req.True(timeline.Observe(m))

	req.Empty(notifier.notified)
}

func TestTimeline_Notifier_SilentForOwnMessages(t *testing.T) {
	req := require.New(t)
	notifier := &recordingNotifier{}
	timeline := NewTimeline(notifier, 0)
	timeline.SetOwner("me")

	m := domain.NewChatMessage(domain.NewUser("me"), "talking to myself", nil, time.Now().UTC())
	req.True(timeline.Observe(m))

	req.Empty(notifier.notified)
}

func TestTimeline_Notifier_SilentForReplayedHistory(t *testing.T) {
	req := require.New(t)
	notifier := &recordingNotifier{}
	timeline := NewTimeline(notifier, time.Minute)
	timeline.SetOwner("me")

	// A replayed message carries its original timestamp, far in the past
	old := domain.NewChatMessage(domain.NewUser("alice"), "ancient history", nil, time.Now().UTC().Add(-time.Hour))
	req.True(timeline.Observe(old))

	// The sequence grows but no notification fires
	req.Equal(1, timeline.Len())
	req.Empty(notifier.notified)
}
