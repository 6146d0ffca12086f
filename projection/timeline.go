// Package projection builds the visible message sequence from observed
// pushes. Handles ordering, deduplication, and notification side
// effects. Does not emit events or interact with UI directly.
package projection

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"chatty-relay/domain"
)

// DefaultRecencyWindow bounds how old a message may be and still trigger
// a local notification.
const DefaultRecencyWindow = 2 * time.Minute

// Notifier is an external collaborator delivering local notifications.
type Notifier interface {
	Notify(m domain.Message)
}

// Timeline holds the ordered, deduplicated projection of received
// messages: sorted ascending by timestamp, keyed by message ID.
// Replay and genuine re-delivery after reconnect collapse silently into
// a single entry. Safe for concurrent use: pushes arrive from the
// transport's goroutine while the presentation thread reads.
type Timeline struct {
	mu       sync.Mutex
	owner    string
	seen     map[uuid.UUID]struct{}
	messages []domain.Message
	notifier Notifier
	window   time.Duration
	observed bool
	now      func() time.Time
}

func NewTimeline(notifier Notifier, window time.Duration) *Timeline {
	if window <= 0 {
		window = DefaultRecencyWindow
	}
	return &Timeline{
		seen:     make(map[uuid.UUID]struct{}),
		notifier: notifier,
		window:   window,
		now:      time.Now,
	}
}

// SetOwner records the local identity so its own messages never notify.
func (t *Timeline) SetOwner(username string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.owner = username
}

// SetObserved flags whether the user is actively looking at the view.
// While observed, no notifications fire.
func (t *Timeline) SetObserved(observed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observed = observed
}

// Observe merges one received message into the visible sequence.
// Invalid messages and duplicate IDs are dropped silently; the method
// reports whether the sequence changed. Insertion happens at the sort
// position, so existing entries never move relative to each other.
func (t *Timeline) Observe(m domain.Message) bool {
	if !m.IsValid() {
		return false
	}

	t.mu.Lock()
	if _, dup := t.seen[m.ID]; dup {
		t.mu.Unlock()
		return false
	}
	t.seen[m.ID] = struct{}{}

	idx := sort.Search(len(t.messages), func(i int) bool {
		return t.messages[i].CreatedAt.After(m.CreatedAt)
	})
	t.messages = append(t.messages, domain.Message{})
	copy(t.messages[idx+1:], t.messages[idx:])
	t.messages[idx] = m

	notify := t.shouldNotify(m)
	t.mu.Unlock()

	if notify {
		t.notifier.Notify(m)
	}
	return true
}

// shouldNotify is called with the lock held.
func (t *Timeline) shouldNotify(m domain.Message) bool {
	if t.notifier == nil || t.observed {
		return false
	}
	if m.Sender.Username == t.owner {
		return false
	}
	age := t.now().Sub(m.CreatedAt)
	return age >= 0 && age <= t.window
}

// Messages snapshots the visible sequence in ascending timestamp order.
func (t *Timeline) Messages() []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}
