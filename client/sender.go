package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chatty-relay/contract"
)

var _ contract.Worker = (*Sender)(nil)

const (
	// senderPollInterval is the fixed delay between attempts on the head
	// of the queue.
	senderPollInterval = 10 * time.Millisecond
	// failureLogEvery throttles the diagnostic for a head action that
	// keeps failing: the action is retried indefinitely, the log is not.
	failureLogEvery = 300
)

// SendAction is one queued delivery attempt.
type SendAction func() error

// Sender is the outbound send serializer: a FIFO queue with a single
// consumer, so at most one send is in flight and sends execute in
// enqueue order. The head action is peeked, not popped: a message that
// actually sent is never lost, and one that already succeeded is never
// re-sent. A failed head stays put and is retried after a short fixed
// delay, forever; there is no user-facing cancellation of a composed
// message.
type Sender struct {
	mu    sync.Mutex
	queue []SendAction
	log   *slog.Logger
	// ensure runs before every attempt: implicit re-Start when the
	// connection dropped, re-register after a reconnect.
	ensure func() error
}

func NewSender(log *slog.Logger, ensure func() error) *Sender {
	return &Sender{log: log, ensure: ensure}
}

// Enqueue appends one send action. Safe from any goroutine, including
// while Reconnecting: nothing is rejected, the queue self-heals once
// the connection resumes.
func (s *Sender) Enqueue(a SendAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, a)
}

func (s *Sender) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Run is the consumer loop, supervised like any other worker. Stopping
// the context abandons cleanly: queued actions stay queued.
func (s *Sender) Run(ctx context.Context) error {
	ticker := time.NewTicker(senderPollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			head, ok := s.peek()
			if !ok {
				continue
			}

			err := s.ensure()
			if err == nil {
				err = head()
			}
			if err == nil {
				s.pop()
				failures = 0
				continue
			}

			failures++
			if failures%failureLogEvery == 0 {
				s.log.Error("Outbound queue head keeps failing",
					"consecutive_failures", failures, "err", err)
			}
		}
	}
}

func (s *Sender) peek() (SendAction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	return s.queue[0], true
}

func (s *Sender) pop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) > 0 {
		s.queue = s.queue[1:]
	}
}
