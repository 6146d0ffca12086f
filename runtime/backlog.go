package runtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"chatty-relay/domain"
)

const backlogPrefix = "msg:"

// Backlog is the append-only history of every valid message routed during
// the process lifetime, backed by BadgerDB in in-memory mode.
//
// The key is formatted as "msg:{sequence_padded}:{uuid}" to:
//  1. Ensure append ordering using 19-digit zero padding (lexicographical order).
//  2. Keep keys unique via the message ID even when a message is re-sent
//     and stored twice (clients deduplicate by ID).
type Backlog struct {
	db    *badger.DB
	log   *slog.Logger
	seq   atomic.Uint64
	count atomic.Int64
}

func NewBacklog(db *badger.DB, log *slog.Logger) *Backlog {
	return &Backlog{db: db, log: log}
}

// Append stores a message at the tail of the history.
func (b *Backlog) Append(m domain.Message) error {
	seq := b.seq.Add(1)
	key := fmt.Sprintf("%s%019d:%s", backlogPrefix, seq, m.ID)

	bytes, err := json.Marshal(toStoredMessage(m))
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
	if err != nil {
		return err
	}
	b.count.Add(1)
	return nil
}

// All returns the full history in original append order.
func (b *Backlog) All() ([]domain.Message, error) {
	var stored [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(backlogPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				raw := make([]byte, len(value))
				copy(raw, value)
				stored = append(stored, raw)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(stored))
	for _, raw := range stored {
		var sm storedMessage
		if err := json.Unmarshal(raw, &sm); err != nil {
			return nil, err
		}
		m, err := sm.toDomain()
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, nil
}

func (b *Backlog) Len() int {
	return int(b.count.Load())
}

// Clear drops the whole history. The sequence keeps growing so ordering
// of later appends stays monotonic.
func (b *Backlog) Clear() error {
	if err := b.db.DropPrefix([]byte(backlogPrefix)); err != nil {
		return err
	}
	b.count.Store(0)
	b.log.Info("Backlog cleared")
	return nil
}
