//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chatty-relay/domain"
	"chatty-relay/domain/event"
)

// EventSink is one connection's push channel. Consume must respect ctx:
// the router bounds every push with a per-push timeout so a stuck
// recipient never delays the others.
type EventSink interface {
	Consume(ctx context.Context, p event.Push) error
}

// IRegistry maps live connection handles to registered usernames and
// their sinks. All operations are safe under concurrent invocation.
type IRegistry interface {
	Add(handle string, sink EventSink)
	SetUsername(handle, username string) bool
	Remove(handle string) (domain.User, bool)
	Lookup(username string) (string, bool)
	Sink(handle string) (EventSink, bool)
	RegisteredSinks() map[string]EventSink
	AllSinks() map[string]EventSink
	Snapshot() map[string]string
	Len() int
}

// IBacklog is the append-only process-lifetime message history.
type IBacklog interface {
	Append(m domain.Message) error
	All() ([]domain.Message, error)
	Len() int
	Clear() error
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// lifecycle events, avoiding manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
