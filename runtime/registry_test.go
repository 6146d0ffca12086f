package runtime

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chatty-relay/domain/event"
)

type nopSink struct{}

func (nopSink) Consume(ctx context.Context, p event.Push) error { return nil }

func TestRegistry_Add_And_Register(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	handle := uuid.NewString()

	// Given no connection
	req.Equal(0, registry.Len())

	// When a connection attaches and claims a username
	registry.Add(handle, nopSink{})
	req.True(registry.SetUsername(handle, "alice"))

	// Then the handle resolves both ways
	resolved, ok := registry.Lookup("alice")
	req.True(ok)
	req.Equal(handle, resolved)

	sink, ok := registry.Sink(handle)
	req.True(ok)
	req.Equal(nopSink{}, sink)
	req.Equal(1, registry.Len())
}

func TestRegistry_SetUsername_Uniqueness(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	first := uuid.NewString()
	second := uuid.NewString()
	registry.Add(first, nopSink{})
	registry.Add(second, nopSink{})

	// Given alice is taken by the first connection
	req.True(registry.SetUsername(first, "alice"))

	// When a different connection claims the same name
	// Then the claim is rejected and the holder is untouched
	req.False(registry.SetUsername(second, "alice"))
	resolved, ok := registry.Lookup("alice")
	req.True(ok)
	req.Equal(first, resolved)

	// Re-registering the same name on the same handle is a no-op success
	req.True(registry.SetUsername(first, "alice"))
}

func TestRegistry_SetUsername_UnknownHandle(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	req.False(registry.SetUsername(uuid.NewString(), "alice"))
}

func TestRegistry_Remove(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registered := uuid.NewString()
	anonymous := uuid.NewString()
	registry.Add(registered, nopSink{})
	registry.Add(anonymous, nopSink{})
	req.True(registry.SetUsername(registered, "alice"))

	// When the registered connection leaves
	user, ok := registry.Remove(registered)

	// Then the removed identity comes back for the leave notice
	req.True(ok)
	req.Equal("alice", user.Username)

	// And the name is free again
	_, ok = registry.Lookup("alice")
	req.False(ok)

	// An unregistered connection removes silently
	user, ok = registry.Remove(anonymous)
	req.True(ok)
	req.False(user.IsRegistered())

	// Removing twice reports absence
	_, ok = registry.Remove(registered)
	req.False(ok)
}

func TestRegistry_Sinks_Snapshots(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registered := uuid.NewString()
	anonymous := uuid.NewString()
	registry.Add(registered, nopSink{})
	registry.Add(anonymous, nopSink{})
	req.True(registry.SetUsername(registered, "alice"))

	// Broadcast targets only registered identities
	req.Len(registry.RegisteredSinks(), 1)
	req.Contains(registry.RegisteredSinks(), registered)

	// Presence notices reach every live connection
	req.Len(registry.AllSinks(), 2)

	snapshot := registry.Snapshot()
	req.Equal("alice", snapshot[registered])
	req.Equal("", snapshot[anonymous])
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handle := uuid.NewString()
			registry.Add(handle, nopSink{})
			registry.SetUsername(handle, fmt.Sprintf("user-%d", i))
			registry.RegisteredSinks()
			registry.Lookup(fmt.Sprintf("user-%d", i))
			if i%2 == 0 {
				registry.Remove(handle)
			}
		}(i)
	}
	wg.Wait()

	req.Equal(25, registry.Len())
	req.Len(registry.RegisteredSinks(), 25)
}
