package runtime

import (
	"sync"

	"chatty-relay/contract"
	"chatty-relay/domain"
)

type session struct {
	user domain.User
	sink contract.EventSink
}

// Registry is the source of truth for routing targets. It maps live
// connection handles to their registered usernames and push sinks.
// The lock only guards map access; delivery never happens under it, so
// unrelated connections' chat traffic is never serialized here.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session // handle -> identity + sink
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*session)}
}

// Add registers a connection with an unset username.
func (r *Registry) Add(handle string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[handle] = &session{sink: sink}
}

// SetUsername claims a username for a handle. It fails when the name is
// held by a different connected handle; re-registering the same name on
// the same handle is an idempotent no-op returning true.
func (r *Registry) SetUsername(handle, username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for h, s := range r.sessions {
		if s.user.Username == username && h != handle {
			return false
		}
	}
	s, ok := r.sessions[handle]
	if !ok {
		return false
	}
	s.user = domain.NewUser(username)
	return true
}

// Remove deletes a connection and returns the user that was removed.
// The user is empty if the handle never registered, which the caller
// uses to decide whether a leave notice is due.
func (r *Registry) Remove(handle string) (domain.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[handle]
	if !ok {
		return domain.User{}, false
	}
	delete(r.sessions, handle)
	return s.user, true
}

// Lookup resolves a registered username to its connection handle.
func (r *Registry) Lookup(username string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for handle, s := range r.sessions {
		if s.user.Username == username {
			return handle, true
		}
	}
	return "", false
}

// Sink returns the push channel of a handle.
func (r *Registry) Sink(handle string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[handle]
	if !ok {
		return nil, false
	}
	return s.sink, true
}

// RegisteredSinks snapshots the sinks of every registered identity,
// the broadcast target set.
func (r *Registry) RegisteredSinks() map[string]contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sinks := make(map[string]contract.EventSink)
	for handle, s := range r.sessions {
		if s.user.IsRegistered() {
			sinks[handle] = s.sink
		}
	}
	return sinks
}

// AllSinks snapshots every live connection's sink, registered or not.
// Presence notices go to all of them.
func (r *Registry) AllSinks() map[string]contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sinks := make(map[string]contract.EventSink, len(r.sessions))
	for handle, s := range r.sessions {
		sinks[handle] = s.sink
	}
	return sinks
}

// Snapshot returns handle -> username for the administrative surface.
func (r *Registry) Snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make(map[string]string, len(r.sessions))
	for handle, s := range r.sessions {
		users[handle] = s.user.Username
	}
	return users
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
