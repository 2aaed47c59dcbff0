// Package events implements the public event emitter spec.md §4.7/§8
// describes, modeled as a tagged union rather than the TypeScript
// source's string-keyed emitter (spec.md's "Event emitter" design note).
// Grounded on the teacher's telemetry.Logger-as-interface decoupling
// discipline, generalized from a logging sink to a typed pub/sub bus so
// GossipEngine and NodeCore can both publish onto the same channel of
// events without either depending on a concrete listener type.
package events

import (
	"sync"

	"meshnet/internal/wire"
)

// Type tags one of the event kinds spec.md §8 enumerates.
type Type int

const (
	Message Type = iota
	BroadcastMessage
	BadMessage
	AddConnection
	DestroyConnection
	SwitchboardResponse
	ConnectionError
	ConnectionProcess
)

// Event is the tagged union every listener receives. Only the fields
// relevant to Type are populated.
type Event struct {
	Type Type

	Message       *wire.Message // Message, BroadcastMessage, BadMessage
	ConnectionID  string        // AddConnection, DestroyConnection, ConnectionError, ConnectionProcess
	RemoteAddress string        // AddConnection, DestroyConnection, ConnectionError, ConnectionProcess
	Addresses     []string      // SwitchboardResponse
	Err           error         // BadMessage only; ConnectionError events carry no error value
}

// Handler receives one Event. Handlers run synchronously on the
// publishing goroutine — Bus does not serialize or queue events, so a
// slow handler delays whoever called Emit.
type Handler func(Event)

// Subscription identifies a registered Handler for later removal.
type Subscription uint64

// Bus is a typed pub/sub hub: On registers a Handler for a Type,
// RemoveListener unregisters it by the Subscription On returned, and
// Emit calls every Handler currently registered for an Event's Type.
type Bus struct {
	mu       sync.RWMutex
	nextID   Subscription
	handlers map[Type]map[Subscription]Handler
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Type]map[Subscription]Handler)}
}

// On registers h for every Event of type t, returning a Subscription
// that RemoveListener accepts to undo it.
func (b *Bus) On(t Type, h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	if b.handlers[t] == nil {
		b.handlers[t] = make(map[Subscription]Handler)
	}
	b.handlers[t][id] = h
	return id
}

// RemoveListener unregisters the Handler identified by sub, if still
// present. A no-op otherwise.
func (b *Bus) RemoveListener(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, hs := range b.handlers {
		delete(hs, sub)
	}
}

// RemoveAll drops every registered Handler, used by NodeCore.Teardown
// (spec.md §4.7: "destroys all Connections; clears listeners").
func (b *Bus) RemoveAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[Type]map[Subscription]Handler)
}

// Emit calls every Handler currently registered for e.Type, under a
// snapshot of the registration set taken before any of them run (so a
// handler adding/removing a listener mid-emit can't skip or double-fire
// siblings).
func (b *Bus) Emit(e Event) {
	b.mu.RLock()
	hs := b.handlers[e.Type]
	snapshot := make([]Handler, 0, len(hs))
	for _, h := range hs {
		snapshot = append(snapshot, h)
	}
	b.mu.RUnlock()
	for _, h := range snapshot {
		h(e)
	}
}
