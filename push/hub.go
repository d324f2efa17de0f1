// Package push delivers server push events to in-process subscribers.
//
// A Listener reads binary frames from a websocket, decodes each into an Event
// and hands it to a Hub, which fans it out to the handlers registered for the
// event name. Handlers run synchronously on the listener goroutine in
// registration order.
package push

import (
	"context"
	"sync"
)

// EventCardStatusChanged is emitted when a card setup attempt changes status.
const EventCardStatusChanged = "CardStatusChanged"

// Event is one push notification. Payload is the raw binary message.
type Event struct {
	Name    string
	Payload []byte
}

// Handler consumes an Event.
type Handler func(ctx context.Context, ev Event)

type subscription struct {
	id uint64
	fn Handler
}

// Hub dispatches events by name.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string][]subscription
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string][]subscription)}
}

// On registers fn for events called name and returns a function removing it.
// The returned function is safe to call more than once.
func (h *Hub) On(name string, fn Handler) (unsubscribe func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[name] = append(h.subs[name], subscription{id: id, fn: fn})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.off(name, id) })
	}
}

func (h *Hub) off(name string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[name]
	for i, s := range subs {
		if s.id == id {
			h.subs[name] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(h.subs[name]) == 0 {
		delete(h.subs, name)
	}
}

// Subscribers returns how many handlers are registered for name.
func (h *Hub) Subscribers(name string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[name])
}

// Dispatch delivers ev to every handler registered for ev.Name.
// It returns the number of handlers called.
func (h *Hub) Dispatch(ctx context.Context, ev Event) int {
	h.mu.RLock()
	subs := append([]subscription(nil), h.subs[ev.Name]...)
	h.mu.RUnlock()

	for _, s := range subs {
		s.fn(ctx, ev)
	}
	return len(subs)
}
