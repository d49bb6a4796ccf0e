package expirybus

// Package expirybus is the process-wide broadcast point for the single
// session-expired event type. It decouples the backend client from
// navigation concerns: the client signals "this session just stopped being
// valid" without knowing who is listening.

import "sync"

// Bus fans a session-expired signal out to subscribers. Delivery is
// at-least-once and unordered; handlers must be idempotent so rapid repeated
// publishes for the same session collapse to a single visible effect.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]func(sessionID string)
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]func(string))}
}

// Publish delivers the session-expired event for sessionID to all current
// subscribers. Handlers run synchronously on the caller's goroutine, outside
// the bus lock, so a handler may publish or subscribe without deadlocking.
func (b *Bus) Publish(sessionID string) {
	if sessionID == "" {
		return
	}

	b.mu.Lock()
	handlers := make([]func(string), 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(sessionID)
	}
}

// Subscribe registers a handler and returns its unsubscribe func.
// Unsubscribing twice is harmless.
func (b *Bus) Subscribe(handler func(sessionID string)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
