// Package events provides in-process pub/sub for lifecycle events. Views
// that need a live feed (admin approvals, user status updates) subscribe to
// a type and react to each event; cancellation is explicit via the returned
// unsubscribe function.
package events

import (
	"sync"
	"time"
)

// Event types published by the lifecycle manager.
const (
	TypeBookingCreated    = "booking.created"
	TypeBookingDecided    = "booking.decided"
	TypeMembershipCreated = "membership.created"
	TypeMembershipDecided = "membership.decided"
)

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	RecordID  int64
	UserID    int64
	Status    string
	CreatedAt time.Time
}

// Handler reacts to an event.
type Handler func(event Event)

// Bus provides in-process pub/sub for events.
type Bus struct {
	mu          sync.RWMutex
	nextID      int
	subscribers map[string]map[int]Handler
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string]map[int]Handler)}
}

// Subscribe registers a handler for an event type and returns a function
// that removes it. Callers unsubscribe on teardown, never implicitly.
func (b *Bus) Subscribe(eventType string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[eventType] == nil {
		b.subscribers[eventType] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.subscribers[eventType][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subscribers[eventType], id)
	}
}

// Publish notifies subscribers of the event type. Handlers run
// synchronously; the caller decides the concurrency model.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subscribers[event.Type]))
	for _, h := range b.subscribers[event.Type] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		handler(event)
	}
}
