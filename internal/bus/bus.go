package bus

import (
	"log/slog"
	"sync"
	"time"
)

// EventType identifies a kind of application event.
type EventType string

// Event is the envelope delivered to subscribers.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      any
}

// Handler processes one event. Handlers run synchronously during
// Publish and must not block for long.
type Handler func(Event)

// Bus is a concurrency-safe synchronous dispatcher. It decouples the
// reminder scheduler from whatever is displaying the calendar: the
// scheduler publishes change events, subscribers react.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType]map[uint64]Handler
	nextID      uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[EventType]map[uint64]Handler)}
}

// Subscribe registers a handler for the given event type and returns a
// function that removes it.
func (b *Bus) Subscribe(eventType EventType, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.subscribers[eventType] == nil {
		b.subscribers[eventType] = make(map[uint64]Handler)
	}
	b.subscribers[eventType][id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if handlers := b.subscribers[eventType]; handlers != nil {
			delete(handlers, id)
			if len(handlers) == 0 {
				delete(b.subscribers, eventType)
			}
		}
	}
}

// Publish delivers the event to every handler registered for its type.
// Delivery order across handlers is not guaranteed. A panicking
// handler is recovered and logged; remaining handlers still run.
func (b *Bus) Publish(eventType EventType, data any) {
	e := Event{Type: eventType, Timestamp: time.Now(), Data: data}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subscribers[eventType]))
	for _, h := range b.subscribers[eventType] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("bus: handler panic", "type", eventType, "panic", r)
				}
			}()
			h(e)
		}()
	}
}
