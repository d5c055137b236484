// Package events provides in-process pub/sub for organization-scoped
// snapshot streams.
//
// Mutations publish the full current snapshot of a collection; subscribers
// treat every push as authoritative and recompute derived state from it.
// There is no incremental patching and no cross-subscriber ordering
// guarantee beyond eventual delivery of the latest snapshot.
package events

import (
	"sync"
	"time"
)

// Topic names for the two synchronized collections.
const (
	TopicAssets   = "assets"
	TopicBookings = "bookings"
)

// Event carries one snapshot push for an organization's collection.
type Event struct {
	Topic          string
	OrganizationID string
	// Snapshot is the full current collection ([]models.Asset or
	// []models.Booking depending on the topic).
	Snapshot  any
	CreatedAt time.Time
}

// Handler reacts to a snapshot push.
type Handler func(event Event)

// Unsubscribe removes a previously registered handler.
type Unsubscribe func()

// Bus is an in-process snapshot bus keyed by (topic, organization).
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]Handler
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string]map[int]Handler)}
}

func streamKey(topic, orgID string) string {
	return topic + ":" + orgID
}

// Subscribe registers a handler for one organization's collection stream.
// The returned Unsubscribe is idempotent.
func (b *Bus) Subscribe(topic, orgID string, handler Handler) Unsubscribe {
	key := streamKey(topic, orgID)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.handlers[key] == nil {
		b.handlers[key] = make(map[int]Handler)
	}
	b.handlers[key][id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers[key], id)
		b.mu.Unlock()
	}
}

// Publish delivers a snapshot to every subscriber of the stream. Handlers
// run synchronously on the caller's goroutine; the caller decides the
// concurrency model.
func (b *Bus) Publish(topic, orgID string, snapshot any) {
	b.mu.RLock()
	registered := b.handlers[streamKey(topic, orgID)]
	handlers := make([]Handler, 0, len(registered))
	for _, h := range registered {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	event := Event{
		Topic:          topic,
		OrganizationID: orgID,
		Snapshot:       snapshot,
		CreatedAt:      time.Now(),
	}
	for _, h := range handlers {
		h(event)
	}
}
