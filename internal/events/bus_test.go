package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus()

	var got []Event
	unsub := bus.Subscribe(TopicBookings, "org-1", func(e Event) {
		got = append(got, e)
	})

	bus.Publish(TopicBookings, "org-1", []string{"b-1"})
	assert.Len(t, got, 1)
	assert.Equal(t, TopicBookings, got[0].Topic)
	assert.Equal(t, "org-1", got[0].OrganizationID)
	assert.Equal(t, []string{"b-1"}, got[0].Snapshot)

	// Other organizations and topics do not leak in.
	bus.Publish(TopicBookings, "org-2", nil)
	bus.Publish(TopicAssets, "org-1", nil)
	assert.Len(t, got, 1)

	unsub()
	bus.Publish(TopicBookings, "org-1", nil)
	assert.Len(t, got, 1)
}

func TestBusUnsubscribeIdempotent(t *testing.T) {
	bus := NewBus()

	calls := 0
	first := bus.Subscribe(TopicAssets, "org-1", func(Event) { calls++ })
	bus.Subscribe(TopicAssets, "org-1", func(Event) { calls++ })

	first()
	first() // second call is a no-op, not a panic

	bus.Publish(TopicAssets, "org-1", nil)
	assert.Equal(t, 1, calls)
}

func TestBusConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	count := 0
	bus.Subscribe(TopicBookings, "org-1", func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(TopicBookings, "org-1", nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, count)
}
