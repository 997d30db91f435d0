package services

import (
	"sync"

	"orchestrator-backend/storage/events"
)

// EventHub fans committed event records out to live subscribers. Slow
// subscribers lose records instead of blocking transactions.
type EventHub struct {
	mu   sync.Mutex
	subs map[chan events.Record]struct{}
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[chan events.Record]struct{})}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel.
func (h *EventHub) Subscribe(buffer int) (<-chan events.Record, func()) {
	ch := make(chan events.Record, buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers rec to every subscriber with room for it.
func (h *EventHub) Publish(rec events.Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- rec:
		default:
		}
	}
}

// Subscribers returns the number of live subscribers.
func (h *EventHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
