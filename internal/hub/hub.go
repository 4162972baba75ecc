// Package hub multiplexes update events from one stream coordinator to any
// number of downstream subscribers. One Hub exists per manager instance
// (i.e. per timeframe).
package hub

import (
	"sync"
	"sync/atomic"

	"cryptoPulse/internal/domain"
)

// Subscription is the handle returned by Attach. Events are delivered on a
// bounded channel; when the subscriber falls behind, deliveries are dropped
// for it rather than blocking the broadcaster.
type Subscription struct {
	id uint64
	ch chan domain.UpdateEvent
}

// Events returns the subscriber's delivery channel. It is closed on Detach.
func (s *Subscription) Events() <-chan domain.UpdateEvent {
	return s.ch
}

// Hub fans out events to attached subscribers. Attach, Detach and Broadcast
// are safe to call concurrently; a subscriber detaching mid-broadcast stops
// receiving once its channel is closed.
type Hub struct {
	buf     int
	dropped atomic.Uint64

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*Subscription
	closed bool
}

// New creates a Hub whose subscribers each get a delivery buffer of bufSize.
func New(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Hub{
		buf:  bufSize,
		subs: make(map[uint64]*Subscription),
	}
}

// Attach registers a new subscriber. No history is replayed: the subscriber
// only sees events broadcast after attachment. Attaching to a closed Hub
// returns a subscription whose channel is already closed.
func (h *Hub) Attach() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscription{id: h.nextID, ch: make(chan domain.UpdateEvent, h.buf)}
	h.nextID++
	if h.closed {
		close(sub.ch)
		return sub
	}
	h.subs[sub.id] = sub
	return sub
}

// Detach removes a subscriber and closes its channel. Detaching an unknown or
// already-detached subscription is a no-op.
func (h *Hub) Detach(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub.id]; !ok {
		return
	}
	delete(h.subs, sub.id)
	close(sub.ch)
}

// Broadcast delivers the event to every currently attached subscriber. A
// subscriber with a full buffer loses this delivery only; others are
// unaffected.
func (h *Hub) Broadcast(ev domain.UpdateEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		select {
		case sub.ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}

// Count returns the number of attached subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns the total number of deliveries lost to slow subscribers.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close detaches every subscriber and rejects future attachments.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}
