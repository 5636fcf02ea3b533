// Package hub provides a generic in-process publish/subscribe bus.
//
// The hub decouples event producers (pipeline, watcher) from any number of
// consumers. Delivery is fan-out with a bounded per-subscriber buffer; a slow
// consumer loses its oldest events rather than stalling the publisher. There
// is no replay: events published before Subscribe are never seen.
package hub

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultBufferSize is the per-subscriber event buffer size.
const DefaultBufferSize = 64

// Subscription is a registered consumer. Receive events from C; call
// Hub.Unsubscribe (or Subscription.Cancel) when done.
type Subscription[T any] struct {
	// ID uniquely identifies the subscription.
	ID uuid.UUID
	// C delivers published events. Closed on unsubscribe.
	C <-chan T

	ch      chan T
	hub     *Hub[T]
	dropped atomic.Uint64

	// mu serializes sends against close so late publishes during an
	// unsubscribe cannot hit a closed channel.
	mu     sync.Mutex
	closed bool
}

// Cancel unsubscribes from the hub. Idempotent.
func (s *Subscription[T]) Cancel() {
	s.hub.Unsubscribe(s)
}

// Dropped returns the number of events this subscriber lost to overflow.
func (s *Subscription[T]) Dropped() uint64 {
	return s.dropped.Load()
}

// deliver pushes an event into the buffer, evicting the oldest entry when
// full. No-op after close.
func (s *Subscription[T]) deliver(event T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.ch <- event:
		return
	default:
	}

	// Buffer full: drop the oldest event to make room for the newest.
	select {
	case <-s.ch:
		count := s.dropped.Add(1)
		slog.Debug("hub_event_dropped",
			slog.String("subscription", s.ID.String()),
			slog.Uint64("total_dropped", count))
	default:
	}
	select {
	case s.ch <- event:
	default:
	}
}

// finish closes the channel exactly once.
func (s *Subscription[T]) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Hub is a typed fan-out event bus. The zero value is not usable; create
// with New.
type Hub[T any] struct {
	mu      sync.RWMutex
	subs    map[uuid.UUID]*Subscription[T]
	bufSize int
	closed  bool
}

// New creates a hub with the given per-subscriber buffer size.
// Non-positive sizes fall back to DefaultBufferSize.
func New[T any](bufferSize int) *Hub[T] {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub[T]{
		subs:    make(map[uuid.UUID]*Subscription[T]),
		bufSize: bufferSize,
	}
}

// Subscribe registers a new consumer and returns its subscription handle.
// Returns nil if the hub is closed.
func (h *Hub[T]) Subscribe() *Subscription[T] {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	ch := make(chan T, h.bufSize)
	sub := &Subscription[T]{
		ID:  uuid.New(),
		C:   ch,
		ch:  ch,
		hub: h,
	}
	h.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes a consumer and closes its channel. Idempotent.
func (h *Hub[T]) Unsubscribe(sub *Subscription[T]) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	_, ok := h.subs[sub.ID]
	delete(h.subs, sub.ID)
	h.mu.Unlock()

	if ok {
		sub.finish()
	}
}

// Publish delivers the event to every currently-registered subscriber.
// Delivery happens against a registry snapshot so the registry lock is not
// held while pushing into buffers.
func (h *Hub[T]) Publish(event T) {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	snapshot := make([]*Subscription[T], 0, len(h.subs))
	for _, sub := range h.subs {
		snapshot = append(snapshot, sub)
	}
	h.mu.RUnlock()

	for _, sub := range snapshot {
		sub.deliver(event)
	}
}

// SubscriberCount returns the number of active subscriptions.
func (h *Hub[T]) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close unsubscribes everyone and rejects future subscriptions. Idempotent.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := make([]*Subscription[T], 0, len(h.subs))
	for id, sub := range h.subs {
		delete(h.subs, id)
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.finish()
	}
}
