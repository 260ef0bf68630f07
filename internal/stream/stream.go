// Package stream fans out events to live subscribers such as SSE clients.
package stream

import (
	"context"
	"sync"
)

const defaultBuffer = 16

// Hub delivers every published event to all active subscribers. Slow
// subscribers miss events instead of blocking the publisher.
type Hub[T any] struct {
	mu     sync.RWMutex
	subs   map[int]chan T
	next   int
	buffer int
}

func New[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[int]chan T), buffer: defaultBuffer}
}

// Subscribe registers a subscriber. The returned channel is closed when
// ctx ends.
func (h *Hub[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, h.buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

// Publish hands evt to every subscriber with room in its buffer.
func (h *Hub[T]) Publish(evt T) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribers reports how many subscribers are attached.
func (h *Hub[T]) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
