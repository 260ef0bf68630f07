package stream

import (
	"context"
	"testing"
	"time"
)

func TestPublishReachesSubscribers(t *testing.T) {
	h := New[string]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := h.Subscribe(ctx)
	b := h.Subscribe(ctx)
	h.Publish("login")

	for i, ch := range []<-chan string{a, b} {
		select {
		case got := <-ch:
			if got != "login" {
				t.Fatalf("subscriber %d got %q", i, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d received nothing", i)
		}
	}
}

func TestSubscriptionClosesWithContext(t *testing.T) {
	h := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	ch := h.Subscribe(ctx)
	if h.Subscribers() != 1 {
		t.Fatalf("subscribers = %d", h.Subscribers())
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
	if h.Subscribers() != 0 {
		t.Fatalf("subscribers = %d after cancel", h.Subscribers())
	}
}

func TestPublishDropsForFullSubscriber(t *testing.T) {
	h := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := h.Subscribe(ctx)

	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultBuffer*2; i++ {
			h.Publish(i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	if len(ch) != defaultBuffer {
		t.Fatalf("buffered = %d, want %d", len(ch), defaultBuffer)
	}
}

func TestNilHubPublish(t *testing.T) {
	var h *Hub[int]
	h.Publish(1)
}
