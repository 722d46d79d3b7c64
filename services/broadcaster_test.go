package services

import (
	"testing"
	"time"
)

func TestBroadcasterDeliversToUserOnly(t *testing.T) {
	b := NewBroadcaster()
	a := b.Subscribe(1)
	other := b.Subscribe(2)
	defer b.Unsubscribe(a)
	defer b.Unsubscribe(other)

	b.Emit(1, EventTaskCompleted, map[string]int{"id": 7})

	select {
	case ev := <-a.Events:
		if ev.Type != EventTaskCompleted {
			t.Fatalf("Type=%s, want %s", ev.Type, EventTaskCompleted)
		}
	case <-time.After(time.Second):
		t.Fatalf("subscriber 1 got nothing")
	}
	select {
	case ev := <-other.Events:
		t.Fatalf("subscriber 2 got %v", ev)
	default:
	}
}

func TestBroadcasterDropsWhenFull(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Subscribe(1)
	defer b.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			b.Emit(1, EventNewTask, i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Emit blocked on a slow subscriber")
	}
	if got := len(sub.Events); got != subscriberBuffer {
		t.Fatalf("buffered=%d, want %d", got, subscriberBuffer)
	}
}

func TestBroadcasterUnsubscribeClosesOnce(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Subscribe(3)
	b.Unsubscribe(sub)
	b.Unsubscribe(sub)

	if _, ok := <-sub.Events; ok {
		t.Fatalf("channel still open after Unsubscribe")
	}
	if n := b.Subscribers(3); n != 0 {
		t.Fatalf("Subscribers=%d, want 0", n)
	}
	// Emitting with nobody listening is a no-op.
	b.Emit(3, EventTaskFailed, nil)
}
