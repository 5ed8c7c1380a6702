package eventbus

import (
	"testing"
	"time"
)

func TestSubscribeFiltersByType(t *testing.T) {
	t.Parallel()

	b := New()
	all, unsubAll := b.Subscribe(4)
	defer unsubAll()
	only, unsubOnly := b.Subscribe(4, "a")
	defer unsubOnly()

	b.Publish(Event{Type: "a", Data: 1})
	b.Publish(Event{Type: "b", Data: 2})

	if got := len(all); got != 2 {
		t.Fatalf("len(all) = %d, want 2", got)
	}
	if got := len(only); got != 1 {
		t.Fatalf("len(only) = %d, want 1", got)
	}
	ev := <-only
	if ev.Type != "a" || ev.Data != 1 {
		t.Fatalf("event = %+v, want type a data 1", ev)
	}
	if ev.Time.IsZero() {
		t.Fatalf("Publish did not stamp Time")
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	t.Parallel()

	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		b.Publish(Event{Type: "x"})
		b.Publish(Event{Type: "x"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	if len(ch) != 1 {
		t.Fatalf("len(ch) = %d, want 1", len(ch))
	}
	if got := b.Dropped(); got != 1 {
		t.Fatalf("Dropped() = %d, want 1", got)
	}
}

func TestUnsubscribeClosesAndIsIdempotent(t *testing.T) {
	t.Parallel()

	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after unsubscribe")
	}
	// Must not panic.
	b.Publish(Event{Type: "x"})
}
