package eventbus

import "testing"

func TestFilteredSubscribe(t *testing.T) {
	t.Parallel()
	b := New()
	all, unsubAll := b.Subscribe(4)
	defer unsubAll()
	sent, unsubSent := b.Subscribe(4, "reminder.sent")
	defer unsubSent()

	b.Publish(Event{Type: "reminder.sent"})
	b.Publish(Event{Type: "tick.done"})

	if len(all) != 2 {
		t.Fatalf("unfiltered got %d events, want 2", len(all))
	}
	if len(sent) != 1 {
		t.Fatalf("filtered got %d events, want 1", len(sent))
	}
	if e := <-sent; e.Type != "reminder.sent" || e.Time.IsZero() {
		t.Fatalf("event = %+v", e)
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	for i := 0; i < 5; i++ {
		b.Publish(Event{Type: "x"})
	}
	if len(ch) != 1 {
		t.Fatalf("buffered = %d, want 1", len(ch))
	}
	if got := b.Dropped(); got != 4 {
		t.Fatalf("Dropped = %d, want 4", got)
	}
}

func TestUnsubscribeClosesOnce(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatal("channel not closed")
	}
	b.Publish(Event{Type: "after"})
	if b.Dropped() != 0 {
		t.Fatal("publish after unsubscribe counted as drop")
	}
}
