package events

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	h := NewHub(10)
	ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish(TypeEventArchived, map[string]string{"team_id": "T1"})

	select {
	case ev := <-ch:
		if ev.Type != TypeEventArchived {
			t.Errorf("Type = %q, want %q", ev.Type, TypeEventArchived)
		}
		if ev.ID != 1 {
			t.Errorf("ID = %d, want 1", ev.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestReplaySince(t *testing.T) {
	h := NewHub(10)
	for i := 0; i < 5; i++ {
		h.Publish(TypeFetchQueued, nil)
	}

	all := h.Replay(0)
	if len(all) != 5 {
		t.Fatalf("Replay(0) = %d events, want 5", len(all))
	}
	tail := h.Replay(3)
	if len(tail) != 2 {
		t.Fatalf("Replay(3) = %d events, want 2", len(tail))
	}
	if tail[0].ID != 4 || tail[1].ID != 5 {
		t.Errorf("Replay(3) ids = %d,%d, want 4,5", tail[0].ID, tail[1].ID)
	}
}

func TestReplayBufferBounded(t *testing.T) {
	h := NewHub(3)
	for i := 0; i < 10; i++ {
		h.Publish(TypeEventArchived, nil)
	}

	got := h.Replay(0)
	if len(got) != 3 {
		t.Fatalf("Replay(0) = %d events, want 3", len(got))
	}
	if got[0].ID != 8 {
		t.Errorf("oldest retained id = %d, want 8", got[0].ID)
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(10)
	_, cancel := h.Subscribe() // never drained
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			h.Publish(TypeEventArchived, nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}
