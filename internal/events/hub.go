// Package events provides the in-process activity feed behind /events and
// the watch TUI. Observability only: nothing in the archival path depends
// on a publish being seen.
package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Activity types published by the sink.
const (
	TypeEventArchived = "event.archived"
	TypeEventSkipped  = "event.skipped"
	TypeHandshake     = "handshake.answered"
	TypeFetchQueued   = "fetch.queued"
	TypeFetchComplete = "fetch.completed"
	TypeFetchFailed   = "fetch.failed"
	TypeFetchDropped  = "fetch.dropped"
)

type Event struct {
	ID   int64     `json:"id"`
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data []byte    `json:"data"` // JSON payload
}

// Hub is an in-memory pub/sub with a bounded replay buffer so late
// subscribers (an SSE client reconnecting with Last-Event-ID) can catch up.
type Hub struct {
	nextID atomic.Int64

	mu        sync.Mutex
	recent    []Event
	capacity  int
	subs      map[int]chan Event
	nextSubID int
}

// NewHub creates a Hub retaining the last capacity events for replay.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 100
	}
	return &Hub{
		capacity: capacity,
		recent:   make([]Event, 0, capacity),
		subs:     make(map[int]chan Event),
	}
}

// Publish fans out an event to all subscribers and records it in the replay
// buffer. Slow subscribers are skipped, never waited on.
func (h *Hub) Publish(eventType string, data any) {
	payload := []byte("{}")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}

	ev := Event{
		ID:   h.nextID.Add(1),
		Type: eventType,
		At:   time.Now().UTC(),
		Data: payload,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.recent) == h.capacity {
		copy(h.recent, h.recent[1:])
		h.recent = h.recent[:h.capacity-1]
	}
	h.recent = append(h.recent, ev)

	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a consumer. The returned cancel func must be called to
// release the subscription.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	ch := make(chan Event, 128)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Replay returns buffered events with ID > sinceID, oldest-first. sinceID 0
// returns the whole buffer.
func (h *Hub) Replay(sinceID int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, len(h.recent))
	for _, ev := range h.recent {
		if ev.ID > sinceID {
			out = append(out, ev)
		}
	}
	return out
}
