// Package stream fans out per-user change notifications to live
// subscribers such as SSE connections.
package stream

import (
	"sync"
)

// Kind identifies what changed for a user.
type Kind string

const (
	ExpensesChanged Kind = "expenses_changed"
	ProfileChanged  Kind = "profile_changed"
)

type Event struct {
	Kind   Kind
	UserID string
}

// Subscription is a live handle returned by Hub.Subscribe. Close must be
// called when the owner is torn down.
type Subscription struct {
	hub    *Hub
	userID string
	ch     chan Event
	once   sync.Once
}

// C delivers events. It is closed after Close.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Hub routes events to the subscriptions of the affected user. Publish never
// blocks: a subscriber that already has an event of the same kind pending
// does not need another one.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{}), buffer: 8}
}

func (h *Hub) Subscribe(userID string) *Subscription {
	s := &Subscription{hub: h, userID: userID, ch: make(chan Event, h.buffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][s] = struct{}{}
	return s
}

// Publish delivers e to every subscription of e.UserID and returns how many
// received it.
func (h *Hub) Publish(e Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for s := range h.subs[e.UserID] {
		select {
		case s.ch <- e:
			n++
		default:
			// full buffer already holds pending change signals
		}
	}
	return n
}

// Subscribers returns the number of live subscriptions for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[s.userID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.userID)
		}
	}
	close(s.ch)
}
