package app

import (
	"sync"

	"juhd/internal/domain"
)

// SessionEventKind distinguishes session transitions.
type SessionEventKind string

const (
	SessionSignedIn  SessionEventKind = "signed_in"
	SessionSignedOut SessionEventKind = "signed_out"
)

// SessionEvent is published whenever a user signs in or out.
type SessionEvent struct {
	Kind SessionEventKind
	User domain.User
}

// SessionHub fans session events out to subscribers.
type SessionHub struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(SessionEvent)
}

// NewSessionHub creates an empty hub.
func NewSessionHub() *SessionHub {
	return &SessionHub{subs: make(map[int]func(SessionEvent))}
}

// Subscribe registers fn and returns a function that removes it.
func (h *SessionHub) Subscribe(fn func(SessionEvent)) func() {
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Publish delivers ev to every subscriber synchronously.
func (h *SessionHub) Publish(ev SessionEvent) {
	h.mu.RLock()
	subs := make([]func(SessionEvent), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}
