package app

import (
	"testing"

	"juhd/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestSessionHub_SubscribeAndUnsubscribe(t *testing.T) {
	hub := NewSessionHub()
	var got []SessionEvent
	unsubscribe := hub.Subscribe(func(ev SessionEvent) { got = append(got, ev) })

	ev := SessionEvent{Kind: SessionSignedIn, User: domain.User{ID: "u1"}}
	hub.Publish(ev)
	unsubscribe()
	unsubscribe()
	hub.Publish(SessionEvent{Kind: SessionSignedOut, User: domain.User{ID: "u1"}})

	assert.Equal(t, []SessionEvent{ev}, got)
}
