package chat

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(userID string, hub *Hub) *Client {
	return NewClient(userID, nil, hub, nil)
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub()
	c1 := newTestClient("alice", hub)
	c2 := newTestClient("alice", hub)

	hub.Register(c1)
	hub.Register(c2)
	assert.Equal(t, 2, hub.ConnectionCount("alice"))

	hub.Unregister(c1)
	assert.Equal(t, 1, hub.ConnectionCount("alice"))

	// Unregistering twice is harmless
	hub.Unregister(c1)
	assert.Equal(t, 1, hub.ConnectionCount("alice"))

	hub.Unregister(c2)
	assert.Equal(t, 0, hub.ConnectionCount("alice"))
}

func TestSendToUserFansOutToAllConnections(t *testing.T) {
	hub := NewHub()
	c1 := newTestClient("alice", hub)
	c2 := newTestClient("alice", hub)
	other := newTestClient("bob", hub)
	hub.Register(c1)
	hub.Register(c2)
	hub.Register(other)

	hub.SendToUser("alice", Event{Type: EventUserTyping, Data: map[string]string{"user_id": "bob"}})

	for _, c := range []*Client{c1, c2} {
		select {
		case payload := <-c.send:
			var evt Event
			require.NoError(t, json.Unmarshal(payload, &evt))
			assert.Equal(t, EventUserTyping, evt.Type)
		default:
			t.Fatal("expected a payload on every alice connection")
		}
	}

	select {
	case <-other.send:
		t.Fatal("bob should not receive alice's event")
	default:
	}
}

func TestSendToUserNoConnections(t *testing.T) {
	hub := NewHub()
	// No connections registered: delivery is silently dropped
	hub.SendToUser("ghost", Event{Type: EventReceiveMessage})
	assert.Equal(t, 0, hub.ConnectionCount("ghost"))
}

func TestSendToUserDropsSlowConnection(t *testing.T) {
	hub := NewHub()
	slow := newTestClient("alice", hub)
	hub.Register(slow)

	// Fill the buffer so the next delivery cannot be queued
	for i := 0; i < sendBuffer; i++ {
		slow.send <- []byte("{}")
	}

	hub.SendToUser("alice", Event{Type: EventReceiveMessage})
	assert.Equal(t, 0, hub.ConnectionCount("alice"))
}

func TestSendErrorRacingUnregister(t *testing.T) {
	// An error on a connection the hub is concurrently dropping must be
	// discarded, never sent on the closed channel.
	for i := 0; i < 10000; i++ {
		hub := NewHub()
		c := newTestClient("alice", hub)
		hub.Register(c)

		start := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			c.sendError("late failure")
		}()
		go func() {
			defer wg.Done()
			<-start
			hub.Unregister(c)
		}()
		close(start)
		wg.Wait()
	}
}

func TestSendErrorAfterClose(t *testing.T) {
	hub := NewHub()
	c := newTestClient("alice", hub)
	hub.Register(c)
	hub.Unregister(c)

	// Must be a silent no-op
	c.sendError("too late")

	// The channel is closed and holds nothing
	_, ok := <-c.send
	assert.False(t, ok)
}

func TestPreviewTruncation(t *testing.T) {
	assert.Equal(t, "short", Preview("short"))

	long := strings.Repeat("a", previewLength) + "-overflow"
	got := Preview(long)
	assert.Len(t, []rune(got), previewLength)
	assert.Equal(t, long[:previewLength], got)

	// Rune-safe: multibyte characters are never split
	multibyte := "héllo wörld héllo wörld héllo wörld héllo wörld héllo wörld"
	got = Preview(multibyte)
	assert.Equal(t, previewLength, len([]rune(got)))
	assert.True(t, json.Valid([]byte(`"`+got+`"`)))
}
