package chat

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillswap-labs/skillswap/internal/user"
)

type fakeMessageStore struct {
	messages map[string]*Message
	saveErr  error
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{messages: make(map[string]*Message)}
}

func (s *fakeMessageStore) Save(_ context.Context, m *Message) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	m.CreatedAt = time.Now().UTC()
	cp := *m
	s.messages[m.ID] = &cp
	return nil
}

func (s *fakeMessageStore) MarkRead(_ context.Context, messageID, receiverID string) error {
	m, ok := s.messages[messageID]
	if !ok {
		return ErrNotFound
	}
	if m.ReceiverID != receiverID {
		return ErrForbidden
	}
	m.Read = true
	return nil
}

func (s *fakeMessageStore) ConversationWith(_ context.Context, userID, otherID string) ([]Message, error) {
	var out []Message
	for _, m := range s.messages {
		if (m.SenderID == userID && m.ReceiverID == otherID) ||
			(m.SenderID == otherID && m.ReceiverID == userID) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeMessageStore) MarkConversationRead(_ context.Context, userID, otherID string) error {
	for _, m := range s.messages {
		if m.SenderID == otherID && m.ReceiverID == userID {
			m.Read = true
		}
	}
	return nil
}

func (s *fakeMessageStore) Conversations(_ context.Context, userID string) ([]ConversationSummary, error) {
	latest := make(map[string]*Message)
	for _, m := range s.messages {
		var other string
		switch userID {
		case m.SenderID:
			other = m.ReceiverID
		case m.ReceiverID:
			other = m.SenderID
		default:
			continue
		}
		if prev, ok := latest[other]; !ok || m.CreatedAt.After(prev.CreatedAt) {
			latest[other] = m
		}
	}

	var out []ConversationSummary
	for other, m := range latest {
		out = append(out, ConversationSummary{
			UserID:      other,
			Name:        other,
			LastMessage: m.Content,
			Timestamp:   m.CreatedAt,
			Unread:      m.ReceiverID == userID && !m.Read,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (s *fakeMessageStore) UnreadCount(_ context.Context, userID string) (int64, error) {
	var n int64
	for _, m := range s.messages {
		if m.ReceiverID == userID && !m.Read {
			n++
		}
	}
	return n, nil
}

type fakeDirectory struct {
	contacts map[string]*user.Contact
}

func (d *fakeDirectory) Lookup(_ context.Context, id string) (*user.Contact, error) {
	c, ok := d.contacts[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return c, nil
}

type fakeNotifier struct {
	messages []*Message
	online   []bool
}

func (n *fakeNotifier) MessageSent(_ context.Context, m *Message, _ string, receiverOnline bool) {
	n.messages = append(n.messages, m)
	n.online = append(n.online, receiverOnline)
}

func newTestService() (*Service, *fakeMessageStore, *Hub, *fakeNotifier) {
	store := newFakeMessageStore()
	hub := NewHub()
	notifier := &fakeNotifier{}
	dir := &fakeDirectory{contacts: map[string]*user.Contact{
		"alice": {ID: "alice", Name: "Alice", Email: "alice@example.com"},
		"bob":   {ID: "bob", Name: "Bob", Email: "bob@example.com"},
	}}
	return NewService(store, hub, dir, notifier), store, hub, notifier
}

func drainEvents(t *testing.T, c *Client) []Event {
	t.Helper()
	var out []Event
	for {
		select {
		case payload := <-c.send:
			var evt Event
			require.NoError(t, json.Unmarshal(payload, &evt))
			out = append(out, evt)
		default:
			return out
		}
	}
}

func TestSendMessage(t *testing.T) {
	svc, store, hub, notifier := newTestService()

	sender := newTestClient("alice", hub)
	receiver := newTestClient("bob", hub)
	hub.Register(sender)
	hub.Register(receiver)

	err := svc.SendMessage("alice", sendMessagePayload{
		ReceiverID: "bob",
		Content:    "hola, can we swap guitar for Spanish?",
	})
	require.NoError(t, err)

	require.Len(t, store.messages, 1)

	// Receiver gets the message plus a notification event
	events := drainEvents(t, receiver)
	require.Len(t, events, 2)
	assert.Equal(t, EventReceiveMessage, events[0].Type)
	assert.Equal(t, EventNewMessageNotification, events[1].Type)

	// Sender's own connections see the message for multi-tab sync
	events = drainEvents(t, sender)
	require.Len(t, events, 1)
	assert.Equal(t, EventReceiveMessage, events[0].Type)

	require.Len(t, notifier.messages, 1)
	assert.True(t, notifier.online[0])
}

func TestSendMessageOfflineReceiver(t *testing.T) {
	svc, _, _, notifier := newTestService()

	err := svc.SendMessage("alice", sendMessagePayload{ReceiverID: "bob", Content: "hi"})
	require.NoError(t, err)

	require.Len(t, notifier.online, 1)
	assert.False(t, notifier.online[0])
}

func TestSendMessageValidation(t *testing.T) {
	svc, store, _, _ := newTestService()

	assert.Error(t, svc.SendMessage("alice", sendMessagePayload{Content: "no receiver"}))
	assert.Error(t, svc.SendMessage("alice", sendMessagePayload{ReceiverID: "alice", Content: "self"}))
	assert.Error(t, svc.SendMessage("alice", sendMessagePayload{ReceiverID: "bob", Content: "   "}))
	assert.Error(t, svc.SendMessage("alice", sendMessagePayload{ReceiverID: "ghost", Content: "hi"}))
	assert.Empty(t, store.messages)
}

func TestSendMessageAttachmentsOnly(t *testing.T) {
	svc, store, _, _ := newTestService()

	err := svc.SendMessage("alice", sendMessagePayload{
		ReceiverID: "bob",
		Attachments: []Attachment{
			{URL: "https://cdn.example.com/uploads/sheet.pdf"},
			{}, // no URL, dropped
		},
	})
	require.NoError(t, err)

	require.Len(t, store.messages, 1)
	for _, m := range store.messages {
		require.Len(t, m.Attachments, 1)
		assert.Equal(t, "sheet.pdf", m.Attachments[0].FileName)
	}
}

func TestMarkRead(t *testing.T) {
	svc, store, _, _ := newTestService()
	store.messages["m1"] = &Message{ID: "m1", SenderID: "alice", ReceiverID: "bob"}

	// Only the receiver may mark
	assert.Error(t, svc.MarkRead("alice", "m1"))
	assert.False(t, store.messages["m1"].Read)

	require.NoError(t, svc.MarkRead("bob", "m1"))
	assert.True(t, store.messages["m1"].Read)

	// Marking again stays successful
	require.NoError(t, svc.MarkRead("bob", "m1"))

	assert.Error(t, svc.MarkRead("bob", "missing"))
	assert.Error(t, svc.MarkRead("bob", ""))
}

func TestTypingRelay(t *testing.T) {
	svc, _, hub, _ := newTestService()
	receiver := newTestClient("bob", hub)
	hub.Register(receiver)

	svc.Typing("alice", "bob", true)
	svc.Typing("alice", "bob", false)
	// Self and empty targets go nowhere
	svc.Typing("alice", "alice", true)
	svc.Typing("alice", "", true)

	events := drainEvents(t, receiver)
	require.Len(t, events, 2)
	assert.Equal(t, EventUserTyping, events[0].Type)
	assert.Equal(t, EventUserStopTyping, events[1].Type)
}

func TestRelayRequestUpdate(t *testing.T) {
	svc, _, hub, _ := newTestService()
	requester := newTestClient("alice", hub)
	provider := newTestClient("bob", hub)
	hub.Register(requester)
	hub.Register(provider)

	payload := requestUpdatePayload{
		RequestID:   "req-1",
		RequesterID: "alice",
		ProviderID:  "bob",
		Status:      "accepted",
	}

	require.NoError(t, svc.RelayRequestUpdate("alice", payload))
	assert.Len(t, drainEvents(t, requester), 1)
	assert.Len(t, drainEvents(t, provider), 1)

	// A stranger cannot inject updates
	assert.Error(t, svc.RelayRequestUpdate("mallory", payload))
}
