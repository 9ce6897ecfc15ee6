package chat

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/skillswap-labs/skillswap/internal/user"
)

// MessageNotifier receives delivery outcomes so out-of-band channels
// (in-app notifications, email) can pick up where the socket left off.
type MessageNotifier interface {
	MessageSent(ctx context.Context, m *Message, senderName string, receiverOnline bool)
}

// Service owns the realtime message flow: persistence first, then fan-out.
// A message is never pushed to a socket before it is durable.
type Service struct {
	store  MessageStore
	hub    *Hub
	users  user.Directory
	notify MessageNotifier
}

func NewService(store MessageStore, hub *Hub, users user.Directory, notify MessageNotifier) *Service {
	return &Service{store: store, hub: hub, users: users, notify: notify}
}

// SendMessage validates, persists and fans out a message from senderID.
// Events go to every connection of both parties, so the sender's other
// tabs stay in sync.
func (s *Service) SendMessage(senderID string, p sendMessagePayload) error {
	ctx := context.Background()

	if p.ReceiverID == "" {
		return errors.New("receiver_id is required")
	}
	if p.ReceiverID == senderID {
		return errors.New("cannot message yourself")
	}
	if strings.TrimSpace(p.Content) == "" && len(p.Attachments) == 0 {
		return errors.New("message needs content or attachments")
	}

	if _, err := s.users.Lookup(ctx, p.ReceiverID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return errors.New("receiver not found")
		}
		log.Printf("chat: receiver lookup failed: %v", err)
		return errors.New("failed to send message")
	}

	m := &Message{
		ID:          uuid.New().String(),
		SenderID:    senderID,
		ReceiverID:  p.ReceiverID,
		Content:     p.Content,
		Attachments: normalizeAttachments(p.Attachments),
	}
	if err := s.store.Save(ctx, m); err != nil {
		log.Printf("chat: failed to persist message: %v", err)
		return errors.New("failed to send message")
	}

	evt := Event{Type: EventReceiveMessage, Data: m}
	s.hub.SendToUser(m.ReceiverID, evt)
	s.hub.SendToUser(m.SenderID, evt)

	senderName := senderID
	if sender, err := s.users.Lookup(ctx, senderID); err == nil {
		senderName = sender.Name
	}
	s.hub.SendToUser(m.ReceiverID, Event{
		Type: EventNewMessageNotification,
		Data: map[string]interface{}{
			"message_id":  m.ID,
			"sender_id":   m.SenderID,
			"sender_name": senderName,
			"preview":     Preview(m.Content),
			"created_at":  m.CreatedAt,
		},
	})

	if s.notify != nil {
		s.notify.MessageSent(ctx, m, senderName, s.hub.ConnectionCount(m.ReceiverID) > 0)
	}
	return nil
}

// MarkRead flips a single message's read flag. Only the receiver may mark;
// marking twice is a no-op, not an error.
func (s *Service) MarkRead(userID, messageID string) error {
	if messageID == "" {
		return errors.New("message_id is required")
	}
	err := s.store.MarkRead(context.Background(), messageID, userID)
	switch {
	case errors.Is(err, ErrNotFound):
		return errors.New("message not found")
	case errors.Is(err, ErrForbidden):
		return errors.New("only the recipient can mark a message read")
	case err != nil:
		log.Printf("chat: mark read failed: %v", err)
		return errors.New("failed to mark message read")
	}
	return nil
}

// Typing relays a transient typing indicator. Nothing is persisted and no
// error surfaces if the receiver is offline; the event just goes nowhere.
func (s *Service) Typing(senderID, receiverID string, active bool) {
	if receiverID == "" || receiverID == senderID {
		return
	}
	typ := EventUserTyping
	if !active {
		typ = EventUserStopTyping
	}
	s.hub.SendToUser(receiverID, Event{
		Type: typ,
		Data: map[string]string{"user_id": senderID},
	})
}

// RelayRequestUpdate forwards a service-request status change to both
// parties' live connections. Only a party to the request may relay it.
func (s *Service) RelayRequestUpdate(userID string, p requestUpdatePayload) error {
	if userID != p.RequesterID && userID != p.ProviderID {
		return errors.New("not a party to this request")
	}
	evt := Event{Type: EventServiceRequestUpdated, Data: p}
	s.hub.SendToUser(p.RequesterID, evt)
	s.hub.SendToUser(p.ProviderID, evt)
	return nil
}

// Disconnected runs after a client's read pump exits.
func (s *Service) Disconnected(userID string) {
	// Presence is derived purely from the hub's registry; there is no
	// per-user state to tear down here beyond what Unregister already did.
	log.Printf("chat: user %s disconnected (%d connections left)", userID, s.hub.ConnectionCount(userID))
}

// normalizeAttachments coerces whatever the client sent into the canonical
// shape, dropping entries without a URL.
func normalizeAttachments(in []Attachment) []Attachment {
	out := make([]Attachment, 0, len(in))
	for _, a := range in {
		if a.URL == "" {
			continue
		}
		if a.FileName == "" {
			parts := strings.Split(a.URL, "/")
			a.FileName = parts[len(parts)-1]
		}
		out = append(out, a)
	}
	return out
}
