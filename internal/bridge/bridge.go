// Package bridge fans domain events out to the delivery channels: live
// websocket pushes, in-app notifications and queued emails. Request,
// escrow and chat code only ever sees its own small notifier interface;
// this package is the one place that knows about all three channels.
package bridge

import (
	"context"
	"fmt"
	"log"

	"github.com/skillswap-labs/skillswap/internal/alerts"
	"github.com/skillswap-labs/skillswap/internal/chat"
	"github.com/skillswap-labs/skillswap/internal/escrow"
	"github.com/skillswap-labs/skillswap/internal/request"
	"github.com/skillswap-labs/skillswap/internal/user"
)

// Bridge implements request.Notifier, escrow.Notifier and
// chat.MessageNotifier. All delivery is best-effort: a failed email or
// notification insert is logged, never surfaced to the caller.
type Bridge struct {
	hub   chat.Broadcaster
	users user.Directory
}

func New(hub chat.Broadcaster, users user.Directory) *Bridge {
	return &Bridge{hub: hub, users: users}
}

// RequestCreated notifies the provider that a request landed in their inbox.
func (b *Bridge) RequestCreated(ctx context.Context, r *request.ServiceRequest) {
	requesterName := b.displayName(ctx, r.RequesterID)

	b.hub.SendToUser(r.ProviderID, chat.Event{
		Type: chat.EventServiceRequestUpdated,
		Data: requestEventData(r, "A new service request from "+requesterName),
	})

	ref := r.ID
	meta := "{}"
	if err := alerts.CreateNotification(r.ProviderID, "request:created",
		"New service request", requesterName+" sent you a service request", &ref, &meta); err != nil {
		log.Printf("bridge: notification insert failed: %v", err)
	}

	if contact, err := b.users.Lookup(ctx, r.ProviderID); err == nil && contact.Email != "" {
		if err := alerts.EnqueueRequestCreated(r.ID, r.RequesterID, r.ProviderID,
			contact.Email, requesterName, r.Terms); err != nil {
			log.Printf("bridge: request created email enqueue failed: %v", err)
		}
	}
}

// RequestUpdated pushes a status change to both parties and notifies the
// counterpart of whoever made the change.
func (b *Bridge) RequestUpdated(ctx context.Context, r *request.ServiceRequest, actorID string) {
	line := SystemLine(r.Status)

	evt := chat.Event{
		Type: chat.EventServiceRequestUpdated,
		Data: requestEventData(r, line),
	}
	b.hub.SendToUser(r.RequesterID, evt)
	b.hub.SendToUser(r.ProviderID, evt)

	if !r.IsParty(actorID) {
		return
	}
	counterpart := r.Counterpart(actorID)

	ref := r.ID
	meta := "{}"
	if err := alerts.CreateNotification(counterpart, "request:updated",
		"Service request update", line, &ref, &meta); err != nil {
		log.Printf("bridge: notification insert failed: %v", err)
	}

	if contact, err := b.users.Lookup(ctx, counterpart); err == nil && contact.Email != "" {
		if err := alerts.EnqueueRequestUpdated(r.ID, actorID, string(r.Status),
			contact.Email, line); err != nil {
			log.Printf("bridge: request updated email enqueue failed: %v", err)
		}
	}
}

// EscrowEvent mirrors an escrow lifecycle change to the sockets of both
// parties and notifies the counterpart of the actor.
func (b *Bridge) EscrowEvent(ctx context.Context, e *escrow.Escrow, requestStatus request.Status, actorID, event string) {
	line := escrowLine(event)

	data := map[string]interface{}{
		"request_id":   e.RequestID,
		"requester_id": e.ClientID,
		"provider_id":  e.ProviderID,
		"escrow_id":    e.ID,
		"event":        event,
		"message":      line,
	}
	if requestStatus != "" {
		data["status"] = string(requestStatus)
	}
	evt := chat.Event{Type: chat.EventServiceRequestUpdated, Data: data}
	b.hub.SendToUser(e.ClientID, evt)
	b.hub.SendToUser(e.ProviderID, evt)

	counterpart := e.ClientID
	if actorID == e.ClientID {
		counterpart = e.ProviderID
	}

	ref := e.ID
	meta := "{}"
	if err := alerts.CreateNotification(counterpart, "escrow:"+event,
		"Escrow update", line, &ref, &meta); err != nil {
		log.Printf("bridge: notification insert failed: %v", err)
	}

	if contact, err := b.users.Lookup(ctx, counterpart); err == nil && contact.Email != "" {
		if err := alerts.EnqueueEscrowEvent(e.ID, e.RequestID, actorID, event,
			contact.Email, line); err != nil {
			log.Printf("bridge: escrow email enqueue failed: %v", err)
		}
	}
}

// MessageSent records an in-app notification for the receiver and, when no
// socket picked the message up, falls back to email.
func (b *Bridge) MessageSent(ctx context.Context, m *chat.Message, senderName string, receiverOnline bool) {
	ref := m.ID
	meta := "{}"
	if err := alerts.CreateNotification(m.ReceiverID, "message:new",
		"New message from "+senderName, m.Content, &ref, &meta); err != nil {
		log.Printf("bridge: notification insert failed: %v", err)
	}

	if receiverOnline {
		return
	}
	contact, err := b.users.Lookup(ctx, m.ReceiverID)
	if err != nil || contact.Email == "" {
		return
	}
	if err := alerts.EnqueueMessageNew(m.ID, m.SenderID, senderName,
		m.ReceiverID, contact.Email, chat.Preview(m.Content)); err != nil {
		log.Printf("bridge: message email enqueue failed: %v", err)
	}
}

func (b *Bridge) displayName(ctx context.Context, userID string) string {
	if contact, err := b.users.Lookup(ctx, userID); err == nil && contact.Name != "" {
		return contact.Name
	}
	return "A SkillSwap user"
}

func requestEventData(r *request.ServiceRequest, message string) map[string]interface{} {
	return map[string]interface{}{
		"request_id":   r.ID,
		"requester_id": r.RequesterID,
		"provider_id":  r.ProviderID,
		"status":       string(r.Status),
		"message":      message,
	}
}

// SystemLine renders a request status as the one-line system message shown
// in the conversation timeline.
func SystemLine(status request.Status) string {
	switch status {
	case request.StatusPending:
		return "A service request was sent"
	case request.StatusNegotiating:
		return "The terms of the service request were updated"
	case request.StatusAccepted:
		return "The service request was accepted"
	case request.StatusRejected:
		return "The service request was declined"
	case request.StatusCompleted:
		return "The service request was completed"
	case request.StatusCancelled:
		return "The service request was cancelled"
	case request.StatusInProgress:
		return "Work on the service request has started"
	case request.StatusDisputed:
		return "The service request is in dispute"
	default:
		return fmt.Sprintf("The service request moved to %s", status)
	}
}

func escrowLine(event string) string {
	switch event {
	case "opened":
		return "An escrow was opened for this service request"
	case "confirmed":
		return "A completion confirmation was recorded"
	case "completed":
		return "Both parties confirmed; the exchange is complete"
	case "disputed":
		return "The escrow was disputed"
	case "cancelled":
		return "The escrow was cancelled"
	default:
		return "The escrow was updated"
	}
}
