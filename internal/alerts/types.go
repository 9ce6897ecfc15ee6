package alerts

import "time"

// Task type constants
const (
	TaskRequestCreated = "email:request_created"
	TaskRequestUpdated = "email:request_updated"
	TaskEscrowEvent    = "email:escrow_event"
	TaskMessageNew     = "email:message_new"
)

// Common envelope for email-like notifications
type EmailEnvelope struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Request created payload (sent to the provider)
type RequestCreatedPayload struct {
	RequestID   string        `json:"request_id"`
	RequesterID string        `json:"requester_id"`
	ProviderID  string        `json:"provider_id"`
	Email       string        `json:"email"`
	Terms       string        `json:"terms"`
	Envelope    EmailEnvelope `json:"envelope"`
	SentAt      time.Time     `json:"sent_at"`
}

// Request updated payload (sent to the counterpart of the actor)
type RequestUpdatedPayload struct {
	RequestID string        `json:"request_id"`
	ActorID   string        `json:"actor_id"`
	Status    string        `json:"status"`
	Email     string        `json:"email"`
	Envelope  EmailEnvelope `json:"envelope"`
	SentAt    time.Time     `json:"sent_at"`
}

// Escrow event payload (opened, confirmed, completed, disputed, cancelled)
type EscrowEventPayload struct {
	EscrowID  string        `json:"escrow_id"`
	RequestID string        `json:"request_id"`
	ActorID   string        `json:"actor_id"`
	Event     string        `json:"event"`
	Email     string        `json:"email"`
	Envelope  EmailEnvelope `json:"envelope"`
	SentAt    time.Time     `json:"sent_at"`
}

// Message new payload (sent to an offline recipient)
type MessageNewPayload struct {
	MessageID  string        `json:"message_id"`
	SenderID   string        `json:"sender_id"`
	SenderName string        `json:"sender_name"`
	Recipient  string        `json:"recipient"`
	Email      string        `json:"email"`
	Preview    string        `json:"preview"`
	Envelope   EmailEnvelope `json:"envelope"`
	SentAt     time.Time     `json:"sent_at"`
}
