package chat

import "encoding/json"

// Inbound event types (client → server)
const (
	EventSendMessage           = "send_message"
	EventMarkAsRead            = "mark_as_read"
	EventTyping                = "typing"
	EventStopTyping            = "stop_typing"
	EventServiceRequestUpdated = "service_request_updated"
)

// Outbound event types (server → client)
const (
	EventReceiveMessage         = "receive_message"
	EventNewMessageNotification = "new_message_notification"
	EventUserTyping             = "user_typing"
	EventUserStopTyping         = "user_stop_typing"
	EventMessageError           = "message_error"
)

// previewLength bounds the content excerpt carried by a new-message
// notification (badge/preview UI), counted in runes.
const previewLength = 50

// Event is the wire envelope for everything crossing a websocket.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type inboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type sendMessagePayload struct {
	ReceiverID  string       `json:"receiver_id"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
}

type markReadPayload struct {
	MessageID string `json:"message_id"`
}

type typingPayload struct {
	ReceiverID string `json:"receiver_id"`
}

type requestUpdatePayload struct {
	RequestID   string `json:"request_id"`
	RequesterID string `json:"requester_id"`
	ProviderID  string `json:"provider_id"`
	Status      string `json:"status"`
}

// Preview truncates content for the lightweight notification surfaces
// (socket badge events, fallback emails).
func Preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength])
}
