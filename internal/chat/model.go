package chat

import (
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("message not found")
	ErrForbidden = errors.New("not the recipient of this message")
)

// Attachment is the normalized shape for anything carried alongside a
// message. Normalization happens at ingress; nothing downstream branches
// on shape.
type Attachment struct {
	URL      string `json:"url"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
	FileSize int64  `json:"file_size"`
}

// Message is a durable chat message between two users. Only the read flag
// ever changes after creation, and only from false to true.
type Message struct {
	ID          string       `json:"id"`
	SenderID    string       `json:"sender_id"`
	ReceiverID  string       `json:"receiver_id"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"created_at"`
	Read        bool         `json:"read"`
}

// ConversationSummary is the derived per-counterpart view over the message
// history: latest message, unread flag, counterpart identity. Recomputed
// from the messages table on every read; never stored.
type ConversationSummary struct {
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	LastMessage string    `json:"last_message"`
	Timestamp   time.Time `json:"timestamp"`
	Unread      bool      `json:"unread"`
}
