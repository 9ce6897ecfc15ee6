package chat

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageStore persists chat messages and serves the derived conversation
// read model.
type MessageStore interface {
	Save(ctx context.Context, m *Message) error
	// MarkRead flips a message's read flag; only the receiver may do so.
	MarkRead(ctx context.Context, messageID, receiverID string) error
	// ConversationWith returns the full history between two users in
	// ascending timestamp order.
	ConversationWith(ctx context.Context, userID, otherID string) ([]Message, error)
	// MarkConversationRead marks every unread message from otherID to
	// userID as read.
	MarkConversationRead(ctx context.Context, userID, otherID string) error
	Conversations(ctx context.Context, userID string) ([]ConversationSummary, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

type pgMessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) MessageStore {
	return &pgMessageStore{pool: pool}
}

func (s *pgMessageStore) Save(ctx context.Context, m *Message) error {
	if m.Attachments == nil {
		m.Attachments = []Attachment{}
	}
	attachments, err := json.Marshal(m.Attachments)
	if err != nil {
		return err
	}
	return s.pool.QueryRow(ctx,
		`INSERT INTO messages (id, sender_id, receiver_id, content, attachments, read)
         VALUES ($1, $2, $3, $4, $5, FALSE) RETURNING created_at`,
		m.ID, m.SenderID, m.ReceiverID, m.Content, attachments,
	).Scan(&m.CreatedAt)
}

func (s *pgMessageStore) MarkRead(ctx context.Context, messageID, receiverID string) error {
	var storedReceiver string
	err := s.pool.QueryRow(ctx,
		`SELECT receiver_id FROM messages WHERE id = $1`, messageID,
	).Scan(&storedReceiver)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if storedReceiver != receiverID {
		return ErrForbidden
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE messages SET read = TRUE WHERE id = $1 AND read = FALSE`, messageID)
	return err
}

func (s *pgMessageStore) ConversationWith(ctx context.Context, userID, otherID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, sender_id, receiver_id, content, attachments, created_at, read
         FROM messages
         WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
         ORDER BY created_at ASC`, userID, otherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var attachments []byte
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content,
			&attachments, &m.CreatedAt, &m.Read); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(attachments, &m.Attachments); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *pgMessageStore) MarkConversationRead(ctx context.Context, userID, otherID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE messages SET read = TRUE
         WHERE sender_id = $2 AND receiver_id = $1 AND read = FALSE`, userID, otherID)
	return err
}

func (s *pgMessageStore) Conversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.counterpart, u.name, c.content, c.created_at,
                (c.receiver_id = $1 AND NOT c.read) AS unread
         FROM (
             SELECT DISTINCT ON (CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END)
                 CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END AS counterpart,
                 content, created_at, receiver_id, read
             FROM messages
             WHERE sender_id = $1 OR receiver_id = $1
             ORDER BY CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END,
                      created_at DESC
         ) c
         JOIN users u ON u.id = c.counterpart
         ORDER BY c.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConversationSummary
	for rows.Next() {
		var cs ConversationSummary
		if err := rows.Scan(&cs.UserID, &cs.Name, &cs.LastMessage, &cs.Timestamp, &cs.Unread); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

func (s *pgMessageStore) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND read = FALSE`, userID,
	).Scan(&count)
	return count, err
}
