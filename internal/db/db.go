package db

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

var Conn *pgxpool.Pool

// Init connects to Postgres
func Init() {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_NAME"),
	)

	var err error
	Conn, err = pgxpool.New(context.Background(), dsn)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}

	if err = Conn.Ping(context.Background()); err != nil {
		log.Fatalf("Unable to ping database: %v\n", err)
	}

	log.Println("Connected to Postgres successfully")

	// Ensure tables used by the ledgers and messaging exist
	ensureServiceRequestsTable()
	ensureEscrowsTable()
	ensureMessagesTable()
	ensureNotificationsTable()
}

// ensureServiceRequestsTable creates service_requests if not present
func ensureServiceRequestsTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS service_requests (
            id UUID PRIMARY KEY,
            requester_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            provider_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN (
                'pending', 'negotiating', 'accepted', 'rejected', 'completed',
                'cancelled', 'in_progress', 'disputed'
            )),
            terms TEXT NOT NULL DEFAULT '',
            requester_completion_marked BOOLEAN NOT NULL DEFAULT FALSE,
            provider_completion_marked BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_requests_requester ON service_requests(requester_id, created_at);
        CREATE INDEX IF NOT EXISTS idx_requests_provider ON service_requests(provider_id, created_at);
    `)
	if err != nil {
		log.Printf("failed to create service_requests table: %v", err)
	}
}

// ensureEscrowsTable creates escrows if not present; request_id is unique
// so at most one escrow can ever exist per service request
func ensureEscrowsTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS escrows (
            id UUID PRIMARY KEY,
            request_id UUID NOT NULL UNIQUE REFERENCES service_requests(id) ON DELETE CASCADE,
            client_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            provider_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN (
                'pending', 'client_confirmed', 'provider_confirmed',
                'completed', 'disputed', 'cancelled'
            )),
            client_confirmation_date TIMESTAMP WITH TIME ZONE NULL,
            provider_confirmation_date TIMESTAMP WITH TIME ZONE NULL,
            completion_date TIMESTAMP WITH TIME ZONE NULL,
            feedback_rating INTEGER NULL CHECK (feedback_rating BETWEEN 1 AND 5),
            feedback_comment TEXT NOT NULL DEFAULT '',
            dispute_reason TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_escrows_client ON escrows(client_id, created_at);
        CREATE INDEX IF NOT EXISTS idx_escrows_provider ON escrows(provider_id, created_at);
    `)
	if err != nil {
		log.Printf("failed to create escrows table: %v", err)
	}
}

// ensureMessagesTable creates messages with the lookup indexes used by the
// conversation and unread-count queries
func ensureMessagesTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS messages (
            id UUID PRIMARY KEY,
            sender_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            receiver_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            content TEXT NOT NULL,
            attachments JSONB NOT NULL DEFAULT '[]',
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            read BOOLEAN NOT NULL DEFAULT FALSE
        );
        CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id);
        CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(receiver_id, read);
        CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at DESC);
    `)
	if err != nil {
		log.Printf("failed to create messages table: %v", err)
	}
}

// ensureNotificationsTable creates notifications table if it doesn't exist
func ensureNotificationsTable() {
	ctx := context.Background()
	var exists bool
	_ = Conn.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM information_schema.tables
            WHERE table_schema = 'public' AND table_name = 'notifications'
        )`).Scan(&exists)
	if exists {
		return
	}
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS notifications (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            type TEXT NOT NULL,
            title TEXT NOT NULL,
            body TEXT,
            reference UUID NULL,
            metadata JSONB NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            read_at TIMESTAMP WITH TIME ZONE NULL
        );
        CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at);
        CREATE INDEX IF NOT EXISTS idx_notifications_user_unread ON notifications(user_id) WHERE read_at IS NULL;
    `)
	if err != nil {
		log.Printf("failed to create notifications table: %v", err)
	}
}
