package escrow

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillswap-labs/skillswap/internal/request"
)

// Store persists escrows. Mutations that must be mirrored onto the linked
// service request run inside a single transaction so a failure between the
// two writes cannot leave them inconsistent.
type Store interface {
	// Create inserts the escrow and marks the linked request in_progress
	// in one transaction. Returns ErrConflict when an escrow already
	// exists for the request.
	Create(ctx context.Context, e *Escrow) error
	Get(ctx context.Context, id string) (*Escrow, error)
	GetByRequest(ctx context.Context, requestID string) (*Escrow, error)
	// Update persists the escrow and, when requestStatus is non-empty,
	// mirrors it onto the linked request in the same transaction.
	Update(ctx context.Context, e *Escrow, requestStatus request.Status) error
	ListForUser(ctx context.Context, userID string) ([]Escrow, error)
}

type pgStore struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

const escrowColumns = `id, request_id, client_id, provider_id, status,
    client_confirmation_date, provider_confirmation_date, completion_date,
    feedback_rating, feedback_comment, dispute_reason, created_at`

func scanEscrow(row pgx.Row) (*Escrow, error) {
	var e Escrow
	err := row.Scan(&e.ID, &e.RequestID, &e.ClientID, &e.ProviderID, &e.Status,
		&e.ClientConfirmationDate, &e.ProviderConfirmationDate, &e.CompletionDate,
		&e.Feedback.Rating, &e.Feedback.Comment, &e.DisputeReason, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (s *pgStore) Create(ctx context.Context, e *Escrow) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO escrows (id, request_id, client_id, provider_id, status)
         VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		e.ID, e.RequestID, e.ClientID, e.ProviderID, e.Status,
	).Scan(&e.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE service_requests SET status = $2, updated_at = NOW() WHERE id = $1`,
		e.RequestID, request.StatusInProgress,
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *pgStore) Get(ctx context.Context, id string) (*Escrow, error) {
	return scanEscrow(s.pool.QueryRow(ctx,
		`SELECT `+escrowColumns+` FROM escrows WHERE id = $1`, id))
}

func (s *pgStore) GetByRequest(ctx context.Context, requestID string) (*Escrow, error) {
	return scanEscrow(s.pool.QueryRow(ctx,
		`SELECT `+escrowColumns+` FROM escrows WHERE request_id = $1`, requestID))
}

func (s *pgStore) Update(ctx context.Context, e *Escrow, requestStatus request.Status) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE escrows
         SET status = $2, client_confirmation_date = $3, provider_confirmation_date = $4,
             completion_date = $5, feedback_rating = $6, feedback_comment = $7,
             dispute_reason = $8
         WHERE id = $1`,
		e.ID, e.Status, e.ClientConfirmationDate, e.ProviderConfirmationDate,
		e.CompletionDate, e.Feedback.Rating, e.Feedback.Comment, e.DisputeReason,
	)
	if err != nil {
		return err
	}

	if requestStatus != "" {
		// Idempotent mirror: writing the same status twice is harmless
		_, err = tx.Exec(ctx,
			`UPDATE service_requests SET status = $2, updated_at = NOW()
             WHERE id = $1 AND status <> $2`,
			e.RequestID, requestStatus,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *pgStore) ListForUser(ctx context.Context, userID string) ([]Escrow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+escrowColumns+` FROM escrows
         WHERE client_id = $1 OR provider_id = $1
         ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Escrow
	for rows.Next() {
		var e Escrow
		if err := rows.Scan(&e.ID, &e.RequestID, &e.ClientID, &e.ProviderID, &e.Status,
			&e.ClientConfirmationDate, &e.ProviderConfirmationDate, &e.CompletionDate,
			&e.Feedback.Rating, &e.Feedback.Comment, &e.DisputeReason, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
