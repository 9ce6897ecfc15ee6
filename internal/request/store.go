package request

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists service requests. Implemented on Postgres in production
// and by an in-memory fake in tests.
type Store interface {
	Create(ctx context.Context, r *ServiceRequest) error
	Get(ctx context.Context, id string) (*ServiceRequest, error)
	Update(ctx context.Context, r *ServiceRequest) error
	ListForUser(ctx context.Context, userID string, status Status) ([]ServiceRequest, error)
	// FindBetween returns the most recent request between two users that
	// is not rejected or cancelled, or (nil, nil) when none exists.
	FindBetween(ctx context.Context, userA, userB string) (*ServiceRequest, error)
}

type pgStore struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

const requestColumns = `id, requester_id, provider_id, status, terms,
    requester_completion_marked, provider_completion_marked, created_at, updated_at`

func scanRequest(row pgx.Row) (*ServiceRequest, error) {
	var r ServiceRequest
	err := row.Scan(&r.ID, &r.RequesterID, &r.ProviderID, &r.Status, &r.Terms,
		&r.RequesterCompletionMarked, &r.ProviderCompletionMarked, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *pgStore) Create(ctx context.Context, r *ServiceRequest) error {
	return s.pool.QueryRow(ctx,
		`INSERT INTO service_requests (id, requester_id, provider_id, status, terms,
             requester_completion_marked, provider_completion_marked)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
         RETURNING created_at, updated_at`,
		r.ID, r.RequesterID, r.ProviderID, r.Status, r.Terms,
		r.RequesterCompletionMarked, r.ProviderCompletionMarked,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
}

func (s *pgStore) Get(ctx context.Context, id string) (*ServiceRequest, error) {
	return scanRequest(s.pool.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM service_requests WHERE id = $1`, id))
}

func (s *pgStore) Update(ctx context.Context, r *ServiceRequest) error {
	return s.pool.QueryRow(ctx,
		`UPDATE service_requests
         SET status = $2, terms = $3, requester_completion_marked = $4,
             provider_completion_marked = $5, updated_at = NOW()
         WHERE id = $1
         RETURNING updated_at`,
		r.ID, r.Status, r.Terms, r.RequesterCompletionMarked, r.ProviderCompletionMarked,
	).Scan(&r.UpdatedAt)
}

func (s *pgStore) ListForUser(ctx context.Context, userID string, status Status) ([]ServiceRequest, error) {
	var rows pgx.Rows
	var err error
	if status != "" {
		rows, err = s.pool.Query(ctx,
			`SELECT `+requestColumns+` FROM service_requests
             WHERE (requester_id = $1 OR provider_id = $1) AND status = $2
             ORDER BY created_at DESC`, userID, status)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT `+requestColumns+` FROM service_requests
             WHERE requester_id = $1 OR provider_id = $1
             ORDER BY created_at DESC`, userID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ServiceRequest
	for rows.Next() {
		var r ServiceRequest
		if err := rows.Scan(&r.ID, &r.RequesterID, &r.ProviderID, &r.Status, &r.Terms,
			&r.RequesterCompletionMarked, &r.ProviderCompletionMarked, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *pgStore) FindBetween(ctx context.Context, userA, userB string) (*ServiceRequest, error) {
	r, err := scanRequest(s.pool.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM service_requests
         WHERE ((requester_id = $1 AND provider_id = $2) OR (requester_id = $2 AND provider_id = $1))
           AND status NOT IN ('rejected', 'cancelled')
         ORDER BY created_at DESC
         LIMIT 1`, userA, userB))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return r, err
}
