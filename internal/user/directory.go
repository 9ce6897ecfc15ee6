package user

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when an id does not resolve to a real user.
var ErrNotFound = errors.New("user not found")

// Contact is the minimal user projection the core needs: enough to verify
// a party exists and to address an email notification. Identity itself is
// owned by an external collaborator and never mutated here.
type Contact struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Directory resolves user ids at the identity-provider boundary.
type Directory interface {
	Lookup(ctx context.Context, id string) (*Contact, error)
}

type pgDirectory struct {
	pool *pgxpool.Pool
}

func NewDirectory(pool *pgxpool.Pool) Directory {
	return &pgDirectory{pool: pool}
}

func (d *pgDirectory) Lookup(ctx context.Context, id string) (*Contact, error) {
	var c Contact
	err := d.pool.QueryRow(ctx,
		`SELECT id, name, email FROM users WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
