package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// publicOwner is the owner sentinel for rows that belong to no user.
const publicOwner = "00000000-0000-0000-0000-000000000000"

// ownerOrPublic maps an empty owner to the public sentinel.
func ownerOrPublic(ownerID string) string {
	if ownerID == "" {
		return publicOwner
	}
	return ownerID
}

// nullIfEmpty returns nil for empty strings (for nullable UUID columns).
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
