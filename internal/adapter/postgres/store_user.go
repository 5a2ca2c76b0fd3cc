package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/atelierhq/atelier/internal/domain"
	"github.com/atelierhq/atelier/internal/domain/user"
)

func (s *Store) CreateUser(ctx context.Context, u *user.User) (*user.User, error) {
	var created user.User
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (email, name) VALUES ($1, $2)
		 RETURNING id, email, name, created_at`,
		u.Email, u.Name,
	).Scan(&created.ID, &created.Email, &created.Name, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &created, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*user.User, error) {
	var u user.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, name, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get user %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &u, nil
}

func (s *Store) CreateAPIKey(ctx context.Context, k *user.APIKey) (*user.APIKey, error) {
	var created user.APIKey
	err := s.pool.QueryRow(ctx,
		`INSERT INTO api_keys (user_id, prefix, hash) VALUES ($1, $2, $3)
		 RETURNING id, user_id, prefix, hash, created_at`,
		k.UserID, k.Prefix, k.Hash,
	).Scan(&created.ID, &created.UserID, &created.Prefix, &created.Hash, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}
	return &created, nil
}

func (s *Store) GetAPIKeyByPrefix(ctx context.Context, prefix string) (*user.APIKey, error) {
	var k user.APIKey
	var lastUsed sql.NullTime
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, prefix, hash, created_at, last_used_at
		 FROM api_keys WHERE prefix = $1`,
		prefix,
	).Scan(&k.ID, &k.UserID, &k.Prefix, &k.Hash, &k.CreatedAt, &lastUsed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get api key: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get api key: %w", err)
	}
	if lastUsed.Valid {
		k.LastUsedAt = lastUsed.Time
	}
	return &k, nil
}

func (s *Store) TouchAPIKey(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE api_keys SET last_used_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}
