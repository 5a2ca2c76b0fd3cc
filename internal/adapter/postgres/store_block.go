package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/atelierhq/atelier/internal/domain"
	"github.com/atelierhq/atelier/internal/domain/block"
)

// blockOwner picks the row owner for a lookup: public blocks share the
// sentinel owner, private blocks belong to the caller.
func blockOwner(visibility block.Visibility, ownerID string) string {
	if visibility == block.VisibilityPublic {
		return publicOwner
	}
	return ownerOrPublic(ownerID)
}

func (s *Store) GetBlock(ctx context.Context, name string, visibility block.Visibility, ownerID string) (*block.Block, error) {
	var b block.Block
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, content, visibility, owner_id, created_at, updated_at
		 FROM blocks WHERE name = $1 AND visibility = $2 AND owner_id = $3`,
		name, visibility, blockOwner(visibility, ownerID),
	).Scan(&b.ID, &b.Name, &b.Content, &b.Visibility, &b.OwnerID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get block %s: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get block %s: %w", name, err)
	}
	if b.OwnerID == publicOwner {
		b.OwnerID = ""
	}
	return &b, nil
}

func (s *Store) CreateBlock(ctx context.Context, in *block.Block) (*block.Block, error) {
	var b block.Block
	err := s.pool.QueryRow(ctx,
		`INSERT INTO blocks (name, content, visibility, owner_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, name, content, visibility, owner_id, created_at, updated_at`,
		in.Name, in.Content, in.Visibility, blockOwner(in.Visibility, in.OwnerID),
	).Scan(&b.ID, &b.Name, &b.Content, &b.Visibility, &b.OwnerID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create block %s: %w", in.Name, err)
	}
	if b.OwnerID == publicOwner {
		b.OwnerID = ""
	}
	return &b, nil
}

func (s *Store) UpdateBlockContent(ctx context.Context, name string, visibility block.Visibility, ownerID, content string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE blocks SET content = $1, updated_at = now()
		 WHERE name = $2 AND visibility = $3 AND owner_id = $4`,
		content, name, visibility, blockOwner(visibility, ownerID))
	if err != nil {
		return fmt.Errorf("update block %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update block %s: %w", name, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) ListBlocksByOwner(ctx context.Context, ownerID string) ([]block.Block, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, content, visibility, owner_id, created_at, updated_at
		 FROM blocks WHERE owner_id = $1 OR owner_id = $2 ORDER BY name`,
		ownerOrPublic(ownerID), publicOwner)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	var result []block.Block
	for rows.Next() {
		var b block.Block
		if err := rows.Scan(&b.ID, &b.Name, &b.Content, &b.Visibility, &b.OwnerID, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		if b.OwnerID == publicOwner {
			b.OwnerID = ""
		}
		result = append(result, b)
	}
	return result, rows.Err()
}
