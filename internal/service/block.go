package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/atelierhq/atelier/internal/domain"
	"github.com/atelierhq/atelier/internal/domain/block"
	"github.com/atelierhq/atelier/internal/port/cache"
	"github.com/atelierhq/atelier/internal/port/database"
)

// BlockService manages dynamic blocks and resolves prompt templates
// against them.
type BlockService struct {
	db    database.Store
	cache cache.Cache
	ttl   time.Duration
}

// NewBlockService creates a BlockService. cache may be nil.
func NewBlockService(db database.Store, c cache.Cache, ttl time.Duration) *BlockService {
	return &BlockService{db: db, cache: c, ttl: ttl}
}

// GetOrCreate fetches the referenced block, creating it empty on first
// reference so a fresh agent prompt resolves without manual setup.
func (s *BlockService) GetOrCreate(ctx context.Context, ref block.Ref, ownerID string) (*block.Block, error) {
	if b := s.cached(ctx, ref, ownerID); b != nil {
		return b, nil
	}

	b, err := s.db.GetBlock(ctx, ref.Name, ref.Visibility, ownerID)
	if errors.Is(err, domain.ErrNotFound) {
		b, err = s.db.CreateBlock(ctx, &block.Block{
			Name:       ref.Name,
			Visibility: ref.Visibility,
			OwnerID:    ownerID,
		})
	}
	if err != nil {
		return nil, err
	}
	s.store(ctx, ref, ownerID, b)
	return b, nil
}

// ResolvePrompt substitutes the template's placeholders with the contents
// of the referenced blocks, creating missing ones. Placeholders that no
// ref names stay verbatim in the output.
func (s *BlockService) ResolvePrompt(ctx context.Context, template string, refs []block.Ref, ownerID string) (string, error) {
	names := block.ExtractPlaceholders(template)
	if len(names) == 0 {
		return template, nil
	}

	byName := make(map[string]block.Ref, len(refs))
	for _, ref := range refs {
		byName[ref.Name] = ref
	}

	var blocks []block.Block
	for _, name := range names {
		ref, ok := byName[name]
		if !ok {
			continue
		}
		b, err := s.GetOrCreate(ctx, ref, ownerID)
		if err != nil {
			return "", fmt.Errorf("resolve block %q: %w", name, err)
		}
		blocks = append(blocks, *b)
	}
	return block.Resolve(template, blocks), nil
}

// UpdateContent writes new content to a block and drops its cache entry.
func (s *BlockService) UpdateContent(ctx context.Context, ref block.Ref, ownerID, content string) error {
	if err := s.db.UpdateBlockContent(ctx, ref.Name, ref.Visibility, ownerID, content); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, blockCacheKey(ref, ownerID))
	}
	return nil
}

// List returns the caller's blocks plus public ones.
func (s *BlockService) List(ctx context.Context, ownerID string) ([]block.Block, error) {
	return s.db.ListBlocksByOwner(ctx, ownerID)
}

func blockCacheKey(ref block.Ref, ownerID string) string {
	return "block:" + string(ref.Visibility) + ":" + ownerID + ":" + ref.Name
}

func (s *BlockService) cached(ctx context.Context, ref block.Ref, ownerID string) *block.Block {
	if s.cache == nil {
		return nil
	}
	data, ok, err := s.cache.Get(ctx, blockCacheKey(ref, ownerID))
	if err != nil || !ok {
		return nil
	}
	var b block.Block
	if json.Unmarshal(data, &b) != nil {
		return nil
	}
	return &b
}

func (s *BlockService) store(ctx context.Context, ref block.Ref, ownerID string, b *block.Block) {
	if s.cache == nil {
		return
	}
	if data, err := json.Marshal(b); err == nil {
		_ = s.cache.Set(ctx, blockCacheKey(ref, ownerID), data, s.ttl)
	}
}
