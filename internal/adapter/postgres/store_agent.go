package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/atelierhq/atelier/internal/domain"
	"github.com/atelierhq/atelier/internal/domain/agent"
	"github.com/atelierhq/atelier/internal/domain/block"
)

func scanAgent(row interface{ Scan(...any) error }) (*agent.Agent, error) {
	var a agent.Agent
	var toolIDs, blockRefs []byte
	err := row.Scan(&a.ID, &a.Name, &a.SystemPrompt, &a.Model, &toolIDs, &blockRefs,
		&a.Visibility, &a.OwnerID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(toolIDs, &a.ToolIDs); err != nil {
		return nil, fmt.Errorf("decode tool_ids: %w", err)
	}
	var refs []block.Ref
	if err := json.Unmarshal(blockRefs, &refs); err != nil {
		return nil, fmt.Errorf("decode block_refs: %w", err)
	}
	a.BlockRefs = refs
	return &a, nil
}

const agentColumns = `id, name, system_prompt, model, tool_ids, block_refs, visibility, owner_id, created_at, updated_at`

func (s *Store) CreateAgent(ctx context.Context, in *agent.Agent) (*agent.Agent, error) {
	toolIDs, err := json.Marshal(in.ToolIDs)
	if err != nil {
		return nil, fmt.Errorf("encode tool_ids: %w", err)
	}
	blockRefs, err := json.Marshal(in.BlockRefs)
	if err != nil {
		return nil, fmt.Errorf("encode block_refs: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO agents (name, system_prompt, model, tool_ids, block_refs, visibility, owner_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+agentColumns,
		in.Name, in.SystemPrompt, in.Model, toolIDs, blockRefs, in.Visibility, in.OwnerID)
	a, err := scanAgent(row)
	if err != nil {
		return nil, fmt.Errorf("create agent %s: %w", in.Name, err)
	}
	return a, nil
}

func (s *Store) GetAgent(ctx context.Context, id string) (*agent.Agent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = $1`, id)
	a, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get agent %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get agent %s: %w", id, err)
	}
	return a, nil
}

func (s *Store) ListAgents(ctx context.Context, ownerID string) ([]agent.Agent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+agentColumns+`
		 FROM agents WHERE visibility = 'public' OR owner_id = $1 ORDER BY name`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var result []agent.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (s *Store) DeleteAgent(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete agent %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete agent %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
