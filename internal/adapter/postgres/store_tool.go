package postgres

import (
	"context"
	"fmt"

	"github.com/atelierhq/atelier/internal/domain/tool"
)

const toolColumns = `id, name, verbose_name, description, source, COALESCE(data, 'null'),
	COALESCE(parameters_schema, 'null'), visibility, COALESCE(owner_id::text, ''), created_at`

func scanTool(row interface{ Scan(...any) error }) (*tool.Record, error) {
	var t tool.Record
	err := row.Scan(&t.ID, &t.Name, &t.VerboseName, &t.Description, &t.Source,
		&t.Data, &t.ParametersSchema, &t.Visibility, &t.OwnerID, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan tool: %w", err)
	}
	if string(t.Data) == "null" {
		t.Data = nil
	}
	if string(t.ParametersSchema) == "null" {
		t.ParametersSchema = nil
	}
	return &t, nil
}

func (s *Store) CreateTool(ctx context.Context, in *tool.Record) (*tool.Record, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO tools (name, verbose_name, description, source, data, parameters_schema, visibility, owner_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+toolColumns,
		in.Name, in.VerboseName, in.Description, in.Source, in.Data, in.ParametersSchema,
		in.Visibility, nullIfEmpty(in.OwnerID))
	t, err := scanTool(row)
	if err != nil {
		return nil, fmt.Errorf("create tool %s: %w", in.Name, err)
	}
	return t, nil
}

func (s *Store) GetToolsByIDs(ctx context.Context, ids []string) ([]tool.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+toolColumns+` FROM tools WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get tools by ids: %w", err)
	}
	defer rows.Close()

	var result []tool.Record
	for rows.Next() {
		t, err := scanTool(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

func (s *Store) ListTools(ctx context.Context, ownerID string) ([]tool.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+toolColumns+`
		 FROM tools WHERE visibility = 'public' OR owner_id = $1 ORDER BY name`,
		nullIfEmpty(ownerID))
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	defer rows.Close()

	var result []tool.Record
	for rows.Next() {
		t, err := scanTool(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}
