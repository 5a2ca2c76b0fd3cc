package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/atelierhq/atelier/internal/domain/document"
	"github.com/atelierhq/atelier/internal/domain/suggestion"
)

func (s *Store) InsertDocumentVersion(ctx context.Context, d *document.Document) (*document.Document, error) {
	var created document.Document
	err := s.pool.QueryRow(ctx,
		`INSERT INTO documents (id, title, kind, content, owner_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, title, kind, content, owner_id`,
		d.ID, d.Title, d.Kind, d.Content, d.OwnerID,
	).Scan(&created.ID, &created.CreatedAt, &created.Title, &created.Kind, &created.Content, &created.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("insert document version: %w", err)
	}
	return &created, nil
}

func (s *Store) ListDocumentVersions(ctx context.Context, id, ownerID string) ([]document.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, created_at, title, kind, content, owner_id
		 FROM documents WHERE id = $1 AND owner_id = $2 ORDER BY created_at ASC`,
		id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list document versions: %w", err)
	}
	defer rows.Close()

	var result []document.Document
	for rows.Next() {
		var d document.Document
		if err := rows.Scan(&d.ID, &d.CreatedAt, &d.Title, &d.Kind, &d.Content, &d.OwnerID); err != nil {
			return nil, fmt.Errorf("scan document version: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// TruncateDocumentVersions removes versions newer than the given timestamp.
// Suggestions pinned to a removed version go with it via the FK cascade, so
// the whole truncation is one atomic statement.
func (s *Store) TruncateDocumentVersions(ctx context.Context, id string, after time.Time, ownerID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE id = $1 AND created_at > $2 AND owner_id = $3`,
		id, after, ownerID)
	if err != nil {
		return fmt.Errorf("truncate document versions: %w", err)
	}
	return nil
}

func (s *Store) CreateSuggestions(ctx context.Context, batch []suggestion.Suggestion) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin suggestions tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The id was already streamed to the client; persisting a different one
	// would break suggestion correlation, so the DB default is not used.
	for _, sg := range batch {
		_, err := tx.Exec(ctx,
			`INSERT INTO suggestions (id, document_id, document_created_at, original_text, suggested_text, description, is_resolved, owner_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			sg.ID, sg.DocumentID, sg.DocumentCreatedAt, sg.OriginalText, sg.SuggestedText, sg.Description, sg.IsResolved, sg.OwnerID)
		if err != nil {
			return fmt.Errorf("insert suggestion: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit suggestions: %w", err)
	}
	return nil
}

func (s *Store) ListSuggestionsByDocument(ctx context.Context, documentID, ownerID string) ([]suggestion.Suggestion, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, document_created_at, original_text, suggested_text, description, is_resolved, owner_id, created_at
		 FROM suggestions WHERE document_id = $1 AND owner_id = $2 ORDER BY created_at ASC`,
		documentID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	defer rows.Close()

	var result []suggestion.Suggestion
	for rows.Next() {
		var sg suggestion.Suggestion
		if err := rows.Scan(&sg.ID, &sg.DocumentID, &sg.DocumentCreatedAt, &sg.OriginalText,
			&sg.SuggestedText, &sg.Description, &sg.IsResolved, &sg.OwnerID, &sg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		result = append(result, sg)
	}
	return result, rows.Err()
}
