package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/atelierhq/atelier/internal/domain"
	"github.com/atelierhq/atelier/internal/domain/tool"
	"github.com/atelierhq/atelier/internal/port/database"
	"github.com/atelierhq/atelier/internal/tools"
)

// ToolService manages persisted tool records. The internal set is closed:
// callers only ever register external-flow tools.
type ToolService struct {
	db       database.Store
	registry *tools.Registry
}

// NewToolService creates a ToolService.
func NewToolService(db database.Store, registry *tools.Registry) *ToolService {
	return &ToolService{db: db, registry: registry}
}

// Create registers an external-flow tool for the caller.
func (s *ToolService) Create(ctx context.Context, req *tool.CreateRequest, ownerID string) (*tool.Record, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}
	if _, ok := s.registry.Internal(req.Name); ok {
		return nil, fmt.Errorf("%w: name %q is reserved for an internal tool", domain.ErrValidation, req.Name)
	}

	data, err := json.Marshal(tool.ExternalData{FlowID: req.FlowID})
	if err != nil {
		return nil, fmt.Errorf("encode tool data: %w", err)
	}
	return s.db.CreateTool(ctx, &tool.Record{
		Name:        req.Name,
		VerboseName: req.VerboseName,
		Description: req.Description,
		Source:      tool.SourceExternal,
		Data:        data,
		Visibility:  req.Visibility,
		OwnerID:     ownerID,
	})
}

// List returns the tools visible to the caller.
func (s *ToolService) List(ctx context.Context, callerID string) ([]tool.Record, error) {
	return s.db.ListTools(ctx, callerID)
}

// SeedInternal inserts a public record for every internal definition that
// does not have one yet, so agents can reference them by id. Conflicts with
// already-seeded rows are ignored.
func (s *ToolService) SeedInternal(ctx context.Context) error {
	existing, err := s.db.ListTools(ctx, "")
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}
	seeded := make(map[string]bool)
	for _, rec := range existing {
		if rec.Source == tool.SourceInternal {
			seeded[rec.Name] = true
		}
	}

	for _, def := range s.registry.InternalDefinitions() {
		if seeded[def.Name] {
			continue
		}
		_, err := s.db.CreateTool(ctx, &tool.Record{
			Name:             def.Name,
			VerboseName:      def.VerboseName,
			Description:      def.Description,
			Source:           tool.SourceInternal,
			ParametersSchema: def.Parameters,
			Visibility:       def.Visibility,
		})
		if err != nil {
			if errors.Is(err, domain.ErrConflict) || strings.Contains(err.Error(), "unique constraint") {
				continue
			}
			return fmt.Errorf("seed tool %s: %w", def.Name, err)
		}
		slog.Info("seeded internal tool", "tool", def.Name)
	}
	return nil
}
