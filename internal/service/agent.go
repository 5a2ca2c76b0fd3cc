package service

import (
	"context"
	"fmt"

	"github.com/atelierhq/atelier/internal/domain"
	"github.com/atelierhq/atelier/internal/domain/agent"
	"github.com/atelierhq/atelier/internal/domain/tool"
	"github.com/atelierhq/atelier/internal/port/database"
)

// AgentService manages saved agent personas.
type AgentService struct {
	db database.Store
}

// NewAgentService creates an AgentService.
func NewAgentService(db database.Store) *AgentService {
	return &AgentService{db: db}
}

// Create validates and saves a new agent for the caller. Every referenced
// tool must exist.
func (s *AgentService) Create(ctx context.Context, req *agent.CreateRequest, ownerID string) (*agent.Agent, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	if len(req.ToolIDs) > 0 {
		records, err := s.db.GetToolsByIDs(ctx, req.ToolIDs)
		if err != nil {
			return nil, err
		}
		if len(records) != len(req.ToolIDs) {
			return nil, fmt.Errorf("%w: unknown tool reference", domain.ErrValidation)
		}
	}

	return s.db.CreateAgent(ctx, &agent.Agent{
		Name:         req.Name,
		SystemPrompt: req.SystemPrompt,
		Model:        req.Model,
		ToolIDs:      req.ToolIDs,
		BlockRefs:    req.BlockRefs,
		Visibility:   req.Visibility,
		OwnerID:      ownerID,
	})
}

// Get returns an agent the caller may use.
func (s *AgentService) Get(ctx context.Context, id, callerID string) (*agent.Agent, error) {
	a, err := s.db.GetAgent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Usable(callerID) {
		return nil, fmt.Errorf("get agent %s: %w", id, domain.ErrNotFound)
	}
	return a, nil
}

// List returns the caller's agents plus public ones.
func (s *AgentService) List(ctx context.Context, callerID string) ([]agent.Agent, error) {
	return s.db.ListAgents(ctx, callerID)
}

// Delete removes an agent the caller owns.
func (s *AgentService) Delete(ctx context.Context, id, callerID string) error {
	a, err := s.db.GetAgent(ctx, id)
	if err != nil {
		return err
	}
	if a.OwnerID != callerID {
		return fmt.Errorf("delete agent %s: %w", id, domain.ErrNotFound)
	}
	return s.db.DeleteAgent(ctx, id)
}

// Tools loads the agent's tool records.
func (s *AgentService) Tools(ctx context.Context, a *agent.Agent) ([]*tool.Record, error) {
	if len(a.ToolIDs) == 0 {
		return nil, nil
	}
	records, err := s.db.GetToolsByIDs(ctx, a.ToolIDs)
	if err != nil {
		return nil, err
	}
	out := make([]*tool.Record, len(records))
	for i := range records {
		out[i] = &records[i]
	}
	return out, nil
}
