// Package agent provides the domain model for saved agent personas.
package agent

import (
	"errors"
	"time"

	"github.com/atelierhq/atelier/internal/domain/block"
)

// Visibility controls who can chat with an agent.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Agent binds a system prompt template, a model, tool references, and
// dynamic-block references into one persona. Read-only input to a chat turn.
type Agent struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	SystemPrompt string      `json:"system_prompt"`
	Model        string      `json:"model,omitempty"`
	ToolIDs      []string    `json:"tool_ids,omitempty"`
	BlockRefs    []block.Ref `json:"block_refs,omitempty"`
	Visibility   Visibility  `json:"visibility"`
	OwnerID      string      `json:"owner_id"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// CreateRequest is the input for saving a new agent.
type CreateRequest struct {
	Name         string      `json:"name"`
	SystemPrompt string      `json:"system_prompt"`
	Model        string      `json:"model,omitempty"`
	ToolIDs      []string    `json:"tool_ids,omitempty"`
	BlockRefs    []block.Ref `json:"block_refs,omitempty"`
	Visibility   Visibility  `json:"visibility"`
}

// Validate checks that a CreateRequest has all required fields.
func (r *CreateRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if r.SystemPrompt == "" {
		return errors.New("system_prompt is required")
	}
	switch r.Visibility {
	case VisibilityPublic, VisibilityPrivate:
	default:
		return errors.New("visibility must be public or private")
	}
	return nil
}

// Usable reports whether the given caller may chat with the agent.
func (a *Agent) Usable(callerID string) bool {
	return a.Visibility == VisibilityPublic || a.OwnerID == callerID
}
