// Package database defines the database store port (interface).
package database

import (
	"context"
	"time"

	"github.com/atelierhq/atelier/internal/domain/agent"
	"github.com/atelierhq/atelier/internal/domain/block"
	"github.com/atelierhq/atelier/internal/domain/chat"
	"github.com/atelierhq/atelier/internal/domain/document"
	"github.com/atelierhq/atelier/internal/domain/suggestion"
	"github.com/atelierhq/atelier/internal/domain/tool"
	"github.com/atelierhq/atelier/internal/domain/user"
)

// Store is the port interface for database operations.
type Store interface {
	// Chats
	CreateChat(ctx context.Context, c *chat.Chat) (*chat.Chat, error)
	GetChat(ctx context.Context, id string) (*chat.Chat, error)
	ListChatsByOwner(ctx context.Context, ownerID string) ([]chat.Chat, error)
	DeleteChat(ctx context.Context, id string) error
	CreateMessage(ctx context.Context, m *chat.Message) (*chat.Message, error)
	ListMessages(ctx context.Context, chatID string) ([]chat.Message, error)

	// Document versions. InsertDocumentVersion never updates an existing
	// row; TruncateDocumentVersions removes versions with CreatedAt
	// strictly greater than the given timestamp together with every
	// suggestion pinned to a removed version, atomically.
	InsertDocumentVersion(ctx context.Context, d *document.Document) (*document.Document, error)
	ListDocumentVersions(ctx context.Context, id, ownerID string) ([]document.Document, error)
	TruncateDocumentVersions(ctx context.Context, id string, after time.Time, ownerID string) error

	// Suggestions
	CreateSuggestions(ctx context.Context, batch []suggestion.Suggestion) error
	ListSuggestionsByDocument(ctx context.Context, documentID, ownerID string) ([]suggestion.Suggestion, error)

	// Dynamic blocks
	GetBlock(ctx context.Context, name string, visibility block.Visibility, ownerID string) (*block.Block, error)
	CreateBlock(ctx context.Context, b *block.Block) (*block.Block, error)
	UpdateBlockContent(ctx context.Context, name string, visibility block.Visibility, ownerID, content string) error
	ListBlocksByOwner(ctx context.Context, ownerID string) ([]block.Block, error)

	// Tool records
	CreateTool(ctx context.Context, t *tool.Record) (*tool.Record, error)
	GetToolsByIDs(ctx context.Context, ids []string) ([]tool.Record, error)
	ListTools(ctx context.Context, ownerID string) ([]tool.Record, error)

	// Agents
	CreateAgent(ctx context.Context, a *agent.Agent) (*agent.Agent, error)
	GetAgent(ctx context.Context, id string) (*agent.Agent, error)
	ListAgents(ctx context.Context, ownerID string) ([]agent.Agent, error)
	DeleteAgent(ctx context.Context, id string) error

	// Users and API keys
	CreateUser(ctx context.Context, u *user.User) (*user.User, error)
	GetUser(ctx context.Context, id string) (*user.User, error)
	CreateAPIKey(ctx context.Context, k *user.APIKey) (*user.APIKey, error)
	GetAPIKeyByPrefix(ctx context.Context, prefix string) (*user.APIKey, error)
	TouchAPIKey(ctx context.Context, id string) error
}
