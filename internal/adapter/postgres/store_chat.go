package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/atelierhq/atelier/internal/domain"
	"github.com/atelierhq/atelier/internal/domain/chat"
)

func (s *Store) CreateChat(ctx context.Context, c *chat.Chat) (*chat.Chat, error) {
	var created chat.Chat
	err := s.pool.QueryRow(ctx,
		`INSERT INTO chats (owner_id, title, agent_id, visibility)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, owner_id, title, COALESCE(agent_id::text, ''), visibility, created_at, updated_at`,
		c.OwnerID, c.Title, nullIfEmpty(c.AgentID), c.Visibility,
	).Scan(&created.ID, &created.OwnerID, &created.Title, &created.AgentID,
		&created.Visibility, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return &created, nil
}

func (s *Store) GetChat(ctx context.Context, id string) (*chat.Chat, error) {
	var c chat.Chat
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, title, COALESCE(agent_id::text, ''), visibility, created_at, updated_at
		 FROM chats WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.OwnerID, &c.Title, &c.AgentID, &c.Visibility, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get chat %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get chat %s: %w", id, err)
	}
	return &c, nil
}

func (s *Store) ListChatsByOwner(ctx context.Context, ownerID string) ([]chat.Chat, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, title, COALESCE(agent_id::text, ''), visibility, created_at, updated_at
		 FROM chats WHERE owner_id = $1 ORDER BY updated_at DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var result []chat.Chat
	for rows.Next() {
		var c chat.Chat
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Title, &c.AgentID, &c.Visibility, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *Store) DeleteChat(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chats WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete chat %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete chat %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) CreateMessage(ctx context.Context, m *chat.Message) (*chat.Message, error) {
	var created chat.Message
	err := s.pool.QueryRow(ctx,
		`INSERT INTO chat_messages (chat_id, role, parts)
		 VALUES ($1, $2, $3)
		 RETURNING id, chat_id, role, parts, created_at`,
		m.ChatID, m.Role, m.Parts,
	).Scan(&created.ID, &created.ChatID, &created.Role, &created.Parts, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	_, _ = s.pool.Exec(ctx, `UPDATE chats SET updated_at = now() WHERE id = $1`, m.ChatID)
	return &created, nil
}

func (s *Store) ListMessages(ctx context.Context, chatID string) ([]chat.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, chat_id, role, parts, created_at
		 FROM chat_messages WHERE chat_id = $1 ORDER BY created_at`,
		chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var result []chat.Message
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Parts, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}
