// Package chat provides the domain model for chats and their messages.
package chat

import (
	"encoding/json"
	"errors"
	"time"
)

// Visibility controls who can read a chat.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Chat is a conversation owned by one user.
type Chat struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"owner_id"`
	Title      string     `json:"title"`
	AgentID    string     `json:"agent_id,omitempty"`
	Visibility Visibility `json:"visibility"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Message is one persisted chat message. Parts holds the ordered content
// segments (text, reasoning, tool calls and results) exactly as streamed.
type Message struct {
	ID        string          `json:"id"`
	ChatID    string          `json:"chat_id"`
	Role      string          `json:"role"` // "user" or "assistant"
	Parts     json.RawMessage `json:"parts"`
	CreatedAt time.Time       `json:"created_at"`
}

// TurnRequest is the body of the chat-turn POST.
type TurnRequest struct {
	ChatID  string        `json:"chat_id"`
	Message IncomingPart  `json:"message"`
	Model   string        `json:"model,omitempty"`
	AgentID string        `json:"agent_id,omitempty"`
	History []IncomingMsg `json:"messages,omitempty"`
}

// IncomingPart is the user's new message content.
type IncomingPart struct {
	Content string `json:"content"`
}

// IncomingMsg is one prior message replayed by the client.
type IncomingMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Validate checks the minimal shape of a turn request.
func (r *TurnRequest) Validate() error {
	if r.ChatID == "" {
		return errors.New("chat_id is required")
	}
	if r.Message.Content == "" {
		return errors.New("message content is required")
	}
	return nil
}

// Readable reports whether the given caller may read the chat.
func (c *Chat) Readable(callerID string) bool {
	return c.Visibility == VisibilityPublic || c.OwnerID == callerID
}
