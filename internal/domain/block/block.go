// Package block provides dynamic blocks: named, owner-scoped pieces of
// persisted text substituted into agent prompt templates at request time.
package block

import "time"

// Visibility scopes a block to one owner or to everyone.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Block is one named memory slot. A block is identified by
// (Name, Visibility) and, for private blocks, OwnerID.
type Block struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Content    string     `json:"content"`
	Visibility Visibility `json:"visibility"`
	OwnerID    string     `json:"owner_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Ref names a block an agent's prompt wants resolved.
type Ref struct {
	Name       string     `json:"name"`
	Visibility Visibility `json:"visibility"`
}
