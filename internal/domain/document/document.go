// Package document provides the domain model for versioned artifacts.
//
// A document's identity is the pair (ID, CreatedAt). All versions of one
// artifact share ID; each save inserts a new row with a fresh CreatedAt.
// The current version is always the one with the greatest CreatedAt --
// derived, never stored, so "current" and "latest" cannot drift apart.
package document

import (
	"errors"
	"slices"
	"time"
)

// Kind categorizes what a document contains.
type Kind string

const (
	KindText  Kind = "text"
	KindCode  Kind = "code"
	KindSheet Kind = "sheet"
)

// ValidKinds lists all valid document kinds.
var ValidKinds = []Kind{KindText, KindCode, KindSheet}

// Document is one version row of an artifact.
type Document struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Title     string    `json:"title"`
	Kind      Kind      `json:"kind"`
	Content   string    `json:"content"`
	OwnerID   string    `json:"owner_id"`
}

// CreateRequest is the input for inserting a version.
type CreateRequest struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Kind    Kind   `json:"kind"`
	Content string `json:"content"`
}

// Validate checks that a CreateRequest has all required fields.
func (r *CreateRequest) Validate() error {
	if r.ID == "" {
		return errors.New("id is required")
	}
	if r.Title == "" {
		return errors.New("title is required")
	}
	if !slices.Contains(ValidKinds, r.Kind) {
		return errors.New("invalid kind: must be text, code, or sheet")
	}
	return nil
}

// Current returns the version with the greatest CreatedAt, or nil for an
// empty chain. Versions arrive from storage ordered ascending, but Current
// does not rely on that.
func Current(versions []Document) *Document {
	if len(versions) == 0 {
		return nil
	}
	cur := &versions[0]
	for i := range versions {
		if versions[i].CreatedAt.After(cur.CreatedAt) {
			cur = &versions[i]
		}
	}
	return cur
}
