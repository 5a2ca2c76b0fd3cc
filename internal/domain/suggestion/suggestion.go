// Package suggestion provides the domain model for proposed document edits.
package suggestion

import "time"

// Suggestion is one proposed edit, pinned to the document version it was
// generated against. DocumentCreatedAt carries the pin: matching a
// suggestion against any other version is meaningless, so callers must
// carry both fields forward together.
type Suggestion struct {
	ID                string    `json:"id"`
	DocumentID        string    `json:"document_id"`
	DocumentCreatedAt time.Time `json:"document_created_at"`
	OriginalText      string    `json:"original_text"`
	SuggestedText     string    `json:"suggested_text"`
	Description       string    `json:"description"`
	IsResolved        bool      `json:"is_resolved"`
	OwnerID           string    `json:"owner_id"`
	CreatedAt         time.Time `json:"created_at"`
}
