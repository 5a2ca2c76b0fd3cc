package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atelierhq/atelier/internal/domain"
	"github.com/atelierhq/atelier/internal/domain/document"
	"github.com/atelierhq/atelier/internal/port/broadcast"
	"github.com/atelierhq/atelier/internal/port/database"
	"github.com/atelierhq/atelier/internal/port/modelrunner"
	"github.com/atelierhq/atelier/internal/stream"
	"github.com/atelierhq/atelier/internal/tools"

	wsadapter "github.com/atelierhq/atelier/internal/adapter/ws"
)

// DocumentService owns the append-only version chain and composes new
// version content with the model.
type DocumentService struct {
	db        database.Store
	model     modelrunner.Runner
	hub       broadcast.Broadcaster
	maxTokens int
}

// NewDocumentService creates a DocumentService.
func NewDocumentService(db database.Store, model modelrunner.Runner, hub broadcast.Broadcaster, maxTokens int) *DocumentService {
	if hub == nil {
		hub = broadcast.Nop{}
	}
	return &DocumentService{db: db, model: model, hub: hub, maxTokens: maxTokens}
}

// Versions returns the full ascending version chain of a document.
func (s *DocumentService) Versions(ctx context.Context, id, callerID string) ([]document.Document, error) {
	versions, err := s.db.ListDocumentVersions(ctx, id, callerID)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return versions, nil
}

// Current returns the latest version of a document.
func (s *DocumentService) Current(ctx context.Context, id, callerID string) (*document.Document, error) {
	versions, err := s.Versions(ctx, id, callerID)
	if err != nil {
		return nil, err
	}
	return document.Current(versions), nil
}

// Save appends a caller-authored version to the chain.
func (s *DocumentService) Save(ctx context.Context, req *document.CreateRequest, callerID string) (*document.Document, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}
	d, err := s.db.InsertDocumentVersion(ctx, &document.Document{
		ID:      req.ID,
		Title:   req.Title,
		Kind:    req.Kind,
		Content: req.Content,
		OwnerID: callerID,
	})
	if err != nil {
		return nil, err
	}
	s.hub.BroadcastEvent(ctx, wsadapter.EventDocumentUpdated, wsadapter.DocumentEvent{
		DocumentID: d.ID, Title: d.Title, Kind: string(d.Kind),
	})
	return d, nil
}

// Truncate removes every version strictly newer than the given timestamp,
// with the suggestions pinned to the removed versions.
func (s *DocumentService) Truncate(ctx context.Context, id string, after time.Time, callerID string) error {
	if _, err := s.Versions(ctx, id, callerID); err != nil {
		return err
	}
	return s.db.TruncateDocumentVersions(ctx, id, after, callerID)
}

// Create composes content for a brand-new document and persists the first
// version. Content deltas stream to the turn as they arrive; exactly one
// version row is written, and only after the model stream completes.
func (s *DocumentService) Create(ctx context.Context, tc *tools.Context, id, title string, kind document.Kind) (*document.Document, error) {
	content, err := s.compose(ctx, tc, composePrompt(kind), title)
	if err != nil {
		return nil, err
	}

	d, err := s.db.InsertDocumentVersion(ctx, &document.Document{
		ID:      id,
		Title:   title,
		Kind:    kind,
		Content: content,
		OwnerID: tc.UserID,
	})
	if err != nil {
		return nil, err
	}
	s.hub.BroadcastEvent(ctx, wsadapter.EventDocumentCreated, wsadapter.DocumentEvent{
		DocumentID: d.ID, Title: d.Title, Kind: string(d.Kind),
	})
	return d, nil
}

// Update composes a revised version of an existing document from a change
// description and appends it to the chain.
func (s *DocumentService) Update(ctx context.Context, tc *tools.Context, id, description string) (*document.Document, error) {
	current, err := s.Current(ctx, id, tc.UserID)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf("%s\n\nCurrent content:\n%s", updatePrompt(current.Kind), current.Content)
	content, err := s.compose(ctx, tc, prompt, description)
	if err != nil {
		return nil, err
	}

	d, err := s.db.InsertDocumentVersion(ctx, &document.Document{
		ID:      current.ID,
		Title:   current.Title,
		Kind:    current.Kind,
		Content: content,
		OwnerID: tc.UserID,
	})
	if err != nil {
		return nil, err
	}
	s.hub.BroadcastEvent(ctx, wsadapter.EventDocumentUpdated, wsadapter.DocumentEvent{
		DocumentID: d.ID, Title: d.Title, Kind: string(d.Kind),
	})
	return d, nil
}

// compose streams one model completion, forwarding each text delta as a
// content-delta frame, and returns the accumulated text. A cancelled or
// failed stream returns an error and no content.
func (s *DocumentService) compose(ctx context.Context, tc *tools.Context, system, input string) (string, error) {
	events, err := s.model.Stream(ctx, &modelrunner.Request{
		System:    system,
		Messages:  []modelrunner.Message{{Role: "user", Content: input}},
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("compose document: %w", err)
	}

	var buf strings.Builder
	for ev := range events {
		switch ev.Type {
		case modelrunner.EventTextDelta:
			buf.WriteString(ev.Text)
			if err := tc.Emitter.Data(stream.DataKindContentDelta, ev.Text); err != nil {
				return "", err
			}
		case modelrunner.EventError:
			return "", fmt.Errorf("compose document: %w", ev.Err)
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func composePrompt(kind document.Kind) string {
	switch kind {
	case document.KindCode:
		return "You are a code generator. Write a complete, self-contained program for the given topic. Output only the code, no commentary."
	case document.KindSheet:
		return "You are a spreadsheet generator. Produce CSV data for the given topic. Output only the CSV, with a header row."
	default:
		return "You are a writing assistant. Write about the given topic in Markdown. Use headings where they help."
	}
}

func updatePrompt(kind document.Kind) string {
	switch kind {
	case document.KindCode:
		return "Revise the following code per the user's description. Output only the full updated code."
	case document.KindSheet:
		return "Revise the following CSV per the user's description. Output only the full updated CSV."
	default:
		return "Revise the following document per the user's description. Output the full updated document in Markdown."
	}
}
