package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier/internal/domain"
	"github.com/atelierhq/atelier/internal/domain/suggestion"
	"github.com/atelierhq/atelier/internal/port/broadcast"
	"github.com/atelierhq/atelier/internal/port/database"
	"github.com/atelierhq/atelier/internal/port/modelrunner"
	"github.com/atelierhq/atelier/internal/stream"
	"github.com/atelierhq/atelier/internal/tools"

	wsadapter "github.com/atelierhq/atelier/internal/adapter/ws"
)

const suggestionSystemPrompt = `You are an editor proposing improvements to a document.
For each distinct improvement, output one JSON object on its own line with exactly these fields:
{"originalText": "<text to replace>", "suggestedText": "<replacement>", "description": "<why>"}
Output nothing but these JSON lines. Propose at most five suggestions.`

// SuggestionService derives edit suggestions for a document version and
// pins each one to that version.
type SuggestionService struct {
	db        database.Store
	model     modelrunner.Runner
	hub       broadcast.Broadcaster
	modelName string
	maxTokens int
}

// NewSuggestionService creates a SuggestionService. modelName overrides the
// runner's default when set.
func NewSuggestionService(db database.Store, model modelrunner.Runner, hub broadcast.Broadcaster, modelName string, maxTokens int) *SuggestionService {
	if hub == nil {
		hub = broadcast.Nop{}
	}
	return &SuggestionService{db: db, model: model, hub: hub, modelName: modelName, maxTokens: maxTokens}
}

// List returns a document's suggestions for the caller.
func (s *SuggestionService) List(ctx context.Context, documentID, callerID string) ([]suggestion.Suggestion, error) {
	return s.db.ListSuggestionsByDocument(ctx, documentID, callerID)
}

// Generate streams suggestions for the document's current version, emitting
// each on the turn's stream as it parses, and persists the batch once the
// model finishes. Returns the number produced.
func (s *SuggestionService) Generate(ctx context.Context, tc *tools.Context, documentID string) (int, error) {
	versions, err := s.db.ListDocumentVersions(ctx, documentID, tc.UserID)
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return 0, fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}
	current := versions[len(versions)-1]
	for i := range versions {
		if versions[i].CreatedAt.After(current.CreatedAt) {
			current = versions[i]
		}
	}
	if current.Content == "" {
		return 0, fmt.Errorf("%w: document has no content to suggest edits for", domain.ErrValidation)
	}

	events, err := s.model.Stream(ctx, &modelrunner.Request{
		Model:     s.modelName,
		System:    suggestionSystemPrompt,
		Messages:  []modelrunner.Message{{Role: "user", Content: current.Content}},
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		return 0, fmt.Errorf("generate suggestions: %w", err)
	}

	var batch []suggestion.Suggestion
	var buf strings.Builder
	flushLine := func(line string) {
		line = strings.TrimSpace(line)
		if line == "" {
			return
		}
		var parsed struct {
			OriginalText  string `json:"originalText"`
			SuggestedText string `json:"suggestedText"`
			Description   string `json:"description"`
		}
		if json.Unmarshal([]byte(line), &parsed) != nil || parsed.OriginalText == "" {
			return
		}
		sg := suggestion.Suggestion{
			ID:                uuid.NewString(),
			DocumentID:        current.ID,
			DocumentCreatedAt: current.CreatedAt,
			OriginalText:      parsed.OriginalText,
			SuggestedText:     parsed.SuggestedText,
			Description:       parsed.Description,
			OwnerID:           tc.UserID,
		}
		_ = tc.Emitter.Data(stream.DataKindSuggestion, sg)
		batch = append(batch, sg)
	}

	for ev := range events {
		switch ev.Type {
		case modelrunner.EventTextDelta:
			buf.WriteString(ev.Text)
			for {
				text := buf.String()
				idx := strings.IndexByte(text, '\n')
				if idx < 0 {
					break
				}
				flushLine(text[:idx])
				buf.Reset()
				buf.WriteString(text[idx+1:])
			}
		case modelrunner.EventError:
			return 0, fmt.Errorf("generate suggestions: %w", ev.Err)
		}
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	flushLine(buf.String())

	if err := s.db.CreateSuggestions(ctx, batch); err != nil {
		return 0, err
	}
	if len(batch) > 0 {
		s.hub.BroadcastEvent(ctx, wsadapter.EventSuggestionCreated, wsadapter.SuggestionEvent{
			DocumentID: current.ID, Count: len(batch),
		})
	}
	return len(batch), nil
}
