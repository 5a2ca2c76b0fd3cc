package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventDocumentCreated   = "document.created"
	EventDocumentUpdated   = "document.updated"
	EventSuggestionCreated = "suggestion.created"
	EventChatTurnFinished  = "chat.turn.finished"
)

// DocumentEvent is broadcast when a document version is written.
type DocumentEvent struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Kind       string `json:"kind"`
}

// SuggestionEvent is broadcast when suggestions are added to a document.
type SuggestionEvent struct {
	DocumentID string `json:"document_id"`
	Count      int    `json:"count"`
}

// ChatTurnEvent is broadcast when a chat turn completes.
type ChatTurnEvent struct {
	ChatID string `json:"chat_id"`
}

// BroadcastEvent marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}
	h.Broadcast(ctx, Message{Type: eventType, Payload: json.RawMessage(data)})
}
