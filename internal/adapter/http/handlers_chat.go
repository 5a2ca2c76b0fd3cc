package http

import (
	"net/http"

	"github.com/atelierhq/atelier/internal/domain/chat"
	"github.com/atelierhq/atelier/internal/middleware"
	"github.com/atelierhq/atelier/internal/stream"
)

type createChatRequest struct {
	Title      string          `json:"title"`
	AgentID    string          `json:"agent_id,omitempty"`
	Visibility chat.Visibility `json:"visibility,omitempty"`
}

// CreateChat starts a new chat for the caller.
func (h *Handlers) CreateChat(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[createChatRequest](w, r)
	if !ok {
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	c, err := h.chats.Create(r.Context(), middleware.UserID(r.Context()), req.Title, req.AgentID, req.Visibility)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// ListChats returns the caller's chats.
func (h *Handlers) ListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chats.List(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if chats == nil {
		chats = []chat.Chat{}
	}
	writeJSON(w, http.StatusOK, chats)
}

// GetChat returns one chat the caller may read.
func (h *Handlers) GetChat(w http.ResponseWriter, r *http.Request) {
	c, err := h.chats.Get(r.Context(), urlParam(r, "id"), middleware.UserID(r.Context()))
	if err != nil {
		writeDomainError(w, err, "chat not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteChat removes a chat the caller owns.
func (h *Handlers) DeleteChat(w http.ResponseWriter, r *http.Request) {
	if err := h.chats.Delete(r.Context(), urlParam(r, "id"), middleware.UserID(r.Context())); err != nil {
		writeDomainError(w, err, "chat not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListChatMessages returns a chat's persisted messages.
func (h *Handlers) ListChatMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.chats.Messages(r.Context(), urlParam(r, "id"), middleware.UserID(r.Context()))
	if err != nil {
		writeDomainError(w, err, "chat not found")
		return
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// StreamTurn runs one chat turn as an SSE stream. Everything that maps to
// an HTTP status fails in PrepareTurn, before the stream is committed;
// afterwards all outcomes arrive as frames on the open response body.
func (h *Handlers) StreamTurn(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[chat.TurnRequest](w, r)
	if !ok {
		return
	}
	req.ChatID = urlParam(r, "id")

	turn, err := h.chats.PrepareTurn(r.Context(), middleware.UserID(r.Context()), &req)
	if err != nil {
		writeDomainError(w, err, "chat not found")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Client disconnects cancel r.Context(), which ends the turn with a
	// cancelled terminal frame.
	h.chats.StreamTurn(r.Context(), stream.NewEncoder(w), turn)
}
