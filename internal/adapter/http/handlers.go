package http

import (
	"context"
	"net/http"

	"github.com/atelierhq/atelier/internal/service"
)

// Pinger reports storage liveness for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers bundles the services the HTTP layer exposes.
type Handlers struct {
	chats       *service.ChatService
	documents   *service.DocumentService
	suggestions *service.SuggestionService
	agents      *service.AgentService
	tools       *service.ToolService
	blocks      *service.BlockService
	db          Pinger
}

// NewHandlers creates the handler set. db may be nil; readiness then only
// reports process liveness.
func NewHandlers(chats *service.ChatService, documents *service.DocumentService,
	suggestions *service.SuggestionService, agents *service.AgentService,
	tools *service.ToolService, blocks *service.BlockService, db Pinger) *Handlers {
	return &Handlers{
		chats: chats, documents: documents, suggestions: suggestions,
		agents: agents, tools: tools, blocks: blocks, db: db,
	}
}

// Health reports process liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports readiness to serve, including storage reachability.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
