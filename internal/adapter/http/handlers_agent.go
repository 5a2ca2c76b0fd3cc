package http

import (
	"net/http"

	"github.com/atelierhq/atelier/internal/domain/agent"
	"github.com/atelierhq/atelier/internal/middleware"
)

// CreateAgent saves a new agent persona for the caller.
func (h *Handlers) CreateAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[agent.CreateRequest](w, r)
	if !ok {
		return
	}

	a, err := h.agents.Create(r.Context(), &req, middleware.UserID(r.Context()))
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// ListAgents returns the caller's agents plus public ones.
func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.agents.List(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if agents == nil {
		agents = []agent.Agent{}
	}
	writeJSON(w, http.StatusOK, agents)
}

// GetAgent returns one agent the caller may use.
func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	a, err := h.agents.Get(r.Context(), urlParam(r, "id"), middleware.UserID(r.Context()))
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// DeleteAgent removes an agent the caller owns.
func (h *Handlers) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := h.agents.Delete(r.Context(), urlParam(r, "id"), middleware.UserID(r.Context())); err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
