package http

import (
	"net/http"

	"github.com/atelierhq/atelier/internal/domain/tool"
	"github.com/atelierhq/atelier/internal/middleware"
)

// CreateTool registers an external-flow tool for the caller. The internal
// tool set is closed; internal names are rejected.
func (h *Handlers) CreateTool(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[tool.CreateRequest](w, r)
	if !ok {
		return
	}

	rec, err := h.tools.Create(r.Context(), &req, middleware.UserID(r.Context()))
	if err != nil {
		writeDomainError(w, err, "tool not found")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// ListTools returns the tools visible to the caller.
func (h *Handlers) ListTools(w http.ResponseWriter, r *http.Request) {
	records, err := h.tools.List(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if records == nil {
		records = []tool.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}
