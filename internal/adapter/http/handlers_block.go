package http

import (
	"net/http"

	"github.com/atelierhq/atelier/internal/domain/block"
	"github.com/atelierhq/atelier/internal/middleware"
)

// ListBlocks returns the caller's dynamic blocks plus public ones.
func (h *Handlers) ListBlocks(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.blocks.List(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if blocks == nil {
		blocks = []block.Block{}
	}
	writeJSON(w, http.StatusOK, blocks)
}

type updateBlockRequest struct {
	Visibility block.Visibility `json:"visibility,omitempty"`
	Content    string           `json:"content"`
}

// UpdateBlock writes new content to a block by name, the same path the
// saveMemories tool takes.
func (h *Handlers) UpdateBlock(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[updateBlockRequest](w, r)
	if !ok {
		return
	}
	if req.Visibility == "" {
		req.Visibility = block.VisibilityPrivate
	}
	ref := block.Ref{Name: urlParam(r, "name"), Visibility: req.Visibility}

	if err := h.blocks.UpdateContent(r.Context(), ref, middleware.UserID(r.Context()), req.Content); err != nil {
		writeDomainError(w, err, "block not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
