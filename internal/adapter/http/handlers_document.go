package http

import (
	"net/http"
	"time"

	"github.com/atelierhq/atelier/internal/domain/document"
	"github.com/atelierhq/atelier/internal/domain/suggestion"
	"github.com/atelierhq/atelier/internal/middleware"
)

// GetDocumentVersions returns the full ascending version chain of a document.
func (h *Handlers) GetDocumentVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.documents.Versions(r.Context(), urlParam(r, "id"), middleware.UserID(r.Context()))
	if err != nil {
		writeDomainError(w, err, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

// SaveDocument appends a caller-authored version to a document's chain.
func (h *Handlers) SaveDocument(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[document.CreateRequest](w, r)
	if !ok {
		return
	}
	req.ID = urlParam(r, "id")

	d, err := h.documents.Save(r.Context(), &req, middleware.UserID(r.Context()))
	if err != nil {
		writeDomainError(w, err, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// TruncateDocument deletes every version strictly newer than the timestamp
// query parameter, along with the suggestions pinned to them.
func (h *Handlers) TruncateDocument(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("timestamp")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "timestamp query parameter is required")
		return
	}
	after, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "timestamp must be RFC 3339")
		return
	}

	if err := h.documents.Truncate(r.Context(), urlParam(r, "id"), after, middleware.UserID(r.Context())); err != nil {
		writeDomainError(w, err, "document not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDocumentSuggestions returns a document's suggestions for the caller.
func (h *Handlers) ListDocumentSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.suggestions.List(r.Context(), urlParam(r, "id"), middleware.UserID(r.Context()))
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if suggestions == nil {
		suggestions = []suggestion.Suggestion{}
	}
	writeJSON(w, http.StatusOK, suggestions)
}
