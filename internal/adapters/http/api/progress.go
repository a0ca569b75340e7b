package api

import (
	"net/http"
)

// ProgressHandler serves the caller's progress and inventory.
type ProgressHandler struct {
	sessions Sessions
}

// NewProgressHandler creates a new progress handler.
func NewProgressHandler(sessions Sessions) *ProgressHandler {
	return &ProgressHandler{sessions: sessions}
}

// HandleGetProgress handles GET /progress requests.
func (h *ProgressHandler) HandleGetProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	s, err := h.sessions.Get(r.Context(), identityFrom(r.Context()))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, newProgressView(s.View()))
}

// HandleGetInventory handles GET /inventory requests.
func (h *ProgressHandler) HandleGetInventory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	s, err := h.sessions.Get(r.Context(), identityFrom(r.Context()))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, s.Inventory())
}
