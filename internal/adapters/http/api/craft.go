package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/tapforge/internal/domain/crafting"
	"github.com/okian/tapforge/internal/domain/loot"
)

type craftRequest struct {
	EntryIDs []string `json:"entry_ids"`
}

// craftError carries the typed failure details for the client.
type craftError struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Rarity  *loot.Rarity `json:"rarity,omitempty"`
	Got     int          `json:"got,omitempty"`
	Want    int          `json:"want,omitempty"`
	IDs     []string     `json:"ids,omitempty"`
}

// CraftHandler handles craft requests.
type CraftHandler struct {
	sessions Sessions
}

// NewCraftHandler creates a new craft handler.
func NewCraftHandler(sessions Sessions) *CraftHandler {
	return &CraftHandler{sessions: sessions}
}

// HandlePostCraft handles POST /craft requests.
func (h *CraftHandler) HandlePostCraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req craftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}

	s, err := h.sessions.Get(r.Context(), identityFrom(r.Context()))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
		return
	}
	res, err := s.Craft(r.Context(), crafting.UniqueIDs(req.EntryIDs))
	if err != nil {
		writeCraftError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newGrantResponse(res))
}

func writeCraftError(w http.ResponseWriter, err error) {
	code := crafting.Code(err)
	if code == "" {
		writeError(w, http.StatusBadGateway, "craft_failed", err)
		return
	}
	status := http.StatusUnprocessableEntity
	if errors.Is(err, crafting.ErrUnauthenticated) {
		status = http.StatusUnauthorized
	}
	body := craftError{Code: code, Message: err.Error()}
	var cerr *crafting.Error
	if errors.As(err, &cerr) {
		if errors.Is(err, crafting.ErrMixedRarity) || errors.Is(err, crafting.ErrNoRecipe) || errors.Is(err, crafting.ErrWrongCount) {
			rarity := cerr.Rarity
			body.Rarity = &rarity
		}
		body.Got, body.Want, body.IDs = cerr.Got, cerr.Want, cerr.IDs
	}
	writeJSON(w, status, body)
}
