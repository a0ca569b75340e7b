package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/tapforge/internal/domain/model"
)

const maxTapIDLen = 128

// tapRequest is the body of POST /taps. Both fields are optional; ts_ms is
// informational and does not affect throttling.
type tapRequest struct {
	TapID string `json:"tap_id"`
	TSMs  *int64 `json:"ts_ms"`
}

func (t tapRequest) validate() error {
	if len(t.TapID) > maxTapIDLen {
		return fmt.Errorf("%w: tap_id longer than %d", ErrBadRequest, maxTapIDLen)
	}
	if t.TSMs != nil && *t.TSMs < 0 {
		return fmt.Errorf("%w: negative ts_ms", ErrBadRequest)
	}
	return nil
}

// TapsHandler handles tap submissions.
type TapsHandler struct {
	sessions Sessions
}

// NewTapsHandler creates a new taps handler.
func NewTapsHandler(sessions Sessions) *TapsHandler {
	return &TapsHandler{sessions: sessions}
}

// HandlePostTap handles POST /taps requests.
func (h *TapsHandler) HandlePostTap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req tapRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	s, err := h.sessions.Get(r.Context(), identityFrom(r.Context()))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
		return
	}
	tap := model.Tap{TapID: strings.TrimSpace(req.TapID)}
	if req.TSMs != nil {
		tap.ClientTS = time.UnixMilli(*req.TSMs)
	}
	writeJSON(w, http.StatusOK, newTapResponse(s.Tap(r.Context(), tap)))
}
