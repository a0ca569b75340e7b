package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/tapforge/internal/game"
)

type rewardRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// RewardsHandler handles external XP rewards.
type RewardsHandler struct {
	sessions  Sessions
	maxReward int64
}

// NewRewardsHandler creates a new rewards handler.
func NewRewardsHandler(sessions Sessions, maxReward int64) *RewardsHandler {
	return &RewardsHandler{sessions: sessions, maxReward: maxReward}
}

// HandlePostReward handles POST /rewards requests.
func (h *RewardsHandler) HandlePostReward(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	id := identityFrom(r.Context())
	if id.Anonymous() {
		writeError(w, http.StatusUnauthorized, "unauthenticated", game.ErrUnauthenticated)
		return
	}
	var req rewardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	if req.Amount <= 0 || req.Amount > h.maxReward {
		writeError(w, http.StatusBadRequest, "invalid_amount",
			fmt.Errorf("%w: amount must be in [1, %d]", ErrBadRequest, h.maxReward))
		return
	}

	s, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
		return
	}
	res, err := s.Reward(r.Context(), req.Amount)
	switch {
	case errors.Is(err, game.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated", err)
		return
	case errors.Is(err, game.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid_amount", err)
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, "reward_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, newGrantResponse(res))
}
