package api

import (
	"net/http"

	"github.com/okian/tapforge/internal/domain/rank"
)

type ranksResponse struct {
	Ranks      []rank.Definition `json:"ranks"`
	ColorTiers []int64           `json:"color_tiers"`
}

// RankHandler serves the rank table.
type RankHandler struct {
	table *rank.Table
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(table *rank.Table) *RankHandler {
	return &RankHandler{table: table}
}

// HandleGetRanks handles GET /ranks requests.
func (h *RankHandler) HandleGetRanks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, ranksResponse{Ranks: h.table.All(), ColorTiers: h.table.ColorTiers()})
}
