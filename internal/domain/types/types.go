// Package types contains read models shared by the API and the store.
package types

import (
	"sort"

	"github.com/okian/tapforge/internal/domain/model"
	"github.com/okian/tapforge/internal/domain/rank"
)

// Entry represents a leaderboard entry.
type Entry struct {
	Rank       int    `json:"rank"`
	PlayerID   string `json:"player_id"`
	XP         int64  `json:"xp"`
	ClickCount int64  `json:"click_count"`
	RankIndex  int    `json:"rank_index"`
	RankName   string `json:"rank_name"`
}

// Leaderboard orders records by XP descending, ties broken by player id,
// and assigns 1-based positions. Rank names come from table; indexes
// outside the table are clamped to its last rank.
func Leaderboard(records []model.PlayerProgress, table *rank.Table) []Entry {
	sorted := make([]model.PlayerProgress, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].XP != sorted[j].XP {
			return sorted[i].XP > sorted[j].XP
		}
		return sorted[i].PlayerID < sorted[j].PlayerID
	})

	out := make([]Entry, len(sorted))
	for i, p := range sorted {
		idx := p.RankIndex
		if idx < 0 {
			idx = 0
		}
		if idx >= table.Len() {
			idx = table.Len() - 1
		}
		out[i] = Entry{
			Rank:       i + 1,
			PlayerID:   p.PlayerID,
			XP:         p.XP,
			ClickCount: p.ClickCount,
			RankIndex:  p.RankIndex,
			RankName:   table.At(idx).DisplayName,
		}
	}
	return out
}
