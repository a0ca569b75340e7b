package tapsim

import (
	"fmt"

	"github.com/okian/tapforge/internal/domain/rank"
	"github.com/okian/tapforge/internal/domain/types"
)

// tracker follows one player's responses.
type tracker struct {
	table    *rank.Table
	player   string
	lastXP   int64
	lastRank int
}

func newTracker(table *rank.Table, player string) *tracker {
	return &tracker{table: table, player: player}
}

// observe checks one tap answer. The rank must be the one derived from xp
// and neither xp nor rank may go down.
func (t *tracker) observe(resp tapResponse) error {
	if want := t.table.IndexForXP(resp.XP); resp.RankIndex != want {
		return fmt.Errorf("%s: rank_index %d at xp %d, want %d", t.player, resp.RankIndex, resp.XP, want)
	}
	if resp.XP < t.lastXP {
		return fmt.Errorf("%s: xp went down from %d to %d", t.player, t.lastXP, resp.XP)
	}
	if resp.RankIndex < t.lastRank {
		return fmt.Errorf("%s: rank went down from %d to %d", t.player, t.lastRank, resp.RankIndex)
	}
	if resp.Accepted && resp.Delta <= 0 {
		return fmt.Errorf("%s: accepted tap with xp delta %d", t.player, resp.Delta)
	}
	t.lastXP = resp.XP
	t.lastRank = resp.RankIndex
	return nil
}

// verifyLeaderboard checks ordering, positions and rank derivation.
func verifyLeaderboard(table *rank.Table, board []types.Entry) error {
	for i, e := range board {
		if e.Rank != i+1 {
			return fmt.Errorf("entry %d has position %d", i, e.Rank)
		}
		if want := table.IndexForXP(e.XP); e.RankIndex != want {
			return fmt.Errorf("%s: stored rank_index %d at xp %d, want %d", e.PlayerID, e.RankIndex, e.XP, want)
		}
		if i == 0 {
			continue
		}
		prev := board[i-1]
		if e.XP > prev.XP || (e.XP == prev.XP && e.PlayerID < prev.PlayerID) {
			return fmt.Errorf("leaderboard not ordered at entry %d: %s(%d) after %s(%d)",
				i, e.PlayerID, e.XP, prev.PlayerID, prev.XP)
		}
	}
	return nil
}
