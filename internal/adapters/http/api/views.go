package api

import (
	"github.com/okian/tapforge/internal/domain/model"
	"github.com/okian/tapforge/internal/domain/progress"
	"github.com/okian/tapforge/internal/domain/rank"
	"github.com/okian/tapforge/internal/game"
	"github.com/okian/tapforge/internal/syncer"
)

type progressView struct {
	PlayerID   string           `json:"player_id,omitempty"`
	XP         int64            `json:"xp"`
	ClickCount int64            `json:"click_count"`
	RankIndex  int              `json:"rank_index"`
	RankName   string           `json:"rank_name"`
	Version    int64            `json:"version"`
	ColorTier  int              `json:"color_tier"`
	AtMaxRank  bool             `json:"at_max_rank"`
	NextRank   *rank.Definition `json:"next_rank,omitempty"`
	Inventory  int              `json:"inventory_size"`
	Sync       syncer.Status    `json:"sync"`
}

func newProgressView(v game.View) progressView {
	return progressView{
		PlayerID:   v.Progress.PlayerID,
		XP:         v.Progress.XP,
		ClickCount: v.Progress.ClickCount,
		RankIndex:  v.Progress.RankIndex,
		RankName:   v.Rank.DisplayName,
		Version:    v.Progress.Version,
		ColorTier:  v.ColorTier,
		AtMaxRank:  v.AtMaxRank,
		NextRank:   v.Next,
		Inventory:  v.Inventory,
		Sync:       v.Sync,
	}
}

type rankUpView struct {
	From int    `json:"from"`
	To   int    `json:"to"`
	Rank string `json:"rank"`
}

func newRankUps(ups []progress.RankUp) []rankUpView {
	out := make([]rankUpView, 0, len(ups))
	for _, up := range ups {
		out = append(out, rankUpView{From: up.From, To: up.To, Rank: up.Rank.DisplayName})
	}
	return out
}

type tapResponse struct {
	Accepted   bool                   `json:"accepted"`
	Duplicate  bool                   `json:"duplicate"`
	Delta      int64                  `json:"xp_delta"`
	XP         int64                  `json:"xp"`
	ClickCount int64                  `json:"click_count"`
	RankIndex  int                    `json:"rank_index"`
	RankName   string                 `json:"rank_name"`
	ColorTier  int                    `json:"color_tier"`
	RankUps    []rankUpView           `json:"rank_ups"`
	Drops      []model.InventoryEntry `json:"drops"`
	Sync       syncer.Status          `json:"sync"`
}

func newTapResponse(res game.TapResult) tapResponse {
	drops := res.Drops
	if drops == nil {
		drops = []model.InventoryEntry{}
	}
	return tapResponse{
		Accepted:   res.Accepted,
		Duplicate:  res.Duplicate,
		Delta:      res.Delta,
		XP:         res.Progress.XP,
		ClickCount: res.Progress.ClickCount,
		RankIndex:  res.Progress.RankIndex,
		RankName:   res.Rank.DisplayName,
		ColorTier:  res.ColorTier,
		RankUps:    newRankUps(res.RankUps),
		Drops:      drops,
		Sync:       res.Sync,
	}
}

type grantResponse struct {
	Result      *model.InventoryEntry  `json:"result,omitempty"`
	ConsumedIDs []string               `json:"consumed_ids,omitempty"`
	XPAwarded   int64                  `json:"xp_awarded"`
	XP          int64                  `json:"xp"`
	RankIndex   int                    `json:"rank_index"`
	Version     int64                  `json:"version"`
	RankUps     []rankUpView           `json:"rank_ups"`
	Drops       []model.InventoryEntry `json:"drops"`
	Sync        syncer.Status          `json:"sync"`
}

func newGrantResponse(res game.GrantResult) grantResponse {
	out := grantResponse{
		XPAwarded: res.XP,
		XP:        res.Progress.XP,
		RankIndex: res.Progress.RankIndex,
		Version:   res.Progress.Version,
		RankUps:   newRankUps(res.RankUps),
		Drops:     res.Drops,
		Sync:      res.Sync,
	}
	if out.Drops == nil {
		out.Drops = []model.InventoryEntry{}
	}
	if res.Craft != nil {
		out.Result = &res.Craft.Result
		out.ConsumedIDs = res.Craft.ConsumedIDs
	}
	return out
}
