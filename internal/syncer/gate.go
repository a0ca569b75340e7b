package syncer

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/okian/tapforge/internal/domain/loot"
	"github.com/okian/tapforge/internal/domain/model"
	"github.com/okian/tapforge/internal/domain/rank"
)

// Gate validates outbound records before they reach the store.
type Gate struct {
	validate *validator.Validate
	table    *rank.Table
}

// NewGate builds a gate whose progress checks use table.
func NewGate(table *rank.Table) *Gate {
	v := validator.New(validator.WithRequiredStructEnabled())
	g := &Gate{validate: v, table: table}

	_ = v.RegisterValidation("rarity", func(fl validator.FieldLevel) bool {
		return loot.Rarity(fl.Field().Int()).Valid()
	})
	v.RegisterStructValidation(g.progressRank, model.PlayerProgress{})
	return g
}

func (g *Gate) progressRank(sl validator.StructLevel) {
	p, ok := sl.Current().Interface().(model.PlayerProgress)
	if !ok {
		return
	}
	switch {
	case p.RankIndex >= g.table.Len():
		sl.ReportError(p.RankIndex, "RankIndex", "rank_index", "rank_in_table", "")
	case p.XP >= 0 && g.table.IndexForXP(p.XP) != p.RankIndex:
		sl.ReportError(p.RankIndex, "RankIndex", "rank_index", "rank_matches_xp", "")
	}
}

// Progress checks bounds and that the rank index is derivable from XP.
func (g *Gate) Progress(p model.PlayerProgress) error {
	if err := g.validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProgress, err)
	}
	return nil
}

// Drop checks string bounds and rarity.
func (g *Gate) Drop(d model.Drop) error {
	if err := g.validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDrop, err)
	}
	return nil
}
