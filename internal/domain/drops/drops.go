// Package drops decides which loot a player receives: the guaranteed drop of
// every rank reached and the rare bonus roll on any accepted tap.
package drops

import (
	"math/rand"
	"time"

	"github.com/okian/tapforge/internal/domain/loot"
	"github.com/okian/tapforge/internal/domain/model"
	"github.com/okian/tapforge/internal/domain/progress"
)

// DefaultBonusProbability is the chance of a bonus drop per accepted tap.
const DefaultBonusProbability = 0.01

// Engine assigns drops. It is not safe for concurrent use; the owning
// session serializes access.
type Engine struct {
	catalog     loot.Catalog
	probability float64
	rng         *rand.Rand
	now         func() time.Time
}

// NewEngine creates a drop engine over catalog. The bonus roll picks
// uniformly across the whole catalog regardless of rarity or rank.
func NewEngine(catalog loot.Catalog, opts ...Option) *Engine {
	e := &Engine{
		catalog:     catalog,
		probability: DefaultBonusProbability,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // gameplay randomness
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Guaranteed stamps the drop owed for reaching up.Rank.
func (e *Engine) Guaranteed(playerID string, up progress.RankUp) model.Drop {
	return model.NewDrop(playerID, up.Rank.GuaranteedDrop, up.Rank.DisplayName, e.now().UTC())
}

// ForRankUps stamps one guaranteed drop per rank-up, in order.
func (e *Engine) ForRankUps(playerID string, ups []progress.RankUp) []model.Drop {
	if len(ups) == 0 {
		return nil
	}
	out := make([]model.Drop, 0, len(ups))
	for _, up := range ups {
		out = append(out, e.Guaranteed(playerID, up))
	}
	return out
}

// RollBonus draws once; on success it returns a uniformly chosen template
// tagged as a bonus drop.
func (e *Engine) RollBonus(playerID string) (model.Drop, bool) {
	if e.catalog.Len() == 0 {
		return model.Drop{}, false
	}
	if e.rng.Float64() >= e.probability {
		return model.Drop{}, false
	}
	tpl := e.catalog.At(e.rng.Intn(e.catalog.Len()))
	return model.NewDrop(playerID, tpl, model.BonusSource, e.now().UTC()), true
}

