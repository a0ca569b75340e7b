// Package crafting validates craft requests against the recipe book and
// picks the result template. Executing the craft is the store's job.
package crafting

import (
	"github.com/okian/tapforge/internal/domain/loot"
	"github.com/okian/tapforge/internal/domain/model"
)

const (
	// DefaultRequiredCount is the number of same-rarity inputs per craft.
	DefaultRequiredCount = 3
	// DefaultXPReward is the flat XP granted by every successful craft.
	DefaultXPReward int64 = 100
)

// Recipe turns RequiredCount items of From into one item of To.
type Recipe struct {
	From          loot.Rarity `json:"from"`
	To            loot.Rarity `json:"to"`
	RequiredCount int         `json:"required_count"`
	XPReward      int64       `json:"xp_reward"`
}

// Lookup resolves entry ids against an owner's inventory.
type Lookup interface {
	Lookup(ids []string) (found []model.InventoryEntry, missing []string)
}

// Plan is a validated craft ready to be executed.
type Plan struct {
	Recipe Recipe
	Inputs []model.InventoryEntry
	Result loot.Template
}

// InputIDs returns the ids of the consumed entries.
func (p Plan) InputIDs() []string {
	out := make([]string, len(p.Inputs))
	for i, e := range p.Inputs {
		out[i] = e.ID
	}
	return out
}

// Book holds one recipe per adjacent rarity pair. Nothing consumes the
// top rarity.
type Book struct {
	recipes       map[loot.Rarity]Recipe
	catalog       loot.Catalog
	requiredCount int
	xpReward      int64
}

// NewBook builds the recipe book over catalog.
func NewBook(catalog loot.Catalog, opts ...Option) *Book {
	b := &Book{
		catalog:       catalog,
		requiredCount: DefaultRequiredCount,
		xpReward:      DefaultXPReward,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.recipes = make(map[loot.Rarity]Recipe)
	for _, r := range loot.AllRarities() {
		to, ok := r.Next()
		if !ok {
			continue
		}
		b.recipes[r] = Recipe{From: r, To: to, RequiredCount: b.requiredCount, XPReward: b.xpReward}
	}
	return b
}

// Recipe returns the recipe consuming from.
func (b *Book) Recipe(from loot.Rarity) (Recipe, bool) {
	r, ok := b.recipes[from]
	return r, ok
}

// Recipes lists the recipes in rarity order.
func (b *Book) Recipes() []Recipe {
	out := make([]Recipe, 0, len(b.recipes))
	for _, r := range loot.AllRarities() {
		if rec, ok := b.recipes[r]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// ResultTemplate returns the first catalog template of rarity r, or a
// synthesized relic when the catalog has none.
func (b *Book) ResultTemplate(r loot.Rarity) loot.Template {
	if tpl, ok := b.catalog.FirstOf(r); ok {
		return tpl
	}
	return loot.Template{
		Name:    r.String() + " Relic",
		IconRef: "relic-" + r.Slug(),
		Rarity:  r,
	}
}

// Check validates a selection. Preconditions are checked in a fixed order
// so a request that fails several reports the first one.
func (b *Book) Check(ids []string, authenticated bool, owned Lookup) (Plan, error) {
	ids = UniqueIDs(ids)
	if err := CheckSelection(ids, authenticated); err != nil {
		return Plan{}, err
	}
	inputs, missing := owned.Lookup(ids)
	if len(missing) > 0 {
		return Plan{}, &Error{Kind: ErrNotOwned, IDs: missing}
	}
	rarity := inputs[0].Rarity
	for _, e := range inputs[1:] {
		if e.Rarity != rarity {
			return Plan{}, &Error{Kind: ErrMixedRarity, Rarity: rarity}
		}
	}
	rec, ok := b.recipes[rarity]
	if !ok {
		return Plan{}, &Error{Kind: ErrNoRecipe, Rarity: rarity}
	}
	if len(inputs) != rec.RequiredCount {
		return Plan{}, &Error{Kind: ErrWrongCount, Rarity: rarity, Got: len(inputs), Want: rec.RequiredCount}
	}
	return Plan{Recipe: rec, Inputs: inputs, Result: b.ResultTemplate(rec.To)}, nil
}

// CheckSelection runs the checks that need no inventory: a non-empty
// selection and an authenticated owner.
func CheckSelection(ids []string, authenticated bool) error {
	if len(UniqueIDs(ids)) == 0 {
		return &Error{Kind: ErrEmptySelection}
	}
	if !authenticated {
		return &Error{Kind: ErrUnauthenticated}
	}
	return nil
}

// UniqueIDs drops empty and repeated ids, keeping first occurrences.
func UniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
