// Package rank holds the static rank table: ordered XP thresholds, display
// names and the loot each rank guarantees on arrival.
package rank

import (
	"fmt"
	"sort"

	"github.com/okian/tapforge/internal/domain/loot"
)

// Definition describes a single rank. Definitions are immutable once the
// table is built.
type Definition struct {
	Index          int               `json:"index"`
	DisplayName    string            `json:"display_name"`
	LocalizedNames map[string]string `json:"localized_names,omitempty"`
	XPThreshold    int64             `json:"xp_threshold"`
	GuaranteedDrop loot.Template     `json:"guaranteed_drop"`
}

// Name returns the display name for locale, falling back to DisplayName.
func (d Definition) Name(locale string) string {
	if n, ok := d.LocalizedNames[locale]; ok && n != "" {
		return n
	}
	return d.DisplayName
}

// Table is the ordered list of ranks plus the cosmetic color tiers that
// apply once the last rank is reached.
type Table struct {
	ranks      []Definition
	colorTiers []int64
	catalog    loot.Catalog
}

// NewTable validates defs and builds a table. Thresholds must start at zero
// and strictly increase; indexes must match positions.
func NewTable(defs []Definition, opts ...Option) (*Table, error) {
	if len(defs) == 0 {
		return nil, ErrEmptyTable
	}
	t := &Table{
		ranks:      make([]Definition, len(defs)),
		colorTiers: append([]int64(nil), defaultColorTiers...),
	}
	templates := make([]loot.Template, 0, len(defs))
	for i, d := range defs {
		if d.Index != i {
			return nil, fmt.Errorf("%w: rank %q has index %d at position %d", ErrInvalidTable, d.DisplayName, d.Index, i)
		}
		if d.DisplayName == "" {
			return nil, fmt.Errorf("%w: rank %d has no display name", ErrInvalidTable, i)
		}
		if i == 0 && d.XPThreshold != 0 {
			return nil, fmt.Errorf("%w: first threshold must be 0, got %d", ErrInvalidTable, d.XPThreshold)
		}
		if i > 0 && d.XPThreshold <= defs[i-1].XPThreshold {
			return nil, fmt.Errorf("%w: threshold of %q (%d) does not exceed %q (%d)",
				ErrInvalidTable, d.DisplayName, d.XPThreshold, defs[i-1].DisplayName, defs[i-1].XPThreshold)
		}
		if !d.GuaranteedDrop.Rarity.Valid() || d.GuaranteedDrop.Name == "" {
			return nil, fmt.Errorf("%w: rank %q has an invalid guaranteed drop", ErrInvalidTable, d.DisplayName)
		}
		names := make(map[string]string, len(d.LocalizedNames))
		for k, v := range d.LocalizedNames {
			names[k] = v
		}
		d.LocalizedNames = names
		t.ranks[i] = d
		templates = append(templates, d.GuaranteedDrop)
	}
	t.catalog = loot.NewCatalog(templates...)

	for _, opt := range opts {
		opt(t)
	}
	for i := 1; i < len(t.colorTiers); i++ {
		if t.colorTiers[i] <= t.colorTiers[i-1] {
			return nil, fmt.Errorf("%w: color tiers must be strictly ascending", ErrInvalidTable)
		}
	}
	if len(t.colorTiers) > 0 && t.colorTiers[0] <= 0 {
		return nil, fmt.Errorf("%w: color tiers must be positive", ErrInvalidTable)
	}
	return t, nil
}

// Len returns the number of ranks.
func (t *Table) Len() int { return len(t.ranks) }

// At returns rank i. It panics when i is out of range.
func (t *Table) At(i int) Definition { return t.ranks[i] }

// Last returns the max rank.
func (t *Table) Last() Definition { return t.ranks[len(t.ranks)-1] }

// Next returns the rank after i, if any.
func (t *Table) Next(i int) (Definition, bool) {
	if i+1 >= len(t.ranks) || i < -1 {
		return Definition{}, false
	}
	return t.ranks[i+1], true
}

// All returns a copy of the definitions.
func (t *Table) All() []Definition {
	out := make([]Definition, len(t.ranks))
	copy(out, t.ranks)
	return out
}

// IndexForXP returns the largest rank index whose threshold is <= xp.
func (t *Table) IndexForXP(xp int64) int {
	// first index whose threshold exceeds xp
	i := sort.Search(len(t.ranks), func(i int) bool { return t.ranks[i].XPThreshold > xp })
	if i == 0 {
		return 0
	}
	return i - 1
}

// ColorTier returns the cosmetic tier reached past the last rank: the number
// of sub-thresholds <= xp - last.XPThreshold. It is 0 below max rank.
func (t *Table) ColorTier(xp int64) int {
	over := xp - t.Last().XPThreshold
	if over < 0 {
		return 0
	}
	return sort.Search(len(t.colorTiers), func(i int) bool { return t.colorTiers[i] > over })
}

// ColorTiers returns a copy of the sub-thresholds.
func (t *Table) ColorTiers() []int64 {
	return append([]int64(nil), t.colorTiers...)
}

// Catalog returns every rank's guaranteed drop, in rank order.
func (t *Table) Catalog() loot.Catalog { return t.catalog }
