// Package loot defines rarity tiers and the immutable loot templates that
// drops and crafts stamp into a player's inventory.
package loot

import (
	"fmt"
	"strings"
)

// Rarity is the ordinal value class of a loot template.
type Rarity int

// Rarity tiers, lowest first. The order is significant: crafting moves an
// entry exactly one tier up.
const (
	Common Rarity = iota
	Uncommon
	Rare
	Epic
	Legendary
	LegendaryPlus
	Mythic
)

var rarityNames = [...]string{
	Common:        "Common",
	Uncommon:      "Uncommon",
	Rare:          "Rare",
	Epic:          "Epic",
	Legendary:     "Legendary",
	LegendaryPlus: "Legendary+",
	Mythic:        "Mythic",
}

// AllRarities returns every tier from lowest to highest.
func AllRarities() []Rarity {
	return []Rarity{Common, Uncommon, Rare, Epic, Legendary, LegendaryPlus, Mythic}
}

// Highest returns the top tier.
func Highest() Rarity { return Mythic }

// Valid reports whether r is a known tier.
func (r Rarity) Valid() bool {
	return r >= Common && r <= Mythic
}

// String returns the display name of the tier.
func (r Rarity) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Rarity(%d)", int(r))
	}
	return rarityNames[r]
}

// Slug returns a lowercase identifier safe for icon references and URLs.
func (r Rarity) Slug() string {
	s := strings.ToLower(r.String())
	return strings.ReplaceAll(s, "+", "-plus")
}

// Next returns the tier directly above r. The second value is false for
// the top tier and for unknown tiers.
func (r Rarity) Next() (Rarity, bool) {
	if !r.Valid() || r == Mythic {
		return r, false
	}
	return r + 1, true
}

// ParseRarity resolves a display name or slug, case-insensitively.
func ParseRarity(s string) (Rarity, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for _, r := range AllRarities() {
		if needle == strings.ToLower(r.String()) || needle == r.Slug() {
			return r, nil
		}
	}
	return Common, fmt.Errorf("%w: %q", ErrUnknownRarity, s)
}

// MarshalText encodes the tier as its display name.
func (r Rarity) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRarity, int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText decodes a display name or slug.
func (r *Rarity) UnmarshalText(b []byte) error {
	parsed, err := ParseRarity(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Template is the stamp used when instantiating an inventory entry.
type Template struct {
	Name    string `json:"name" koanf:"name"`
	IconRef string `json:"icon_ref" koanf:"icon_ref"`
	Rarity  Rarity `json:"rarity" koanf:"rarity"`
}

// Catalog is an ordered, read-only list of templates.
type Catalog struct {
	templates []Template
}

// NewCatalog copies the given templates into a catalog, preserving order.
func NewCatalog(templates ...Template) Catalog {
	c := Catalog{templates: make([]Template, len(templates))}
	copy(c.templates, templates)
	return c
}

// Len returns the number of templates.
func (c Catalog) Len() int { return len(c.templates) }

// At returns the i-th template.
func (c Catalog) At(i int) Template { return c.templates[i] }

// All returns a copy of the templates.
func (c Catalog) All() []Template {
	out := make([]Template, len(c.templates))
	copy(out, c.templates)
	return out
}

// FirstOf returns the first template of the given rarity in catalog order.
func (c Catalog) FirstOf(r Rarity) (Template, bool) {
	for _, t := range c.templates {
		if t.Rarity == r {
			return t, true
		}
	}
	return Template{}, false
}
