package rank

import "github.com/okian/tapforge/internal/domain/loot"

var defaultColorTiers = []int64{10_000, 25_000, 50_000, 100_000, 250_000}

// DefaultDefinitions returns the built-in rank ladder.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			Index: 0, DisplayName: "Plankton", XPThreshold: 0,
			LocalizedNames: map[string]string{"es": "Plancton", "fr": "Plancton"},
			GuaranteedDrop: loot.Template{Name: "Drift Speck", IconRef: "loot/drift-speck.png", Rarity: loot.Common},
		},
		{
			Index: 1, DisplayName: "Shrimp", XPThreshold: 500,
			LocalizedNames: map[string]string{"es": "Gamba", "fr": "Crevette"},
			GuaranteedDrop: loot.Template{Name: "Tiny Shell", IconRef: "loot/tiny-shell.png", Rarity: loot.Common},
		},
		{
			Index: 2, DisplayName: "Crab", XPThreshold: 1_500,
			LocalizedNames: map[string]string{"es": "Cangrejo", "fr": "Crabe"},
			GuaranteedDrop: loot.Template{Name: "Claw Charm", IconRef: "loot/claw-charm.png", Rarity: loot.Uncommon},
		},
		{
			Index: 3, DisplayName: "Octopus", XPThreshold: 3_500,
			LocalizedNames: map[string]string{"es": "Pulpo", "fr": "Pieuvre"},
			GuaranteedDrop: loot.Template{Name: "Ink Vial", IconRef: "loot/ink-vial.png", Rarity: loot.Uncommon},
		},
		{
			Index: 4, DisplayName: "Fish", XPThreshold: 7_000,
			LocalizedNames: map[string]string{"es": "Pez", "fr": "Poisson"},
			GuaranteedDrop: loot.Template{Name: "Silver Scale", IconRef: "loot/silver-scale.png", Rarity: loot.Rare},
		},
		{
			Index: 5, DisplayName: "Dolphin", XPThreshold: 12_000,
			LocalizedNames: map[string]string{"es": "Delfin", "fr": "Dauphin"},
			GuaranteedDrop: loot.Template{Name: "Sonar Pearl", IconRef: "loot/sonar-pearl.png", Rarity: loot.Rare},
		},
		{
			Index: 6, DisplayName: "Shark", XPThreshold: 20_000,
			LocalizedNames: map[string]string{"es": "Tiburon", "fr": "Requin"},
			GuaranteedDrop: loot.Template{Name: "Fang Relic", IconRef: "loot/fang-relic.png", Rarity: loot.Epic},
		},
		{
			Index: 7, DisplayName: "Orca", XPThreshold: 32_000,
			LocalizedNames: map[string]string{"es": "Orca", "fr": "Orque"},
			GuaranteedDrop: loot.Template{Name: "Tide Crown", IconRef: "loot/tide-crown.png", Rarity: loot.Legendary},
		},
		{
			Index: 8, DisplayName: "Whale", XPThreshold: 50_000,
			LocalizedNames: map[string]string{"es": "Ballena", "fr": "Baleine"},
			GuaranteedDrop: loot.Template{Name: "Abyssal Trident", IconRef: "loot/abyssal-trident.png", Rarity: loot.LegendaryPlus},
		},
		{
			Index: 9, DisplayName: "Leviathan", XPThreshold: 80_000,
			LocalizedNames: map[string]string{"es": "Leviatan", "fr": "Leviathan"},
			GuaranteedDrop: loot.Template{Name: "Heart of the Deep", IconRef: "loot/heart-of-the-deep.png", Rarity: loot.Mythic},
		},
	}
}

// Default builds the built-in table. It panics if the built-in data is
// inconsistent.
func Default(opts ...Option) *Table {
	t, err := NewTable(DefaultDefinitions(), opts...)
	if err != nil {
		panic(err)
	}
	return t
}
