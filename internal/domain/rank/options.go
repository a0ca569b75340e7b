package rank

// Option applies a configuration option to the Table.
type Option func(*Table)

// WithColorTiers replaces the sub-thresholds used past the last rank.
// An empty slice keeps the defaults.
func WithColorTiers(tiers []int64) Option {
	return func(t *Table) {
		if len(tiers) > 0 {
			t.colorTiers = append([]int64(nil), tiers...)
		}
	}
}
