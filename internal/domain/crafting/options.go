package crafting

// Option applies a configuration option to the Book.
type Option func(*Book)

// WithRequiredCount sets the number of inputs per recipe.
func WithRequiredCount(n int) Option {
	return func(b *Book) {
		if n > 0 {
			b.requiredCount = n
		}
	}
}

// WithXPReward sets the flat XP granted per craft.
func WithXPReward(xp int64) Option {
	return func(b *Book) {
		if xp >= 0 {
			b.xpReward = xp
		}
	}
}
