package dedupe

// DefaultMaxSize is the number of ids remembered when no size is given.
const DefaultMaxSize = 50_000

type config struct {
	maxSize int
}

// Option applies a configuration option to the deduper.
type Option func(*config)

// WithMaxSize sets how many ids are remembered. Non-positive values keep
// the default.
func WithMaxSize(maxSize int) Option {
	return func(c *config) {
		if maxSize > 0 {
			c.maxSize = maxSize
		}
	}
}
