package api

// Option configures a Server.
type Option func(*options)

type options struct {
	ingressRPS     float64
	ingressBurst   int
	maxLimiters    int
	maxLeaderboard int
	maxReward      int64
}

func defaultOptions() options {
	return options{
		ingressRPS:     50,
		ingressBurst:   100,
		maxLimiters:    10_000,
		maxLeaderboard: 100,
		maxReward:      1_000_000,
	}
}

// WithIngressRate sets the per-identity token bucket. A non-positive rate
// disables throttling.
func WithIngressRate(rps float64, burst int) Option {
	return func(o *options) {
		o.ingressRPS = rps
		if burst > 0 {
			o.ingressBurst = burst
		}
	}
}

// WithMaxLimiters bounds how many identities keep a token bucket.
func WithMaxLimiters(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxLimiters = n
		}
	}
}

// WithMaxLeaderboardLimit caps the limit query parameter.
func WithMaxLeaderboardLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxLeaderboard = n
		}
	}
}

// WithMaxReward caps a single external reward.
func WithMaxReward(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxReward = n
		}
	}
}
