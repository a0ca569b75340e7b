package game

import (
	"time"

	"github.com/okian/tapforge/internal/domain/drops"
	"github.com/okian/tapforge/internal/domain/progress"
	"github.com/okian/tapforge/internal/domain/ratelimit"
	"github.com/okian/tapforge/internal/syncer"
	"github.com/okian/tapforge/pkg/logger"
)

// DefaultDedupeSize bounds the remembered tap ids per session.
const DefaultDedupeSize = 1024

type options struct {
	tapInterval  time.Duration
	dedupeSize   int
	progressOpts []progress.Option
	dropOpts     []drops.Option
	syncOpts     []syncer.Option
	now          func() time.Time
	log          logger.Logger
}

func defaultOptions() options {
	return options{
		tapInterval: ratelimit.DefaultInterval,
		dedupeSize:  DefaultDedupeSize,
		now:         time.Now,
		log:         logger.Get().Named("game"),
	}
}

// Option configures a Session.
type Option func(*options)

// WithTapInterval sets the minimum interval between accepted taps.
func WithTapInterval(d time.Duration) Option {
	return func(o *options) { o.tapInterval = d }
}

// WithDedupeSize bounds how many tap ids a session remembers.
func WithDedupeSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.dedupeSize = n
		}
	}
}

// WithProgressOptions configures the XP accumulator.
func WithProgressOptions(opts ...progress.Option) Option {
	return func(o *options) { o.progressOpts = append(o.progressOpts, opts...) }
}

// WithDropOptions configures the drop engine.
func WithDropOptions(opts ...drops.Option) Option {
	return func(o *options) { o.dropOpts = append(o.dropOpts, opts...) }
}

// WithSyncOptions configures the synchronizer.
func WithSyncOptions(opts ...syncer.Option) Option {
	return func(o *options) { o.syncOpts = append(o.syncOpts, opts...) }
}

// WithClock sets the clock the tap limiter reads.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

