package tapsim

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/tapforge/internal/domain/rank"
	"github.com/okian/tapforge/pkg/auth"
	"github.com/okian/tapforge/pkg/logger"
)

// ErrViolation reports a rank invariant broken by the service.
var ErrViolation = errors.New("invariant violated")

type counters struct {
	sent, accepted, throttled, failed, rankUps, drops, violations atomic.Int64
}

// Run executes a complete simulation.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	log := logger.Get().Named("tapsim")
	stats := &Stats{StartTime: time.Now(), Players: config.Players}

	log.Info(ctx, "starting tap simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("players", config.Players),
		logger.Int("tapsPerPlayer", config.TapsPerPlayer),
		logger.Int("workers", config.Workers),
		logger.Duration("tapGap", config.TapGap))

	tokens, err := auth.NewManager(config.Secret, auth.WithIssuer(config.Issuer))
	if err != nil {
		return nil, fmt.Errorf("token manager: %w", err)
	}
	client := newHTTPClient(config.BaseURL, config.Timeout)

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Fetch the rank table the service derives ranks from
	table, err := client.Ranks(ctx)
	if err != nil {
		return nil, fmt.Errorf("rank table retrieval failed: %w", err)
	}

	// Step 3: Tap concurrently, one goroutine per player
	var c counters
	run := uuid.NewString()[:8]
	g, gctx := errgroup.WithContext(ctx)
	if config.Workers > 0 {
		g.SetLimit(config.Workers)
	}
	for i := 0; i < config.Players; i++ {
		player := playerIDPrefix + run + "-" + strconv.Itoa(i)
		g.Go(func() error {
			return simulatePlayer(gctx, config, client, tokens, table, player, &c)
		})
	}
	tapErr := g.Wait()

	stats.TapsSent = c.sent.Load()
	stats.TapsAccepted = c.accepted.Load()
	stats.TapsThrottled = c.throttled.Load()
	stats.TapsFailed = c.failed.Load()
	stats.RankUps = c.rankUps.Load()
	stats.Drops = c.drops.Load()
	stats.Violations = c.violations.Load()
	if tapErr != nil {
		finish(stats)
		return stats, tapErr
	}

	// Step 4: Let debounced saves land, then check the leaderboard
	if config.FlushWait > 0 {
		log.Info(ctx, "waiting for saves", logger.Duration("wait", config.FlushWait))
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-time.After(config.FlushWait):
		}
	}
	board, err := client.Leaderboard(ctx, config.TopN)
	if err != nil {
		return stats, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	stats.LeaderboardLen = len(board)
	if err := verifyLeaderboard(table, board); err != nil {
		return stats, fmt.Errorf("%w: %v", ErrViolation, err)
	}

	finish(stats)
	displayFinalStats(ctx, log, stats)
	return stats, nil
}

// simulatePlayer taps TapsPerPlayer times and checks every answer.
func simulatePlayer(ctx context.Context, config *Config, client *HTTPClient, tokens *auth.Manager, table *rank.Table, player string, c *counters) error {
	token, err := tokens.Mint(player)
	if err != nil {
		return err
	}
	tr := newTracker(table, player)
	for i := 0; i < config.TapsPerPlayer; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(config.TapGap):
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
		ts := time.Now()
		c.sent.Add(1)
		resp, err := client.Tap(ctx, token, tapRequest{TapID: player + "-" + strconv.Itoa(i), TSMS: ts.UnixMilli()})
		switch {
		case errors.Is(err, ErrThrottled):
			c.throttled.Add(1)
			continue
		case err != nil:
			c.failed.Add(1)
			if config.Verbose {
				logger.Get().Warn(ctx, "tap failed", logger.String("player", player), logger.Error(err))
			}
			continue
		}
		before := tr.lastRank
		if err := tr.observe(resp); err != nil {
			c.violations.Add(1)
			return fmt.Errorf("%w: %v", ErrViolation, err)
		}
		if resp.Accepted {
			c.accepted.Add(1)
		}
		c.rankUps.Add(int64(resp.RankIndex - before))
		c.drops.Add(int64(len(resp.Drops)))
	}
	return nil
}

func finish(stats *Stats) {
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var acceptRate, tapsPerSecond float64
	if stats.TapsSent > 0 {
		acceptRate = float64(stats.TapsAccepted) / float64(stats.TapsSent) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		tapsPerSecond = float64(stats.TapsSent) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("players", stats.Players),
		logger.Int64("tapsSent", stats.TapsSent),
		logger.Int64("tapsAccepted", stats.TapsAccepted),
		logger.Int64("tapsThrottled", stats.TapsThrottled),
		logger.Int64("tapsFailed", stats.TapsFailed),
		logger.Int64("rankUps", stats.RankUps),
		logger.Int64("drops", stats.Drops),
		logger.Int("leaderboardEntries", stats.LeaderboardLen),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("tapsPerSecond", tapsPerSecond))
}
