// Package service wires the tapforge components into a runnable service and
// implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/okian/tapforge/internal/adapters/http/api"
	workerpool "github.com/okian/tapforge/internal/adapters/mq/worker"
	repository "github.com/okian/tapforge/internal/adapters/repository"
	"github.com/okian/tapforge/internal/config"
	"github.com/okian/tapforge/internal/domain/crafting"
	"github.com/okian/tapforge/internal/domain/drops"
	"github.com/okian/tapforge/internal/domain/progress"
	"github.com/okian/tapforge/internal/domain/rank"
	"github.com/okian/tapforge/internal/game"
	"github.com/okian/tapforge/internal/syncer"
	"github.com/okian/tapforge/pkg/auth"
	"github.com/okian/tapforge/pkg/logger"
	"github.com/okian/tapforge/pkg/metrics"
)

// ErrNotStarted is returned by accessors used before Start.
var ErrNotStarted = errors.New("service not started")

// Service owns the store, save workers, session registry and HTTP routes.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	// Core components
	table    *rank.Table
	book     *crafting.Book
	store    repository.Store
	closer   func()
	pool     *workerpool.Pool
	registry *game.Registry
	tokens   *auth.Manager
	handler  http.Handler

	// Injected for tests
	injected repository.Store
	now      func() time.Time

	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore replaces the configured store backend. The service does not
// close an injected store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.injected = store
	}
}

// WithClock sets the clock sessions pace taps with.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service for cfg. A nil cfg uses the defaults.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds and starts every component.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	s.logger.Info(ctx, "starting tapforge service...")

	table, err := s.cfg.RankTable()
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	s.table = table
	s.book = crafting.NewBook(table.Catalog(),
		crafting.WithRequiredCount(s.cfg.CraftRequiredCount),
		crafting.WithXPReward(s.cfg.CraftXPReward),
	)

	if s.cfg.JWTSecret != "" {
		tokens, err := auth.NewManager(s.cfg.JWTSecret, auth.WithIssuer(s.cfg.JWTIssuer))
		if err != nil {
			return err
		}
		s.tokens = tokens
	} else {
		s.logger.Warn(ctx, "jwt_secret is empty; bearer tokens are refused and every caller plays anonymously")
	}

	if err := s.openStore(ctx); err != nil {
		return err
	}

	s.pool = workerpool.NewPool(s.cfg.SaveWorkers, workerpool.WithQueueSize(s.cfg.SaveQueueSize))
	// Workers drain on Shutdown, not on cancellation of the start context.
	s.pool.Start(context.WithoutCancel(ctx))

	s.registry = game.NewRegistry(s.newSession, s.cfg.MaxSessions, s.cfg.SessionTTL())

	deps := api.Dependencies{
		Sessions:    s.registry,
		Leaderboard: s.store,
		Stats:       s,
		Table:       s.table,
		Recipes:     s.book,
	}
	if s.tokens != nil {
		deps.Tokens = s.tokens
	}

	mux := http.NewServeMux()
	api.NewServer(deps,
		api.WithIngressRate(s.cfg.IngressRPS, s.cfg.IngressBurst),
		api.WithMaxLeaderboardLimit(s.cfg.MaxLeaderboardLimit),
	).Register(mux)
	s.handler = mux

	s.started = true
	s.logger.Info(ctx, "tapforge service started",
		logger.String("store", s.storeName()),
		logger.Int("saveWorkers", s.pool.Shards()),
		logger.Int("saveQueueSize", s.cfg.SaveQueueSize),
		logger.Int("ranks", s.table.Len()),
		logger.Bool("auth", s.tokens != nil),
	)
	return nil
}

func (s *Service) openStore(ctx context.Context) error {
	switch {
	case s.injected != nil:
		s.store = s.injected
		s.closer = func() {}
	case s.cfg.Store == config.StorePostgres:
		pg, err := repository.NewPostgresStore(ctx, s.cfg.PostgresDSN, s.table, s.book)
		if err != nil {
			return fmt.Errorf("open postgres store: %w", err)
		}
		s.store = pg
		s.closer = pg.Close
	default:
		s.store = repository.NewMemoryStore(s.table, s.book)
		s.closer = func() {}
	}
	return nil
}

func (s *Service) closeStore() {
	if s.closer != nil {
		s.closer()
		s.closer = nil
	}
}

func (s *Service) storeName() string {
	if s.injected != nil {
		return "injected"
	}
	return s.cfg.Store
}

// newSession builds the session of one identity from configuration.
func (s *Service) newSession(id game.Identity) *game.Session {
	return game.NewSession(id.PlayerID, s.store, s.table, s.book,
		game.WithTapInterval(s.cfg.TapInterval()),
		game.WithDedupeSize(s.cfg.DedupeSize),
		game.WithClock(s.now),
		game.WithProgressOptions(progress.WithDeltaRange(s.cfg.XPDeltaMin, s.cfg.XPDeltaMax)),
		game.WithDropOptions(drops.WithBonusProbability(s.cfg.BonusDropProbability)),
		game.WithSyncOptions(
			syncer.WithSaveDelay(s.cfg.SaveDebounce()),
			syncer.WithPageSize(s.cfg.InventoryPageSize),
			syncer.WithDispatcher(s.pool),
		),
	)
}

// Stop flushes every session, drains the save workers and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping tapforge service...")

	var errs []error
	if err := s.registry.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush sessions: %w", err))
	}
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain save workers: %w", err))
	}
	s.closeStore()

	s.started = false
	s.logger.Info(ctx, "tapforge service stopped")
	return errors.Join(errs...)
}

// Handler returns the HTTP routes. It is nil before Start.
func (s *Service) Handler() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handler
}

// Session returns the hydrated session of id.
func (s *Service) Session(ctx context.Context, id game.Identity) (*game.Session, error) {
	s.mu.RLock()
	registry := s.registry
	s.mu.RUnlock()
	if registry == nil {
		return nil, ErrNotStarted
	}
	return registry.Get(ctx, id)
}

// Tokens returns the token manager, nil when authentication is disabled.
func (s *Service) Tokens() *auth.Manager {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

// Table returns the rank table in use.
func (s *Service) Table() *rank.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"store":         s.storeName(),
		"saveWorkers":   s.cfg.SaveWorkers,
		"saveQueueSize": s.cfg.SaveQueueSize,
		"auth":          s.tokens != nil,
	}

	if s.started {
		sessions := s.registry.Len()
		pending := s.pool.Pending()
		stats["sessions"] = sessions
		stats["pendingJobs"] = pending
		if n, err := s.store.CountPlayers(context.Background()); err == nil {
			stats["players"] = n
		}

		metrics.UpdateActiveSessions(sessions)
		metrics.UpdateQueueSize(pending)
	}

	return stats
}
