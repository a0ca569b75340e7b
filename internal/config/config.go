// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/okian/tapforge/internal/domain/crafting"
	"github.com/okian/tapforge/internal/domain/loot"
	"github.com/okian/tapforge/internal/domain/rank"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// MetricsNamespace prefixes every metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`
	// Environment is attached to every metric as the env label when set.
	Environment string `koanf:"environment"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Store selects the persistence backend: memory or postgres.
	Store       string `koanf:"store"`
	PostgresDSN string `koanf:"postgres_dsn"`

	// TapIntervalMS is the minimum gap between accepted taps of a session.
	TapIntervalMS int `koanf:"tap_interval_ms"`
	// XPDeltaMin and XPDeltaMax bound the uniform per-tap XP draw.
	XPDeltaMin int64 `koanf:"xp_delta_min"`
	XPDeltaMax int64 `koanf:"xp_delta_max"`
	// BonusDropProbability is the per-tap bonus drop chance.
	BonusDropProbability float64 `koanf:"bonus_drop_probability"`

	// SaveDebounceMS is the quiet window before a save fires.
	SaveDebounceMS    int `koanf:"save_debounce_ms"`
	InventoryPageSize int `koanf:"inventory_page_size"`

	CraftRequiredCount int   `koanf:"craft_required_count"`
	CraftXPReward      int64 `koanf:"craft_xp_reward"`

	// SaveWorkers is the number of save shards; SaveQueueSize bounds each.
	SaveWorkers   int `koanf:"save_workers"`
	SaveQueueSize int `koanf:"save_queue_size"`

	SessionTTLSec int `koanf:"session_ttl_sec"`
	MaxSessions   int `koanf:"max_sessions"`
	// DedupeSize bounds remembered tap ids per session.
	DedupeSize int `koanf:"dedupe_size"`

	JWTSecret string `koanf:"jwt_secret"`
	JWTIssuer string `koanf:"jwt_issuer"`

	// IngressRPS and IngressBurst shape the per-identity token bucket.
	IngressRPS   float64 `koanf:"ingress_rps"`
	IngressBurst int     `koanf:"ingress_burst"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// ColorTiers are the cosmetic sub-thresholds past the last rank.
	ColorTiers []int64 `koanf:"color_tiers"`
	// Ranks replaces the built-in rank table when set.
	Ranks []RankConfig `koanf:"ranks"`
}

// RankConfig describes one rank in configuration.
type RankConfig struct {
	Name        string            `koanf:"name"`
	XPThreshold int64             `koanf:"xp_threshold"`
	Localized   map[string]string `koanf:"localized"`
	Drop        LootConfig        `koanf:"drop"`
}

// LootConfig describes a loot template in configuration.
type LootConfig struct {
	Name   string `koanf:"name"`
	Icon   string `koanf:"icon"`
	Rarity string `koanf:"rarity"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		MetricsNamespace:     "tapforge",
		Addr:                 ":9080",
		Store:                StoreMemory,
		TapIntervalMS:        100,
		XPDeltaMin:           10,
		XPDeltaMax:           14,
		BonusDropProbability: 0.01,
		SaveDebounceMS:       5_000,
		InventoryPageSize:    50,
		CraftRequiredCount:   crafting.DefaultRequiredCount,
		CraftXPReward:        crafting.DefaultXPReward,
		SaveWorkers:          runtime.NumCPU(),
		SaveQueueSize:        1024,
		SessionTTLSec:        1800,
		MaxSessions:          10_000,
		DedupeSize:           1024,
		JWTIssuer:            "tapforge",
		IngressRPS:           50,
		IngressBurst:         100,
		MaxLeaderboardLimit:  100,
	}
}

// Validate rejects inconsistent values.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}
	check(c.Addr != "", "addr must not be empty")
	check(c.Store == StoreMemory || c.Store == StorePostgres, "store must be memory or postgres")
	check(c.Store != StorePostgres || c.PostgresDSN != "", "postgres_dsn is required for the postgres store")
	check(c.LogFormat == "" || c.LogFormat == "text" || c.LogFormat == "json", "log_format must be text or json")
	check(isMetricName(c.MetricsNamespace), "metrics_namespace must be a valid metric name")
	check(c.TapIntervalMS >= 1, "tap_interval_ms must be positive")
	check(c.XPDeltaMin >= 0 && c.XPDeltaMax >= c.XPDeltaMin, "xp_delta_min must be non-negative and not exceed xp_delta_max")
	check(c.BonusDropProbability >= 0 && c.BonusDropProbability <= 1, "bonus_drop_probability must be within [0,1]")
	check(c.SaveDebounceMS >= 0, "save_debounce_ms must not be negative")
	check(c.InventoryPageSize > 0, "inventory_page_size must be positive")
	check(c.CraftRequiredCount > 1, "craft_required_count must be at least 2")
	check(c.CraftXPReward >= 0, "craft_xp_reward must not be negative")
	check(c.SaveWorkers > 0, "save_workers must be positive")
	check(c.SaveQueueSize > 0, "save_queue_size must be positive")
	check(c.SessionTTLSec > 0, "session_ttl_sec must be positive")
	check(c.MaxSessions > 0, "max_sessions must be positive")
	check(c.DedupeSize > 0, "dedupe_size must be positive")
	check(c.IngressBurst > 0 || c.IngressRPS <= 0, "ingress_burst must be positive when throttling")
	check(c.MaxLeaderboardLimit > 0, "max_leaderboard_limit must be positive")
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	if _, err := c.RankTable(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// RankTable builds the configured rank table, or the built-in one when no
// ranks are configured.
func (c *Config) RankTable() (*rank.Table, error) {
	opts := []rank.Option{rank.WithColorTiers(c.ColorTiers)}
	if len(c.Ranks) == 0 {
		return rank.NewTable(rank.DefaultDefinitions(), opts...)
	}
	defs := make([]rank.Definition, 0, len(c.Ranks))
	for i, rc := range c.Ranks {
		rarity, err := loot.ParseRarity(rc.Drop.Rarity)
		if err != nil {
			return nil, fmt.Errorf("rank %q: %w", rc.Name, err)
		}
		defs = append(defs, rank.Definition{
			Index:          i,
			DisplayName:    rc.Name,
			LocalizedNames: rc.Localized,
			XPThreshold:    rc.XPThreshold,
			GuaranteedDrop: loot.Template{Name: rc.Drop.Name, IconRef: rc.Drop.Icon, Rarity: rarity},
		})
	}
	return rank.NewTable(defs, opts...)
}

// TapInterval returns the tap limiter interval.
func (c *Config) TapInterval() time.Duration {
	return time.Duration(c.TapIntervalMS) * time.Millisecond
}

// SaveDebounce returns the save quiet window.
func (c *Config) SaveDebounce() time.Duration {
	return time.Duration(c.SaveDebounceMS) * time.Millisecond
}

// SessionTTL returns the idle lifetime of a session.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSec) * time.Second
}

// MetricsLabels returns the constant labels for every metric.
func (c *Config) MetricsLabels() map[string]string {
	if c.Environment == "" {
		return nil
	}
	return map[string]string{"env": c.Environment}
}

func isMetricName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
