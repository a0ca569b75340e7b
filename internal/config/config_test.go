package config_test

import (
	"errors"
	"runtime"
	"testing"

	"github.com/okian/tapforge/internal/config"
	"github.com/okian/tapforge/internal/domain/loot"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.TapInterval().Milliseconds(), convey.ShouldEqual, 100)
			convey.So(cfg.XPDeltaMin, convey.ShouldEqual, 10)
			convey.So(cfg.XPDeltaMax, convey.ShouldEqual, 14)
			convey.So(cfg.SaveDebounce().Seconds(), convey.ShouldEqual, 5)
			convey.So(cfg.SaveWorkers, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.Validate(), convey.ShouldBeNil)
			convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "tapforge")
			convey.So(cfg.MetricsLabels(), convey.ShouldBeNil)
		})

		convey.Convey("Then an environment becomes the env metric label", func() {
			cfg.Environment = "staging"
			convey.So(cfg.MetricsLabels(), convey.ShouldResemble, map[string]string{"env": "staging"})
		})

		convey.Convey("Then the built-in rank table is used", func() {
			table, err := cfg.RankTable()
			convey.So(err, convey.ShouldBeNil)
			convey.So(table.Len(), convey.ShouldEqual, 10)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with inconsistent values", t, func() {
		cases := []struct {
			name   string
			mutate func(c *config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"unknown store", func(c *config.Config) { c.Store = "redis" }},
			{"postgres without dsn", func(c *config.Config) { c.Store = config.StorePostgres }},
			{"inverted xp range", func(c *config.Config) { c.XPDeltaMin, c.XPDeltaMax = 20, 10 }},
			{"probability above 1", func(c *config.Config) { c.BonusDropProbability = 1.5 }},
			{"zero tap interval", func(c *config.Config) { c.TapIntervalMS = 0 }},
			{"single-item recipe", func(c *config.Config) { c.CraftRequiredCount = 1 }},
			{"bad log format", func(c *config.Config) { c.LogFormat = "xml" }},
			{"bad metrics namespace", func(c *config.Config) { c.MetricsNamespace = "9-forge" }},
			{"ranks not increasing", func(c *config.Config) {
				c.Ranks = []config.RankConfig{
					{Name: "A", XPThreshold: 0, Drop: config.LootConfig{Name: "a", Icon: "a", Rarity: "common"}},
					{Name: "B", XPThreshold: 0, Drop: config.LootConfig{Name: "b", Icon: "b", Rarity: "rare"}},
				}
			}},
			{"unknown drop rarity", func(c *config.Config) {
				c.Ranks = []config.RankConfig{{Name: "A", Drop: config.LootConfig{Name: "a", Icon: "a", Rarity: "shiny"}}}
			}},
		}

		for _, tc := range cases {
			convey.Convey("Then validation rejects "+tc.name, func() {
				cfg := config.New()
				tc.mutate(cfg)
				err := cfg.Validate()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})

	convey.Convey("Given configured ranks", t, func() {
		cfg := config.New()
		cfg.Ranks = []config.RankConfig{
			{Name: "Seed", XPThreshold: 0, Drop: config.LootConfig{Name: "Husk", Icon: "husk.png", Rarity: "Common"}},
			{Name: "Sprout", XPThreshold: 50, Localized: map[string]string{"fr": "Pousse"}, Drop: config.LootConfig{Name: "Leaf", Icon: "leaf.png", Rarity: "legendary-plus"}},
		}
		cfg.ColorTiers = []int64{100, 200}

		convey.Convey("Then the table follows them", func() {
			table, err := cfg.RankTable()
			convey.So(err, convey.ShouldBeNil)
			convey.So(table.Len(), convey.ShouldEqual, 2)
			convey.So(table.At(1).Name("fr"), convey.ShouldEqual, "Pousse")
			convey.So(table.At(1).GuaranteedDrop.Rarity, convey.ShouldEqual, loot.LegendaryPlus)
			convey.So(table.ColorTiers(), convey.ShouldResemble, []int64{100, 200})
		})
	})
}
