package progress_test

import (
	"testing"

	"github.com/okian/tapforge/internal/domain/loot"
	"github.com/okian/tapforge/internal/domain/model"
	"github.com/okian/tapforge/internal/domain/progress"
	"github.com/okian/tapforge/internal/domain/rank"
	. "github.com/smartystreets/goconvey/convey"
)

func fixed(n int64) progress.Option {
	return progress.WithDeltaFunc(func() int64 { return n })
}

func twoRanks() *rank.Table {
	t, err := rank.NewTable([]rank.Definition{
		{Index: 0, DisplayName: "Zero", XPThreshold: 0, GuaranteedDrop: loot.Template{Name: "z", IconRef: "z", Rarity: loot.Common}},
		{Index: 1, DisplayName: "One", XPThreshold: 500, GuaranteedDrop: loot.Template{Name: "o", IconRef: "o", Rarity: loot.Rare}},
		{Index: 2, DisplayName: "Two", XPThreshold: 5000, GuaranteedDrop: loot.Template{Name: "t", IconRef: "t", Rarity: loot.Epic}},
	})
	if err != nil {
		panic(err)
	}
	return t
}

func TestAccumulatorTap(t *testing.T) {
	Convey("Given an accumulator at xp 0 with 13 xp per tap", t, func() {
		table := twoRanks()
		acc := progress.NewAccumulator(table, fixed(13))

		Convey("When 40 taps are applied", func() {
			var events []progress.RankUp
			firedAt := int64(-1)
			for i := 0; i < 40; i++ {
				out := acc.Tap()
				if len(out.RankUps) > 0 && firedAt < 0 {
					firedAt = out.Progress.XP
				}
				events = append(events, out.RankUps...)
				So(out.Progress.RankIndex, ShouldEqual, table.IndexForXP(out.Progress.XP))
			}

			Convey("Then exactly one rank-up should fire when xp first reaches 500", func() {
				p := acc.Progress()
				So(p.XP, ShouldEqual, 520)
				So(p.ClickCount, ShouldEqual, 40)
				So(len(events), ShouldEqual, 1)
				So(events[0].From, ShouldEqual, 0)
				So(events[0].To, ShouldEqual, 1)
				So(events[0].Rank.GuaranteedDrop.Name, ShouldEqual, "o")
				So(firedAt, ShouldEqual, 507)
				So(p.RankIndex, ShouldEqual, 1)
			})
		})
	})

	Convey("Given the default random range", t, func() {
		acc := progress.NewAccumulator(rank.Default(), progress.WithSeed(7))

		Convey("Then every delta should fall in 10..14", func() {
			for i := 0; i < 500; i++ {
				out := acc.Tap()
				So(out.Delta, ShouldBeBetweenOrEqual, 10, 14)
			}
		})

		Convey("Then the rank should never decrease and always match xp", func() {
			prev := 0
			for i := 0; i < 5000; i++ {
				p := acc.Tap().Progress
				So(p.RankIndex, ShouldBeGreaterThanOrEqualTo, prev)
				So(p.RankIndex, ShouldEqual, acc.Table().IndexForXP(p.XP))
				prev = p.RankIndex
			}
		})
	})
}

func TestAccumulatorMultiStep(t *testing.T) {
	Convey("Given thresholds tighter than one delta", t, func() {
		table, err := rank.NewTable([]rank.Definition{
			{Index: 0, DisplayName: "A", XPThreshold: 0, GuaranteedDrop: loot.Template{Name: "a", IconRef: "a", Rarity: loot.Common}},
			{Index: 1, DisplayName: "B", XPThreshold: 5, GuaranteedDrop: loot.Template{Name: "b", IconRef: "b", Rarity: loot.Common}},
			{Index: 2, DisplayName: "C", XPThreshold: 8, GuaranteedDrop: loot.Template{Name: "c", IconRef: "c", Rarity: loot.Common}},
			{Index: 3, DisplayName: "D", XPThreshold: 100, GuaranteedDrop: loot.Template{Name: "d", IconRef: "d", Rarity: loot.Common}},
		})
		So(err, ShouldBeNil)
		acc := progress.NewAccumulator(table, fixed(12))

		Convey("When a single tap crosses two thresholds", func() {
			out := acc.Tap()

			Convey("Then both rank-ups should be emitted in order", func() {
				So(len(out.RankUps), ShouldEqual, 2)
				So(out.RankUps[0].Rank.DisplayName, ShouldEqual, "B")
				So(out.RankUps[1].Rank.DisplayName, ShouldEqual, "C")
				So(out.Progress.RankIndex, ShouldEqual, 2)
			})
		})
	})
}

func TestAccumulatorMaxRank(t *testing.T) {
	Convey("Given a player at max rank", t, func() {
		table := twoRanks()
		acc := progress.NewAccumulator(table, fixed(14))
		acc.Restore(model.PlayerProgress{XP: 5000})
		So(acc.AtMaxRank(), ShouldBeTrue)

		Convey("When tapping further", func() {
			out := acc.Tap()

			Convey("Then xp should keep accumulating without rank-ups", func() {
				So(out.RankUps, ShouldBeEmpty)
				So(out.Progress.XP, ShouldEqual, 5014)
				So(out.Progress.RankIndex, ShouldEqual, 2)
			})
		})

		Convey("When xp passes the first color sub-threshold", func() {
			acc.Reward(10_000)

			Convey("Then the color tier should advance", func() {
				So(acc.ColorTier(), ShouldEqual, 1)
			})
		})
	})
}

func TestAccumulatorReward(t *testing.T) {
	Convey("Given a fresh accumulator", t, func() {
		acc := progress.NewAccumulator(twoRanks(), fixed(10))

		Convey("When a reward crosses a threshold", func() {
			out := acc.Reward(600)

			Convey("Then the rank should advance without counting a click", func() {
				So(len(out.RankUps), ShouldEqual, 1)
				So(out.Progress.ClickCount, ShouldEqual, 0)
				So(out.Progress.RankIndex, ShouldEqual, 1)
			})
		})

		Convey("When a negative reward is applied", func() {
			Convey("Then it should panic without changing state", func() {
				So(func() { acc.Reward(-1) }, ShouldPanic)
				So(acc.Progress().XP, ShouldEqual, 0)
			})
		})
	})
}

func TestAccumulatorRestore(t *testing.T) {
	Convey("Given a stored record whose rank disagrees with its xp", t, func() {
		acc := progress.NewAccumulator(twoRanks())
		acc.Restore(model.PlayerProgress{PlayerID: "p1", XP: 700, ClickCount: 50, RankIndex: 0, Version: 3})

		Convey("Then the rank should be derived from xp", func() {
			p := acc.Progress()
			So(p.RankIndex, ShouldEqual, 1)
			So(p.Version, ShouldEqual, 3)
			So(acc.Rank().DisplayName, ShouldEqual, "One")
		})
	})
}
