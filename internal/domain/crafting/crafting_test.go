package crafting_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/tapforge/internal/domain/crafting"
	"github.com/okian/tapforge/internal/domain/inventory"
	"github.com/okian/tapforge/internal/domain/loot"
	"github.com/okian/tapforge/internal/domain/model"
	"github.com/okian/tapforge/internal/domain/rank"
	. "github.com/smartystreets/goconvey/convey"
)

func seed(inv *inventory.Inventory, id string, r loot.Rarity) {
	inv.Append(model.InventoryEntry{ID: id, PlayerID: "p1", LootName: id, Rarity: r, CollectedAt: time.Now()})
}

func kindOf(err error) error {
	var ce *crafting.Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return nil
}

func TestBook(t *testing.T) {
	Convey("Given the default recipe book", t, func() {
		book := crafting.NewBook(rank.Default().Catalog())

		Convey("Then there should be one recipe per adjacent pair", func() {
			recipes := book.Recipes()
			So(len(recipes), ShouldEqual, len(loot.AllRarities())-1)
			So(recipes[0].From, ShouldEqual, loot.Common)
			So(recipes[0].To, ShouldEqual, loot.Uncommon)
			So(recipes[0].RequiredCount, ShouldEqual, crafting.DefaultRequiredCount)
			So(recipes[0].XPReward, ShouldEqual, crafting.DefaultXPReward)
			_, ok := book.Recipe(loot.Mythic)
			So(ok, ShouldBeFalse)
		})

		Convey("Then the result template should be the first of its rarity", func() {
			So(book.ResultTemplate(loot.Uncommon).Name, ShouldEqual, "Claw Charm")
		})
	})

	Convey("Given a catalog without a target rarity", t, func() {
		book := crafting.NewBook(loot.NewCatalog(loot.Template{Name: "Pebble", IconRef: "p", Rarity: loot.Common}),
			crafting.WithRequiredCount(2), crafting.WithXPReward(7))

		Convey("Then a relic should be synthesized", func() {
			tpl := book.ResultTemplate(loot.LegendaryPlus)
			So(tpl.Name, ShouldEqual, "Legendary+ Relic")
			So(tpl.IconRef, ShouldEqual, "relic-legendary-plus")
			So(tpl.Rarity, ShouldEqual, loot.LegendaryPlus)
		})

		Convey("Then options should shape every recipe", func() {
			rec, ok := book.Recipe(loot.Rare)
			So(ok, ShouldBeTrue)
			So(rec.RequiredCount, ShouldEqual, 2)
			So(rec.XPReward, ShouldEqual, 7)
		})
	})
}

func TestCheck(t *testing.T) {
	Convey("Given an inventory of commons, a rare and a mythic", t, func() {
		book := crafting.NewBook(rank.Default().Catalog())
		inv := inventory.New()
		seed(inv, "c1", loot.Common)
		seed(inv, "c2", loot.Common)
		seed(inv, "c3", loot.Common)
		seed(inv, "c4", loot.Common)
		seed(inv, "r1", loot.Rare)
		seed(inv, "m1", loot.Mythic)
		seed(inv, "m2", loot.Mythic)
		seed(inv, "m3", loot.Mythic)

		Convey("When three commons are selected", func() {
			plan, err := book.Check([]string{"c1", "c2", "c3"}, true, inv)

			Convey("Then the plan should produce the first uncommon", func() {
				So(err, ShouldBeNil)
				So(plan.Recipe.To, ShouldEqual, loot.Uncommon)
				So(plan.Result.Rarity, ShouldEqual, loot.Uncommon)
				So(plan.InputIDs(), ShouldResemble, []string{"c1", "c2", "c3"})
			})
		})

		Convey("When two commons and a rare are selected", func() {
			_, err := book.Check([]string{"c1", "c2", "r1"}, true, inv)

			Convey("Then the selection should be rejected as mixed", func() {
				So(errors.Is(err, crafting.ErrMixedRarity), ShouldBeTrue)
				So(crafting.Code(err), ShouldEqual, "mixed_rarity")
			})
		})

		Convey("When nothing is selected", func() {
			_, err := book.Check(nil, false, inv)

			Convey("Then emptiness should be reported before identity", func() {
				So(kindOf(err), ShouldEqual, crafting.ErrEmptySelection)
			})
		})

		Convey("When an anonymous caller selects items", func() {
			_, err := book.Check([]string{"c1", "c2", "c3"}, false, inv)
			So(errors.Is(err, crafting.ErrUnauthenticated), ShouldBeTrue)
		})

		Convey("When an unknown id is selected", func() {
			_, err := book.Check([]string{"c1", "ghost", "r1"}, true, inv)

			Convey("Then ownership should be reported before rarity", func() {
				So(errors.Is(err, crafting.ErrNotOwned), ShouldBeTrue)
				var ce *crafting.Error
				So(errors.As(err, &ce), ShouldBeTrue)
				So(ce.IDs, ShouldResemble, []string{"ghost"})
			})
		})

		Convey("When only the inventory-free checks run", func() {
			So(kindOf(crafting.CheckSelection([]string{"", ""}, true)), ShouldEqual, crafting.ErrEmptySelection)
			So(kindOf(crafting.CheckSelection([]string{"ghost"}, false)), ShouldEqual, crafting.ErrUnauthenticated)
			So(crafting.CheckSelection([]string{"ghost"}, true), ShouldBeNil)
		})

		Convey("When mythics are selected", func() {
			_, err := book.Check([]string{"m1", "m2", "m3"}, true, inv)
			So(errors.Is(err, crafting.ErrNoRecipe), ShouldBeTrue)
		})

		Convey("When duplicated ids are selected", func() {
			_, err := book.Check([]string{"c1", "c1", "c2", "c2", "c1"}, true, inv)

			Convey("Then they should collapse and the count should be wrong", func() {
				var ce *crafting.Error
				So(errors.As(err, &ce), ShouldBeTrue)
				So(ce.Kind, ShouldEqual, crafting.ErrWrongCount)
				So(ce.Got, ShouldEqual, 2)
				So(ce.Want, ShouldEqual, 3)
				So(ce.Rarity, ShouldEqual, loot.Common)
			})
		})

		Convey("When four commons are selected", func() {
			_, err := book.Check([]string{"c1", "c2", "c3", "c4"}, true, inv)
			So(crafting.Code(err), ShouldEqual, "wrong_count")
		})

		Convey("Then a failed check should leave the inventory untouched", func() {
			_, _ = book.Check([]string{"c1", "c2", "r1"}, true, inv)
			So(inv.Len(), ShouldEqual, 8)
		})
	})
}

func TestUniqueIDs(t *testing.T) {
	Convey("UniqueIDs should keep first occurrences and drop blanks", t, func() {
		So(crafting.UniqueIDs([]string{"a", "", "b", "a"}), ShouldResemble, []string{"a", "b"})
		So(crafting.Code(errors.New("other")), ShouldEqual, "")
	})
}
