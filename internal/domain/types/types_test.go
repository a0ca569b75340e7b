package types_test

import (
	"testing"

	"github.com/okian/tapforge/internal/domain/model"
	"github.com/okian/tapforge/internal/domain/rank"
	"github.com/okian/tapforge/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLeaderboard(t *testing.T) {
	Convey("Given stored progress records", t, func() {
		table := rank.Default()
		records := []model.PlayerProgress{
			{PlayerID: "bob", XP: 600, RankIndex: 1},
			{PlayerID: "amy", XP: 600, RankIndex: 1},
			{PlayerID: "cat", XP: 90_000, RankIndex: 9},
			{PlayerID: "dan", XP: 0, RankIndex: 0},
		}

		Convey("When the leaderboard is built", func() {
			board := types.Leaderboard(records, table)

			Convey("Then entries should be ordered by xp with id tie-break", func() {
				So(len(board), ShouldEqual, 4)
				So(board[0].PlayerID, ShouldEqual, "cat")
				So(board[0].RankName, ShouldEqual, "Leviathan")
				So(board[1].PlayerID, ShouldEqual, "amy")
				So(board[2].PlayerID, ShouldEqual, "bob")
				So(board[3].Rank, ShouldEqual, 4)
				So(board[3].RankName, ShouldEqual, "Plankton")
			})

			Convey("Then the input should not be reordered", func() {
				So(records[0].PlayerID, ShouldEqual, "bob")
			})
		})

		Convey("When a record carries an out-of-table rank index", func() {
			board := types.Leaderboard([]model.PlayerProgress{{PlayerID: "x", XP: 1, RankIndex: 42}}, table)

			Convey("Then the name should be clamped to the last rank", func() {
				So(board[0].RankName, ShouldEqual, table.Last().DisplayName)
				So(board[0].RankIndex, ShouldEqual, 42)
			})
		})

		Convey("When there are no records", func() {
			So(types.Leaderboard(nil, table), ShouldBeEmpty)
		})
	})
}
