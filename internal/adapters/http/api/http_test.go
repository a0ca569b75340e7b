package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/tapforge/internal/adapters/http/api"
	"github.com/okian/tapforge/internal/adapters/repository"
	"github.com/okian/tapforge/internal/domain/crafting"
	"github.com/okian/tapforge/internal/domain/drops"
	"github.com/okian/tapforge/internal/domain/loot"
	"github.com/okian/tapforge/internal/domain/model"
	"github.com/okian/tapforge/internal/domain/progress"
	"github.com/okian/tapforge/internal/domain/rank"
	"github.com/okian/tapforge/internal/game"
	"github.com/okian/tapforge/internal/syncer"
	"github.com/okian/tapforge/pkg/auth"
	. "github.com/smartystreets/goconvey/convey"
)

// stepClock only moves when a test advances it.
type stepClock struct {
	mu sync.Mutex
	at time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *stepClock) advance(d time.Duration) {
	c.mu.Lock()
	c.at = c.at.Add(d)
	c.mu.Unlock()
}

type harness struct {
	mux    *http.ServeMux
	store  *repository.MemoryStore
	tokens *auth.Manager
	table  *rank.Table
	clock  *stepClock
}

func newHarness(opts ...api.Option) harness {
	table := rank.Default()
	book := crafting.NewBook(table.Catalog())
	store := repository.NewMemoryStore(table, book)
	tokens, err := auth.NewManager("test-secret")
	if err != nil {
		panic(err)
	}
	clock := &stepClock{at: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	reg := game.NewRegistry(func(id game.Identity) *game.Session {
		return game.NewSession(id.PlayerID, store, table, book,
			game.WithClock(clock.Now),
			game.WithProgressOptions(progress.WithDeltaFunc(func() int64 { return 250 })),
			game.WithDropOptions(drops.WithBonusProbability(0)),
			game.WithSyncOptions(syncer.WithSaveDelay(time.Hour)))
	}, 16, time.Hour)

	srv := api.NewServer(api.Dependencies{
		Sessions:    reg,
		Leaderboard: store,
		Stats:       api.StatsFunc(func() map[string]interface{} { return map[string]interface{}{"sessions": 0} }),
		Table:       table,
		Recipes:     book,
		Tokens:      tokens,
	}, opts...)
	mux := http.NewServeMux()
	srv.Register(mux)
	return harness{mux: mux, store: store, tokens: tokens, table: table, clock: clock}
}

func (h harness) do(method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.mux.ServeHTTP(w, req)
	return w
}

func (h harness) bearer(player string) map[string]string {
	tok, err := h.tokens.Mint(player)
	if err != nil {
		panic(err)
	}
	return map[string]string{"Authorization": auth.BearerPrefix + tok}
}

func decode(w *httptest.ResponseRecorder, v any) {
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		panic(err)
	}
}

type tapBody struct {
	Accepted  bool   `json:"accepted"`
	Duplicate bool   `json:"duplicate"`
	XP        int64  `json:"xp"`
	RankIndex int    `json:"rank_index"`
	RankName  string `json:"rank_name"`
	RankUps   []struct {
		Rank string `json:"rank"`
	} `json:"rank_ups"`
	Drops []model.InventoryEntry `json:"drops"`
	Sync  struct {
		Degraded bool `json:"degraded"`
	} `json:"sync"`
}

func TestTaps(t *testing.T) {
	Convey("Given the API over a memory store", t, func() {
		h := newHarness()

		Convey("When an anonymous client taps without a session id", func() {
			w := h.do(http.MethodPost, "/taps", `{"ts_ms": 1000}`, nil)

			Convey("Then a session id is issued and the session is degraded", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get(api.SessionHeader), ShouldNotBeEmpty)
				var body tapBody
				decode(w, &body)
				So(body.Accepted, ShouldBeTrue)
				So(body.XP, ShouldEqual, 250)
				So(body.Sync.Degraded, ShouldBeTrue)
				So(len(body.Drops), ShouldEqual, 0)
			})
		})

		Convey("When an anonymous client reuses its session id", func() {
			hdr := map[string]string{api.SessionHeader: "anon-1"}
			h.do(http.MethodPost, "/taps", `{"ts_ms": 0}`, hdr)
			h.clock.advance(time.Second)
			w := h.do(http.MethodPost, "/taps", `{"ts_ms": 1000}`, hdr)

			Convey("Then both taps land in one session", func() {
				var body tapBody
				decode(w, &body)
				So(body.XP, ShouldEqual, 500)
				So(body.RankName, ShouldEqual, "Shrimp")
				So(w.Header().Get(api.SessionHeader), ShouldEqual, "anon-1")
			})
		})

		Convey("When an authenticated player crosses a rank", func() {
			hdr := h.bearer("alice")
			h.do(http.MethodPost, "/taps", `{"ts_ms": 0}`, hdr)
			h.clock.advance(time.Second)
			w := h.do(http.MethodPost, "/taps", `{"ts_ms": 500, "tap_id": "t-2"}`, hdr)

			Convey("Then the rank-up and its drop are reported", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body tapBody
				decode(w, &body)
				So(body.RankIndex, ShouldEqual, 1)
				So(len(body.RankUps), ShouldEqual, 1)
				So(body.RankUps[0].Rank, ShouldEqual, "Shrimp")
				So(len(body.Drops), ShouldEqual, 1)
				So(body.Drops[0].LootName, ShouldEqual, "Tiny Shell")
				So(body.Sync.Degraded, ShouldBeFalse)
			})

			Convey("Then replaying the tap id is acknowledged as a duplicate", func() {
				w := h.do(http.MethodPost, "/taps", `{"ts_ms": 9000, "tap_id": "t-2"}`, hdr)
				var body tapBody
				decode(w, &body)
				So(body.Duplicate, ShouldBeTrue)
				So(body.XP, ShouldEqual, 500)
			})

			Convey("Then the inventory lists the stored drop", func() {
				w := h.do(http.MethodGet, "/inventory", "", hdr)
				So(w.Code, ShouldEqual, http.StatusOK)
				var entries []model.InventoryEntry
				decode(w, &entries)
				So(len(entries), ShouldEqual, 1)
			})
		})

		Convey("When a client sends back-to-back taps with spaced timestamps", func() {
			hdr := h.bearer("mallory")
			accepted := 0
			for i := 0; i < 20; i++ {
				body := fmt.Sprintf(`{"ts_ms": %d}`, 1_000+i*100)
				var res tapBody
				decode(h.do(http.MethodPost, "/taps", body, hdr), &res)
				if res.Accepted {
					accepted++
				}
			}

			Convey("Then the server clock throttles all but the first", func() {
				So(accepted, ShouldEqual, 1)
			})
		})

		Convey("When a client reports a timestamp a year ahead", func() {
			hdr := h.bearer("skewed")
			future := h.clock.Now().AddDate(1, 0, 0).UnixMilli()
			h.do(http.MethodPost, "/taps", fmt.Sprintf(`{"ts_ms": %d}`, future), hdr)
			h.clock.advance(150 * time.Millisecond)
			w := h.do(http.MethodPost, "/taps", "", hdr)

			Convey("Then the next paced tap still registers", func() {
				var res tapBody
				decode(w, &res)
				So(res.Accepted, ShouldBeTrue)
				So(res.XP, ShouldEqual, 500)
			})
		})

		Convey("When the bearer token is invalid", func() {
			w := h.do(http.MethodPost, "/taps", `{}`, map[string]string{"Authorization": "Bearer junk"})

			Convey("Then the request is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
			})
		})

		Convey("When the body is malformed", func() {
			w := h.do(http.MethodPost, "/taps", `{"ts_ms": "soon"}`, nil)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the method is wrong", func() {
			w := h.do(http.MethodGet, "/taps", "", nil)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestCraftAndRewards(t *testing.T) {
	Convey("Given a player owning three Common entries", t, func() {
		h := newHarness()
		ctx := context.Background()
		tpl := loot.Template{Name: "Drift Speck", IconRef: "loot/drift-speck.png", Rarity: loot.Common}
		var ids []string
		for i := 0; i < 3; i++ {
			e, err := h.store.InsertDrop(ctx, model.NewDrop("bob", tpl, "Plankton", time.Now().Add(time.Duration(i)*time.Millisecond)))
			So(err, ShouldBeNil)
			ids = append(ids, e.ID)
		}
		hdr := h.bearer("bob")

		Convey("When they are crafted", func() {
			body, _ := json.Marshal(map[string][]string{"entry_ids": ids})
			w := h.do(http.MethodPost, "/craft", string(body), hdr)

			Convey("Then one Uncommon replaces them", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var res struct {
					Result    model.InventoryEntry `json:"result"`
					XPAwarded int64                `json:"xp_awarded"`
				}
				decode(w, &res)
				So(res.Result.Rarity, ShouldEqual, loot.Uncommon)
				So(res.XPAwarded, ShouldEqual, crafting.DefaultXPReward)
				listed, _ := h.store.ListInventory(ctx, "bob", 10)
				So(len(listed), ShouldEqual, 1)
			})
		})

		Convey("When only two are selected", func() {
			body, _ := json.Marshal(map[string][]string{"entry_ids": ids[:2]})
			w := h.do(http.MethodPost, "/craft", string(body), hdr)

			Convey("Then a typed wrong_count error is returned", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				var e struct {
					Code string `json:"code"`
					Got  int    `json:"got"`
					Want int    `json:"want"`
				}
				decode(w, &e)
				So(e.Code, ShouldEqual, "wrong_count")
				So(e.Got, ShouldEqual, 2)
				So(e.Want, ShouldEqual, 3)
			})
		})

		Convey("When an anonymous client crafts", func() {
			w := h.do(http.MethodPost, "/craft", `{"entry_ids": ["a"]}`, nil)

			Convey("Then it is told to authenticate", func() {
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
			})
		})

		Convey("When the selection is empty", func() {
			w := h.do(http.MethodPost, "/craft", `{"entry_ids": []}`, hdr)
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
		})

		Convey("When a reward is granted", func() {
			w := h.do(http.MethodPost, "/rewards", `{"amount": 600, "reason": "daily"}`, hdr)

			Convey("Then the stored xp and rank follow", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				stored, err := h.store.GetProgress(ctx, "bob")
				So(err, ShouldBeNil)
				So(stored.XP, ShouldEqual, 600)
				So(stored.RankIndex, ShouldEqual, 1)
			})
		})

		Convey("When a reward amount is out of range", func() {
			w := h.do(http.MethodPost, "/rewards", `{"amount": -5}`, hdr)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When an anonymous client asks for a reward", func() {
			w := h.do(http.MethodPost, "/rewards", `{"amount": 5}`, nil)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})
	})
}

func TestReadEndpoints(t *testing.T) {
	Convey("Given stored progress for three players", t, func() {
		h := newHarness(api.WithMaxLeaderboardLimit(5))
		ctx := context.Background()
		for id, xp := range map[string]int64{"a": 100, "b": 2000, "c": 2000} {
			_, err := h.store.IncrementXP(ctx, id, xp)
			So(err, ShouldBeNil)
		}

		Convey("When the leaderboard is read", func() {
			w := h.do(http.MethodGet, "/leaderboard?limit=3", "", nil)

			Convey("Then it is ordered by xp then player id", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var entries []struct {
					Rank     int    `json:"rank"`
					PlayerID string `json:"player_id"`
					RankName string `json:"rank_name"`
				}
				decode(w, &entries)
				So(len(entries), ShouldEqual, 3)
				So(entries[0].PlayerID, ShouldEqual, "b")
				So(entries[1].PlayerID, ShouldEqual, "c")
				So(entries[2].PlayerID, ShouldEqual, "a")
				So(entries[0].RankName, ShouldEqual, "Crab")
			})
		})

		Convey("When the leaderboard limit is invalid or too large", func() {
			So(h.do(http.MethodGet, "/leaderboard?limit=0", "", nil).Code, ShouldEqual, http.StatusBadRequest)
			So(h.do(http.MethodGet, "/leaderboard?limit=x", "", nil).Code, ShouldEqual, http.StatusBadRequest)
			So(h.do(http.MethodGet, "/leaderboard?limit=6", "", nil).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the rank table is read", func() {
			w := h.do(http.MethodGet, "/ranks", "", nil)
			var body struct {
				Ranks []rank.Definition `json:"ranks"`
			}
			decode(w, &body)
			So(len(body.Ranks), ShouldEqual, h.table.Len())
			So(body.Ranks[1].XPThreshold, ShouldEqual, 500)
		})

		Convey("When the recipe book is read", func() {
			w := h.do(http.MethodGet, "/recipes", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			var recipes []struct {
				From          string `json:"from"`
				To            string `json:"to"`
				RequiredCount int    `json:"required_count"`
				Result        struct {
					Name string `json:"name"`
				} `json:"result"`
			}
			decode(w, &recipes)
			So(len(recipes), ShouldEqual, len(loot.AllRarities())-1)
			So(recipes[0].From, ShouldEqual, "Common")
			So(recipes[0].To, ShouldEqual, "Uncommon")
			So(recipes[0].RequiredCount, ShouldEqual, crafting.DefaultRequiredCount)
			So(recipes[0].Result.Name, ShouldEqual, "Claw Charm")
		})

		Convey("When a player reads its progress", func() {
			w := h.do(http.MethodGet, "/progress", "", h.bearer("b"))
			var body struct {
				XP       int64  `json:"xp"`
				RankName string `json:"rank_name"`
				Version  int64  `json:"version"`
			}
			decode(w, &body)
			So(body.XP, ShouldEqual, 2000)
			So(body.RankName, ShouldEqual, "Crab")
			So(body.Version, ShouldEqual, 1)
		})

		Convey("When health and stats are requested", func() {
			So(h.do(http.MethodGet, "/healthz", "", nil).Code, ShouldEqual, http.StatusOK)
			w := h.do(http.MethodGet, "/stats", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "sessions")
		})
	})
}

func TestIngressThrottle(t *testing.T) {
	Convey("Given a server allowing one request per identity", t, func() {
		h := newHarness(api.WithIngressRate(0.001, 1))
		hdr := map[string]string{api.SessionHeader: "burst"}

		Convey("When the same identity calls twice", func() {
			first := h.do(http.MethodGet, "/progress", "", hdr)
			second := h.do(http.MethodGet, "/progress", "", hdr)
			other := h.do(http.MethodGet, "/progress", "", map[string]string{api.SessionHeader: "calm"})

			Convey("Then only the second call is throttled", func() {
				So(first.Code, ShouldEqual, http.StatusOK)
				So(second.Code, ShouldEqual, http.StatusTooManyRequests)
				So(other.Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}
