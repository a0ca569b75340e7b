package tapsim_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	service "github.com/okian/tapforge/internal/app"
	"github.com/okian/tapforge/internal/config"
	"github.com/okian/tapforge/internal/tapsim"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		cfg := config.New()
		cfg.JWTSecret = "sim-secret"
		cfg.SaveDebounceMS = 10
		cfg.SaveWorkers = 2
		cfg.XPDeltaMin, cfg.XPDeltaMax = 40, 60
		svc := service.New(cfg)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		srv := httptest.NewServer(svc.Handler())
		defer srv.Close()

		simCfg := &tapsim.Config{
			BaseURL:       srv.URL,
			Players:       4,
			TapsPerPlayer: 15,
			Workers:       4,
			TapGap:        tapsim.DefaultTapGap,
			Secret:        "sim-secret",
			Issuer:        cfg.JWTIssuer,
			TopN:          10,
			FlushWait:     200 * time.Millisecond,
			Timeout:       5 * time.Second,
		}

		Convey("When the simulation runs", func() {
			stats, err := tapsim.Run(ctx, simCfg)

			Convey("Then every tap is accepted and checked", func() {
				So(err, ShouldBeNil)
				So(stats.TapsSent, ShouldEqual, 60)
				So(stats.TapsAccepted, ShouldEqual, 60)
				So(stats.Violations, ShouldEqual, 0)
				// 15 taps of at least 40 xp pass the second rank at 500.
				So(stats.RankUps, ShouldBeGreaterThanOrEqualTo, 4)
				So(stats.LeaderboardLen, ShouldEqual, 4)
			})
		})

		Convey("When the secret is wrong", func() {
			simCfg.Secret = "other"
			stats, err := tapsim.Run(ctx, simCfg)

			Convey("Then every tap fails", func() {
				So(err, ShouldBeNil)
				So(stats.TapsFailed, ShouldEqual, 60)
				So(stats.TapsAccepted, ShouldEqual, 0)
			})
		})

		Convey("When the service is unreachable", func() {
			simCfg.BaseURL = "http://127.0.0.1:1"
			_, err := tapsim.Run(ctx, simCfg)

			Convey("Then the health check fails", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, tapsim.ErrViolation), ShouldBeFalse)
			})
		})
	})
}
