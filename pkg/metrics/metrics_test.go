package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

// sample returns the value of the first series of the named family whose
// labels include want.
func sample(name string, want map[string]string) float64 {
	families, err := GetRegistry().Gather()
	if err != nil {
		return -1
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	series:
		for _, m := range f.GetMetric() {
			have := map[string]string{}
			for _, l := range m.GetLabel() {
				have[l.GetName()] = l.GetValue()
			}
			for k, v := range want {
				if have[k] != v {
					continue series
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	return 0
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			m.taps.WithLabelValues("accepted").Inc()
			m.saves.WithLabelValues("ok").Inc()

			Convey("Then metrics should be registered under the namespace", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
					So(strings.HasPrefix(f.GetName(), "test_engine_"), ShouldBeTrue)
				}
				So(names["test_engine_taps_total"], ShouldBeTrue)
				So(names["test_engine_saves_total"], ShouldBeTrue)
				So(names["test_engine_rank_ups_total"], ShouldBeTrue)
			})

			Convey("Then constant labels should be attached", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				for _, f := range families {
					if f.GetName() != "test_engine_taps_total" {
						continue
					}
					labels := f.GetMetric()[0].GetLabel()
					found := false
					for _, l := range labels {
						if l.GetName() == "env" && l.GetValue() == "test" {
							found = true
						}
					}
					So(found, ShouldBeTrue)
				}
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When gameplay metrics are recorded", func() {
			before := sample("tapforge_engine_taps_total", map[string]string{"outcome": "accepted"})
			RecordTap("accepted")
			RecordTap("accepted")
			RecordRankUp(2)
			RecordDrop("bonus")
			RecordCraft("success")
			RecordReward()
			RecordXPGranted(13)
			RecordXPGranted(-1)

			Convey("Then counters should advance", func() {
				So(sample("tapforge_engine_taps_total", map[string]string{"outcome": "accepted"})-before, ShouldEqual, 2)
			})
		})

		Convey("When sync, store and queue metrics are recorded", func() {
			So(func() {
				RecordSave("ok")
				RecordSaveCoalesced()
				RecordValidationFailure("progress")
				RecordInventoryRefresh("ok")
				RecordStoreLatency("upsert_progress", 1.5)
				RecordStoreError("insert_drop")
				UpdateQueueSize(3)
				UpdateQueueCapacity(1024)
				RecordQueueEnqueue()
				RecordQueueEnqueueError()
				UpdateWorkerCount(4)
				UpdateWorkerActiveCount(1)
				RecordWorkerProcessingLatency(2)
				RecordWorkerError()
				UpdateActiveSessions(7)
				RecordSessionEvicted()
			}, ShouldNotPanic)

			Convey("Then gauges should hold the last value", func() {
				So(sample("tapforge_engine_queue_capacity", nil), ShouldEqual, 1024)
				So(sample("tapforge_engine_active_sessions", nil), ShouldEqual, 7)
			})
		})

		Convey("When HTTP metrics are recorded", func() {
			So(func() {
				RecordHTTPRequest("/taps", "POST", "200")
				RecordHTTPRequestDuration("/taps", "POST", "200", 3.2)
				RecordIngressThrottled()
			}, ShouldNotPanic)
		})

		Convey("Then the custom registry should expose them", func() {
			So(GetRegistry(), ShouldNotBeNil)
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
		})
	})
}

func TestConfigure(t *testing.T) {
	Convey("Given metrics configured for a staging deployment", t, func() {
		Configure(WithNamespace("forge"), WithCustomLabels(map[string]string{"env": "staging"}))
		defer Configure()
		RecordTap("accepted")

		Convey("Then the global registry carries the namespace and env label", func() {
			So(sample("forge_engine_taps_total", map[string]string{"outcome": "accepted", "env": "staging"}), ShouldEqual, 1)
			So(sample("tapforge_engine_taps_total", nil), ShouldEqual, 0)
		})
	})
}

