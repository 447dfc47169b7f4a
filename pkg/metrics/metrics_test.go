package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry and custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("gw"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then metrics are registered under the given names", func() {
				So(manager, ShouldNotBeNil)
				manager.cacheLookups.WithLabelValues("key", "hit").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_gw_cache_lookups_total"], ShouldBeTrue)
			})
		})

		Convey("When two managers share one registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording cache lookups", func() {
			before := testutil.ToFloat64(globalManager.cacheLookups.WithLabelValues("set", "miss"))
			RecordCacheLookup("set", false)
			RecordCacheLookup("set", false)

			Convey("Then the miss counter grows", func() {
				So(testutil.ToFloat64(globalManager.cacheLookups.WithLabelValues("set", "miss")), ShouldEqual, before+2)
			})
		})

		Convey("When readiness flips", func() {
			UpdateLeaderboardReady(true)

			Convey("Then the gauge reads 1", func() {
				So(testutil.ToFloat64(globalManager.leaderboardReady), ShouldEqual, 1)
			})
		})

		Convey("When recording queue and pool metrics", func() {
			UpdateQueueCapacity("crawl", 10)
			UpdateQueueSize("crawl", 3)
			UpdateWorkerCount("cache", 20)

			Convey("Then gauges hold the last value", func() {
				So(testutil.ToFloat64(globalManager.queueCapacity.WithLabelValues("crawl")), ShouldEqual, 10)
				So(testutil.ToFloat64(globalManager.queueSize.WithLabelValues("crawl")), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.workerCount.WithLabelValues("cache")), ShouldEqual, 20)
			})
		})

		Convey("When recording the rest", func() {
			Convey("Then nothing panics", func() {
				So(func() {
					RecordCacheFill("key", true, 512)
					RecordCacheFill("set", false, 0)
					RecordUpstreamRequest("2xx", 12)
					RecordUpstreamError("status")
					RecordRefreshCycle("timer", 40)
					RecordRefreshEndpointFailure("/orgs/x")
					RecordRebuild("replaced", 3)
					RecordRecordSkipped("stars")
					UpdateViewEntries("stars", 10)
					RecordCrawlEnqueued()
					RecordCrawlDropped("queue_full")
					RecordCrawlPage(true)
					RecordStoreLatency("redis", "get", 1)
					RecordStoreError("redis", "get")
					UpdateStoreRecords("memory", "documents", 2)
					RecordQueueEnqueue("router")
					RecordQueueRejected("router", "full")
					RecordWorkerProcessingLatency("cache", 2)
					RecordWorkerError("cache")
					UpdateWorkerMessagesPerSecond("cache", 1.5)
					RecordHTTPRequest("rank", "GET", "200")
					RecordHTTPRequestDuration("rank", "GET", "200", 5)
					RecordErrorByComponent("cache", "fill")
					UpdateSystemMemoryUsage(1024)
					UpdateSystemGoroutineCount(10)
					RecordSystemGCPauseTime(0.5)
				}, ShouldNotPanic)
			})
		})

		Convey("When reading the registry", func() {
			Convey("Then it is the custom registry", func() {
				So(GetRegistry(), ShouldEqual, customRegistry)
			})
		})
	})
}
