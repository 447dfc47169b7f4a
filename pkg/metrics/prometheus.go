// Package metrics provides Prometheus metrics for the cachegate service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the gateway.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Cache
	cacheLookups   *prometheus.CounterVec
	cacheFills     *prometheus.CounterVec
	cacheFillBytes prometheus.Histogram

	// Upstream
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  prometheus.Histogram
	upstreamErrors   *prometheus.CounterVec

	// Refresh cycles
	refreshCycles           *prometheus.CounterVec
	refreshDuration         prometheus.Histogram
	refreshEndpointFailures *prometheus.CounterVec

	// Leaderboard
	rebuilds         *prometheus.CounterVec
	rebuildDuration  prometheus.Histogram
	recordsSkipped   *prometheus.CounterVec
	leaderboardReady prometheus.Gauge
	viewEntries      *prometheus.GaugeVec

	// Crawl
	crawlEnqueued prometheus.Counter
	crawlDropped  *prometheus.CounterVec
	crawlPages    *prometheus.CounterVec

	// Store
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec
	storeRecords *prometheus.GaugeVec

	// Queues and pools
	queueSize        *prometheus.GaugeVec
	queueCapacity    *prometheus.GaugeVec
	queueEnqueued    *prometheus.CounterVec
	queueRejected    *prometheus.CounterVec
	workerCount      *prometheus.GaugeVec
	workerLatency    *prometheus.HistogramVec
	workerErrors     *prometheus.CounterVec
	workerThroughput *prometheus.GaugeVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "cachegate",
		subsystem:        "gateway",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.cacheLookups = m.counterVec("cache_lookups_total", "Cache lookups by operation and result (hit/miss)", "op", "result")
	m.cacheFills = m.counterVec("cache_fills_total", "Cache fills from upstream by kind and result", "kind", "result")
	m.cacheFillBytes = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "cache_fill_bytes",
		Help:    "Size of upstream documents written into the cache",
		Buckets: prometheus.ExponentialBuckets(256, 4, 8),
	})

	m.upstreamRequests = m.counterVec("upstream_requests_total", "Upstream requests by status class", "status_class")
	m.upstreamLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "upstream_request_duration_milliseconds",
		Help:    "Upstream request latency in milliseconds",
		Buckets: m.histogramBuckets,
	})
	m.upstreamErrors = m.counterVec("upstream_errors_total", "Upstream failures by kind", "kind")

	m.refreshCycles = m.counterVec("refresh_cycles_total", "Refresh cycles by trigger", "trigger")
	m.refreshDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "refresh_duration_milliseconds",
		Help:    "Duration of a full refresh cycle in milliseconds",
		Buckets: m.histogramBuckets,
	})
	m.refreshEndpointFailures = m.counterVec("refresh_endpoint_failures_total", "Endpoints skipped during refresh", "path")

	m.rebuilds = m.counterVec("leaderboard_rebuilds_total", "Leaderboard rebuild attempts by outcome", "outcome")
	m.rebuildDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "leaderboard_rebuild_duration_milliseconds",
		Help:    "Leaderboard rebuild duration in milliseconds",
		Buckets: m.histogramBuckets,
	})
	m.recordsSkipped = m.counterVec("leaderboard_records_skipped_total", "Malformed records skipped while scoring", "view")
	m.leaderboardReady = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "leaderboard_ready",
		Help: "1 once a leaderboard rebuild attempt has completed",
	})
	m.viewEntries = m.gaugeVec("leaderboard_view_entries", "Entries in each view after the last rebuild", "view")

	m.crawlEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "crawl_enqueued_total",
		Help: "Continuation pages accepted by the crawler",
	})
	m.crawlDropped = m.counterVec("crawl_dropped_total", "Continuation pages dropped by reason", "reason")
	m.crawlPages = m.counterVec("crawl_pages_total", "Crawled pages by result", "result")

	m.storeLatency = m.histogramVec("store_operation_duration_milliseconds", "Store round-trip latency", "backend", "op")
	m.storeErrors = m.counterVec("store_errors_total", "Store failures", "backend", "op")
	m.storeRecords = m.gaugeVec("store_records", "Records held by the store", "backend", "kind")

	m.queueSize = m.gaugeVec("queue_size", "Current queue length", "queue")
	m.queueCapacity = m.gaugeVec("queue_capacity", "Queue capacity", "queue")
	m.queueEnqueued = m.counterVec("queue_enqueued_total", "Messages accepted by a queue", "queue")
	m.queueRejected = m.counterVec("queue_rejected_total", "Messages rejected by a queue", "queue", "reason")

	m.workerCount = m.gaugeVec("worker_count", "Workers per pool", "pool")
	m.workerLatency = m.histogramVec("worker_processing_latency_milliseconds", "Message handling latency per pool", "pool")
	m.workerErrors = m.counterVec("worker_errors_total", "Handler failures per pool", "pool")
	m.workerThroughput = m.gaugeVec("worker_messages_per_second", "Handled messages per second per pool", "pool")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "type")

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "system_memory_bytes",
		Help: "Heap bytes allocated",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "system_goroutines",
		Help: "Number of goroutines",
	})
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "system_gc_pause_milliseconds",
		Help:    "Average GC pause in milliseconds",
		Buckets: m.histogramBuckets,
	})
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Cache

func RecordCacheLookup(op string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	globalManager.cacheLookups.WithLabelValues(op, result).Inc()
}

func RecordCacheFill(kind string, ok bool, bytes int) {
	result := "error"
	if ok {
		result = "ok"
		globalManager.cacheFillBytes.Observe(float64(bytes))
	}
	globalManager.cacheFills.WithLabelValues(kind, result).Inc()
}

// Upstream

func RecordUpstreamRequest(statusClass string, latencyMs float64) {
	globalManager.upstreamRequests.WithLabelValues(statusClass).Inc()
	globalManager.upstreamLatency.Observe(latencyMs)
}

func RecordUpstreamError(kind string) {
	globalManager.upstreamErrors.WithLabelValues(kind).Inc()
}

// Refresh

func RecordRefreshCycle(trigger string, latencyMs float64) {
	globalManager.refreshCycles.WithLabelValues(trigger).Inc()
	globalManager.refreshDuration.Observe(latencyMs)
}

func RecordRefreshEndpointFailure(path string) {
	globalManager.refreshEndpointFailures.WithLabelValues(path).Inc()
}

// Leaderboard

func RecordRebuild(outcome string, latencyMs float64) {
	globalManager.rebuilds.WithLabelValues(outcome).Inc()
	globalManager.rebuildDuration.Observe(latencyMs)
}

func RecordRecordSkipped(view string) {
	globalManager.recordsSkipped.WithLabelValues(view).Inc()
}

func UpdateLeaderboardReady(ready bool) {
	globalManager.leaderboardReady.Set(b2f(ready))
}

func UpdateViewEntries(view string, count int) {
	globalManager.viewEntries.WithLabelValues(view).Set(float64(count))
}

// Crawl

func RecordCrawlEnqueued() {
	globalManager.crawlEnqueued.Inc()
}

func RecordCrawlDropped(reason string) {
	globalManager.crawlDropped.WithLabelValues(reason).Inc()
}

func RecordCrawlPage(ok bool) {
	result := "error"
	if ok {
		result = "ok"
	}
	globalManager.crawlPages.WithLabelValues(result).Inc()
}

// Store

func RecordStoreLatency(backend, op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(backend, op).Observe(latencyMs)
}

func RecordStoreError(backend, op string) {
	globalManager.storeErrors.WithLabelValues(backend, op).Inc()
}

func UpdateStoreRecords(backend, kind string, count int) {
	globalManager.storeRecords.WithLabelValues(backend, kind).Set(float64(count))
}

// Queues

func UpdateQueueSize(queue string, size int) {
	globalManager.queueSize.WithLabelValues(queue).Set(float64(size))
}

func UpdateQueueCapacity(queue string, capacity int) {
	globalManager.queueCapacity.WithLabelValues(queue).Set(float64(capacity))
}

func RecordQueueEnqueue(queue string) {
	globalManager.queueEnqueued.WithLabelValues(queue).Inc()
}

func RecordQueueRejected(queue, reason string) {
	globalManager.queueRejected.WithLabelValues(queue, reason).Inc()
}

// Workers

func UpdateWorkerCount(pool string, count int) {
	globalManager.workerCount.WithLabelValues(pool).Set(float64(count))
}

func RecordWorkerProcessingLatency(pool string, latencyMs float64) {
	globalManager.workerLatency.WithLabelValues(pool).Observe(latencyMs)
}

func RecordWorkerError(pool string) {
	globalManager.workerErrors.WithLabelValues(pool).Inc()
}

func UpdateWorkerMessagesPerSecond(pool string, rate float64) {
	globalManager.workerThroughput.WithLabelValues(pool).Set(rate)
}

// HTTP

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors

func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System

func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
