// Package metrics provides Prometheus metrics for the tapforge engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the tapforge service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Gameplay
	taps        *prometheus.CounterVec
	rankUps     prometheus.Counter
	drops       *prometheus.CounterVec
	crafts      *prometheus.CounterVec
	rewards     prometheus.Counter
	xpGranted   prometheus.Counter
	activeSess  prometheus.Gauge
	sessEvicted prometheus.Counter

	// Persistence synchronizer
	saves              *prometheus.CounterVec
	savesCoalesced     prometheus.Counter
	validationFailures *prometheus.CounterVec
	inventoryRefreshes *prometheus.CounterVec

	// Store
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerActive            prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	ingressThrottled    prometheus.Counter

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

// Configure rebuilds the global metrics on a fresh registry. Call it once at
// startup, before any handler captures GetRegistry.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(registry)}, opts...)...)
	customRegistry = registry
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tapforge",
		subsystem:        "engine",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.taps = m.counterVec("taps_total", "Taps by outcome (accepted, rejected, duplicate)", "outcome")
	m.rankUps = m.counter("rank_ups_total", "Rank transitions")
	m.drops = m.counterVec("drops_total", "Inventory entries granted by source (guaranteed, bonus, craft)", "source")
	m.crafts = m.counterVec("crafts_total", "Craft requests by outcome", "outcome")
	m.rewards = m.counter("rewards_total", "External XP rewards applied")
	m.xpGranted = m.counter("xp_granted_total", "XP granted across all players")
	m.activeSess = m.gauge("active_sessions", "Sessions currently held by the registry")
	m.sessEvicted = m.counter("sessions_evicted_total", "Sessions flushed and evicted from the registry")

	m.saves = m.counterVec("saves_total", "Progress saves by outcome", "outcome")
	m.savesCoalesced = m.counter("saves_coalesced_total", "Save requests replaced by a later one inside the quiet window")
	m.validationFailures = m.counterVec("validation_failures_total", "Outbound records rejected by the validation gate", "kind")
	m.inventoryRefreshes = m.counterVec("inventory_refreshes_total", "Inventory listings fetched by outcome", "outcome")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Store operation latency in milliseconds", "operation")
	m.storeErrors = m.counterVec("store_errors_total", "Store operation failures", "operation")

	m.queueSize = m.gauge("queue_size", "Jobs waiting in the save queues")
	m.queueCapacity = m.gauge("queue_capacity", "Total capacity of the save queues")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Jobs accepted by the save queues")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Jobs dropped because a queue was full or closed")

	m.workerCount = m.gauge("worker_count", "Save workers running")
	m.workerActive = m.gauge("worker_active", "Save workers currently executing a job")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Job execution time in milliseconds")
	m.workerErrors = m.counter("worker_errors_total", "Jobs that returned an error")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.ingressThrottled = m.counter("ingress_throttled_total", "Requests refused by the per-identity ingress limiter")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Goroutines currently running")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause in milliseconds")
}

// RecordTap counts a tap by outcome.
func RecordTap(outcome string) {
	globalManager.taps.WithLabelValues(outcome).Inc()
}

// RecordRankUp counts rank transitions.
func RecordRankUp(n int) {
	globalManager.rankUps.Add(float64(n))
}

// RecordDrop counts a granted entry by source.
func RecordDrop(source string) {
	globalManager.drops.WithLabelValues(source).Inc()
}

// RecordCraft counts a craft request by outcome.
func RecordCraft(outcome string) {
	globalManager.crafts.WithLabelValues(outcome).Inc()
}

// RecordReward counts an external XP reward.
func RecordReward() {
	globalManager.rewards.Inc()
}

// RecordXPGranted adds to the total XP granted.
func RecordXPGranted(xp int64) {
	if xp > 0 {
		globalManager.xpGranted.Add(float64(xp))
	}
}

// UpdateActiveSessions sets the number of live sessions.
func UpdateActiveSessions(n int) {
	globalManager.activeSess.Set(float64(n))
}

// RecordSessionEvicted counts an evicted session.
func RecordSessionEvicted() {
	globalManager.sessEvicted.Inc()
}

// RecordSave counts a save by outcome.
func RecordSave(outcome string) {
	globalManager.saves.WithLabelValues(outcome).Inc()
}

// RecordSaveCoalesced counts a pending save replaced by a newer one.
func RecordSaveCoalesced() {
	globalManager.savesCoalesced.Inc()
}

// RecordValidationFailure counts a record rejected by the validation gate.
func RecordValidationFailure(kind string) {
	globalManager.validationFailures.WithLabelValues(kind).Inc()
}

// RecordInventoryRefresh counts an inventory listing by outcome.
func RecordInventoryRefresh(outcome string) {
	globalManager.inventoryRefreshes.WithLabelValues(outcome).Inc()
}

// RecordStoreLatency records store operation latency in milliseconds.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(operation string) {
	globalManager.storeErrors.WithLabelValues(operation).Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActive.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordIngressThrottled counts a request refused by the ingress limiter.
func RecordIngressThrottled() {
	globalManager.ingressThrottled.Inc()
}

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(n int) {
	globalManager.systemGoroutineCount.Set(float64(n))
}

// RecordSystemGCPauseTime observes an average GC pause.
func RecordSystemGCPauseTime(ms float64) {
	globalManager.systemGCPauseTime.Observe(ms)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
