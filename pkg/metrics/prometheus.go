// Package metrics provides Prometheus metrics for the audax tracker service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the tracker service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	latencyBuckets   []float64
	constLabels      map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Refresh Metrics - one evaluation of the whole rider set
	refreshes             *prometheus.CounterVec
	refreshLatency        prometheus.Histogram
	refreshLastUnix       prometheus.Gauge
	ridersTotal           prometheus.Gauge
	ridersByStatus        *prometheus.GaugeVec
	ridersStalled         prometheus.Gauge
	unparseableTimestamps prometheus.Counter
	unmatchedControls     prometheus.Counter

	// Feed Metrics - upstream document
	feedFetches      *prometheus.CounterVec
	feedFetchLatency prometheus.Histogram
	feedCacheHits    prometheus.Counter
	feedCacheMisses  prometheus.Counter

	// Repository Metrics - snapshot store
	repositoryRecordsTotal prometheus.Gauge
	repositorySwaps        prometheus.Counter
	repositoryQueryLatency prometheus.Histogram

	// Queue Metrics - refresh requests
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueCoalesced         prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Poller Metrics
	pollerRuns   *prometheus.CounterVec
	pollerErrors prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "audax",
		subsystem:        "tracker",
		histogramBuckets: prometheus.DefBuckets,
		latencyBuckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		constLabels:      make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + name,
		Help:        help,
		ConstLabels: m.constLabels,
		Buckets:     buckets,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	latencyBuckets := m.latencyBuckets

	// Refresh Metrics
	m.refreshes = auto.NewCounterVec(m.counterOpts("refreshes_total", "Total number of rider set evaluations by result"), []string{"result"})
	m.refreshLatency = auto.NewHistogram(m.histogramOpts("refresh_latency_milliseconds", "Fetch plus evaluation latency in milliseconds", latencyBuckets))
	m.refreshLastUnix = auto.NewGauge(m.gaugeOpts("refresh_last_success_unix", "Unix time of the last successful refresh"))
	m.ridersTotal = auto.NewGauge(m.gaugeOpts("riders_total", "Number of riders in the latest snapshot"))
	m.ridersByStatus = auto.NewGaugeVec(m.gaugeOpts("riders_by_status", "Riders by effective status in the latest snapshot"), []string{"status"})
	m.ridersStalled = auto.NewGauge(m.gaugeOpts("riders_stalled", "Riders overridden to dnf for inactivity"))
	m.unparseableTimestamps = auto.NewCounter(m.counterOpts("unparseable_timestamps_total", "Checkpoint records whose timestamp could not be parsed"))
	m.unmatchedControls = auto.NewCounter(m.counterOpts("unmatched_controls_total", "Checkpoint records whose control name matched nothing"))

	// Feed Metrics
	m.feedFetches = auto.NewCounterVec(m.counterOpts("feed_fetches_total", "Upstream feed fetches by result"), []string{"result"})
	m.feedFetchLatency = auto.NewHistogram(m.histogramOpts("feed_fetch_latency_milliseconds", "Upstream feed fetch latency in milliseconds", latencyBuckets))
	m.feedCacheHits = auto.NewCounter(m.counterOpts("feed_cache_hits_total", "Feed reads served from the cache"))
	m.feedCacheMisses = auto.NewCounter(m.counterOpts("feed_cache_misses_total", "Feed reads that went upstream"))

	// Repository Metrics
	m.repositoryRecordsTotal = auto.NewGauge(m.gaugeOpts("repository_records_total", "Riders held by the current snapshot"))
	m.repositorySwaps = auto.NewCounter(m.counterOpts("repository_snapshot_swaps_total", "Snapshots published to the store"))
	m.repositoryQueryLatency = auto.NewHistogram(m.histogramOpts("repository_query_latency_milliseconds", "Snapshot store query latency in milliseconds", nil))

	// Queue Metrics
	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Pending refresh requests"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum pending refresh requests"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Pending over capacity"))
	m.queueEnqueueRate = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Refresh requests accepted"))
	m.queueDequeueRate = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Refresh requests handed to the poller"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Refresh requests rejected"))
	m.queueCoalesced = auto.NewCounter(m.counterOpts("queue_coalesced_total", "Refresh requests folded into an identical pending one"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogramOpts("queue_processing_latency_milliseconds", "Enqueue latency in milliseconds", nil))

	// Poller Metrics
	m.pollerRuns = auto.NewCounterVec(m.counterOpts("poller_runs_total", "Poller refreshes by trigger"), []string{"trigger"})
	m.pollerErrors = auto.NewCounter(m.counterOpts("poller_errors_total", "Poller refreshes that failed"))

	// HTTP Performance Metrics
	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", nil), []string{"endpoint", "method", "status_code"})

	// Error Metrics
	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total", "Errors by component and type"), []string{"component", "error_type"})
	m.errorRateByType = auto.NewCounterVec(m.counterOpts("errors_by_type_total", "Errors by type and severity"), []string{"error_type", "severity"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total", "Errors by endpoint, method and type"), []string{"endpoint", "method", "error_type"})

	// System Performance Metrics
	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// Refresh Metrics Functions.

// RecordRefresh counts one refresh with result "ok" or "error".
func RecordRefresh(result string) {
	globalManager.refreshes.WithLabelValues(result).Inc()
}

// RecordRefreshLatency records refresh latency in milliseconds.
func RecordRefreshLatency(latencyMs float64) {
	globalManager.refreshLatency.Observe(latencyMs)
}

// UpdateRefreshLastSuccess sets the time of the last successful refresh.
func UpdateRefreshLastSuccess(unix int64) {
	globalManager.refreshLastUnix.Set(float64(unix))
}

// UpdateRidersTotal sets the number of riders.
func UpdateRidersTotal(count int) {
	globalManager.ridersTotal.Set(float64(count))
}

// UpdateRidersByStatus sets the count of riders in one effective status.
func UpdateRidersByStatus(status string, count int) {
	globalManager.ridersByStatus.WithLabelValues(status).Set(float64(count))
}

// UpdateRidersStalled sets the count of stalled riders.
func UpdateRidersStalled(count int) {
	globalManager.ridersStalled.Set(float64(count))
}

// AddUnparseableTimestamps adds skipped timestamp records.
func AddUnparseableTimestamps(count int) {
	if count > 0 {
		globalManager.unparseableTimestamps.Add(float64(count))
	}
}

// AddUnmatchedControls adds records with unknown control names.
func AddUnmatchedControls(count int) {
	if count > 0 {
		globalManager.unmatchedControls.Add(float64(count))
	}
}

// Feed Metrics Functions.

// RecordFeedFetch counts one upstream fetch by result.
func RecordFeedFetch(result string) {
	globalManager.feedFetches.WithLabelValues(result).Inc()
}

// RecordFeedFetchLatency records upstream fetch latency in milliseconds.
func RecordFeedFetchLatency(latencyMs float64) {
	globalManager.feedFetchLatency.Observe(latencyMs)
}

// RecordFeedCacheHit increments the feed cache hit counter.
func RecordFeedCacheHit() {
	globalManager.feedCacheHits.Inc()
}

// RecordFeedCacheMiss increments the feed cache miss counter.
func RecordFeedCacheMiss() {
	globalManager.feedCacheMisses.Inc()
}

// Repository Metrics Functions.

// UpdateRepositoryRecordsTotal sets the number of riders in the snapshot.
func UpdateRepositoryRecordsTotal(count int) {
	globalManager.repositoryRecordsTotal.Set(float64(count))
}

// RecordRepositorySwap increments the snapshot swap counter.
func RecordRepositorySwap() {
	globalManager.repositorySwaps.Inc()
}

// RecordRepositoryQueryLatency records repository query operation latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordRefreshCoalesced counts a refresh request absorbed by a pending one.
func RecordRefreshCoalesced() {
	globalManager.queueCoalesced.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records queue processing latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Poller Metrics Functions.

// RecordPollerRun counts a refresh started by trigger ("start", "tick", "request").
func RecordPollerRun(trigger string) {
	globalManager.pollerRuns.WithLabelValues(trigger).Inc()
}

// RecordPollerError increments the poller error counter.
func RecordPollerError() {
	globalManager.pollerErrors.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
