// Package metrics provides Prometheus metrics for the gridstat store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the store.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Store metrics - commit/read path
	storeCommits        prometheus.Counter
	storeConflicts      prometheus.Counter
	storeTimeouts       prometheus.Counter
	storeVersionsPruned prometheus.Counter
	storeCommitLatency  prometheus.Histogram
	storeReadLatency    prometheus.Histogram

	// Cache metrics
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	cacheEvictions     prometheus.Counter
	cacheInvalidations prometheus.Counter
	cacheRecords       prometheus.Gauge

	// Resolver metrics - per-tier resolution counts
	resolutionsByTier *prometheus.CounterVec
	resolveLatency    prometheus.Histogram

	// Validation metrics
	validationErrors   prometheus.Counter
	validationWarnings prometheus.Counter

	// Ingest queue/worker metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors prometheus.Counter
	jobsProcessed      prometheus.Counter
	jobsFailed         prometheus.Counter
	jobLatency         prometheus.Histogram
	workerActiveCount  prometheus.Gauge

	// Error tracking
	errorsByComponent *prometheus.CounterVec
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
		namespace:        "gridstat",
		subsystem:        "store",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.storeCommits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "commits_total",
		Help:      "Total number of successful batch commits",
	})

	m.storeConflicts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "commit_conflicts_total",
		Help:      "Total number of commits rejected with a sequence conflict",
	})

	m.storeTimeouts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "commit_timeouts_total",
		Help:      "Total number of commits that timed out waiting for the key lock",
	})

	m.storeVersionsPruned = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "versions_pruned_total",
		Help:      "Total number of superseded versions removed by retention",
	})

	m.storeCommitLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "commit_latency_milliseconds",
		Help:      "Histogram of commit latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storeReadLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "read_latency_milliseconds",
		Help:      "Histogram of store read latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total number of cache hits",
	})

	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total number of cache misses (including TTL expiries)",
	})

	m.cacheEvictions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "cache",
		Name:      "evictions_total",
		Help:      "Total number of LRU capacity evictions",
	})

	m.cacheInvalidations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "cache",
		Name:      "invalidations_total",
		Help:      "Total number of write-triggered invalidations",
	})

	m.cacheRecords = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "cache",
		Name:      "records",
		Help:      "Current number of records held across all cache entries",
	})

	m.resolutionsByTier = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "resolver",
		Name:      "resolutions_total",
		Help:      "Total resolutions by fallback tier (exact, recency, peer, seed)",
	}, []string{"tier"})

	m.resolveLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "resolver",
		Name:      "resolve_latency_milliseconds",
		Help:      "Histogram of resolve latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.validationErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "validation",
		Name:      "errors_total",
		Help:      "Total number of validation errors (batch-blocking)",
	})

	m.validationWarnings = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "validation",
		Name:      "warnings_total",
		Help:      "Total number of validation warnings (non-blocking)",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "queue_size",
		Help:      "Current number of queued ingest jobs",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "queue_capacity",
		Help:      "Configured capacity of the ingest queue",
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "enqueue_errors_total",
		Help:      "Total number of rejected job submissions",
	})

	m.jobsProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "jobs_processed_total",
		Help:      "Total number of ingest jobs committed successfully",
	})

	m.jobsFailed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "jobs_failed_total",
		Help:      "Total number of ingest jobs that failed validation or commit",
	})

	m.jobLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "job_latency_milliseconds",
		Help:      "Histogram of end-to-end ingest job latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.workerActiveCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "workers_active",
		Help:      "Number of running ingest workers",
	})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "errors",
		Name:      "by_component_total",
		Help:      "Total errors by component and error type",
	}, []string{"component", "error_type"})
}

// Registry returns the custom registry used by the global manager,
// for exposition by an external collector.
func Registry() *prometheus.Registry {
	return customRegistry
}

// Package-level helpers on the global manager.

// RecordCommit increments the successful commit counter.
func RecordCommit() {
	globalManager.storeCommits.Inc()
}

// RecordCommitConflict increments the sequence conflict counter.
func RecordCommitConflict() {
	globalManager.storeConflicts.Inc()
}

// RecordCommitTimeout increments the lock timeout counter.
func RecordCommitTimeout() {
	globalManager.storeTimeouts.Inc()
}

// RecordVersionsPruned adds to the retention pruning counter.
func RecordVersionsPruned(n int) {
	globalManager.storeVersionsPruned.Add(float64(n))
}

// RecordCommitLatency observes commit latency in milliseconds.
func RecordCommitLatency(latencyMs float64) {
	globalManager.storeCommitLatency.Observe(latencyMs)
}

// RecordReadLatency observes store read latency in milliseconds.
func RecordReadLatency(latencyMs float64) {
	globalManager.storeReadLatency.Observe(latencyMs)
}

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// RecordCacheEviction increments the LRU eviction counter.
func RecordCacheEviction() {
	globalManager.cacheEvictions.Inc()
}

// RecordCacheInvalidation increments the write-invalidation counter.
func RecordCacheInvalidation() {
	globalManager.cacheInvalidations.Inc()
}

// UpdateCachedRecords sets the current cached record count.
func UpdateCachedRecords(n int) {
	globalManager.cacheRecords.Set(float64(n))
}

// RecordResolution increments the per-tier resolution counter.
func RecordResolution(tier string) {
	globalManager.resolutionsByTier.WithLabelValues(tier).Inc()
}

// RecordResolveLatency observes resolve latency in milliseconds.
func RecordResolveLatency(latencyMs float64) {
	globalManager.resolveLatency.Observe(latencyMs)
}

// RecordValidationErrors adds to the blocking validation error counter.
func RecordValidationErrors(n int) {
	globalManager.validationErrors.Add(float64(n))
}

// RecordValidationWarnings adds to the validation warning counter.
func RecordValidationWarnings(n int) {
	globalManager.validationWarnings.Add(float64(n))
}

// UpdateQueueSize sets the current ingest queue depth.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the configured ingest queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueueError increments the rejected submission counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordJobProcessed increments the successful job counter.
func RecordJobProcessed() {
	globalManager.jobsProcessed.Inc()
}

// RecordJobFailed increments the failed job counter.
func RecordJobFailed() {
	globalManager.jobsFailed.Inc()
}

// RecordJobLatency observes end-to-end job latency in milliseconds.
func RecordJobLatency(latencyMs float64) {
	globalManager.jobLatency.Observe(latencyMs)
}

// UpdateWorkerActiveCount sets the running worker count.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordErrorByComponent increments the per-component error counter.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}
