package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the tally service.
type Manager struct {
	namespace   string
	subsystem   string
	buckets     []float64
	constLabels prometheus.Labels
	registry    prometheus.Registerer

	// Ledger
	reloads          *prometheus.CounterVec
	reloadDuration   *prometheus.HistogramVec
	eventsIngested   prometheus.Counter
	ingestionErrors  prometheus.Counter
	membersTotal     *prometheus.GaugeVec
	ledgersTotal     prometheus.Gauge
	operationTimeout prometheus.Counter

	// Mutations
	mutations          *prometheus.CounterVec
	validationFailures *prometheus.CounterVec

	// Publishing
	publishLatency prometheus.Histogram
	publishErrors  prometheus.Counter

	// Audit
	auditRecords *prometheus.CounterVec
	auditPruned  prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue and workers
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueEnqueued           prometheus.Counter
	queueDequeued           prometheus.Counter
	queueEnqueueErrors      prometheus.Counter
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// defaultLatencyBuckets spans fast in-memory work to slow spreadsheet
// round trips, in milliseconds.
var defaultLatencyBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000} //nolint:gochecknoglobals // bucket defaults

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "tally",
		subsystem: "ledger",
		buckets:   defaultLatencyBuckets,
		registry:  prometheus.DefaultRegisterer,
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
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
		Buckets:     m.buckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	auto := promauto.With(m.registry)

	m.reloads = auto.NewCounterVec(
		m.counterOpts("reloads_total", "Ledger reloads by kind and result"),
		[]string{"kind", "result"},
	)
	m.reloadDuration = auto.NewHistogramVec(
		m.histogramOpts("reload_duration_milliseconds", "Ledger reload duration in milliseconds"),
		[]string{"kind"},
	)
	m.eventsIngested = auto.NewCounter(m.counterOpts("events_ingested_total", "Events whose attendance was ingested"))
	m.ingestionErrors = auto.NewCounter(m.counterOpts("ingestion_errors_total", "Events whose source could not be read"))
	m.membersTotal = auto.NewGaugeVec(
		m.gaugeOpts("members", "Members per ledger"),
		[]string{"ledger"},
	)
	m.ledgersTotal = auto.NewGauge(m.gaugeOpts("ledgers", "Registered ledgers"))
	m.operationTimeout = auto.NewCounter(m.counterOpts("operation_timeouts_total", "Operations that exceeded their deadline"))

	m.mutations = auto.NewCounterVec(
		m.counterOpts("mutations_total", "Mutation commands by operation and result"),
		[]string{"op", "result"},
	)
	m.validationFailures = auto.NewCounterVec(
		m.counterOpts("validation_failures_total", "Mutation commands rejected by validation"),
		[]string{"op"},
	)

	m.publishLatency = auto.NewHistogram(m.histogramOpts("publish_latency_milliseconds", "Snapshot publish latency in milliseconds"))
	m.publishErrors = auto.NewCounter(m.counterOpts("publish_errors_total", "Snapshot publishes that failed"))

	m.auditRecords = auto.NewCounterVec(
		m.counterOpts("audit_records_total", "Audit records written by severity"),
		[]string{"severity"},
	)
	m.auditPruned = auto.NewCounter(m.counterOpts("audit_pruned_total", "Audit records removed by retention"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current size of the job queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum job queue capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Total number of jobs enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Total number of jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Total number of enqueue errors"))
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Current number of workers"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds", "Job processing latency in milliseconds"))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Jobs that finished with an error"))

	m.errorsByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"},
	)
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// RecordReload counts one reload of the given kind.
func RecordReload(kind string, ok bool, durationMs float64) {
	globalManager.reloads.WithLabelValues(kind, result(ok)).Inc()
	globalManager.reloadDuration.WithLabelValues(kind).Observe(durationMs)
}

// RecordEventIngested increments the ingested events counter.
func RecordEventIngested() {
	globalManager.eventsIngested.Inc()
}

// RecordIngestionError increments the ingestion errors counter.
func RecordIngestionError() {
	globalManager.ingestionErrors.Inc()
}

// UpdateMemberCount sets the member count of a ledger.
func UpdateMemberCount(ledgerID string, count int) {
	globalManager.membersTotal.WithLabelValues(ledgerID).Set(float64(count))
}

// UpdateLedgerCount sets the number of registered ledgers.
func UpdateLedgerCount(count int) {
	globalManager.ledgersTotal.Set(float64(count))
}

// RecordOperationTimeout increments the timeout counter.
func RecordOperationTimeout() {
	globalManager.operationTimeout.Inc()
}

// RecordMutation counts one mutation command.
func RecordMutation(op string, ok bool) {
	globalManager.mutations.WithLabelValues(op, result(ok)).Inc()
}

// RecordValidationFailure counts one rejected mutation command.
func RecordValidationFailure(op string) {
	globalManager.validationFailures.WithLabelValues(op).Inc()
}

// RecordPublishLatency records publish latency in milliseconds.
func RecordPublishLatency(latencyMs float64) {
	globalManager.publishLatency.Observe(latencyMs)
}

// RecordPublishError increments the publish errors counter.
func RecordPublishError() {
	globalManager.publishErrors.Inc()
}

// RecordAuditRecord counts one audit record.
func RecordAuditRecord(severity string) {
	globalManager.auditRecords.WithLabelValues(severity).Inc()
}

// RecordAuditPruned counts audit records removed by retention.
func RecordAuditPruned(n int) {
	globalManager.auditPruned.Add(float64(n))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
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

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records job processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
