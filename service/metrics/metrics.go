package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Ledger RPC Metrics
	ledgerRPCCallsTotal   *prometheus.CounterVec
	ledgerRPCCallDuration *prometheus.HistogramVec
	ledgerRPCRetries      *prometheus.CounterVec
	ledgerPageSize        *prometheus.HistogramVec

	// Sync cycle Metrics
	syncCyclesTotal     *prometheus.CounterVec
	syncCycleDuration   *prometheus.HistogramVec
	syncTicksDropped    prometheus.Counter
	syncPagesFetched    prometheus.Counter
	syncWatermark       prometheus.Gauge
	syncCycleInProgress prometheus.Gauge

	// Transaction Processing Metrics
	transactionsFetchedTotal   prometheus.Counter
	transactionsRejectedTotal  *prometheus.CounterVec
	transactionsDuplicateTotal prometheus.Counter
	transactionsPublishedTotal prometheus.Counter
	transactionsPersistedTotal *prometheus.CounterVec

	// Sink Metrics
	sinkDeliveriesTotal  *prometheus.CounterVec
	sinkDeliveryDuration *prometheus.HistogramVec
	sinkQueueDepth       prometheus.Gauge

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections prometheus.Gauge
	sseEventsSent        prometheus.Counter

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec

	// Temporal Metrics
	activityDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Ledger RPC Metrics
		ledgerRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_rpc_calls_total",
				Help: "Total number of ledger API calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		ledgerRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_rpc_call_duration_seconds",
				Help:    "Duration of ledger API calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		ledgerRPCRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_rpc_retries_total",
				Help: "Total number of page fetch retry attempts",
			},
			[]string{"reason"},
		),
		ledgerPageSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_page_transactions",
				Help:    "Number of transactions returned per history page",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
			},
			[]string{"endpoint"},
		),

		// Sync cycle Metrics
		syncCyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_cycles_total",
				Help: "Total number of sync cycles by outcome (done, aborted, failed)",
			},
			[]string{"status"},
		),
		syncCycleDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sync_cycle_duration_seconds",
				Help:    "Duration of sync cycles in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"status"},
		),
		syncTicksDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sync_ticks_dropped_total",
				Help: "Ticks dropped because a cycle was already in progress",
			},
		),
		syncPagesFetched: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sync_pages_fetched_total",
				Help: "Total number of history pages fetched",
			},
		),
		syncWatermark: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sync_watermark_seconds",
				Help: "Current watermark (unix seconds) of the watched account",
			},
		),
		syncCycleInProgress: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sync_cycle_in_progress",
				Help: "1 while a sync cycle is running, 0 otherwise",
			},
		),

		// Transaction Processing Metrics
		transactionsFetchedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "transactions_fetched_total",
				Help: "Total number of raw transactions fetched from the ledger",
			},
		),
		transactionsRejectedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions_rejected_total",
				Help: "Total number of transactions rejected by the filter",
			},
			[]string{"reason"},
		),
		transactionsDuplicateTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "transactions_duplicate_total",
				Help: "Admitted transactions suppressed because they were already emitted in the cycle",
			},
		),
		transactionsPublishedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "transactions_published_total",
				Help: "Total number of transaction records handed to the sink",
			},
		),
		transactionsPersistedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions_persisted_total",
				Help: "Total number of transaction records written to the database",
			},
			[]string{"result"},
		),

		// Sink Metrics
		sinkDeliveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sink_deliveries_total",
				Help: "Total number of record deliveries per sink handler",
			},
			[]string{"sink", "status"},
		),
		sinkDeliveryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sink_delivery_duration_seconds",
				Help:    "Duration of record delivery per sink handler",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"sink"},
		),
		sinkQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sink_queue_depth",
				Help: "Number of records waiting in the sink dispatcher queue",
			},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
		),
		sseEventsSent: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE transaction events sent",
			},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of messages published to NATS",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"subject"},
		),

		// Temporal Metrics
		activityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "temporal_activity_duration_seconds",
				Help:    "Duration of Temporal activity executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"activity", "status"},
		),
	}
}

// Ledger RPC metric helpers

// RecordRPCCall records a ledger API call with its status and duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.ledgerRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.ledgerRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRPCRetry records a page fetch retry.
func (m *Metrics) RecordRPCRetry(reason string) {
	m.ledgerRPCRetries.WithLabelValues(reason).Inc()
}

// RecordPageSize records how many transactions a history page returned.
func (m *Metrics) RecordPageSize(endpoint string, count int) {
	m.ledgerPageSize.WithLabelValues(endpoint).Observe(float64(count))
}

// Sync cycle metric helpers

// RecordCycle records a finished cycle with its outcome and duration.
func (m *Metrics) RecordCycle(status string, duration float64) {
	m.syncCyclesTotal.WithLabelValues(status).Inc()
	m.syncCycleDuration.WithLabelValues(status).Observe(duration)
}

// RecordTickDropped records a tick that found a cycle already running.
func (m *Metrics) RecordTickDropped() {
	m.syncTicksDropped.Inc()
}

// RecordPageFetched records one successfully fetched history page.
func (m *Metrics) RecordPageFetched() {
	m.syncPagesFetched.Inc()
}

// SetWatermark records the current watermark.
func (m *Metrics) SetWatermark(seconds int64) {
	m.syncWatermark.Set(float64(seconds))
}

// SetCycleInProgress flips the in-progress gauge.
func (m *Metrics) SetCycleInProgress(running bool) {
	if running {
		m.syncCycleInProgress.Set(1)
		return
	}
	m.syncCycleInProgress.Set(0)
}

// Transaction processing metric helpers

// RecordTransactionsFetched records raw transactions fetched from the ledger.
func (m *Metrics) RecordTransactionsFetched(count int) {
	m.transactionsFetchedTotal.Add(float64(count))
}

// RecordTransactionRejected records a filter rejection.
func (m *Metrics) RecordTransactionRejected(reason string) {
	m.transactionsRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordTransactionDuplicate records an admitted transaction suppressed by the cycle dedup set.
func (m *Metrics) RecordTransactionDuplicate() {
	m.transactionsDuplicateTotal.Inc()
}

// RecordTransactionPublished records a record handed to the sink.
func (m *Metrics) RecordTransactionPublished() {
	m.transactionsPublishedTotal.Inc()
}

// RecordTransactionPersisted records a database write; result is "inserted" or "exists".
func (m *Metrics) RecordTransactionPersisted(result string) {
	m.transactionsPersistedTotal.WithLabelValues(result).Inc()
}

// Sink metric helpers

// RecordSinkDelivery records one delivery attempt to a sink handler.
func (m *Metrics) RecordSinkDelivery(sink string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.sinkDeliveriesTotal.WithLabelValues(sink, status).Inc()
	m.sinkDeliveryDuration.WithLabelValues(sink).Observe(duration)
}

// SetSinkQueueDepth records the dispatcher queue depth.
func (m *Metrics) SetSinkQueueDepth(depth int) {
	m.sinkQueueDepth.Set(float64(depth))
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(delta float64) {
	m.sseActiveConnections.Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent() {
	m.sseEventsSent.Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Temporal metric helpers

// RecordActivityDuration records how long a Temporal activity ran.
func (m *Metrics) RecordActivityDuration(activity, status string, duration float64) {
	m.activityDuration.WithLabelValues(activity, status).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
