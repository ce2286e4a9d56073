package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// GraphQL backend metrics
	graphqlCallsTotal   *prometheus.CounterVec
	graphqlCallDuration *prometheus.HistogramVec

	// Explorer metrics
	verifiedDelegatesLookups *prometheus.CounterVec
	csvExportsTotal          *prometheus.CounterVec
	csvExportRows            *prometheus.HistogramVec

	// Price feed metrics
	priceFeedCallsTotal   *prometheus.CounterVec
	priceFeedCallDuration *prometheus.HistogramVec

	// Workflow Metrics
	statsWorkflowDuration        *prometheus.HistogramVec
	statsWorkflowExecutionsTotal *prometheus.CounterVec
	statsActivityDuration        *prometheus.HistogramVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections *prometheus.GaugeVec
	sseEventsSent        *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		graphqlCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphql_calls_total",
				Help: "Total number of GraphQL queries by network, backend, query and status",
			},
			[]string{"network", "backend", "query", "status"},
		),
		graphqlCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graphql_call_duration_seconds",
				Help:    "Duration of GraphQL queries in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"network", "backend", "query"},
		),

		verifiedDelegatesLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verified_delegates_lookups_total",
				Help: "Verified delegate registry lookups by cache result",
			},
			[]string{"result"},
		),
		csvExportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "csv_exports_total",
				Help: "Total number of CSV exports served",
			},
			[]string{"export", "status"},
		),
		csvExportRows: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "csv_export_rows",
				Help:    "Number of data rows written per CSV export",
				Buckets: []float64{0, 1, 10, 50, 100, 500, 1000},
			},
			[]string{"export"},
		),

		priceFeedCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "price_feed_calls_total",
				Help: "Total number of token price feed requests",
			},
			[]string{"token", "status"},
		),
		priceFeedCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "price_feed_call_duration_seconds",
				Help:    "Duration of token price feed requests in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"token"},
		),

		// Workflow Metrics
		statsWorkflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stats_workflow_duration_seconds",
				Help:    "Duration of token stats refresh workflow execution in seconds",
				Buckets: []float64{0.5, 1, 5, 10, 30, 60},
			},
			[]string{"token", "status"},
		),
		statsWorkflowExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stats_workflow_executions_total",
				Help: "Total number of token stats refresh workflow executions",
			},
			[]string{"token", "status"},
		),
		statsActivityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stats_activity_duration_seconds",
				Help:    "Duration of token stats workflow activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"activity", "token"},
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
		sseActiveConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
			[]string{"stream"},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"stream", "event_type"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// GraphQL metric helpers

// RecordGraphQLCall records a GraphQL query with duration.
func (m *Metrics) RecordGraphQLCall(network, backend, query, status string, duration float64) {
	m.graphqlCallsTotal.WithLabelValues(network, backend, query, status).Inc()
	m.graphqlCallDuration.WithLabelValues(network, backend, query).Observe(duration)
}

// Explorer metric helpers

// RecordVerifiedDelegatesLookup records a registry lookup; result is "hit", "miss" or "error".
func (m *Metrics) RecordVerifiedDelegatesLookup(result string) {
	m.verifiedDelegatesLookups.WithLabelValues(result).Inc()
}

// RecordCSVExport records a served CSV export and its row count.
func (m *Metrics) RecordCSVExport(export string, rows int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.csvExportsTotal.WithLabelValues(export, status).Inc()
	if err == nil {
		m.csvExportRows.WithLabelValues(export).Observe(float64(rows))
	}
}

// Price feed metric helpers

// RecordPriceFeedCall records a price feed request with duration.
func (m *Metrics) RecordPriceFeedCall(token, status string, duration float64) {
	m.priceFeedCallsTotal.WithLabelValues(token, status).Inc()
	m.priceFeedCallDuration.WithLabelValues(token).Observe(duration)
}

// Workflow metric helpers

// RecordWorkflowDuration records workflow execution duration.
func (m *Metrics) RecordWorkflowDuration(token, status string, duration float64) {
	m.statsWorkflowDuration.WithLabelValues(token, status).Observe(duration)
	m.statsWorkflowExecutionsTotal.WithLabelValues(token, status).Inc()
}

// RecordActivityDuration records activity execution duration.
func (m *Metrics) RecordActivityDuration(activity, token string, duration float64) {
	m.statsActivityDuration.WithLabelValues(activity, token).Observe(duration)
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
func (m *Metrics) RecordSSEConnectionChange(stream string, delta float64) {
	m.sseActiveConnections.WithLabelValues(stream).Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(stream, eventType string) {
	m.sseEventsSent.WithLabelValues(stream, eventType).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

func statusCodeToString(code int) string {
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
