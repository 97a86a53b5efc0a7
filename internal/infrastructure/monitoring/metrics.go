package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
// Every Record/Set method is safe to call on a nil *Metrics, so domain
// components can take an optional collector without nil checks.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Matching metrics
	SnapshotsTotal    *prometheus.CounterVec
	MatchDuration     prometheus.Histogram
	ContainersMatched prometheus.Histogram

	// Operation metrics
	OperationCalls    *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Event bus metrics
	EventsEmitted  *prometheus.CounterVec
	HandlerErrors  *prometheus.CounterVec
	RulesTriggered *prometheus.CounterVec

	// Session metrics
	SessionsActive prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	SnapshotsMatched  int64   `json:"snapshots_matched"`
	OperationsRun     int64   `json:"operations_run"`
	OperationsFailed  int64   `json:"operations_failed"`
	ActiveSessions    int64   `json:"active_sessions"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
	AvgRequestSeconds float64 `json:"avg_request_seconds"`

	totalDuration float64
}

// NewMetrics creates a new metrics collector registered on reg.
// Pass prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webharvest_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webharvest_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		SnapshotsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webharvest_snapshots_total",
				Help: "DOM snapshots processed, by outcome",
			},
			[]string{"outcome"},
		),
		MatchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "webharvest_match_duration_seconds",
				Help:    "Container matching duration in seconds",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5},
			},
		),
		ContainersMatched: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "webharvest_containers_matched",
				Help:    "Containers present in each produced graph",
				Buckets: prometheus.LinearBuckets(0, 5, 10),
			},
		),

		OperationCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webharvest_operation_calls_total",
				Help: "Total number of operation executions",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webharvest_operation_duration_seconds",
				Help:    "Operation execution duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 15, 30},
			},
			[]string{"operation"},
		),

		EventsEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webharvest_events_emitted_total",
				Help: "Events emitted on session buses, by topic family",
			},
			[]string{"family"},
		),
		HandlerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webharvest_event_handler_errors_total",
				Help: "Event handlers that returned an error or panicked",
			},
			[]string{"family"},
		),
		RulesTriggered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webharvest_rules_triggered_total",
				Help: "Binding rule dispatches, by trigger type and outcome",
			},
			[]string{"trigger", "outcome"},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "webharvest_sessions_active",
				Help: "Number of live runtime sessions",
			},
		),
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "webharvest_ws_connections",
				Help: "Open WebSocket event streams",
			},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "webharvest_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordMatch records one snapshot run through the matcher
func (m *Metrics) RecordMatch(duration time.Duration, containers int, truncated bool) {
	if m == nil {
		return
	}
	outcome := "complete"
	if truncated {
		outcome = "truncated"
	}
	if containers == 0 {
		outcome = "empty"
	}
	m.SnapshotsTotal.WithLabelValues(outcome).Inc()
	m.MatchDuration.Observe(duration.Seconds())
	m.ContainersMatched.Observe(float64(containers))

	m.mu.Lock()
	m.snapshot.SnapshotsMatched++
	m.mu.Unlock()
}

// RecordOperation records one executor call
func (m *Metrics) RecordOperation(operation string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	m.OperationCalls.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.OperationsRun++
	if !success {
		m.snapshot.OperationsFailed++
	}
	m.mu.Unlock()
}

// RecordEmit records an event bus emit under its topic family
func (m *Metrics) RecordEmit(family string) {
	if m == nil {
		return
	}
	m.EventsEmitted.WithLabelValues(family).Inc()
}

// RecordHandlerError records a failed event handler
func (m *Metrics) RecordHandlerError(family string) {
	if m == nil {
		return
	}
	m.HandlerErrors.WithLabelValues(family).Inc()
}

// RecordRule records a binding rule dispatch
func (m *Metrics) RecordRule(trigger, outcome string) {
	if m == nil {
		return
	}
	m.RulesTriggered.WithLabelValues(trigger, outcome).Inc()
}

// SetSessionsActive sets the number of active sessions
func (m *Metrics) SetSessionsActive(count int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveSessions = int64(count)
	m.mu.Unlock()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// Snapshot returns the current values for the JSON health endpoint
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.snapshot
	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	if snap.TotalRequests > 0 {
		snap.AvgRequestSeconds = snap.totalDuration / float64(snap.TotalRequests)
	}
	return snap
}
