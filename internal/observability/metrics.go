package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	registry          *prometheus.Registry
	requestCount      *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	errorCount        *prometheus.CounterVec
	validations       *prometheus.CounterVec
	roleMutations     *prometheus.CounterVec
	conflictsDetected *prometheus.CounterVec
	conflictsResolved *prometheus.CounterVec
}

// NewMetrics registers collectors on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by path, method and status",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total HTTP errors by path, method and error code",
		}, []string{"path", "method", "code"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "validations_total",
			Help: "Validation requests by entity, operation and outcome",
		}, []string{"entity", "operation", "outcome"}),
		roleMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "role_sync_mutations_total",
			Help: "Chat platform role and channel mutations issued by role sync",
		}, []string{"action"}),
		conflictsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "role_conflicts_detected_total",
			Help: "Role conflicts detected by severity",
		}, []string{"severity"}),
		conflictsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "role_conflicts_resolved_total",
			Help: "Role conflicts resolution attempts by severity and outcome",
		}, []string{"severity", "outcome"}),
	}
	m.registry.MustRegister(
		m.requestCount,
		m.requestDuration,
		m.errorCount,
		m.validations,
		m.roleMutations,
		m.conflictsDetected,
		m.conflictsResolved,
	)
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(path, method, code).Inc()
}

// RecordValidation counts a validation outcome.
func (m *Metrics) RecordValidation(entity, operation string, valid bool) {
	if m == nil {
		return
	}
	outcome := "valid"
	if !valid {
		outcome = "invalid"
	}
	m.validations.WithLabelValues(entity, operation, outcome).Inc()
}

// RecordRoleMutation counts one role or channel mutation.
func (m *Metrics) RecordRoleMutation(action string) {
	if m == nil {
		return
	}
	m.roleMutations.WithLabelValues(action).Inc()
}

// RecordConflictDetected counts a detected role conflict.
func (m *Metrics) RecordConflictDetected(severity string) {
	if m == nil {
		return
	}
	m.conflictsDetected.WithLabelValues(severity).Inc()
}

// RecordConflictResolved counts a resolution attempt.
func (m *Metrics) RecordConflictResolved(severity string, resolved bool) {
	if m == nil {
		return
	}
	outcome := "resolved"
	if !resolved {
		outcome = "partial"
	}
	m.conflictsResolved.WithLabelValues(severity, outcome).Inc()
}
