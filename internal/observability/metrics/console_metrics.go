package metrics

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess    = "success"
	OutcomeValidation = "validation_error"
	OutcomeConflict   = "conflict"
	OutcomeNotFound   = "not_found"
	OutcomeFetch      = "fetch_error"
	OutcomeStale      = "stale"
)

// ConsoleMetrics captures backend and catalog health for the console.
type ConsoleMetrics struct {
	backendRequests   *prometheus.CounterVec
	backendDuration   *prometheus.HistogramVec
	breakerState      *prometheus.GaugeVec
	catalogLoads      *prometheus.CounterVec
	editorSaves       *prometheus.CounterVec
	unresolvedModules prometheus.Counter
	notifications     *prometheus.CounterVec
	activeSessions    prometheus.Gauge
}

var (
	consoleMetricsOnce sync.Once
	consoleMetrics     *ConsoleMetrics
)

// Console returns the singleton console metrics registry.
func Console(cfg Config) *ConsoleMetrics {
	consoleMetricsOnce.Do(func() {
		consoleMetrics = NewConsoleMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return consoleMetrics
}

// NewConsoleMetrics registers the console collectors on registerer.
func NewConsoleMetrics(registerer prometheus.Registerer, cfg Config) *ConsoleMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "console"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &ConsoleMetrics{
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "console_backend_requests_total",
			Help:        "Backend API calls by operation and status class.",
			ConstLabels: constLabels,
		}, []string{"operation", "method", "status_class"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "console_backend_request_duration_seconds",
			Help:        "Backend API call latency.",
			Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			ConstLabels: constLabels,
		}, []string{"operation"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "console_backend_breaker_open",
			Help:        "1 while the backend circuit breaker is open.",
			ConstLabels: constLabels,
		}, []string{"breaker"}),
		catalogLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "console_catalog_loads_total",
			Help:        "Catalog loads by outcome.",
			ConstLabels: constLabels,
		}, []string{"kind", "outcome"}),
		editorSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "console_editor_saves_total",
			Help:        "Plan and module saves by outcome.",
			ConstLabels: constLabels,
		}, []string{"kind", "mode", "outcome"}),
		unresolvedModules: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "console_unresolved_module_refs_total",
			Help:        "Module references that did not resolve against the catalog.",
			ConstLabels: constLabels,
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "console_notifications_total",
			Help:        "Error notifications raised per view.",
			ConstLabels: constLabels,
		}, []string{"view", "type"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "console_active_sessions",
			Help:        "Live console sessions.",
			ConstLabels: constLabels,
		}),
	}

	registerer.MustRegister(
		m.backendRequests,
		m.backendDuration,
		m.breakerState,
		m.catalogLoads,
		m.editorSaves,
		m.unresolvedModules,
		m.notifications,
		m.activeSessions,
	)
	return m
}

// ObserveBackendRequest records one backend call. status 0 means the call
// never produced a response.
func (m *ConsoleMetrics) ObserveBackendRequest(operation, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.backendRequests.WithLabelValues(operation, method, statusClass(status)).Inc()
	m.backendDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// SetBreakerOpen flips the breaker gauge.
func (m *ConsoleMetrics) SetBreakerOpen(name string, open bool) {
	if m == nil {
		return
	}
	value := 0.0
	if open {
		value = 1
	}
	m.breakerState.WithLabelValues(name).Set(value)
}

func (m *ConsoleMetrics) RecordCatalogLoad(kind, outcome string) {
	if m == nil {
		return
	}
	m.catalogLoads.WithLabelValues(kind, outcome).Inc()
}

func (m *ConsoleMetrics) RecordEditorSave(kind, mode, outcome string) {
	if m == nil {
		return
	}
	m.editorSaves.WithLabelValues(kind, mode, outcome).Inc()
}

func (m *ConsoleMetrics) AddUnresolvedModules(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.unresolvedModules.Add(float64(n))
}

func (m *ConsoleMetrics) RecordNotification(view, errType string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(view, errType).Inc()
}

func (m *ConsoleMetrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *ConsoleMetrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

func statusClass(status int) string {
	if status <= 0 {
		return "network"
	}
	return strconv.Itoa(status/100) + "xx"
}
