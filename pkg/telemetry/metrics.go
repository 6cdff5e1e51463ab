package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the render pipeline.
type Metrics struct {
	config MetricsConfig

	// Plan metrics
	plansTotal   *prometheus.CounterVec
	planDuration *prometheus.HistogramVec

	// Render metrics
	rendersStarted   *prometheus.CounterVec
	rendersCompleted *prometheus.CounterVec
	renderDuration   *prometheus.HistogramVec
	recordsRendered  *prometheus.CounterVec

	// Graph metrics
	graphServices  *prometheus.GaugeVec
	graphRelations *prometheus.GaugeVec

	// Policy metrics
	policyViolations *prometheus.CounterVec

	// Error metrics
	errorsByKind *prometheus.CounterVec

	// System metrics
	activeRenders prometheus.Gauge
	activeWatches prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		plansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plans_total",
				Help:      "Total number of graph planning runs",
			},
			[]string{"graph", "status"},
		),
		planDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "plan_duration_seconds",
				Help:      "Duration of graph planning in seconds",
				Buckets:   buckets,
			},
			[]string{"graph"},
		),

		rendersStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "renders_started_total",
				Help:      "Total number of renders started",
			},
			[]string{"graph"},
		),
		rendersCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "renders_completed_total",
				Help:      "Total number of renders completed",
			},
			[]string{"graph", "status"},
		),
		renderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "render_duration_seconds",
				Help:      "Duration of render execution in seconds",
				Buckets:   buckets,
			},
			[]string{"graph", "status"},
		),
		recordsRendered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_rendered_total",
				Help:      "Total number of output records rendered",
			},
			[]string{"graph", "format"},
		),

		graphServices: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "graph_services",
				Help:      "Number of services in the last planned graph",
			},
			[]string{"graph"},
		),
		graphRelations: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "graph_relations",
				Help:      "Number of relations in the last planned graph",
			},
			[]string{"graph"},
		),

		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Total number of policy violations detected",
			},
			[]string{"policy", "severity"},
		),

		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_kind_total",
				Help:      "Total number of errors by error kind",
			},
			[]string{"kind"},
		),

		activeRenders: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_renders",
				Help:      "Current number of in-flight renders",
			},
		),
		activeWatches: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_watches",
				Help:      "Current number of watched config directories",
			},
		),
	}

	registry.MustRegister(
		m.plansTotal,
		m.planDuration,
		m.rendersStarted,
		m.rendersCompleted,
		m.renderDuration,
		m.recordsRendered,
		m.graphServices,
		m.graphRelations,
		m.policyViolations,
		m.errorsByKind,
		m.activeRenders,
		m.activeWatches,
	)

	return m, nil
}

// Plan Metrics

// RecordPlan records a completed planning run.
func (m *Metrics) RecordPlan(graph, status string, duration time.Duration) {
	if m.plansTotal == nil {
		return
	}
	m.plansTotal.WithLabelValues(graph, status).Inc()
	m.planDuration.WithLabelValues(graph).Observe(duration.Seconds())
}

// SetGraphSize records the node and edge counts of a planned graph.
func (m *Metrics) SetGraphSize(graph string, services, relations int) {
	if m.graphServices == nil {
		return
	}
	m.graphServices.WithLabelValues(graph).Set(float64(services))
	m.graphRelations.WithLabelValues(graph).Set(float64(relations))
}

// Render Metrics

// RecordRenderStarted increments the counter for started renders.
func (m *Metrics) RecordRenderStarted(graph string) {
	if m.rendersStarted == nil {
		return
	}
	m.rendersStarted.WithLabelValues(graph).Inc()
	m.activeRenders.Inc()
}

// RecordRenderCompleted records a completed render with its status and
// duration.
func (m *Metrics) RecordRenderCompleted(graph, status string, duration time.Duration) {
	if m.rendersCompleted == nil {
		return
	}
	m.rendersCompleted.WithLabelValues(graph, status).Inc()
	m.renderDuration.WithLabelValues(graph, status).Observe(duration.Seconds())
	m.activeRenders.Dec()
}

// RecordRecordRendered counts one rendered output record.
func (m *Metrics) RecordRecordRendered(graph, format string) {
	if m.recordsRendered == nil {
		return
	}
	m.recordsRendered.WithLabelValues(graph, format).Inc()
}

// Policy Metrics

// RecordPolicyViolation counts one policy violation.
func (m *Metrics) RecordPolicyViolation(policy, severity string) {
	if m.policyViolations == nil {
		return
	}
	m.policyViolations.WithLabelValues(policy, severity).Inc()
}

// Error Metrics

// RecordError records an error by kind.
func (m *Metrics) RecordError(kind string) {
	if m.errorsByKind == nil {
		return
	}
	m.errorsByKind.WithLabelValues(kind).Inc()
}

// System Metrics

// SetActiveWatches sets the current number of watched directories.
func (m *Metrics) SetActiveWatches(count float64) {
	if m.activeWatches == nil {
		return
	}
	m.activeWatches.Set(count)
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
