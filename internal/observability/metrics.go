package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "ghg"
	subsystem = "inventory"
)

// Metrics holds the engine's Prometheus collectors on a dedicated registry.
// All record helpers are safe to call on a nil receiver, so callers that run
// without metrics wired simply pass nil.
type Metrics struct {
	registry *prometheus.Registry

	calculationsTotal   *prometheus.CounterVec
	calculationDuration prometheus.Histogram
	aggregationDuration prometheus.Histogram
	qaqcIssues          *prometheus.GaugeVec
	factorStale         prometheus.Gauge
}

// NewMetrics builds the collector set and registers it on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		calculationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "calculations_total",
			Help:      "Total calculation snapshots attempted, by method key and status.",
		}, []string{"method", "status"}),
		calculationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "calculation_duration_seconds",
			Help:      "Histogram of single-activity calculation durations.",
			Buckets:   prometheus.DefBuckets,
		}),
		aggregationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "aggregation_duration_seconds",
			Help:      "Histogram of organization rollup durations.",
			Buckets:   prometheus.DefBuckets,
		}),
		qaqcIssues: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "qaqc_issues",
			Help:      "Issues found by the most recent QA/QC run, by severity.",
		}, []string{"severity"}),
		factorStale: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "factor_stale",
			Help:      "Live emission factors flagged stale by the most recent currency sweep.",
		}),
	}

	m.registry.MustRegister(
		m.calculationsTotal,
		m.calculationDuration,
		m.aggregationDuration,
		m.qaqcIssues,
		m.factorStale,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CalculationObserved records one calculation attempt.
func (m *Metrics) CalculationObserved(method, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.calculationsTotal.WithLabelValues(method, status).Inc()
	m.calculationDuration.Observe(duration.Seconds())
}

// AggregationObserved records one rollup pass.
func (m *Metrics) AggregationObserved(duration time.Duration) {
	if m == nil {
		return
	}
	m.aggregationDuration.Observe(duration.Seconds())
}

// QAQCIssues publishes the issue counts of the latest QA/QC run.
func (m *Metrics) QAQCIssues(errors, warnings, infos int) {
	if m == nil {
		return
	}
	m.qaqcIssues.WithLabelValues("error").Set(float64(errors))
	m.qaqcIssues.WithLabelValues("warning").Set(float64(warnings))
	m.qaqcIssues.WithLabelValues("info").Set(float64(infos))
}

// StaleFactors publishes the stale-factor count of the latest sweep.
func (m *Metrics) StaleFactors(count int) {
	if m == nil {
		return
	}
	m.factorStale.Set(float64(count))
}
