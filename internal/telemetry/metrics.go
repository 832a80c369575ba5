package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the advisor gateway.
type Metrics struct {
	RoutingPathTotal     *prometheus.CounterVec
	IntentSourceTotal    *prometheus.CounterVec
	QuotaUsedToday       prometheus.Gauge
	CoveragePercent      prometheus.Histogram
	CorrectionTotal      *prometheus.CounterVec
	GenerationDurationMs *prometheus.HistogramVec
	FallbackTotal        *prometheus.CounterVec
	ClarificationTotal   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RoutingPathTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "conseil_routing_path_total",
			Help: "Routing decisions by path.",
		}, []string{"path", "best_effort"}),

		IntentSourceTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "conseil_intent_source_total",
			Help: "Intent classifications by producing source.",
		}, []string{"source", "intent"}),

		QuotaUsedToday: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "conseil_classifier_quota_used_today",
			Help: "Secondary classifier calls consumed today.",
		}),

		CoveragePercent: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "conseil_validation_coverage_percent",
			Help:    "Required-metric coverage of generated answers.",
			Buckets: []float64{0, 25, 50, 62.5, 75, 87.5, 100},
		}),

		CorrectionTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "conseil_correction_total",
			Help: "Correction passes by outcome.",
		}, []string{"outcome"}),

		GenerationDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "conseil_generation_duration_ms",
			Help:    "Generation call duration in milliseconds.",
			Buckets: []float64{250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000},
		}, []string{"model", "mode"}),

		FallbackTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "conseil_fallback_total",
			Help: "Pipeline degradations by stage.",
		}, []string{"stage"}),

		ClarificationTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "conseil_clarification_total",
			Help: "Clarification questions by reason.",
		}, []string{"reason"}),
	}
}

// RecordDecision records one routing decision and the intent that drove it.
func (m *Metrics) RecordDecision(path string, bestEffort bool, source, intent string) {
	effort := "false"
	if bestEffort {
		effort = "true"
	}
	m.RoutingPathTotal.WithLabelValues(path, effort).Inc()
	m.IntentSourceTotal.WithLabelValues(source, intent).Inc()
}

// RecordValidation records coverage and whether a correction ran.
func (m *Metrics) RecordValidation(coveragePercent float64, corrected bool, correctionErr error) {
	m.CoveragePercent.Observe(coveragePercent)
	if !corrected {
		return
	}
	outcome := "success"
	if correctionErr != nil {
		outcome = "error"
	}
	m.CorrectionTotal.WithLabelValues(outcome).Inc()
}

// RecordGeneration records the duration of one generation call.
func (m *Metrics) RecordGeneration(model, mode string, durationMs float64) {
	m.GenerationDurationMs.WithLabelValues(model, mode).Observe(durationMs)
}

// RecordFallback records a degradation at the named pipeline stage.
func (m *Metrics) RecordFallback(stage string) {
	m.FallbackTotal.WithLabelValues(stage).Inc()
}

// RecordClarification records one clarification question asked.
func (m *Metrics) RecordClarification(reason string) {
	m.ClarificationTotal.WithLabelValues(reason).Inc()
}

// SetQuotaUsed publishes the current quota counter.
func (m *Metrics) SetQuotaUsed(used int64) {
	m.QuotaUsedToday.Set(float64(used))
}
