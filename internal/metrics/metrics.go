package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the extraction pipeline.
type Metrics struct {
	Registry           *prometheus.Registry
	ExtractionsTotal   *prometheus.CounterVec
	StageErrorsTotal   *prometheus.CounterVec
	TokensTotal        *prometheus.CounterVec
	CostEURTotal       prometheus.Counter
	ExtractionDuration prometheus.Histogram
	AdmissionWait      prometheus.Histogram
	InFlight           prometheus.Gauge
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	extractions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipesnap_extractions_total",
			Help: "Completed extraction requests by method and outcome.",
		},
		[]string{"method", "outcome"},
	)
	stageErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipesnap_stage_errors_total",
			Help: "Stage-local failures by error type.",
		},
		[]string{"stage", "error_type"},
	)
	tokens := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipesnap_tokens_total",
			Help: "Tokens consumed by the reasoning backend.",
		},
		[]string{"kind"},
	)
	cost := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recipesnap_cost_eur_total",
			Help: "Estimated reasoning spend in EUR.",
		},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recipesnap_extraction_duration_seconds",
			Help:    "Wall time of admitted pipeline runs.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 180, 300},
		},
	)
	wait := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recipesnap_admission_wait_seconds",
			Help:    "Time requests spend queued before admission.",
			Buckets: prometheus.DefBuckets,
		},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "recipesnap_extractions_in_flight",
			Help: "Pipeline runs currently executing.",
		},
	)

	registry.MustRegister(extractions, stageErrors, tokens, cost, duration, wait, inFlight)

	return &Metrics{
		Registry:           registry,
		ExtractionsTotal:   extractions,
		StageErrorsTotal:   stageErrors,
		TokensTotal:        tokens,
		CostEURTotal:       cost,
		ExtractionDuration: duration,
		AdmissionWait:      wait,
		InFlight:           inFlight,
	}
}

// ObserveExtraction records a finished request.
func (m *Metrics) ObserveExtraction(method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ExtractionsTotal.WithLabelValues(method, outcome).Inc()
	m.ExtractionDuration.Observe(elapsed.Seconds())
}

// IncStageError counts a stage-local failure.
func (m *Metrics) IncStageError(stage, errorType string) {
	if m == nil {
		return
	}
	m.StageErrorsTotal.WithLabelValues(stage, errorType).Inc()
}

// AddUsage accumulates token and cost counters.
func (m *Metrics) AddUsage(promptTokens, candidatesTokens int, costEUR float64) {
	if m == nil {
		return
	}
	m.TokensTotal.WithLabelValues("prompt").Add(float64(promptTokens))
	m.TokensTotal.WithLabelValues("candidates").Add(float64(candidatesTokens))
	m.CostEURTotal.Add(costEUR)
}

// ObserveAdmissionWait records queueing latency.
func (m *Metrics) ObserveAdmissionWait(d time.Duration) {
	if m == nil {
		return
	}
	m.AdmissionWait.Observe(d.Seconds())
}
