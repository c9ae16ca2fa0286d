package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors the engine updates as it executes
// Runs. A nil *Metrics disables collection everywhere a method is called on
// it -- every method has a nil receiver guard, so callers never need their
// own conditional.
//
// Metrics exposed (all namespaced with "stepforge_"):
//
//  1. step_duration_seconds (histogram): wall-clock time of one step
//     attempt, labeled by workflow name, step type, and outcome
//     (success/fail).
//  2. step_retries_total (counter): retry attempts, labeled by workflow
//     name and step type.
//  3. run_outcomes_total (counter): terminal Run outcomes, labeled by
//     workflow name and status (COMPLETED/FAILED).
//  4. runs_inflight (gauge): Runs currently RUNNING.
type Metrics struct {
	stepDuration *prometheus.HistogramVec
	stepRetries  *prometheus.CounterVec
	runOutcomes  *prometheus.CounterVec
	runsInflight prometheus.Gauge
}

// NewMetrics creates and registers the engine's collectors with registry.
// Pass prometheus.DefaultRegisterer for the global registry, or a fresh
// *prometheus.Registry for test isolation.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stepforge",
			Name:      "step_duration_seconds",
			Help:      "Duration of a single step attempt, in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"workflow", "step_type", "outcome"}),
		stepRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stepforge",
			Name:      "step_retries_total",
			Help:      "Count of step retry attempts.",
		}, []string{"workflow", "step_type"}),
		runOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stepforge",
			Name:      "run_outcomes_total",
			Help:      "Count of Runs reaching a terminal status.",
		}, []string{"workflow", "status"}),
		runsInflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "stepforge",
			Name:      "runs_inflight",
			Help:      "Number of Runs currently RUNNING.",
		}),
	}
}

func (m *Metrics) observeStepDuration(workflow, stepType, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(workflow, stepType, outcome).Observe(seconds)
}

func (m *Metrics) incStepRetry(workflow, stepType string) {
	if m == nil {
		return
	}
	m.stepRetries.WithLabelValues(workflow, stepType).Inc()
}

func (m *Metrics) incRunOutcome(workflow, status string) {
	if m == nil {
		return
	}
	m.runOutcomes.WithLabelValues(workflow, status).Inc()
}

func (m *Metrics) incRunsInflight() {
	if m == nil {
		return
	}
	m.runsInflight.Inc()
}

func (m *Metrics) decRunsInflight() {
	if m == nil {
		return
	}
	m.runsInflight.Dec()
}
