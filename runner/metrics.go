package runner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared by runners. Every series
// carries a "runner" label with the run's name.
//
// Thread Safety: Safe for concurrent use (Prometheus metrics are thread-safe).
type Metrics struct {
	// Evaluations counts finished evaluations by result ("ok" or "failed").
	Evaluations *prometheus.CounterVec

	// EvaluationDuration measures how long evaluations take.
	EvaluationDuration *prometheus.HistogramVec

	// InFlight is the number of evaluations currently running.
	InFlight *prometheus.GaugeVec

	// Loss is the learner's loss after the latest tell.
	Loss *prometheus.GaugeVec

	// Points is the learner's number of evaluated inputs.
	Points *prometheus.GaugeVec

	// Checkpoints counts checkpoint attempts by result ("ok" or "error").
	Checkpoints *prometheus.CounterVec
}

// NewMetrics creates the runner metrics and registers them with reg. A nil
// reg leaves them unregistered.
//
// Create one Metrics per registerer and share it between runners;
// registering twice on the same registerer panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Evaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "adaptive",
				Subsystem: "runner",
				Name:      "evaluations_total",
				Help:      "Total evaluations by runner and result",
			},
			[]string{"runner", "result"},
		),

		EvaluationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "adaptive",
				Subsystem: "runner",
				Name:      "evaluation_duration_seconds",
				Help:      "Time spent in one evaluation",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 12),
			},
			[]string{"runner"},
		),

		InFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "adaptive",
				Subsystem: "runner",
				Name:      "in_flight",
				Help:      "Evaluations currently running",
			},
			[]string{"runner"},
		),

		Loss: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "adaptive",
				Subsystem: "runner",
				Name:      "loss",
				Help:      "Learner loss after the latest tell",
			},
			[]string{"runner"},
		),

		Points: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "adaptive",
				Subsystem: "runner",
				Name:      "points",
				Help:      "Evaluated inputs held by the learner",
			},
			[]string{"runner"},
		),

		Checkpoints: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "adaptive",
				Subsystem: "runner",
				Name:      "checkpoints_total",
				Help:      "Checkpoint attempts by runner and result",
			},
			[]string{"runner", "result"},
		),
	}
}
