// Package metrics records quality gate outcomes as Prometheus metrics.
//
// Each run gets its own registry; a host that wants to keep the numbers
// writes them to a node_exporter textfile with WriteTextfile.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "qulice"

// Recorder implements validation.Observer on top of a private registry.
type Recorder struct {
	registry *prometheus.Registry

	validatorDuration *prometheus.HistogramVec
	validatorOutcomes *prometheus.CounterVec
	runs              *prometheus.CounterVec
}

// NewRecorder creates a Recorder with a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		validatorDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "validator_duration_seconds",
				Help:      "Time spent in each validator",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"validator"},
		),
		validatorOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validator_outcomes_total",
				Help:      "Validator invocations by outcome",
			},
			[]string{"validator", "outcome"},
		),
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Quality gate runs by terminal state",
			},
			[]string{"state"},
		),
	}
}

// ObserveValidator records one validator invocation.
func (r *Recorder) ObserveValidator(name, outcome string, d time.Duration) {
	r.validatorDuration.WithLabelValues(name).Observe(d.Seconds())
	r.validatorOutcomes.WithLabelValues(name, outcome).Inc()
}

// ObserveRun records a finished run.
func (r *Recorder) ObserveRun(state string) {
	r.runs.WithLabelValues(state).Inc()
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes all metrics to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create metrics dir: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
