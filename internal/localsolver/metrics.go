package localsolver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// solvesTotal counts finished solves by stop reason ("error" on failure)
	solvesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "localhjr_solves_total",
		Help: "Total local HJR solves by stop reason",
	}, []string{"stop_reason"})

	// iterationsTotal counts recorded iterations across all solves
	iterationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "localhjr_iterations_total",
		Help: "Total local HJR solver iterations",
	})

	// activeCells tracks active set sizes per stage
	activeCells = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "localhjr_active_cells",
		Help:    "Active set size after each stage",
		Buckets: prometheus.ExponentialBuckets(1, 4, 12), // 1 to ~4M cells
	}, []string{"stage"})

	// stepDuration tracks the time spent in the stepper per iteration
	stepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "localhjr_step_duration_seconds",
		Help:    "Stepper duration per iteration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 0.1ms to ~3s
	})

	// stageFailures counts aborted solves by stage and error type
	stageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "localhjr_stage_failures_total",
		Help: "Total solver stage failures by stage and error type",
	}, []string{"stage", "error_type"})
)

func observeIteration(it Iteration) {
	iterationsTotal.Inc()
	activeCells.WithLabelValues(string(StagePreFilter)).Observe(float64(it.PreFiltered.Count()))
	activeCells.WithLabelValues(string(StageExpand)).Observe(float64(it.Expanded.Count()))
	activeCells.WithLabelValues(string(StagePostFilter)).Observe(float64(it.PostFiltered.Count()))
	stepDuration.Observe(it.StepDuration.Seconds())
}

func observeFailure(err *StageError) {
	kind := "other"
	switch {
	case isNumerical(err):
		kind = "non_finite"
	case isShapeMismatch(err):
		kind = "shape_mismatch"
	}
	stageFailures.WithLabelValues(string(err.Stage), kind).Inc()
	solvesTotal.WithLabelValues("error").Inc()
}
