package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/refinencbf/localhjr/internal/localsolver"
	"github.com/refinencbf/localhjr/internal/monitoring"
	"github.com/refinencbf/localhjr/internal/problems"
	"github.com/refinencbf/localhjr/internal/timeutil"
)

// maxCombos caps the size of the cartesian product of a request.
const maxCombos = 10000

// Request describes a sweep. Empty value lists fall back to the matching
// field of Base.
type Request struct {
	Kind localsolver.Kind
	Base localsolver.Options

	NeighborDistances []float64
	TimeSteps         []float64
	// Tolerances sets both the absolute and relative value-change tolerance.
	Tolerances []float64
}

// Combo is one point of the sweep.
type Combo struct {
	NeighborDistance float64 `json:"neighbor_distance"`
	TimeStep         float64 `json:"time_step"`
	Tolerance        float64 `json:"tolerance"`
}

// ComboResult summarises the solve for one combination.
type ComboResult struct {
	Combo

	RunID       string `json:"run_id"`
	Iterations  int    `json:"iterations"`
	StopReason  string `json:"stop_reason"`
	FinalActive int    `json:"final_active"`

	// Statistics of the post-filtered active set size over iterations.
	ActiveMean   float64 `json:"active_mean"`
	ActiveStddev float64 `json:"active_stddev"`
	// ExpandedMean is the mean expanded set size over iterations.
	ExpandedMean float64 `json:"expanded_mean"`

	StepSeconds float64       `json:"step_seconds"`
	Elapsed     time.Duration `json:"elapsed"`
	Err         string        `json:"error,omitempty"`
}

// Runner executes sweeps one solve at a time.
type Runner struct {
	clock timeutil.Clock
	logf  func(string, ...interface{})
}

// NewRunner returns a runner timing solves with clock; nil uses the wall clock.
func NewRunner(clock timeutil.Clock) *Runner {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Runner{clock: clock, logf: monitoring.Logf}
}

// Combinations expands req into its cartesian product, neighbour distance
// varying slowest.
func Combinations(req Request) ([]Combo, error) {
	nd := orDefault(req.NeighborDistances, req.Base.NeighborDistance)
	ts := orDefault(req.TimeSteps, req.Base.TimeStep)
	tol := orDefault(req.Tolerances, req.Base.Atol)

	total := len(nd) * len(ts) * len(tol)
	if total > maxCombos {
		return nil, fmt.Errorf("parameter combinations would exceed safe limit of %d (got %d)", maxCombos, total)
	}
	combos := make([]Combo, 0, total)
	for _, d := range nd {
		for _, dt := range ts {
			for _, t := range tol {
				combos = append(combos, Combo{NeighborDistance: d, TimeStep: dt, Tolerance: t})
			}
		}
	}
	return combos, nil
}

func orDefault(values []float64, def float64) []float64 {
	if len(values) == 0 {
		return []float64{def}
	}
	return values
}

// Options returns base with the combination applied.
func (c Combo) Options(base localsolver.Options) localsolver.Options {
	opts := base
	opts.NeighborDistance = c.NeighborDistance
	opts.TimeStep = c.TimeStep
	opts.Atol = c.Tolerance
	opts.Rtol = c.Tolerance
	return opts
}

// Run solves p once per combination, in order. A failing solve is recorded
// in its ComboResult and the sweep continues. The context is checked between
// solves; on cancellation the results so far are returned with ctx.Err().
func (r *Runner) Run(ctx context.Context, p *problems.Problem, req Request) ([]ComboResult, error) {
	combos, err := Combinations(req)
	if err != nil {
		return nil, err
	}
	kind := req.Kind
	if kind == "" {
		kind = localsolver.KindClassic
	}

	results := make([]ComboResult, 0, len(combos))
	for i, combo := range combos {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("sweep stopped at combination %d/%d: %w", i+1, len(combos), err)
		}
		res := r.runCombo(p, kind, combo, req.Base)
		r.logf("[sweep] combination %d/%d %+v: %d iterations, stop=%q active=%d elapsed=%s",
			i+1, len(combos), combo, res.Iterations, res.StopReason, res.FinalActive, res.Elapsed)
		results = append(results, res)
	}
	return results, nil
}

func (r *Runner) runCombo(p *problems.Problem, kind localsolver.Kind, combo Combo, base localsolver.Options) ComboResult {
	res := ComboResult{Combo: combo}
	sw := timeutil.StartStopwatch(r.clock)

	solver, err := p.Solver(kind, combo.Options(base))
	if err != nil {
		res.Err = err.Error()
		res.Elapsed = sw.Elapsed()
		return res
	}
	result, err := p.Solve(solver)
	res.Elapsed = sw.Elapsed()
	if err != nil {
		var se *localsolver.StageError
		if errors.As(err, &se) {
			res.Iterations = se.Iteration - 1
		}
		res.Err = err.Error()
		return res
	}
	summarize(&res, result)
	return res
}

// summarize fills the statistics of res from a finished solve.
func summarize(res *ComboResult, r *localsolver.Result) {
	res.RunID = r.ID
	res.Iterations = r.NumIterations()
	res.StopReason = r.StopReason
	res.FinalActive = r.LastActiveSet().Count()
	res.StepSeconds = r.TotalStepDuration().Seconds()

	active := make([]float64, 0, r.NumIterations())
	expanded := make([]float64, 0, r.NumIterations())
	for _, it := range r.Iterations() {
		active = append(active, float64(it.PostFiltered.Count()))
		expanded = append(expanded, float64(it.Expanded.Count()))
	}
	res.ActiveMean, res.ActiveStddev = MeanStddev(active)
	res.ExpandedMean, _ = MeanStddev(expanded)
}

// MeanStddev returns the mean and sample standard deviation of xs, with
// (0, 0) for an empty slice and a zero deviation for a single value.
func MeanStddev(xs []float64) (mean, stddev float64) {
	switch len(xs) {
	case 0:
		return 0, 0
	case 1:
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}
