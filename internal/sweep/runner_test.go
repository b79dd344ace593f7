package sweep

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refinencbf/localhjr/internal/grid"
	"github.com/refinencbf/localhjr/internal/hjr"
	"github.com/refinencbf/localhjr/internal/localsolver"
	"github.com/refinencbf/localhjr/internal/problems"
	"github.com/refinencbf/localhjr/internal/testutil"
	"github.com/refinencbf/localhjr/internal/timeutil"
)

func baseRequest(p hjr.PropagatorFunc) Request {
	opts := localsolver.DefaultOptions()
	opts.MaxIterations = 3
	opts.Propagator = p
	return Request{Kind: localsolver.KindClassic, Base: opts}
}

func testRunner(t *testing.T) *Runner {
	r := NewRunner(timeutil.NewMockClock(time.Unix(0, 0)))
	r.logf = t.Logf
	return r
}

func accProblem(t *testing.T) *problems.Problem {
	t.Helper()
	p, err := problems.ActiveCruiseControl(grid.Shape{3, 7, 7})
	require.NoError(t, err)
	return p
}

func TestCombinations(t *testing.T) {
	req := baseRequest(testutil.LowerActive(0.25))
	req.NeighborDistances = []float64{1, 2}
	req.TimeSteps = []float64{-0.1, -0.2, -0.3}

	combos, err := Combinations(req)
	require.NoError(t, err)
	require.Len(t, combos, 6)
	assert.Equal(t, Combo{NeighborDistance: 1, TimeStep: -0.1, Tolerance: 1e-3}, combos[0])
	assert.Equal(t, Combo{NeighborDistance: 1, TimeStep: -0.3, Tolerance: 1e-3}, combos[2])
	assert.Equal(t, Combo{NeighborDistance: 2, TimeStep: -0.1, Tolerance: 1e-3}, combos[3])

	single, err := Combinations(baseRequest(testutil.LowerActive(0.25)))
	require.NoError(t, err)
	assert.Equal(t, []Combo{{NeighborDistance: 1, TimeStep: -0.1, Tolerance: 1e-3}}, single)

	big := baseRequest(testutil.LowerActive(0.25))
	big.NeighborDistances = GenerateRange(0, 99, 1)
	big.TimeSteps = GenerateRange(1, 101, 1)
	_, err = Combinations(big)
	assert.Error(t, err)
}

func TestComboOptions(t *testing.T) {
	base := localsolver.DefaultOptions()
	opts := Combo{NeighborDistance: 2.5, TimeStep: -0.2, Tolerance: 0.1}.Options(base)
	assert.Equal(t, 2.5, opts.NeighborDistance)
	assert.Equal(t, -0.2, opts.TimeStep)
	assert.Equal(t, 0.1, opts.Atol)
	assert.Equal(t, 0.1, opts.Rtol)
	assert.Equal(t, base.MaxIterations, opts.MaxIterations)
	assert.Equal(t, base.BoundaryDistance, opts.BoundaryDistance)
}

func TestRunSummarisesEachCombination(t *testing.T) {
	req := baseRequest(testutil.LowerActive(0.25))
	req.NeighborDistances = []float64{0, 1}

	results, err := testRunner(t).Run(context.Background(), accProblem(t), req)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, res := range results {
		assert.Empty(t, res.Err)
		assert.NotEmpty(t, res.RunID)
		assert.Equal(t, 3, res.Iterations)
		assert.Equal(t, "max_iterations", res.StopReason)
		assert.Greater(t, res.FinalActive, 0)
		assert.Greater(t, res.ActiveMean, 0.0)
		assert.GreaterOrEqual(t, res.ExpandedMean, res.ActiveMean)
	}
	// a wider neighbourhood grows the active set every iteration
	assert.Greater(t, results[1].ActiveStddev, 0.0)
	assert.Greater(t, results[1].FinalActive, results[0].FinalActive)
}

func TestRunRecordsFailures(t *testing.T) {
	req := baseRequest(testutil.NaNPropagator())
	req.TimeSteps = []float64{0, -0.1}

	results, err := testRunner(t).Run(context.Background(), accProblem(t), req)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Contains(t, results[0].Err, "time step")
	assert.Zero(t, results[0].Iterations)

	assert.Contains(t, results[1].Err, string(localsolver.StageStep))
	assert.Zero(t, results[1].Iterations)
	assert.Empty(t, results[1].StopReason)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := testRunner(t).Run(ctx, accProblem(t), baseRequest(testutil.LowerActive(0.25)))
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.Empty(t, results)
}

func TestMeanStddev(t *testing.T) {
	mean, sd := MeanStddev(nil)
	assert.Zero(t, mean)
	assert.Zero(t, sd)

	mean, sd = MeanStddev([]float64{4})
	assert.Equal(t, 4.0, mean)
	assert.Zero(t, sd)

	mean, sd = MeanStddev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, mean, 1e-12)
	assert.InDelta(t, math.Sqrt(32.0/7.0), sd, 1e-12)
}

func TestWriteCSV(t *testing.T) {
	results := []ComboResult{
		{
			Combo:       Combo{NeighborDistance: 1, TimeStep: -0.1, Tolerance: 1e-3},
			RunID:       "run-1",
			Iterations:  3,
			StopReason:  "max_iterations",
			FinalActive: 12,
			ActiveMean:  10.5,
			Elapsed:     1500 * time.Millisecond,
		},
		{Combo: Combo{NeighborDistance: 2, TimeStep: 0, Tolerance: 1e-3}, Err: "bad, time step"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, results))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"1", "-0.1", "0.001", "run-1", "3", "max_iterations", "12",
		"10.5000", "0.0000", "0.0000", "0.000000", "1.500000", ""}, rows[1])
	assert.Equal(t, "bad, time step", rows[2][len(rows[2])-1])
}
