package hjr

import (
	"fmt"
	"math"

	"github.com/refinencbf/localhjr/internal/dynamics"
	"github.com/refinencbf/localhjr/internal/grid"
)

// DefaultMaxSubsteps bounds the CFL substep count of a single Propagate call.
const DefaultMaxSubsteps = 100000

// LaxFriedrichs propagates the value function with first-order one-sided
// differences and local Lax-Friedrichs dissipation:
//
//	dV/dtau = s*H(x, (p+ + p-)/2) + sum_i alpha_i (p+_i - p-_i)/2
//
// where s is +1 backward in time and -1 forward, and alpha bounds |df/dp|.
// Time integration is Euler, TVD-RK2 or TVD-RK3 depending on the accuracy.
type LaxFriedrichs struct {
	// MaxSubsteps caps the number of CFL substeps; zero means DefaultMaxSubsteps.
	MaxSubsteps int
}

// NewLaxFriedrichs returns a propagator with default limits.
func NewLaxFriedrichs() *LaxFriedrichs {
	return &LaxFriedrichs{MaxSubsteps: DefaultMaxSubsteps}
}

// lfPass is the per-call state of one propagation.
type lfPass struct {
	g         *grid.Grid
	ws        *dynamics.Workspace
	cells     []int
	states    []float64
	alpha     []float64
	pbar      []float64
	dims      int
	direction float64
}

// Propagate implements Propagator.
func (lf *LaxFriedrichs) Propagate(dyn dynamics.ControlAffine, g *grid.Grid, settings SolverSettings,
	values grid.Table, timeStart, timeTarget float64, active grid.Mask) (grid.Table, error) {
	if err := settings.Validate(); err != nil {
		return grid.Table{}, err
	}
	if err := g.CheckTable(values); err != nil {
		return grid.Table{}, err
	}
	if err := g.CheckMask(active); err != nil {
		return grid.Table{}, err
	}
	if dyn.StateDim() != g.NumDims() {
		return grid.Table{}, fmt.Errorf("%w: %s has %d states, grid has %d dimensions",
			ErrDimensionMismatch, dyn.Name(), dyn.StateDim(), g.NumDims())
	}

	out := values.Clone()
	span := math.Abs(timeTarget - timeStart)
	if span == 0 || active.IsEmpty() {
		return out, nil
	}

	pass := newLFPass(dyn, g, active)
	pass.direction = -1
	if timeTarget < timeStart {
		pass.direction = 1
	}

	maxRate := pass.maxRate()
	if math.IsNaN(maxRate) || math.IsInf(maxRate, 0) {
		return grid.Table{}, fmt.Errorf("%w: dissipation bound is %v", ErrNonFinite, maxRate)
	}
	steps := 1
	if maxRate > 0 {
		steps = int(math.Ceil(span * maxRate / settings.CFL))
		if steps < 1 {
			steps = 1
		}
	}
	limit := lf.MaxSubsteps
	if limit <= 0 {
		limit = DefaultMaxSubsteps
	}
	if steps > limit {
		return grid.Table{}, fmt.Errorf("%w: %d > %d", ErrTooManySubsteps, steps, limit)
	}
	dt := span / float64(steps)

	v := out.Values()
	start := values.Values()
	u1 := append([]float64(nil), v...)
	u2 := append([]float64(nil), v...)
	rhs := make([]float64, len(pass.cells))
	stages := settings.stages()

	for step := 0; step < steps; step++ {
		pass.rate(v, rhs)
		for k, c := range pass.cells {
			u1[c] = v[c] + dt*rhs[k]
		}
		switch stages {
		case 1:
			for _, c := range pass.cells {
				v[c] = u1[c]
			}
		case 2:
			pass.rate(u1, rhs)
			for k, c := range pass.cells {
				v[c] = 0.5*v[c] + 0.5*(u1[c]+dt*rhs[k])
			}
		default:
			pass.rate(u1, rhs)
			for k, c := range pass.cells {
				u2[c] = 0.75*v[c] + 0.25*(u1[c]+dt*rhs[k])
			}
			pass.rate(u2, rhs)
			for k, c := range pass.cells {
				v[c] = v[c]/3 + 2*(u2[c]+dt*rhs[k])/3
			}
		}
		if settings.Postprocessor == PostprocessBackwardsReachableTube {
			for _, c := range pass.cells {
				v[c] = math.Min(v[c], start[c])
			}
		}
	}

	for _, c := range pass.cells {
		if math.IsNaN(v[c]) || math.IsInf(v[c], 0) {
			return grid.Table{}, fmt.Errorf("%w: cell %d is %v after %d substeps", ErrNonFinite, c, v[c], steps)
		}
	}
	return out, nil
}

func newLFPass(dyn dynamics.ControlAffine, g *grid.Grid, active grid.Mask) *lfPass {
	n := g.NumDims()
	cells := make([]int, 0, active.Count())
	for i, c := range active.Cells() {
		if c {
			cells = append(cells, i)
		}
	}
	p := &lfPass{
		g:      g,
		ws:     dynamics.NewWorkspace(dyn),
		cells:  cells,
		states: make([]float64, len(cells)*n),
		alpha:  make([]float64, len(cells)*n),
		pbar:   make([]float64, n),
		dims:   n,
	}
	for k, c := range cells {
		x := p.states[k*n : (k+1)*n]
		g.State(c, x)
		p.ws.Dissipation(x, p.alpha[k*n:(k+1)*n])
	}
	return p
}

// maxRate returns max over active cells of sum_i alpha_i / dx_i.
func (p *lfPass) maxRate() float64 {
	best := 0.0
	for k := range p.cells {
		r := 0.0
		for d := 0; d < p.dims; d++ {
			r += p.alpha[k*p.dims+d] / p.g.Spacing(d)
		}
		if math.IsNaN(r) {
			return r
		}
		best = math.Max(best, r)
	}
	return best
}

// rate writes dV/dtau at every active cell of u into rhs.
func (p *lfPass) rate(u []float64, rhs []float64) {
	for k, c := range p.cells {
		diss := 0.0
		for d := 0; d < p.dims; d++ {
			dx := p.g.Spacing(d)
			left, okL := p.g.Neighbor(c, d, -1)
			right, okR := p.g.Neighbor(c, d, 1)
			var minus, plus float64
			switch {
			case okL && okR:
				minus = (u[c] - u[left]) / dx
				plus = (u[right] - u[c]) / dx
			case okR:
				plus = (u[right] - u[c]) / dx
				minus = plus
			case okL:
				minus = (u[c] - u[left]) / dx
				plus = minus
			}
			p.pbar[d] = 0.5 * (plus + minus)
			diss += p.alpha[k*p.dims+d] * 0.5 * (plus - minus)
		}
		x := p.states[k*p.dims : (k+1)*p.dims]
		rhs[k] = p.direction*p.ws.Hamiltonian(x, p.pbar) + diss
	}
}
