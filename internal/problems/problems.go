// Package problems builds ready-made reachability problems: a grid, the
// dynamics, avoid and reach sets, terminal values and a seed active set.
package problems

import (
	"fmt"
	"math"

	"github.com/refinencbf/localhjr/internal/dynamics"
	"github.com/refinencbf/localhjr/internal/grid"
	"github.com/refinencbf/localhjr/internal/localsolver"
)

// Problem is everything a solver needs besides its parameters.
type Problem struct {
	Name          string
	Setup         localsolver.Setup
	AvoidSet      grid.Mask
	ReachSet      grid.Mask
	InitialValues grid.Table
	SeedSet       grid.Mask
}

// Default grid resolutions per system.
var defaultShapes = map[string]grid.Shape{
	dynamics.SystemActiveCruiseControl: {3, 201, 201},
	dynamics.SystemQuadcopterVertical:  {51, 25, 51, 25},
}

// DefaultShape returns the standard grid resolution for a system.
func DefaultShape(name string) (grid.Shape, error) {
	s, ok := defaultShapes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", dynamics.ErrUnknownSystem, name)
	}
	return s.Clone(), nil
}

// Build returns the named problem. A nil shape uses DefaultShape.
func Build(name string, shape grid.Shape) (*Problem, error) {
	if shape == nil {
		s, err := DefaultShape(name)
		if err != nil {
			return nil, err
		}
		shape = s
	}
	switch name {
	case dynamics.SystemActiveCruiseControl:
		return ActiveCruiseControl(shape)
	case dynamics.SystemQuadcopterVertical:
		return QuadcopterVertical(shape)
	default:
		return nil, fmt.Errorf("%w: %q", dynamics.ErrUnknownSystem, name)
	}
}

// ActiveCruiseControl keeps the relative distance x3 between 40 and 60.
// The seed set is the whole safe set.
func ActiveCruiseControl(shape grid.Shape) (*Problem, error) {
	dyn := dynamics.NewActiveCruiseControl()
	g, err := grid.New(grid.Domain{
		Lo: []float64{0, -20, 20},
		Hi: []float64{1e3, 20, 80},
	}, shape, dyn.PeriodicDims()...)
	if err != nil {
		return nil, fmt.Errorf("active cruise control grid: %w", err)
	}
	avoid := g.MaskFunc(func(x []float64) bool { return x[2] > 60 || x[2] < 40 })
	safe := avoid.Not()
	return &Problem{
		Name:          dyn.Name(),
		Setup:         localsolver.Setup{Grid: g, Dynamics: dyn},
		AvoidSet:      avoid,
		ReachSet:      grid.NewMask(g.Shape()),
		InitialValues: grid.SignedDistance(g, safe),
		SeedSet:       safe,
	}, nil
}

// QuadcopterVertical keeps the height x0 between 1 and 9, with the roll
// angle periodic. The seed set is where the terminal values are non-negative.
func QuadcopterVertical(shape grid.Shape) (*Problem, error) {
	dyn := dynamics.NewQuadcopterVertical(dynamics.DefaultQuadcopterParams())
	g, err := grid.New(grid.Domain{
		Lo: []float64{0, -8, -math.Pi, -10},
		Hi: []float64{10, 8, math.Pi, 10},
	}, shape, dyn.PeriodicDims()...)
	if err != nil {
		return nil, fmt.Errorf("quadcopter vertical grid: %w", err)
	}
	avoid := g.MaskFunc(func(x []float64) bool { return x[0] < 1 || x[0] > 9 })
	initial := grid.SignedDistance(g, avoid.Not())
	return &Problem{
		Name:          dyn.Name(),
		Setup:         localsolver.Setup{Grid: g, Dynamics: dyn},
		AvoidSet:      avoid,
		ReachSet:      grid.NewMask(g.Shape()),
		InitialValues: initial,
		SeedSet:       initial.NonNegative(),
	}, nil
}

// Solver builds a solver of the given kind for p.
func (p *Problem) Solver(kind localsolver.Kind, opts localsolver.Options) (*localsolver.Solver, error) {
	return localsolver.Build(kind, p.Setup, p.AvoidSet, p.ReachSet, opts)
}

// Solve runs solver from the problem's seed set and initial values.
func (p *Problem) Solve(solver *localsolver.Solver) (*localsolver.Result, error) {
	return solver.Solve(p.SeedSet, p.InitialValues)
}
