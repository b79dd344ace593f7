// Package dynamics describes control-affine systems
//
//	dx/dt = a(x) + G(x)u + D(x)d
//
// with box-bounded control u and disturbance d, and evaluates the optimal
// (bang-bang) Hamiltonian used by the value propagator.
package dynamics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrUnknownSystem is returned by Lookup for unregistered names.
var ErrUnknownSystem = errors.New("dynamics: unknown system")

// Mode says whether an actor maximises or minimises the Hamiltonian.
type Mode int

const (
	ModeMax Mode = iota
	ModeMin
)

func (m Mode) String() string {
	if m == ModeMin {
		return "min"
	}
	return "max"
}

// Bounds is a per-component box constraint.
type Bounds struct {
	Lo []float64
	Hi []float64
}

// ControlAffine is implemented by every system the solver can propagate.
type ControlAffine interface {
	Name() string
	StateDim() int
	ControlDim() int
	DisturbanceDim() int
	PeriodicDims() []int

	// OpenLoop writes a(x) into dst (length StateDim).
	OpenLoop(dst *mat.VecDense, x []float64)
	// ControlJacobian writes G(x) into dst (StateDim x ControlDim).
	ControlJacobian(dst *mat.Dense, x []float64)
	// DisturbanceJacobian writes D(x) into dst (StateDim x DisturbanceDim).
	DisturbanceJacobian(dst *mat.Dense, x []float64)

	ControlBounds() Bounds
	DisturbanceBounds() Bounds
	ControlMode() Mode
	DisturbanceMode() Mode
}

// Workspace holds the scratch matrices for evaluating one system cell by
// cell. A Workspace is not safe for concurrent use.
type Workspace struct {
	dyn ControlAffine

	a   *mat.VecDense
	g   *mat.Dense
	d   *mat.Dense
	p   *mat.VecDense
	gtp *mat.VecDense
	dtp *mat.VecDense

	u    []float64
	dist []float64
}

// NewWorkspace allocates scratch space sized for dyn.
func NewWorkspace(dyn ControlAffine) *Workspace {
	n := dyn.StateDim()
	w := &Workspace{
		dyn: dyn,
		a:   mat.NewVecDense(n, nil),
		p:   mat.NewVecDense(n, nil),
	}
	if m := dyn.ControlDim(); m > 0 {
		w.g = mat.NewDense(n, m, nil)
		w.gtp = mat.NewVecDense(m, nil)
		w.u = make([]float64, m)
	}
	if k := dyn.DisturbanceDim(); k > 0 {
		w.d = mat.NewDense(n, k, nil)
		w.dtp = mat.NewVecDense(k, nil)
		w.dist = make([]float64, k)
	}
	return w
}

// Validate checks the bounds match the declared dimensions.
func Validate(dyn ControlAffine) error {
	cb, db := dyn.ControlBounds(), dyn.DisturbanceBounds()
	if len(cb.Lo) != dyn.ControlDim() || len(cb.Hi) != dyn.ControlDim() {
		return fmt.Errorf("dynamics %s: control bounds have %d/%d entries for %d controls",
			dyn.Name(), len(cb.Lo), len(cb.Hi), dyn.ControlDim())
	}
	if len(db.Lo) != dyn.DisturbanceDim() || len(db.Hi) != dyn.DisturbanceDim() {
		return fmt.Errorf("dynamics %s: disturbance bounds have %d/%d entries for %d disturbances",
			dyn.Name(), len(db.Lo), len(db.Hi), dyn.DisturbanceDim())
	}
	for i := range cb.Lo {
		if cb.Lo[i] > cb.Hi[i] {
			return fmt.Errorf("dynamics %s: control %d has lo %g > hi %g", dyn.Name(), i, cb.Lo[i], cb.Hi[i])
		}
	}
	for i := range db.Lo {
		if db.Lo[i] > db.Hi[i] {
			return fmt.Errorf("dynamics %s: disturbance %d has lo %g > hi %g", dyn.Name(), i, db.Lo[i], db.Hi[i])
		}
	}
	return nil
}

// OptimalControl returns the bang-bang control for costate p at x. The
// returned slice is owned by the workspace.
func (w *Workspace) OptimalControl(x, p []float64) []float64 {
	if w.g == nil {
		return nil
	}
	w.dyn.ControlJacobian(w.g, x)
	w.loadCostate(p)
	w.gtp.MulVec(w.g.T(), w.p)
	bangBang(w.u, w.gtp, w.dyn.ControlBounds(), w.dyn.ControlMode())
	return w.u
}

// OptimalDisturbance returns the bang-bang disturbance for costate p at x.
func (w *Workspace) OptimalDisturbance(x, p []float64) []float64 {
	if w.d == nil {
		return nil
	}
	w.dyn.DisturbanceJacobian(w.d, x)
	w.loadCostate(p)
	w.dtp.MulVec(w.d.T(), w.p)
	bangBang(w.dist, w.dtp, w.dyn.DisturbanceBounds(), w.dyn.DisturbanceMode())
	return w.dist
}

// Hamiltonian evaluates p.f(x, u*, d*) with both actors playing optimally.
func (w *Workspace) Hamiltonian(x, p []float64) float64 {
	w.dyn.OpenLoop(w.a, x)
	w.loadCostate(p)
	h := mat.Dot(w.a, w.p)
	if w.g != nil {
		u := w.OptimalControl(x, p)
		for j, uj := range u {
			h += w.gtp.AtVec(j) * uj
		}
	}
	if w.d != nil {
		d := w.OptimalDisturbance(x, p)
		for j, dj := range d {
			h += w.dtp.AtVec(j) * dj
		}
	}
	return h
}

// Dissipation writes into alpha a bound on |df_i/dp| over the admissible
// controls and disturbances, used as the Lax-Friedrichs coefficient.
func (w *Workspace) Dissipation(x []float64, alpha []float64) {
	w.dyn.OpenLoop(w.a, x)
	for i := range alpha {
		alpha[i] = math.Abs(w.a.AtVec(i))
	}
	if w.g != nil {
		w.dyn.ControlJacobian(w.g, x)
		addActorBound(alpha, w.g, w.dyn.ControlBounds())
	}
	if w.d != nil {
		w.dyn.DisturbanceJacobian(w.d, x)
		addActorBound(alpha, w.d, w.dyn.DisturbanceBounds())
	}
}

// evaluate returns f(x, u, d).
func evaluate(dyn ControlAffine, x, u, d []float64) []float64 {
	n := dyn.StateDim()
	a := mat.NewVecDense(n, nil)
	dyn.OpenLoop(a, x)
	out := mat.NewVecDense(n, nil)
	out.CopyVec(a)
	if m := dyn.ControlDim(); m > 0 {
		g := mat.NewDense(n, m, nil)
		dyn.ControlJacobian(g, x)
		out.MulVec(g, mat.NewVecDense(m, append([]float64(nil), u...)))
		out.AddVec(out, a)
	}
	if k := dyn.DisturbanceDim(); k > 0 {
		dm := mat.NewDense(n, k, nil)
		dyn.DisturbanceJacobian(dm, x)
		var dd mat.VecDense
		dd.MulVec(dm, mat.NewVecDense(k, append([]float64(nil), d...)))
		out.AddVec(out, &dd)
	}
	return out.RawVector().Data
}

func (w *Workspace) loadCostate(p []float64) {
	for i, v := range p {
		w.p.SetVec(i, v)
	}
}

func bangBang(dst []float64, coeff *mat.VecDense, b Bounds, mode Mode) {
	for j := range dst {
		c := coeff.AtVec(j)
		if (c >= 0) == (mode == ModeMax) {
			dst[j] = b.Hi[j]
		} else {
			dst[j] = b.Lo[j]
		}
	}
}

func addActorBound(alpha []float64, jac *mat.Dense, b Bounds) {
	_, cols := jac.Dims()
	for i := range alpha {
		for j := 0; j < cols; j++ {
			alpha[i] += math.Abs(jac.At(i, j)) * math.Max(math.Abs(b.Lo[j]), math.Abs(b.Hi[j]))
		}
	}
}
