package dynamics

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// QuadcopterParams are the physical constants of the planar quadcopter.
type QuadcopterParams struct {
	Gravity         float64 `json:"gravity"`
	Mass            float64 `json:"mass"`
	DragV           float64 `json:"drag_coefficient_v"`
	DragPhi         float64 `json:"drag_coefficient_phi"`
	ArmLength       float64 `json:"length_between_copters"`
	MomentOfInertia float64 `json:"moment_of_inertia"`
	MinThrust       float64 `json:"min_thrust"`
	MaxThrust       float64 `json:"max_thrust"`
}

// DefaultQuadcopterParams returns the reference parameter set.
func DefaultQuadcopterParams() QuadcopterParams {
	return QuadcopterParams{
		Gravity:         9.81,
		Mass:            2.5,
		DragV:           0.25,
		DragPhi:         0.02255,
		ArmLength:       1.0,
		MomentOfInertia: 1.0,
		MinThrust:       0,
		MaxThrust:       20,
	}
}

// QuadcopterVertical models vertical flight with roll.
// State: height, vertical velocity, roll angle (periodic), roll rate.
// Control: left and right rotor thrust.
type QuadcopterVertical struct {
	QuadcopterParams
}

// NewQuadcopterVertical builds the model from params.
func NewQuadcopterVertical(params QuadcopterParams) *QuadcopterVertical {
	return &QuadcopterVertical{QuadcopterParams: params}
}

func (q *QuadcopterVertical) Name() string        { return SystemQuadcopterVertical }
func (q *QuadcopterVertical) StateDim() int       { return 4 }
func (q *QuadcopterVertical) ControlDim() int     { return 2 }
func (q *QuadcopterVertical) DisturbanceDim() int { return 1 }
func (q *QuadcopterVertical) PeriodicDims() []int { return []int{2} }

func (q *QuadcopterVertical) OpenLoop(dst *mat.VecDense, x []float64) {
	dst.SetVec(0, x[1])
	dst.SetVec(1, -q.DragV/q.Mass*x[1]-q.Gravity)
	dst.SetVec(2, x[3])
	dst.SetVec(3, -q.DragPhi/q.MomentOfInertia*x[3])
}

func (q *QuadcopterVertical) ControlJacobian(dst *mat.Dense, x []float64) {
	dst.Zero()
	lift := math.Cos(x[2]) / q.Mass
	dst.Set(1, 0, lift)
	dst.Set(1, 1, lift)
	torque := q.ArmLength / q.MomentOfInertia
	dst.Set(3, 0, -torque)
	dst.Set(3, 1, torque)
}

func (q *QuadcopterVertical) DisturbanceJacobian(dst *mat.Dense, x []float64) {
	dst.Zero()
}

func (q *QuadcopterVertical) ControlBounds() Bounds {
	return Bounds{
		Lo: []float64{q.MinThrust, q.MinThrust},
		Hi: []float64{q.MaxThrust, q.MaxThrust},
	}
}

func (q *QuadcopterVertical) DisturbanceBounds() Bounds {
	return Bounds{Lo: []float64{0}, Hi: []float64{0}}
}

func (q *QuadcopterVertical) ControlMode() Mode     { return ModeMax }
func (q *QuadcopterVertical) DisturbanceMode() Mode { return ModeMin }
