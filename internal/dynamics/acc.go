package dynamics

import "gonum.org/v1/gonum/mat"

// ActiveCruiseControl models a following vehicle.
// State: position, velocity, distance to the lead vehicle.
// Control: traction force.
type ActiveCruiseControl struct {
	Mass float64
	// Friction holds f0, f1, f2 of the rolling resistance f0 + f1 v + f2 v^2.
	Friction       [3]float64
	TargetVelocity float64
	MaxForce       float64
}

// NewActiveCruiseControl returns the simplified model used by the demos.
func NewActiveCruiseControl() *ActiveCruiseControl {
	return &ActiveCruiseControl{
		Mass:     1650,
		MaxForce: 5000,
	}
}

func (c *ActiveCruiseControl) Name() string        { return SystemActiveCruiseControl }
func (c *ActiveCruiseControl) StateDim() int       { return 3 }
func (c *ActiveCruiseControl) ControlDim() int     { return 1 }
func (c *ActiveCruiseControl) DisturbanceDim() int { return 1 }
func (c *ActiveCruiseControl) PeriodicDims() []int { return nil }

func (c *ActiveCruiseControl) OpenLoop(dst *mat.VecDense, x []float64) {
	v := x[1]
	resistance := c.Friction[0] + c.Friction[1]*v + c.Friction[2]*v*v
	dst.SetVec(0, v)
	dst.SetVec(1, -resistance/c.Mass)
	dst.SetVec(2, c.TargetVelocity-v)
}

func (c *ActiveCruiseControl) ControlJacobian(dst *mat.Dense, x []float64) {
	dst.Zero()
	dst.Set(1, 0, 1/c.Mass)
}

func (c *ActiveCruiseControl) DisturbanceJacobian(dst *mat.Dense, x []float64) {
	dst.Zero()
}

func (c *ActiveCruiseControl) ControlBounds() Bounds {
	return Bounds{Lo: []float64{-c.MaxForce}, Hi: []float64{c.MaxForce}}
}

func (c *ActiveCruiseControl) DisturbanceBounds() Bounds {
	return Bounds{Lo: []float64{0}, Hi: []float64{0}}
}

func (c *ActiveCruiseControl) ControlMode() Mode     { return ModeMax }
func (c *ActiveCruiseControl) DisturbanceMode() Mode { return ModeMin }
