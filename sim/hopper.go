package sim

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	lqr "github.com/milosgajdos/go-lqr"
	"github.com/milosgajdos/go-lqr/linearize"
	"github.com/milosgajdos/go-lqr/model"
)

// Hopper is a vertical point mass on a massless springy leg with unilateral
// ground contact. The single slide joint is the mass height z; the leg
// spring loads only while compressed, so the inverse dynamics residual at
// rest crosses zero inside the contact regime and saturates at the body
// weight once airborne. Standing still on the leg is the smallest instance
// of trimming a figure onto its support.
//
// Bodies known to PointJacobian: "torso" (the point mass) and "foot" (the
// ground contact reference, which does not move with z).
type Hopper struct {
	*model.Model

	// Mass is the body mass
	Mass float64
	// Stiffness is the leg spring stiffness
	Stiffness float64
	// RestLength is the uncompressed leg length
	RestLength float64
	// Gravity is the gravitational acceleration
	Gravity float64

	dt float64
}

var _ lqr.Plant = (*Hopper)(nil)

// NewHopper creates a hopper plant advanced with timestep dt
func NewHopper(dt float64) (*Hopper, error) {
	if dt <= 0 {
		return nil, fmt.Errorf("invalid timestep %f: %w", dt, lqr.ErrConfiguration)
	}

	m, err := model.New(
		[]model.Joint{
			{Name: "root", Type: model.Slide, Group: model.Root},
		},
		[]model.Actuator{
			{Name: "leg", Joint: "root"},
		},
	)
	if err != nil {
		return nil, err
	}

	return &Hopper{
		Model:      m,
		Mass:       1.0,
		Stiffness:  2000.0,
		RestLength: 0.6,
		Gravity:    9.81,
		dt:         dt,
	}, nil
}

// Timestep returns the plant timestep
func (h *Hopper) Timestep() float64 {
	return h.dt
}

// Equilibrium returns the height at which the leg spring balances gravity
func (h *Hopper) Equilibrium() float64 {
	return h.RestLength - h.Mass*h.Gravity/h.Stiffness
}

// spring returns the upward leg force at height z, zero once airborne
func (h *Hopper) spring(z float64) float64 {
	if z >= h.RestLength {
		return 0.0
	}

	return h.Stiffness * (h.RestLength - z)
}

// Forward computes the vertical acceleration at state s under control u.
// A nil control is treated as zero leg force.
func (h *Hopper) Forward(s *lqr.State, u mat.Vector) (mat.Vector, error) {
	if err := s.CheckDims(1, 1); err != nil {
		return nil, err
	}
	force := 0.0
	if u != nil {
		if u.Len() != 1 {
			return nil, fmt.Errorf("control dim %d, plant nu 1: %w", u.Len(), lqr.ErrDimensionMismatch)
		}
		force = u.AtVec(0)
	}

	z := s.Pos().AtVec(0)
	acc := (force + h.spring(z) - h.Mass*h.Gravity) / h.Mass

	return mat.NewVecDense(1, []float64{acc}), nil
}

// Inverse computes the generalized force required to realize acceleration
// acc at state s. At rest it is the weight not carried by the leg spring.
func (h *Hopper) Inverse(s *lqr.State, acc mat.Vector) (mat.Vector, error) {
	if err := s.CheckDims(1, 1); err != nil {
		return nil, err
	}
	if acc.Len() != 1 {
		return nil, fmt.Errorf("acceleration dim %d, plant nv 1: %w", acc.Len(), lqr.ErrDimensionMismatch)
	}

	z := s.Pos().AtVec(0)
	f := h.Mass*acc.AtVec(0) + h.Mass*h.Gravity - h.spring(z)

	return mat.NewVecDense(1, []float64{f}), nil
}

// Step advances state s by one timestep under control u using semi implicit
// Euler integration
func (h *Hopper) Step(s *lqr.State, u mat.Vector) (*lqr.State, error) {
	acc, err := h.Forward(s, u)
	if err != nil {
		return nil, err
	}

	v := s.Vel()
	v.AddScaledVec(v, h.dt, acc)

	q, err := h.Retract(s.Pos(), lqr.Tangent{VecDense: v}, h.dt)
	if err != nil {
		return nil, err
	}

	return lqr.NewState(q, v), nil
}

// PointJacobian returns the 3 x nv Jacobian of the reference point of the
// named body
func (h *Hopper) PointJacobian(s *lqr.State, body string) (mat.Matrix, error) {
	if err := s.CheckDims(1, 1); err != nil {
		return nil, err
	}

	switch body {
	case "torso":
		return mat.NewDense(3, 1, []float64{0.0, 0.0, 1.0}), nil
	case "foot":
		return mat.NewDense(3, 1, nil), nil
	}

	return nil, fmt.Errorf("unknown body %q: %w", body, lqr.ErrConfiguration)
}

// ActuationMatrix returns the 1 x 1 moment matrix of the leg actuator
func (h *Hopper) ActuationMatrix(s *lqr.State) (mat.Matrix, error) {
	if err := s.CheckDims(1, 1); err != nil {
		return nil, err
	}

	return h.UnitActuation(), nil
}

// Linearize computes the discrete time transition matrices around (s, u)
// by finite differences
func (h *Hopper) Linearize(s *lqr.State, u mat.Vector, eps float64, centered bool) (*mat.Dense, *mat.Dense, error) {
	return linearize.FD(h, s, u, eps, centered)
}
