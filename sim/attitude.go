package sim

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	lqr "github.com/milosgajdos/go-lqr"
	"github.com/milosgajdos/go-lqr/linearize"
	"github.com/milosgajdos/go-lqr/model"
)

// Attitude is a torque controlled rigid body orientation with unit inertia:
// a single ball joint holding a unit quaternion, driven by body frame
// torques around all three axes. Its position space is curved while its
// dynamics are trivial, which isolates the quaternion handling of the
// manifold and linearization code.
//
// The only body known to PointJacobian is "com", which sits at the center
// of rotation and never translates.
type Attitude struct {
	*model.Model

	dt float64
}

var _ lqr.Plant = (*Attitude)(nil)

// NewAttitude creates an attitude plant advanced with timestep dt
func NewAttitude(dt float64) (*Attitude, error) {
	if dt <= 0 {
		return nil, fmt.Errorf("invalid timestep %f: %w", dt, lqr.ErrConfiguration)
	}

	m, err := model.New(
		[]model.Joint{
			{Name: "orient", Type: model.Ball, Group: model.Balance},
		},
		[]model.Actuator{
			{Name: "tx", Joint: "orient", Axis: 0},
			{Name: "ty", Joint: "orient", Axis: 1},
			{Name: "tz", Joint: "orient", Axis: 2},
		},
	)
	if err != nil {
		return nil, err
	}

	return &Attitude{Model: m, dt: dt}, nil
}

// Timestep returns the plant timestep
func (a *Attitude) Timestep() float64 {
	return a.dt
}

// Forward computes the angular acceleration at state s under torque u.
// With unit inertia the gyroscopic term vanishes and acceleration equals
// torque. A nil control is treated as zero torque.
func (a *Attitude) Forward(s *lqr.State, u mat.Vector) (mat.Vector, error) {
	if err := s.CheckDims(4, 3); err != nil {
		return nil, err
	}

	acc := mat.NewVecDense(3, nil)
	if u != nil {
		if u.Len() != 3 {
			return nil, fmt.Errorf("control dim %d, plant nu 3: %w", u.Len(), lqr.ErrDimensionMismatch)
		}
		acc.CloneFromVec(u)
	}

	return acc, nil
}

// Inverse computes the torque required to realize angular acceleration acc
// at state s
func (a *Attitude) Inverse(s *lqr.State, acc mat.Vector) (mat.Vector, error) {
	if err := s.CheckDims(4, 3); err != nil {
		return nil, err
	}
	if acc.Len() != 3 {
		return nil, fmt.Errorf("acceleration dim %d, plant nv 3: %w", acc.Len(), lqr.ErrDimensionMismatch)
	}

	f := mat.NewVecDense(3, nil)
	f.CloneFromVec(acc)

	return f, nil
}

// Step advances state s by one timestep under torque u using semi implicit
// Euler integration: the updated body rate rotates the quaternion through
// the manifold retraction
func (a *Attitude) Step(s *lqr.State, u mat.Vector) (*lqr.State, error) {
	acc, err := a.Forward(s, u)
	if err != nil {
		return nil, err
	}

	v := s.Vel()
	v.AddScaledVec(v, a.dt, acc)

	q, err := a.Retract(s.Pos(), lqr.Tangent{VecDense: v}, a.dt)
	if err != nil {
		return nil, err
	}

	return lqr.NewState(q, v), nil
}

// PointJacobian returns the 3 x nv Jacobian of the reference point of the
// named body
func (a *Attitude) PointJacobian(s *lqr.State, body string) (mat.Matrix, error) {
	if err := s.CheckDims(4, 3); err != nil {
		return nil, err
	}

	if body != "com" {
		return nil, fmt.Errorf("unknown body %q: %w", body, lqr.ErrConfiguration)
	}

	return mat.NewDense(3, 3, nil), nil
}

// ActuationMatrix returns the 3 x 3 moment matrix of the body torques
func (a *Attitude) ActuationMatrix(s *lqr.State) (mat.Matrix, error) {
	if err := s.CheckDims(4, 3); err != nil {
		return nil, err
	}

	return a.UnitActuation(), nil
}

// Linearize computes the discrete time transition matrices around (s, u)
// by finite differences
func (a *Attitude) Linearize(s *lqr.State, u mat.Vector, eps float64, centered bool) (*mat.Dense, *mat.Dense, error) {
	return linearize.FD(a, s, u, eps, centered)
}
