package sim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	lqr "github.com/milosgajdos/go-lqr"
	"github.com/milosgajdos/go-lqr/linearize"
	"github.com/milosgajdos/go-lqr/model"
)

// Cartpole is a planar pendulum on a cart: a slide joint moving the cart
// along x and a hinge joint tilting the pole, with the pole angle measured
// from the upright. Only the cart is actuated, so keeping the pole up means
// balancing, which makes the plant the canonical end to end fixture for the
// synthesis pipeline.
//
// Bodies known to PointJacobian: "pole" (the pole center of mass) and
// "cart" (the ground contact reference under the cart).
type Cartpole struct {
	*model.Model

	// CartMass is the mass of the cart
	CartMass float64
	// PoleMass is the mass of the pole, lumped at its center
	PoleMass float64
	// PoleLength is the distance from the pivot to the pole center of mass
	PoleLength float64
	// Gravity is the gravitational acceleration
	Gravity float64

	dt float64
}

var _ lqr.Plant = (*Cartpole)(nil)

// NewCartpole creates a cartpole plant advanced with timestep dt
func NewCartpole(dt float64) (*Cartpole, error) {
	if dt <= 0 {
		return nil, fmt.Errorf("invalid timestep %f: %w", dt, lqr.ErrConfiguration)
	}

	m, err := model.New(
		[]model.Joint{
			{Name: "slider", Type: model.Slide, Group: model.Root},
			{Name: "pole", Type: model.Hinge, Group: model.Balance},
		},
		[]model.Actuator{
			{Name: "drive", Joint: "slider"},
		},
	)
	if err != nil {
		return nil, err
	}

	return &Cartpole{
		Model:      m,
		CartMass:   1.0,
		PoleMass:   0.1,
		PoleLength: 0.5,
		Gravity:    9.81,
		dt:         dt,
	}, nil
}

// Timestep returns the plant timestep
func (c *Cartpole) Timestep() float64 {
	return c.dt
}

// mass returns the entries of the symmetric joint space inertia matrix
// at pole angle theta
func (c *Cartpole) mass(theta float64) (m00, m01, m11 float64) {
	m00 = c.CartMass + c.PoleMass
	m01 = c.PoleMass * c.PoleLength * math.Cos(theta)
	m11 = c.PoleMass * c.PoleLength * c.PoleLength

	return m00, m01, m11
}

// bias returns the Coriolis and gravity term h so that M*a + h = tau
func (c *Cartpole) bias(theta, omega float64) (h0, h1 float64) {
	h0 = -c.PoleMass * c.PoleLength * math.Sin(theta) * omega * omega
	h1 = -c.PoleMass * c.Gravity * c.PoleLength * math.Sin(theta)

	return h0, h1
}

// Forward computes the generalized acceleration at state s under control u.
// A nil control is treated as zero force on the cart.
func (c *Cartpole) Forward(s *lqr.State, u mat.Vector) (mat.Vector, error) {
	if err := s.CheckDims(2, 2); err != nil {
		return nil, err
	}
	force := 0.0
	if u != nil {
		if u.Len() != 1 {
			return nil, fmt.Errorf("control dim %d, plant nu 1: %w", u.Len(), lqr.ErrDimensionMismatch)
		}
		force = u.AtVec(0)
	}

	q, v := s.Pos(), s.Vel()
	theta, omega := q.AtVec(1), v.AtVec(1)

	m00, m01, m11 := c.mass(theta)
	h0, h1 := c.bias(theta, omega)

	// a = inv(M)*(tau - h)
	r0, r1 := force-h0, -h1
	det := m00*m11 - m01*m01

	return mat.NewVecDense(2, []float64{
		(m11*r0 - m01*r1) / det,
		(m00*r1 - m01*r0) / det,
	}), nil
}

// Inverse computes the generalized force M*acc + h required to realize
// acceleration acc at state s
func (c *Cartpole) Inverse(s *lqr.State, acc mat.Vector) (mat.Vector, error) {
	if err := s.CheckDims(2, 2); err != nil {
		return nil, err
	}
	if acc.Len() != 2 {
		return nil, fmt.Errorf("acceleration dim %d, plant nv 2: %w", acc.Len(), lqr.ErrDimensionMismatch)
	}

	q, v := s.Pos(), s.Vel()
	theta, omega := q.AtVec(1), v.AtVec(1)

	m00, m01, m11 := c.mass(theta)
	h0, h1 := c.bias(theta, omega)

	return mat.NewVecDense(2, []float64{
		m00*acc.AtVec(0) + m01*acc.AtVec(1) + h0,
		m01*acc.AtVec(0) + m11*acc.AtVec(1) + h1,
	}), nil
}

// Step advances state s by one timestep under control u using semi implicit
// Euler integration
func (c *Cartpole) Step(s *lqr.State, u mat.Vector) (*lqr.State, error) {
	acc, err := c.Forward(s, u)
	if err != nil {
		return nil, err
	}

	v := s.Vel()
	v.AddScaledVec(v, c.dt, acc)

	q, err := c.Retract(s.Pos(), lqr.Tangent{VecDense: v}, c.dt)
	if err != nil {
		return nil, err
	}

	return lqr.NewState(q, v), nil
}

// PointJacobian returns the 3 x nv Jacobian of the reference point of the
// named body
func (c *Cartpole) PointJacobian(s *lqr.State, body string) (mat.Matrix, error) {
	if err := s.CheckDims(2, 2); err != nil {
		return nil, err
	}

	theta := s.Pos().AtVec(1)
	switch body {
	case "pole":
		// pole CoM sits at (x + l*sin, 0, l*cos)
		return mat.NewDense(3, 2, []float64{
			1.0, c.PoleLength * math.Cos(theta),
			0.0, 0.0,
			0.0, -c.PoleLength * math.Sin(theta),
		}), nil
	case "cart":
		return mat.NewDense(3, 2, []float64{
			1.0, 0.0,
			0.0, 0.0,
			0.0, 0.0,
		}), nil
	}

	return nil, fmt.Errorf("unknown body %q: %w", body, lqr.ErrConfiguration)
}

// ActuationMatrix returns the 1 x 2 moment matrix of the cart drive
func (c *Cartpole) ActuationMatrix(s *lqr.State) (mat.Matrix, error) {
	if err := s.CheckDims(2, 2); err != nil {
		return nil, err
	}

	return c.UnitActuation(), nil
}

// Linearize computes the discrete time transition matrices around (s, u)
// by finite differences
func (c *Cartpole) Linearize(s *lqr.State, u mat.Vector, eps float64, centered bool) (*mat.Dense, *mat.Dense, error) {
	return linearize.FD(c, s, u, eps, centered)
}
