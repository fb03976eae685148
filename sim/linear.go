package sim

import (
	"fmt"

	"github.com/milosgajdos/matrix"
	"gonum.org/v1/gonum/mat"

	lqr "github.com/milosgajdos/go-lqr"
)

// Linear is a discrete time LTI test plant:
//
//	x' = A*x + B*u, x = [q; v]
//
// Positions carry no quaternion blocks, so position and tangent spaces
// coincide and the manifold operations are plain vector arithmetic. The
// state splits evenly into k position and k velocity coordinates. Linearize
// returns the exact system matrices, which makes the plant a fixture for
// the Riccati and closed loop stages.
type Linear struct {
	a  *mat.Dense
	b  *mat.Dense
	dt float64
	nv int
	nu int
}

var (
	_ lqr.Descriptor = (*Linear)(nil)
	_ lqr.Stepper    = (*Linear)(nil)
	_ lqr.Manifold   = (*Linear)(nil)
	_ lqr.Linearizer = (*Linear)(nil)
)

// NewLinear creates a discrete time linear plant from transition matrices
// A (2k x 2k) and B (2k x nu) advanced with timestep dt.
func NewLinear(A, B *mat.Dense, dt float64) (*Linear, error) {
	if A == nil || B == nil {
		return nil, fmt.Errorf("system matrices must be defined for a plant: %w", lqr.ErrConfiguration)
	}
	if dt <= 0 {
		return nil, fmt.Errorf("invalid timestep %f: %w", dt, lqr.ErrConfiguration)
	}

	n, c := A.Dims()
	if n != c || n%2 != 0 {
		return nil, fmt.Errorf("invalid transition matrix dimensions [%d x %d]: %w", n, c, lqr.ErrDimensionMismatch)
	}
	br, nu := B.Dims()
	if br != n {
		return nil, fmt.Errorf("invalid input matrix dimensions [%d x %d]: %w", br, nu, lqr.ErrDimensionMismatch)
	}

	a, b := &mat.Dense{}, &mat.Dense{}
	a.CloneFrom(A)
	b.CloneFrom(B)

	return &Linear{a: a, b: b, dt: dt, nv: n / 2, nu: nu}, nil
}

// NewLinearFromContinuous discretizes the continuous time system
//
//	dx/dt = A*x + B*u
//
// with sampling time dt through the matrix exponential:
//
//	Ad = exp(A*dt), Bd = (exp(A*dt) - I)*inv(A)*B
//
// See Discrete-Time Control Systems by Katsuhiko Ogata, Eq. (5-73) p. 315.
// For singular A the input integral is evaluated in closed form with a
// fixed quadrature step.
func NewLinearFromContinuous(A, B *mat.Dense, dt float64) (*Linear, error) {
	if A == nil || B == nil {
		return nil, fmt.Errorf("system matrices must be defined for a plant: %w", lqr.ErrConfiguration)
	}
	n, c := A.Dims()
	if n != c {
		return nil, fmt.Errorf("invalid system matrix dimensions [%d x %d]: %w", n, c, lqr.ErrDimensionMismatch)
	}

	ad := &mat.Dense{}
	ad.Scale(dt, A)
	ad.Exp(ad)

	eye, err := matrix.NewDenseValIdentity(n, 1.0)
	if err != nil {
		return nil, err
	}

	bd := &mat.Dense{}
	aux := mat.NewDense(n, n, nil)
	aux.Sub(ad, eye)

	ainv := mat.NewDense(n, n, nil)
	if err := ainv.Inverse(A); err == nil {
		// Bd = (exp(A*dt) - I)*inv(A)*B
		aux.Mul(aux, ainv)
		bd.Mul(aux, B)

		return NewLinear(ad, bd, dt)
	}

	// A is singular: Bd = integrate( exp(A*t)dt, 0, dt ) * B
	sum := mat.NewDense(n, n, nil)
	const steps = 100
	h := dt / float64(steps-1)
	for i := 0; i < steps; i++ {
		aux.Scale(h*float64(i), A)
		aux.Exp(aux)
		aux.Scale(h, aux)
		sum.Add(sum, aux)
	}
	bd.Mul(sum, B)

	return NewLinear(ad, bd, dt)
}

// Dims returns the position, tangent and control space dimensions
func (l *Linear) Dims() (nq, nv, nu int) {
	return l.nv, l.nv, l.nu
}

// Timestep returns the plant timestep
func (l *Linear) Timestep() float64 {
	return l.dt
}

// Step advances state s by one timestep under control u. A nil control is
// treated as zero input.
func (l *Linear) Step(s *lqr.State, u mat.Vector) (*lqr.State, error) {
	if err := s.CheckDims(l.nv, l.nv); err != nil {
		return nil, err
	}
	if u != nil && u.Len() != l.nu {
		return nil, fmt.Errorf("control dim %d, plant nu %d: %w", u.Len(), l.nu, lqr.ErrDimensionMismatch)
	}

	x := mat.NewVecDense(2*l.nv, nil)
	q := s.Pos()
	v := s.Vel()
	for i := 0; i < l.nv; i++ {
		x.SetVec(i, q.AtVec(i))
		x.SetVec(l.nv+i, v.AtVec(i))
	}

	var next mat.VecDense
	next.MulVec(l.a, x)
	if u != nil {
		var bu mat.VecDense
		bu.MulVec(l.b, u)
		next.AddVec(&next, &bu)
	}

	return lqr.NewState(
		lqr.NewPosition(next.RawVector().Data[:l.nv]),
		next.SliceVec(l.nv, 2*l.nv),
	), nil
}

// Difference returns the flat space delta other - ref
func (l *Linear) Difference(ref, other lqr.Position) (lqr.Tangent, error) {
	if ref.Len() != l.nv || other.Len() != l.nv {
		return lqr.Tangent{}, fmt.Errorf("position dims [%d, %d], plant nq %d: %w",
			ref.Len(), other.Len(), l.nv, lqr.ErrDimensionMismatch)
	}

	dq := lqr.NewTangent(l.nv)
	for i := 0; i < l.nv; i++ {
		dq.SetVec(i, other.AtVec(i)-ref.AtVec(i))
	}

	return dq, nil
}

// Retract returns p + scale*dq
func (l *Linear) Retract(p lqr.Position, dq lqr.Tangent, scale float64) (lqr.Position, error) {
	if p.Len() != l.nv || dq.Len() != l.nv {
		return lqr.Position{}, fmt.Errorf("position dim %d, tangent dim %d, plant nq %d: %w",
			p.Len(), dq.Len(), l.nv, lqr.ErrDimensionMismatch)
	}

	out := p.Raw()
	for i := range out {
		out[i] += scale * dq.AtVec(i)
	}

	return lqr.NewPosition(out), nil
}

// Linearize returns copies of the exact system matrices. The finite
// difference parameters are ignored.
func (l *Linear) Linearize(s *lqr.State, u mat.Vector, eps float64, centered bool) (*mat.Dense, *mat.Dense, error) {
	if err := s.CheckDims(l.nv, l.nv); err != nil {
		return nil, nil, err
	}

	a, b := &mat.Dense{}, &mat.Dense{}
	a.CloneFrom(l.a)
	b.CloneFrom(l.b)

	return a, b, nil
}
