package linearize

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	lqr "github.com/milosgajdos/go-lqr"
	"github.com/milosgajdos/go-lqr/matrix"
)

// DefaultEps is the default finite difference step
const DefaultEps = 1e-6

// Plant is the capability slice needed to finite difference a transition map
type Plant interface {
	lqr.Descriptor
	lqr.Stepper
	lqr.Manifold
}

// System is the capability slice consumed by Transition
type System interface {
	lqr.Descriptor
	lqr.Linearizer
}

// FD computes the discrete time transition matrices A (2nv x 2nv) and
// B (2nv x nu) of plant p around (s, u) by finite differencing its one step
// transition map in tangent space coordinates: position perturbations enter
// through Retract and next step positions are encoded through Difference
// against the unperturbed next position, so quaternion blocks never get
// subtracted coordinate wise. centered selects centered differencing,
// otherwise forward differences are used.
func FD(p Plant, s *lqr.State, u mat.Vector, eps float64, centered bool) (*mat.Dense, *mat.Dense, error) {
	nq, nv, nu := p.Dims()
	if err := s.CheckDims(nq, nv); err != nil {
		return nil, nil, err
	}
	if u != nil && u.Len() != nu {
		return nil, nil, fmt.Errorf("control dim %d, plant nu %d: %w", u.Len(), nu, lqr.ErrDimensionMismatch)
	}
	if eps <= 0 {
		eps = DefaultEps
	}

	// the unperturbed next position anchors the tangent space encoding
	next0, err := p.Step(s, u)
	if err != nil {
		return nil, nil, fmt.Errorf("step at linearization point: %w", err)
	}
	q0, v0, qn0 := s.Pos(), s.Vel(), next0.Pos()

	u0 := mat.NewVecDense(nu, nil)
	if u != nil {
		u0.CloneFromVec(u)
	}

	n := 2 * nv

	// the Jacobian workers run concurrently: the first probe error wins and
	// the failed probe output turns into NaN
	var mu sync.Mutex
	var ferr error
	fail := func(err error, y []float64) {
		mu.Lock()
		if ferr == nil {
			ferr = err
		}
		mu.Unlock()
		for i := range y {
			y[i] = math.NaN()
		}
	}

	f := func(y, z []float64) {
		q, err := p.Retract(q0, lqr.NewTangentFrom(z[:nv]), 1.0)
		if err != nil {
			fail(err, y)
			return
		}

		v := mat.NewVecDense(nv, nil)
		for i := 0; i < nv; i++ {
			v.SetVec(i, v0.AtVec(i)+z[nv+i])
		}
		uu := mat.NewVecDense(nu, nil)
		for i := 0; i < nu; i++ {
			uu.SetVec(i, u0.AtVec(i)+z[n+i])
		}

		next, err := p.Step(lqr.NewState(q, v), uu)
		if err != nil {
			fail(err, y)
			return
		}

		dqn, err := p.Difference(qn0, next.Pos())
		if err != nil {
			fail(err, y)
			return
		}
		vn := next.Vel()
		for i := 0; i < nv; i++ {
			y[i] = dqn.AtVec(i)
			y[nv+i] = vn.AtVec(i)
		}
	}

	formula := fd.Forward
	if centered {
		formula = fd.Central
	}

	jac := mat.NewDense(n, n+nu, nil)
	fd.Jacobian(jac, f, make([]float64, n+nu), &fd.JacobianSettings{
		Formula:    formula,
		Step:       eps,
		Concurrent: true,
	})

	if ferr != nil {
		return nil, nil, fmt.Errorf("transition map probe failed: %v: %w", ferr, lqr.ErrNonFiniteLinearization)
	}

	a := mat.NewDense(n, n, nil)
	a.Copy(jac.Slice(0, n, 0, n))
	b := mat.NewDense(n, nu, nil)
	b.Copy(jac.Slice(0, n, n, n+nu))

	return a, b, nil
}

// Transition linearizes plant p around reference (s, u) using centered
// differences and validates shapes and finiteness of the produced matrices.
// A non positive eps selects DefaultEps. This is the linearization entry
// point of the synthesis pipeline: any NaN or Inf entry aborts the
// synthesis.
func Transition(p System, s *lqr.State, u mat.Vector, eps float64) (*mat.Dense, *mat.Dense, error) {
	_, nv, nu := p.Dims()
	if eps <= 0 {
		eps = DefaultEps
	}

	a, b, err := p.Linearize(s, u, eps, true)
	if err != nil {
		return nil, nil, err
	}

	n := 2 * nv
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != n || ac != n || br != n || bc != nu {
		return nil, nil, fmt.Errorf("transition matrices [%d x %d] and [%d x %d], expected [%d x %d] and [%d x %d]: %w",
			ar, ac, br, bc, n, n, n, nu, lqr.ErrDimensionMismatch)
	}
	if !matrix.AllFinite(a) || !matrix.AllFinite(b) {
		return nil, nil, fmt.Errorf("transition matrices contain NaN or Inf entries: %w", lqr.ErrNonFiniteLinearization)
	}

	return a, b, nil
}
