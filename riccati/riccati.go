package riccati

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	lqr "github.com/milosgajdos/go-lqr"
	"github.com/milosgajdos/go-lqr/matrix"
)

// Config parametrizes the doubling iteration
type Config struct {
	// Tol is the relative convergence tolerance on the solution iterate
	Tol float64
	// MaxIter bounds the number of doubling steps
	MaxIter int
}

// DefaultConfig returns the default solver configuration. The doubling
// iteration converges quadratically, so the iteration bound is generous.
func DefaultConfig() *Config {
	return &Config{
		Tol:     1e-12,
		MaxIter: 100,
	}
}

// Solution is the stabilizing solution of a discrete time algebraic Riccati
// equation together with its feedback gain
type Solution struct {
	p *mat.SymDense
	k *mat.Dense
}

// CostToGo returns a copy of the Riccati solution P
func (s *Solution) CostToGo() mat.Symmetric {
	p := mat.NewSymDense(s.p.SymmetricDim(), nil)
	p.CopySym(s.p)

	return p
}

// Gain returns a copy of the feedback gain K
func (s *Solution) Gain() mat.Matrix {
	k := &mat.Dense{}
	k.CloneFrom(s.k)

	return k
}

// SolveDARE computes the unique stabilizing solution P of the discrete time
// algebraic Riccati equation
//
//	P = Q + A'*P*A - A'*P*B*inv(R + B'*P*B)*B'*P*A
//
// together with the feedback gain
//
//	K = inv(R + B'*P*B)*B'*P*A
//
// using the structure preserving doubling algorithm, which squares the
// closed loop dynamics at every step instead of iterating the fixed point
// map directly. Q must be positive semi-definite and R positive definite.
//
// It returns an error wrapping lqr.ErrUnstabilizable if the iteration does
// not converge, the solution is not positive semi-definite or the closed
// loop A - B*K is not Schur stable, all of which mean no stabilizing
// controller exists for the pair within the solver tolerances.
func SolveDARE(A, B mat.Matrix, Q, R mat.Symmetric, c *Config) (*Solution, error) {
	if c == nil {
		c = DefaultConfig()
	}
	if c.Tol <= 0 || c.MaxIter <= 0 {
		return nil, fmt.Errorf("invalid solver tolerances: %w", lqr.ErrConfiguration)
	}

	n, nc := A.Dims()
	if n != nc {
		return nil, fmt.Errorf("transition matrix dimensions [%d x %d]: %w", n, nc, lqr.ErrDimensionMismatch)
	}
	br, nu := B.Dims()
	if br != n {
		return nil, fmt.Errorf("input matrix dimensions [%d x %d], expected %d rows: %w", br, nu, n, lqr.ErrDimensionMismatch)
	}
	if Q.SymmetricDim() != n {
		return nil, fmt.Errorf("state cost dimension %d, expected %d: %w", Q.SymmetricDim(), n, lqr.ErrDimensionMismatch)
	}
	if R.SymmetricDim() != nu {
		return nil, fmt.Errorf("control cost dimension %d, expected %d: %w", R.SymmetricDim(), nu, lqr.ErrDimensionMismatch)
	}

	var rchol mat.Cholesky
	if ok := rchol.Factorize(R); !ok {
		return nil, fmt.Errorf("control cost matrix is not positive definite: %w", lqr.ErrConfiguration)
	}

	// G = B*inv(R)*B'
	var rinvBt mat.Dense
	if err := rchol.SolveTo(&rinvBt, B.T()); err != nil {
		return nil, fmt.Errorf("control cost solve failed: %v: %w", err, lqr.ErrConfiguration)
	}
	g := &mat.Dense{}
	g.Mul(B, &rinvBt)
	matrix.Symmetrize(g)

	a := mat.DenseCopyOf(A)
	h := mat.DenseCopyOf(Q)

	eye := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		eye.Set(i, i, 1.0)
	}

	converged := false
	for k := 0; k < c.MaxIter; k++ {
		// W = I + G*H
		var w mat.Dense
		w.Mul(g, h)
		w.Add(&w, eye)

		var lu mat.LU
		lu.Factorize(&w)

		// Wa = inv(W)*A, Wg = inv(W)*G
		var wa, wg mat.Dense
		if err := lu.SolveTo(&wa, false, a); err != nil {
			return nil, fmt.Errorf("doubling step %d is singular: %w", k, lqr.ErrUnstabilizable)
		}
		if err := lu.SolveTo(&wg, false, g); err != nil {
			return nil, fmt.Errorf("doubling step %d is singular: %w", k, lqr.ErrUnstabilizable)
		}

		// A' = A*inv(W)*A
		var anext mat.Dense
		anext.Mul(a, &wa)

		// G' = G + A*inv(W)*G*A'
		var gnext, tmp mat.Dense
		tmp.Mul(a, &wg)
		gnext.Mul(&tmp, a.T())
		gnext.Add(g, &gnext)
		matrix.Symmetrize(&gnext)

		// H' = H + A'*H*inv(W)*A
		var hnext, hwa mat.Dense
		hwa.Mul(h, &wa)
		hnext.Mul(a.T(), &hwa)
		hnext.Add(h, &hnext)
		matrix.Symmetrize(&hnext)

		if !matrix.AllFinite(&hnext) {
			return nil, fmt.Errorf("doubling iteration diverged at step %d: %w", k, lqr.ErrUnstabilizable)
		}

		var diff mat.Dense
		diff.Sub(&hnext, h)
		denom := mat.Norm(&hnext, 2)
		if denom < 1.0 {
			denom = 1.0
		}
		delta := mat.Norm(&diff, 2) / denom

		a, g, h = &anext, &gnext, &hnext

		if delta <= c.Tol {
			converged = true
			break
		}
	}
	if !converged {
		return nil, fmt.Errorf("doubling iteration did not converge within %d steps: %w", c.MaxIter, lqr.ErrUnstabilizable)
	}

	p := matrix.ToSym(h)
	if err := checkPSD(p); err != nil {
		return nil, err
	}

	k, err := gain(A, B, p, R)
	if err != nil {
		return nil, err
	}

	// closed loop A - B*K must be Schur stable
	var bk, acl mat.Dense
	bk.Mul(B, k)
	acl.Sub(A, &bk)
	rho, err := matrix.SpectralRadius(&acl)
	if err != nil {
		return nil, fmt.Errorf("closed loop eigenvalues: %v: %w", err, lqr.ErrUnstabilizable)
	}
	if rho >= 1.0 {
		return nil, fmt.Errorf("closed loop spectral radius %f: %w", rho, lqr.ErrUnstabilizable)
	}

	return &Solution{p: p, k: k}, nil
}

// checkPSD verifies that p has no meaningfully negative eigenvalues
func checkPSD(p *mat.SymDense) error {
	var eig mat.EigenSym
	if ok := eig.Factorize(p, false); !ok {
		return fmt.Errorf("solution eigenvalue factorization failed: %w", lqr.ErrUnstabilizable)
	}

	vals := eig.Values(nil)
	maxEig := 1.0
	for _, v := range vals {
		if v > maxEig {
			maxEig = v
		}
	}
	for _, v := range vals {
		if v < -1e-8*maxEig {
			return fmt.Errorf("solution is not positive semi-definite, eigenvalue %e: %w", v, lqr.ErrUnstabilizable)
		}
	}

	return nil
}

// gain computes K = inv(R + B'*P*B)*B'*P*A
func gain(A, B mat.Matrix, p *mat.SymDense, R mat.Symmetric) (*mat.Dense, error) {
	var pb, btpb mat.Dense
	pb.Mul(p, B)
	btpb.Mul(B.T(), &pb)

	s := mat.DenseCopyOf(R)
	s.Add(s, &btpb)

	var schol mat.Cholesky
	if ok := schol.Factorize(matrix.ToSym(s)); !ok {
		return nil, fmt.Errorf("gain normal matrix is not positive definite: %w", lqr.ErrUnstabilizable)
	}

	var pa, btpa mat.Dense
	pa.Mul(p, A)
	btpa.Mul(B.T(), &pa)

	var k mat.Dense
	if err := schol.SolveTo(&k, &btpa); err != nil {
		return nil, fmt.Errorf("gain solve failed: %v: %w", err, lqr.ErrUnstabilizable)
	}

	return &k, nil
}
