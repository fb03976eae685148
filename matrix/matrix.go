package matrix

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// Symmetrize overwrites square matrix m with its symmetric part (m + m')/2.
// It panics if m is nil or not square.
func Symmetrize(m *mat.Dense) {
	r, c := m.Dims()
	if r != c {
		panic(mat.ErrShape)
	}

	for i := 0; i < r; i++ {
		for j := i + 1; j < c; j++ {
			v := 0.5 * (m.At(i, j) + m.At(j, i))
			m.Set(i, j, v)
			m.Set(j, i, v)
		}
	}
}

// ToSym returns the symmetric part of square matrix m as mat.SymDense.
// It panics if m is nil or not square.
func ToSym(m mat.Matrix) *mat.SymDense {
	r, c := m.Dims()
	if r != c {
		panic(mat.ErrShape)
	}

	s := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < c; j++ {
			s.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}

	return s
}

// AllFinite reports whether every entry of m is finite.
// It panics if m is nil.
func AllFinite(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}

	return true
}

// SpectralRadius returns the largest eigenvalue magnitude of square matrix m.
func SpectralRadius(m mat.Matrix) (float64, error) {
	r, c := m.Dims()
	if r != c {
		return 0, fmt.Errorf("invalid matrix dimensions: [%d x %d]", r, c)
	}

	var eig mat.Eigen
	if ok := eig.Factorize(m, mat.EigenNone); !ok {
		return 0, fmt.Errorf("eigenvalue factorization failed")
	}

	rho := 0.0
	for _, v := range eig.Values(nil) {
		if a := cmplx.Abs(v); a > rho {
			rho = a
		}
	}

	return rho, nil
}

// LeastSquares returns the minimum norm solution of min ||a*x - b|| computed
// through the SVD pseudoinverse of a. Singular values smaller than rcond
// times the largest singular value are treated as zero.
func LeastSquares(a mat.Matrix, b mat.Vector, rcond float64) (*mat.VecDense, error) {
	r, c := a.Dims()
	if b.Len() != r {
		return nil, fmt.Errorf("invalid RHS dimension: %d != %d", b.Len(), r)
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("SVD factorization failed")
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	vals := svd.Values(nil)

	x := mat.NewVecDense(c, nil)
	if len(vals) == 0 || vals[0] == 0 {
		return x, nil
	}
	cut := rcond * vals[0]

	// x = V * pinv(S) * U' * b
	var y mat.VecDense
	y.MulVec(u.T(), b)
	for i, s := range vals {
		if s > cut {
			y.SetVec(i, y.AtVec(i)/s)
		} else {
			y.SetVec(i, 0.0)
		}
	}
	x.MulVec(&v, &y)

	return x, nil
}
