package rand

import (
	"fmt"
	"math"

	rnd "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// NormalMatrix draws r*c independent samples from the standard Normal (aka
// Gaussian) distribution and returns them as an r x c matrix, one row per
// draw step. The samples are generated from a source seeded with seed, so
// the same seed reproduces the same matrix.
// It fails with error if r or c is non-positive.
func NormalMatrix(r, c int, seed uint64) (*mat.Dense, error) {
	if r <= 0 || c <= 0 {
		return nil, fmt.Errorf("Invalid sample matrix dimensions: [%d x %d]", r, c)
	}

	norm := distuv.Normal{
		Mu:    0.0,
		Sigma: 1.0,
		Src:   rnd.NewSource(seed),
	}

	data := make([]float64, r*c)
	for i := range data {
		data[i] = norm.Rand()
	}

	return mat.NewDense(r, c, data), nil
}

// WithCovN draws n random samples from a zero-mean Normal distribution with
// covariance cov. It returns a matrix which contains the generated samples
// stored in its columns.
// It fails with error if n is non-positive or if SVD factorization of cov fails.
func WithCovN(cov mat.Symmetric, n int, seed uint64) (*mat.Dense, error) {
	if n <= 0 {
		return nil, fmt.Errorf("Invalid number of samples requested: %d", n)
	}

	// Use SVD instead of Cholesky as Cholesky can be numerically unstable
	// if cov is (almost) singular
	var svd mat.SVD
	ok := svd.Factorize(cov, mat.SVDFull)
	if !ok {
		return nil, fmt.Errorf("SVD factorization failed")
	}

	U := new(mat.Dense)
	svd.UTo(U)
	vals := svd.Values(nil)
	for i := range vals {
		if vals[i] > 0 {
			vals[i] = math.Sqrt(vals[i])
		}
	}
	diag := mat.NewDiagDense(len(vals), vals)
	U.Mul(U, diag)

	rows, _ := cov.Dims()
	samples, err := NormalMatrix(n, rows, seed)
	if err != nil {
		return nil, err
	}

	var out mat.Dense
	out.Mul(U, samples.T())

	return &out, nil
}
