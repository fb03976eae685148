package trim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	lqr "github.com/milosgajdos/go-lqr"
	"github.com/milosgajdos/go-lqr/matrix"
)

// Plant is the oracle slice consumed by the equilibrium search
type Plant interface {
	lqr.Descriptor
	lqr.Dynamics
	lqr.Geometry
	lqr.Manifold
}

// Config parametrizes the equilibrium search
type Config struct {
	// Axis is the tangent space index of the scanned coordinate, the
	// vertical root DOF of a standing figure
	Axis int
	// Span is the half width of the symmetric scan interval
	Span float64
	// Delta is the scan increment
	Delta float64
	// Rcond is the relative singular value cutoff of the actuation
	// pseudoinverse
	Rcond float64
}

// DefaultConfig returns the default search parameters: a millimeter of
// travel scanned in ten micrometer increments
func DefaultConfig() *Config {
	return &Config{
		Axis:  0,
		Span:  1e-3,
		Delta: 1e-5,
		Rcond: 1e-10,
	}
}

// Point is a trim point: the equilibrium state, the control holding the
// plant there and the diagnostics of the search that produced it
type Point struct {
	state    *lqr.State
	u0       *mat.VecDense
	f0       *mat.VecDense
	offset   float64
	residual float64
}

// NewPoint wraps an analytically known equilibrium state and holding
// control into a trim point
func NewPoint(s *lqr.State, u0 mat.Vector) *Point {
	_, nv := s.Dims()
	u := mat.NewVecDense(u0.Len(), nil)
	u.CloneFromVec(u0)

	return &Point{
		state: s.Clone(),
		u0:    u,
		f0:    mat.NewVecDense(nv, nil),
	}
}

// State returns a copy of the equilibrium state
func (pt *Point) State() *lqr.State {
	return pt.state.Clone()
}

// Ctrl returns a copy of the holding control u0
func (pt *Point) Ctrl() mat.Vector {
	u := mat.NewVecDense(pt.u0.Len(), nil)
	u.CloneFromVec(pt.u0)

	return u
}

// Force returns a copy of the zero acceleration inverse dynamics force f0
// at the equilibrium
func (pt *Point) Force() mat.Vector {
	f := mat.NewVecDense(pt.f0.Len(), nil)
	f.CloneFromVec(pt.f0)

	return f
}

// Offset returns the scan offset at which the equilibrium was found
func (pt *Point) Offset() float64 {
	return pt.offset
}

// ActuationResidual returns the largest residual acceleration the holding
// control leaves on actuated coordinates. A value far from zero means the
// actuation cannot fully support the figure at the located equilibrium and
// should be surfaced as a warning.
func (pt *Point) ActuationResidual() float64 {
	return pt.residual
}

// Solve locates the equilibrium of plant p by scanning the inverse dynamics
// residual along one tangent axis around qInit. At every scanned offset the
// plant is placed at rest and the zero acceleration inverse dynamics force
// f is evaluated; the equilibrium criterion is the magnitude of its scanned
// axis component. The search fails if the minimizer sits on the interval
// boundary, which means the equilibrium lies outside the scanned interval
// and the caller should widen it.
//
// The holding control solves moment'*u0 = f0 in the least squares sense
// through the SVD pseudoinverse. The residual acceleration u0 leaves on
// actuated coordinates is recorded in the returned point as a diagnostic,
// never turned into an error.
func Solve(p Plant, qInit lqr.Position, c *Config) (*Point, error) {
	if c == nil {
		c = DefaultConfig()
	}

	nq, nv, nu := p.Dims()
	if qInit.Len() != nq {
		return nil, fmt.Errorf("initial position dim %d, plant nq %d: %w", qInit.Len(), nq, lqr.ErrDimensionMismatch)
	}
	if c.Axis < 0 || c.Axis >= nv {
		return nil, fmt.Errorf("scan axis %d outside tangent space of dim %d: %w", c.Axis, nv, lqr.ErrConfiguration)
	}
	if c.Span <= 0 || c.Delta <= 0 || c.Delta > c.Span {
		return nil, fmt.Errorf("invalid scan interval: span %g, delta %g: %w", c.Span, c.Delta, lqr.ErrConfiguration)
	}
	if c.Rcond < 0 {
		return nil, fmt.Errorf("invalid pseudoinverse cutoff %g: %w", c.Rcond, lqr.ErrConfiguration)
	}

	axis := lqr.NewTangent(nv)
	axis.SetVec(c.Axis, 1.0)
	zeroAcc := mat.NewVecDense(nv, nil)

	steps := int(math.Round(c.Span / c.Delta))

	bestIdx := -steps - 1
	bestAbs := math.Inf(1)
	var bestQ lqr.Position

	for i := -steps; i <= steps; i++ {
		q, err := p.Retract(qInit, axis, float64(i)*c.Delta)
		if err != nil {
			return nil, err
		}

		f, err := p.Inverse(lqr.NewZeroVelState(q, nv), zeroAcc)
		if err != nil {
			return nil, fmt.Errorf("inverse dynamics at offset %g: %w", float64(i)*c.Delta, err)
		}
		if f.Len() != nv {
			return nil, fmt.Errorf("inverse dynamics force dim %d, plant nv %d: %w", f.Len(), nv, lqr.ErrDimensionMismatch)
		}

		if a := math.Abs(f.AtVec(c.Axis)); a < bestAbs {
			bestAbs = a
			bestIdx = i
			bestQ = q
		}
	}

	if bestIdx == -steps || bestIdx == steps {
		return nil, fmt.Errorf("residual minimum %g sits at scan boundary %g, widen the interval: %w",
			bestAbs, float64(bestIdx)*c.Delta, lqr.ErrTrimNotFound)
	}

	s0 := lqr.NewZeroVelState(bestQ, nv)
	f, err := p.Inverse(s0, zeroAcc)
	if err != nil {
		return nil, err
	}
	f0 := mat.NewVecDense(nv, nil)
	f0.CloneFromVec(f)

	am, err := p.ActuationMatrix(s0)
	if err != nil {
		return nil, err
	}
	ar, ac := am.Dims()
	if ar != nu || ac != nv {
		return nil, fmt.Errorf("actuation matrix dimensions [%d x %d], expected [%d x %d]: %w", ar, ac, nu, nv, lqr.ErrDimensionMismatch)
	}

	u0, err := matrix.LeastSquares(am.T(), f0, c.Rcond)
	if err != nil {
		return nil, fmt.Errorf("holding control solve: %v: %w", err, lqr.ErrConfiguration)
	}

	residual, err := actuationResidual(p, s0, u0, am)
	if err != nil {
		return nil, err
	}

	return &Point{
		state:    s0,
		u0:       u0,
		f0:       f0,
		offset:   float64(bestIdx) * c.Delta,
		residual: residual,
	}, nil
}

// actuationResidual runs forward dynamics under the holding control and
// returns the largest acceleration left on coordinates with actuation
// authority
func actuationResidual(p Plant, s0 *lqr.State, u0 mat.Vector, am mat.Matrix) (float64, error) {
	acc, err := p.Forward(s0, u0)
	if err != nil {
		return 0, fmt.Errorf("forward dynamics under holding control: %w", err)
	}

	nu, nv := am.Dims()
	residual := 0.0
	for j := 0; j < nv; j++ {
		actuated := false
		for i := 0; i < nu; i++ {
			if am.At(i, j) != 0 {
				actuated = true
				break
			}
		}
		if !actuated {
			continue
		}
		if a := math.Abs(acc.AtVec(j)); a > residual {
			residual = a
		}
	}

	return residual, nil
}
