package cost

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	lqr "github.com/milosgajdos/go-lqr"
	"github.com/milosgajdos/go-lqr/model"
)

// Plant is the capability slice needed to build the cost matrices
type Plant interface {
	lqr.Descriptor
	lqr.Geometry
}

// Config parametrizes the synthesis cost
type Config struct {
	// BalanceCoeff scales the CoM over support balance term
	BalanceCoeff float64
	// BalanceWeight regularizes balance group joints
	BalanceWeight float64
	// OtherWeight regularizes other group joints
	OtherWeight float64
	// Body names the body whose CoM drift is penalized
	Body string
	// Support names the ground contact reference body
	Support string
}

// DefaultConfig returns the default cost weights. Body and Support have no
// defaults and must name plant bodies.
func DefaultConfig() *Config {
	return &Config{
		BalanceCoeff:  1000.0,
		BalanceWeight: 3.0,
		OtherWeight:   0.3,
	}
}

// ConfigFrom converts a serialized cost section into a cost config
func ConfigFrom(mc model.CostConfig) *Config {
	return &Config{
		BalanceCoeff:  mc.BalanceCoeff,
		BalanceWeight: mc.BalanceWeight,
		OtherWeight:   mc.OtherWeight,
		Body:          mc.Body,
		Support:       mc.Support,
	}
}

// Matrices is the cost pair of one synthesis run, fixed once built
type Matrices struct {
	q *mat.SymDense
	r *mat.SymDense
}

// Q returns a copy of the state cost matrix (2nv x 2nv)
func (m *Matrices) Q() mat.Symmetric {
	q := mat.NewSymDense(m.q.SymmetricDim(), nil)
	q.CopySym(m.q)

	return q
}

// R returns a copy of the control cost matrix (nu x nu)
func (m *Matrices) R() mat.Symmetric {
	r := mat.NewSymDense(m.r.SymmetricDim(), nil)
	r.CopySym(m.r)

	return r
}

// New builds the LQR cost pair at state s0. The position block of Q is
//
//	BalanceCoeff*(Jb - Js)'*(Jb - Js) + diag(w)
//
// where Jb and Js are the point Jacobians of the tracked body and the
// support reference, so deviations moving the CoM off the support are
// penalized through the kinematics, and w holds the per coordinate joint
// regularization weight of the joint group: zero for Root, BalanceWeight
// for Balance, OtherWeight for Other. The velocity block of Q is zero. R is
// identity, fixed to normalize the control penalty scale.
func New(p Plant, m *model.Model, s0 *lqr.State, c *Config) (*Matrices, error) {
	if c == nil {
		c = DefaultConfig()
	}
	if c.BalanceCoeff < 0 || c.BalanceWeight < 0 || c.OtherWeight < 0 {
		return nil, fmt.Errorf("negative cost weights: %w", lqr.ErrConfiguration)
	}
	if c.Body == "" || c.Support == "" {
		return nil, fmt.Errorf("body and support names must be set: %w", lqr.ErrConfiguration)
	}

	nq, nv, nu := p.Dims()
	if err := s0.CheckDims(nq, nv); err != nil {
		return nil, err
	}
	_, mv, mu := m.Dims()
	if mv != nv || mu != nu {
		return nil, fmt.Errorf("model dims [%d, %d], plant dims [%d, %d]: %w", mv, mu, nv, nu, lqr.ErrDimensionMismatch)
	}

	jb, err := p.PointJacobian(s0, c.Body)
	if err != nil {
		return nil, fmt.Errorf("body %q point jacobian: %w", c.Body, err)
	}
	js, err := p.PointJacobian(s0, c.Support)
	if err != nil {
		return nil, fmt.Errorf("support %q point jacobian: %w", c.Support, err)
	}
	if err := checkJacDims(jb, nv); err != nil {
		return nil, err
	}
	if err := checkJacDims(js, nv); err != nil {
		return nil, err
	}

	var jdiff, balance mat.Dense
	jdiff.Sub(jb, js)
	balance.Mul(jdiff.T(), &jdiff)

	w := make([]float64, nv)
	for i, g := range m.VelGroups() {
		switch g {
		case model.Balance:
			w[i] = c.BalanceWeight
		case model.Other:
			w[i] = c.OtherWeight
		}
	}

	// position block only: velocity deviations stay unpenalized
	q := mat.NewSymDense(2*nv, nil)
	for i := 0; i < nv; i++ {
		q.SetSym(i, i, c.BalanceCoeff*balance.At(i, i)+w[i])
		for j := i + 1; j < nv; j++ {
			q.SetSym(i, j, c.BalanceCoeff*balance.At(i, j))
		}
	}

	r := mat.NewSymDense(nu, nil)
	for i := 0; i < nu; i++ {
		r.SetSym(i, i, 1.0)
	}

	return &Matrices{q: q, r: r}, nil
}

// checkJacDims verifies a point Jacobian maps nv velocities to 3 space
func checkJacDims(j mat.Matrix, nv int) error {
	r, c := j.Dims()
	if r != 3 || c != nv {
		return fmt.Errorf("point jacobian dimensions [%d x %d], expected [3 x %d]: %w", r, c, nv, lqr.ErrDimensionMismatch)
	}

	return nil
}
