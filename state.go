package lqr

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Position is a generalized position of dimension nq. Positions may contain
// unit quaternion blocks, so they do not form a vector space: there is
// deliberately no arithmetic defined on them. Tangent-space deltas between
// positions are produced by a Manifold implementation.
type Position struct {
	v *mat.VecDense
}

// NewPosition creates a Position from a copy of data
func NewPosition(data []float64) Position {
	d := make([]float64, len(data))
	copy(d, data)

	return Position{v: mat.NewVecDense(len(d), d)}
}

// Len returns the number of position coordinates
func (p Position) Len() int {
	if p.v == nil {
		return 0
	}

	return p.v.Len()
}

// AtVec returns the i-th position coordinate
func (p Position) AtVec(i int) float64 {
	return p.v.AtVec(i)
}

// Raw returns a copy of the position coordinates
func (p Position) Raw() []float64 {
	if p.v == nil {
		return nil
	}
	d := make([]float64, p.v.Len())
	copy(d, p.v.RawVector().Data)

	return d
}

// Clone returns a deep copy of the position
func (p Position) Clone() Position {
	return NewPosition(p.Raw())
}

// Tangent is a tangent-space vector of dimension nv. Unlike Position it is a
// plain vector: ordinary arithmetic through the embedded mat.VecDense is
// valid on it.
type Tangent struct {
	*mat.VecDense
}

// NewTangent creates a zero Tangent of dimension n
func NewTangent(n int) Tangent {
	return Tangent{mat.NewVecDense(n, nil)}
}

// NewTangentFrom creates a Tangent from a copy of data
func NewTangentFrom(data []float64) Tangent {
	d := make([]float64, len(data))
	copy(d, data)

	return Tangent{mat.NewVecDense(len(d), d)}
}

// Clone returns a deep copy of the tangent vector
func (t Tangent) Clone() Tangent {
	return NewTangentFrom(t.RawVector().Data)
}

// State is an owned simulation state: a generalized position together with a
// generalized velocity living in the tangent space. States are passed
// explicitly between the plant and the pipeline stages; no stage mutates a
// state it did not create.
type State struct {
	q Position
	v *mat.VecDense
}

// NewState creates a State from copies of position q and velocity v
func NewState(q Position, v mat.Vector) *State {
	vec := mat.NewVecDense(v.Len(), nil)
	vec.CloneFromVec(v)

	return &State{q: q.Clone(), v: vec}
}

// NewZeroVelState creates a State at position q with zero velocity of
// dimension nv
func NewZeroVelState(q Position, nv int) *State {
	return &State{q: q.Clone(), v: mat.NewVecDense(nv, nil)}
}

// Dims returns the position and velocity dimensions of the state
func (s *State) Dims() (nq, nv int) {
	return s.q.Len(), s.v.Len()
}

// Pos returns a copy of the state position
func (s *State) Pos() Position {
	return s.q.Clone()
}

// Vel returns a copy of the state velocity
func (s *State) Vel() *mat.VecDense {
	v := mat.NewVecDense(s.v.Len(), nil)
	v.CloneFromVec(s.v)

	return v
}

// Clone returns a deep copy of the state
func (s *State) Clone() *State {
	return NewState(s.q, s.v)
}

// CheckDims returns error if the state dimensions disagree with the given
// plant dimensions.
func (s *State) CheckDims(nq, nv int) error {
	if s.q.Len() != nq || s.v.Len() != nv {
		return fmt.Errorf("state dims [%d, %d], plant dims [%d, %d]: %w",
			s.q.Len(), s.v.Len(), nq, nv, ErrDimensionMismatch)
	}

	return nil
}
