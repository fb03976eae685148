package model

import (
	"fmt"

	lqr "github.com/milosgajdos/go-lqr"
)

var _ lqr.Manifold = (*Model)(nil)

// Difference returns the tangent space delta from ref to other. Hinge and
// slide blocks subtract coordinate wise; quaternion blocks map through the
// logarithm of the relative rotation, so the delta of a position with itself
// is exactly zero even for curved blocks.
// It returns error if either position length disagrees with the model.
func (m *Model) Difference(ref, other lqr.Position) (lqr.Tangent, error) {
	if ref.Len() != m.nq || other.Len() != m.nq {
		return lqr.Tangent{}, fmt.Errorf("position dims [%d, %d], model nq %d: %w",
			ref.Len(), other.Len(), m.nq, lqr.ErrDimensionMismatch)
	}

	dq := lqr.NewTangent(m.nv)
	for i, j := range m.joints {
		p, v := m.posAddr[i], m.velAddr[i]
		switch j.Type {
		case Hinge, Slide:
			dq.SetVec(v, other.AtVec(p)-ref.AtVec(p))
		case Ball:
			setRotDelta(dq, v, quatAt(ref, p), quatAt(other, p))
		case Free:
			for k := 0; k < 3; k++ {
				dq.SetVec(v+k, other.AtVec(p+k)-ref.AtVec(p+k))
			}
			setRotDelta(dq, v+3, quatAt(ref, p+3), quatAt(other, p+3))
		}
	}

	return dq, nil
}

// Retract returns p perturbed by scale*dq: hinge and slide blocks add the
// scaled delta, quaternion blocks compose with the exponential of the scaled
// rotation delta.
// It returns error if p or dq dimensions disagree with the model.
func (m *Model) Retract(p lqr.Position, dq lqr.Tangent, scale float64) (lqr.Position, error) {
	if p.Len() != m.nq {
		return lqr.Position{}, fmt.Errorf("position dim %d, model nq %d: %w",
			p.Len(), m.nq, lqr.ErrDimensionMismatch)
	}
	if dq.Len() != m.nv {
		return lqr.Position{}, fmt.Errorf("tangent dim %d, model nv %d: %w",
			dq.Len(), m.nv, lqr.ErrDimensionMismatch)
	}

	out := p.Raw()
	for i, j := range m.joints {
		pa, va := m.posAddr[i], m.velAddr[i]
		switch j.Type {
		case Hinge, Slide:
			out[pa] += scale * dq.AtVec(va)
		case Ball:
			setQuat(out, pa, retractQuat(quatAt(p, pa), dq, va, scale))
		case Free:
			for k := 0; k < 3; k++ {
				out[pa+k] += scale * dq.AtVec(va+k)
			}
			setQuat(out, pa+3, retractQuat(quatAt(p, pa+3), dq, va+3, scale))
		}
	}

	return lqr.NewPosition(out), nil
}

// quatAt reads the quaternion block starting at position index i
func quatAt(p lqr.Position, i int) [4]float64 {
	return [4]float64{p.AtVec(i), p.AtVec(i + 1), p.AtVec(i + 2), p.AtVec(i + 3)}
}

// setQuat writes quaternion q into the block starting at index i
func setQuat(data []float64, i int, q [4]float64) {
	data[i], data[i+1], data[i+2], data[i+3] = q[0], q[1], q[2], q[3]
}

// setRotDelta writes the body frame rotation from ref to other into the
// tangent block starting at index v
func setRotDelta(dq lqr.Tangent, v int, ref, other [4]float64) {
	rel := QuatMul(QuatConj(ref), other)
	rot := QuatLog(QuatNormalize(rel))
	dq.SetVec(v, rot[0])
	dq.SetVec(v+1, rot[1])
	dq.SetVec(v+2, rot[2])
}

// retractQuat composes q with the exponential of the scaled rotation delta
// read from the tangent block starting at index v
func retractQuat(q [4]float64, dq lqr.Tangent, v int, scale float64) [4]float64 {
	rot := [3]float64{scale * dq.AtVec(v), scale * dq.AtVec(v + 1), scale * dq.AtVec(v + 2)}

	return QuatNormalize(QuatMul(q, QuatExp(rot)))
}
