package model

import "math"

// Quaternion helpers for Ball and Free joint blocks. Quaternions are stored
// in w, x, y, z order and kept at unit norm. Rotation vectors use the
// axis-angle convention: direction is the rotation axis, magnitude the
// rotation angle in radians.

const quatEps = 1e-12

// QuatMul returns the Hamilton product a*b
func QuatMul(a, b [4]float64) [4]float64 {
	return [4]float64{
		a[0]*b[0] - a[1]*b[1] - a[2]*b[2] - a[3]*b[3],
		a[0]*b[1] + a[1]*b[0] + a[2]*b[3] - a[3]*b[2],
		a[0]*b[2] - a[1]*b[3] + a[2]*b[0] + a[3]*b[1],
		a[0]*b[3] + a[1]*b[2] - a[2]*b[1] + a[3]*b[0],
	}
}

// QuatConj returns the conjugate of q, which for unit quaternions is the
// inverse rotation
func QuatConj(q [4]float64) [4]float64 {
	return [4]float64{q[0], -q[1], -q[2], -q[3]}
}

// QuatNormalize returns q scaled to unit norm. A near zero quaternion is
// replaced with identity.
func QuatNormalize(q [4]float64) [4]float64 {
	n := math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	if n < quatEps {
		return [4]float64{1.0, 0.0, 0.0, 0.0}
	}

	return [4]float64{q[0] / n, q[1] / n, q[2] / n, q[3] / n}
}

// QuatExp maps rotation vector v to the unit quaternion rotating by angle
// |v| around axis v/|v|
func QuatExp(v [3]float64) [4]float64 {
	angle := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if angle < quatEps {
		// first order expansion of sin(angle/2)/angle
		return QuatNormalize([4]float64{1.0, 0.5 * v[0], 0.5 * v[1], 0.5 * v[2]})
	}

	s := math.Sin(0.5*angle) / angle

	return [4]float64{math.Cos(0.5 * angle), s * v[0], s * v[1], s * v[2]}
}

// QuatLog maps unit quaternion q to its rotation vector. The sign of q is
// chosen so that the returned rotation takes the short arc.
func QuatLog(q [4]float64) [3]float64 {
	if q[0] < 0 {
		q = [4]float64{-q[0], -q[1], -q[2], -q[3]}
	}

	vn := math.Sqrt(q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	if vn < quatEps {
		// small angle: angle/sin(angle/2) approaches 2
		return [3]float64{2.0 * q[1], 2.0 * q[2], 2.0 * q[3]}
	}

	scale := 2.0 * math.Atan2(vn, q[0]) / vn

	return [3]float64{scale * q[1], scale * q[2], scale * q[3]}
}
