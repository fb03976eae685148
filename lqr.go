package lqr

import "gonum.org/v1/gonum/mat"

// Descriptor describes the dimensions and timing of a simulated plant.
type Descriptor interface {
	// Dims returns the position, tangent and control space dimensions.
	// nq may exceed nv when positions contain quaternion blocks.
	Dims() (nq, nv, nu int)
	// Timestep returns the fixed simulation timestep
	Timestep() float64
}

// Stepper advances the simulated state of the plant to the next step
type Stepper interface {
	// Step advances state s by one timestep under control u
	Step(s *State, u mat.Vector) (*State, error)
}

// Dynamics computes forward and inverse dynamics of the plant
type Dynamics interface {
	// Forward computes the generalized acceleration at state s under control u
	Forward(s *State, u mat.Vector) (mat.Vector, error)
	// Inverse computes the generalized force required to realize
	// acceleration acc at state s
	Inverse(s *State, acc mat.Vector) (mat.Vector, error)
}

// Manifold provides tangent-space operations on plant positions
type Manifold interface {
	// Difference returns the tangent-space delta from ref to other
	Difference(ref, other Position) (Tangent, error)
	// Retract returns p perturbed by scale*dq in tangent space
	Retract(p Position, dq Tangent, scale float64) (Position, error)
}

// Geometry computes kinematic maps of the plant
type Geometry interface {
	// PointJacobian returns the 3 x nv matrix mapping generalized velocity
	// to the linear velocity of the reference point of the named body
	PointJacobian(s *State, body string) (mat.Matrix, error)
	// ActuationMatrix returns the nu x nv moment arm matrix mapping
	// actuator commands to generalized forces
	ActuationMatrix(s *State) (mat.Matrix, error)
}

// Linearizer produces discrete-time linear models of the transition map
type Linearizer interface {
	// Linearize returns transition matrices A (2nv x 2nv) and B (2nv x nu)
	// such that tangent-space deviations around (s, u) propagate as
	// dx' = A*dx + B*du. centered requests centered differencing.
	Linearize(s *State, u mat.Vector, eps float64, centered bool) (A, B *mat.Dense, err error)
}

// Plant is the full dynamics oracle boundary required by the synthesis
// pipeline. Synthetic test plants may implement narrower capability slices;
// each pipeline stage declares the slice it consumes.
type Plant interface {
	Descriptor
	Stepper
	Dynamics
	Manifold
	Geometry
	Linearizer
}

// Disturbance is a precomputed control perturbation sequence indexed by
// simulation step
type Disturbance interface {
	// Sample returns the perturbation vector applied at the given step
	Sample(step int) mat.Vector
}
