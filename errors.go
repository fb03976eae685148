package lqr

import "errors"

// Synthesis failure taxonomy. Every pipeline stage wraps one of these
// sentinels into the errors it returns, so callers can classify a failed
// synthesis with errors.Is. All of them abort the synthesis: none is
// recoverable by the pipeline itself.
var (
	// ErrConfiguration is returned when provided parameters are invalid:
	// missing bodies, non-positive weights, malformed search intervals.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrTrimNotFound is returned when the equilibrium scan terminates on
	// the boundary of its search interval.
	ErrTrimNotFound = errors.New("no trim point in scanned interval")

	// ErrNonFiniteLinearization is returned when finite differencing of
	// the transition map yields NaN or Inf entries.
	ErrNonFiniteLinearization = errors.New("non-finite linearization")

	// ErrUnstabilizable is returned when the Riccati iteration fails to
	// converge to a stabilizing solution for the given system pair.
	ErrUnstabilizable = errors.New("unstabilizable system pair")

	// ErrDimensionMismatch is returned when matrix or vector dimensions
	// disagree with the plant dimensions.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)
