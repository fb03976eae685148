// Package disturb generates smoothed random control disturbance traces.
// A trace is i.i.d. Gaussian noise per actuator channel convolved along the
// time axis with a Gaussian kernel, so consecutive samples are correlated on
// a configurable timescale while the per channel variance stays put.
package disturb

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	lqr "github.com/milosgajdos/go-lqr"
	"github.com/milosgajdos/go-lqr/model"
	"github.com/milosgajdos/go-lqr/rand"
)

// compile time checks
var (
	_ lqr.Disturbance = (*Trace)(nil)
	_ lqr.Disturbance = (*Zero)(nil)
)

// Config contains disturbance trace configuration
type Config struct {
	// Std holds the noise standard deviation of every actuator channel
	Std []float64
	// CorrTime is the noise correlation time in seconds. Zero disables
	// smoothing and yields white noise.
	CorrTime float64
	// Seed seeds the noise source
	Seed uint64
}

// ConfigFrom builds a disturbance config for the actuators of m, assigning
// the balance group std to root and balance actuators and the other group
// std to the rest.
func ConfigFrom(m *model.Model, dc model.DisturbConfig) *Config {
	return &Config{
		Std:      m.ActuatorStds(dc.BalanceStd, dc.OtherStd),
		CorrTime: dc.CorrTime,
		Seed:     dc.Seed,
	}
}

// Trace is a precomputed disturbance sequence with one control vector per
// step
type Trace struct {
	data  *mat.Dense
	steps int
	nu    int
}

// New generates a disturbance trace of the given number of steps for nu
// actuator channels sampled at timestep dt.
func New(steps, nu int, dt float64, c *Config) (*Trace, error) {
	if steps <= 0 || nu <= 0 {
		return nil, fmt.Errorf("invalid trace dimensions [%d x %d]: %w", steps, nu, lqr.ErrConfiguration)
	}
	if dt <= 0 {
		return nil, fmt.Errorf("invalid timestep %f: %w", dt, lqr.ErrConfiguration)
	}
	if c == nil {
		return nil, fmt.Errorf("nil config: %w", lqr.ErrConfiguration)
	}
	if len(c.Std) != nu {
		return nil, fmt.Errorf("std channels %d, actuator channels %d: %w", len(c.Std), nu, lqr.ErrDimensionMismatch)
	}
	for i, std := range c.Std {
		if std < 0 || math.IsNaN(std) {
			return nil, fmt.Errorf("invalid std %f on channel %d: %w", std, i, lqr.ErrConfiguration)
		}
	}
	if c.CorrTime < 0 {
		return nil, fmt.Errorf("invalid correlation time %f: %w", c.CorrTime, lqr.ErrConfiguration)
	}

	raw, err := rand.NormalMatrix(steps, nu, c.Seed)
	if err != nil {
		return nil, fmt.Errorf("sample noise: %w", err)
	}

	k := kernel(c.CorrTime / dt)
	data := mat.NewDense(steps, nu, nil)
	col := make([]float64, steps)
	for j := 0; j < nu; j++ {
		mat.Col(col, j, raw)
		smoothed := convolveSame(col, k)
		for t := 0; t < steps; t++ {
			data.Set(t, j, c.Std[j]*smoothed[t])
		}
	}

	return &Trace{data: data, steps: steps, nu: nu}, nil
}

// Steps returns the number of steps in the trace
func (tr *Trace) Steps() int {
	return tr.steps
}

// Dim returns the number of actuator channels
func (tr *Trace) Dim() int {
	return tr.nu
}

// Sample returns the disturbance control vector of the given step. Steps
// outside the trace yield a zero vector.
func (tr *Trace) Sample(step int) mat.Vector {
	w := mat.NewVecDense(tr.nu, nil)
	if step < 0 || step >= tr.steps {
		return w
	}
	for j := 0; j < tr.nu; j++ {
		w.SetVec(j, tr.data.At(step, j))
	}

	return w
}

// Zero is a disturbance source that always returns a zero vector
type Zero struct {
	nu int
}

// NewZero creates a zero disturbance source for nu actuator channels
func NewZero(nu int) *Zero {
	return &Zero{nu: nu}
}

// Sample implements the Disturbance interface
func (z *Zero) Sample(step int) mat.Vector {
	return mat.NewVecDense(z.nu, nil)
}

// kernel builds a Gaussian smoothing kernel with standard deviation sigma
// measured in steps, truncated at four sigma. The kernel is normalized to
// unit L2 norm so convolving white noise preserves its variance. A sigma too
// small to span more than one step degenerates to the identity kernel.
func kernel(sigma float64) []float64 {
	radius := int(math.Ceil(4 * sigma))
	if radius < 1 {
		return []float64{1.0}
	}

	k := make([]float64, 2*radius+1)
	var sq float64
	for i := range k {
		d := float64(i - radius)
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sq += k[i] * k[i]
	}
	norm := math.Sqrt(sq)
	for i := range k {
		k[i] /= norm
	}

	return k
}

// convolveSame convolves x with kernel k and returns a sequence of the same
// length as x, treating samples beyond either end as zero
func convolveSame(x, k []float64) []float64 {
	radius := len(k) / 2
	y := make([]float64, len(x))
	for t := range x {
		var acc float64
		for i, w := range k {
			src := t + i - radius
			if src < 0 || src >= len(x) {
				continue
			}
			acc += w * x[src]
		}
		y[t] = acc
	}

	return y
}
