package control

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	lqr "github.com/milosgajdos/go-lqr"
)

// Plant is the capability slice consumed by the closed loop
type Plant interface {
	lqr.Descriptor
	lqr.Stepper
	lqr.Manifold
}

// Status enumerates the regulator lifecycle
type Status int

const (
	// Idle means the regulator holds a synthesized gain and waits for an
	// initial state
	Idle Status = iota
	// Running means the regulator advances the plant every tick
	Running
	// Terminated means the configured horizon has elapsed or the loop
	// aborted
	Terminated
)

// String implements the Stringer interface
func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	}

	return "unknown"
}

// Trace records a closed loop run, one entry per control step
type Trace struct {
	// Times holds the simulated time after every step
	Times []float64
	// States holds the plant state after every step
	States []*lqr.State
	// Controls holds the control applied at every step
	Controls []*mat.VecDense
	// Deviations holds the tangent space deviation from the trim point
	// measured before every step
	Deviations []*mat.VecDense
}

// Steps returns the number of recorded control steps
func (t *Trace) Steps() int {
	return len(t.Times)
}

// DeviationSeries returns the time series of tangent deviation coordinate i
func (t *Trace) DeviationSeries(i int) []float64 {
	s := make([]float64, len(t.Deviations))
	for k, dx := range t.Deviations {
		s[k] = dx.AtVec(i)
	}

	return s
}

// ControlSeries returns the time series of control coordinate i
func (t *Trace) ControlSeries(i int) []float64 {
	s := make([]float64, len(t.Controls))
	for k, u := range t.Controls {
		s[k] = u.AtVec(i)
	}

	return s
}

// Regulator drives a plant around a trim point with the feedback law
//
//	u = u0 - K*dx
//
// where dx = [dq; v - v0] is the tangent space deviation from the trim
// reference: positions are differenced through the plant manifold, never
// subtracted coordinate wise, so quaternion blocks stay on the unit sphere.
// An optional disturbance sequence perturbs the applied control.
type Regulator struct {
	p       Plant
	q0      lqr.Position
	v0      *mat.VecDense
	u0      *mat.VecDense
	k       *mat.Dense
	d       lqr.Disturbance
	dt      float64
	horizon float64
	nv      int
	nu      int

	status Status
	cur    *lqr.State
	step   int
}

// New creates a regulator around reference state s0 with holding control u0
// and feedback gain k (nu x 2nv), advancing plant p until horizon seconds
// of simulated time elapse. A nil disturbance runs the loop undisturbed.
func New(p Plant, s0 *lqr.State, u0 mat.Vector, k mat.Matrix, d lqr.Disturbance, horizon float64) (*Regulator, error) {
	nq, nv, nu := p.Dims()
	if err := s0.CheckDims(nq, nv); err != nil {
		return nil, err
	}
	if u0.Len() != nu {
		return nil, fmt.Errorf("holding control dim %d, plant nu %d: %w", u0.Len(), nu, lqr.ErrDimensionMismatch)
	}
	kr, kc := k.Dims()
	if kr != nu || kc != 2*nv {
		return nil, fmt.Errorf("gain dimensions [%d x %d], expected [%d x %d]: %w", kr, kc, nu, 2*nv, lqr.ErrDimensionMismatch)
	}
	if horizon <= 0 {
		return nil, fmt.Errorf("invalid horizon %f: %w", horizon, lqr.ErrConfiguration)
	}
	dt := p.Timestep()
	if dt <= 0 {
		return nil, fmt.Errorf("invalid plant timestep %f: %w", dt, lqr.ErrConfiguration)
	}

	u := mat.NewVecDense(nu, nil)
	u.CloneFromVec(u0)
	gain := &mat.Dense{}
	gain.CloneFrom(k)

	return &Regulator{
		p:       p,
		q0:      s0.Pos(),
		v0:      s0.Vel(),
		u0:      u,
		k:       gain,
		d:       d,
		dt:      dt,
		horizon: horizon,
		nv:      nv,
		nu:      nu,
		status:  Idle,
	}, nil
}

// Status returns the regulator lifecycle status
func (r *Regulator) Status() Status {
	return r.status
}

// Step returns the number of completed control steps
func (r *Regulator) Step() int {
	return r.step
}

// State returns the current plant state, nil before Start
func (r *Regulator) State() *lqr.State {
	if r.cur == nil {
		return nil
	}

	return r.cur.Clone()
}

// Start receives the initial plant state and moves the regulator from Idle
// to Running
func (r *Regulator) Start(init *lqr.State) error {
	if r.status != Idle {
		return fmt.Errorf("start in status %v: %w", r.status, lqr.ErrConfiguration)
	}

	nq, nv, _ := r.p.Dims()
	if err := init.CheckDims(nq, nv); err != nil {
		return err
	}

	r.cur = init.Clone()
	r.status = Running

	return nil
}

// Control computes the feedback command for state s at the given step
func (r *Regulator) Control(s *lqr.State, step int) (*mat.VecDense, error) {
	u, _, err := r.control(s, step)

	return u, err
}

// control computes the feedback command and the tangent space deviation it
// was derived from
func (r *Regulator) control(s *lqr.State, step int) (*mat.VecDense, *mat.VecDense, error) {
	dq, err := r.p.Difference(r.q0, s.Pos())
	if err != nil {
		return nil, nil, err
	}

	v := s.Vel()
	dx := mat.NewVecDense(2*r.nv, nil)
	for i := 0; i < r.nv; i++ {
		dx.SetVec(i, dq.AtVec(i))
		dx.SetVec(r.nv+i, v.AtVec(i)-r.v0.AtVec(i))
	}

	var ku mat.VecDense
	ku.MulVec(r.k, dx)

	u := mat.NewVecDense(r.nu, nil)
	u.SubVec(r.u0, &ku)

	if r.d != nil {
		w := r.d.Sample(step)
		if w.Len() != r.nu {
			return nil, nil, fmt.Errorf("disturbance dim %d, plant nu %d: %w", w.Len(), r.nu, lqr.ErrDimensionMismatch)
		}
		u.AddVec(u, w)
	}

	return u, dx, nil
}

// advance computes the control at the current state, steps the plant and
// updates the lifecycle. Any error terminates the loop.
func (r *Regulator) advance() (*lqr.State, *mat.VecDense, *mat.VecDense, error) {
	u, dx, err := r.control(r.cur, r.step)
	if err != nil {
		r.status = Terminated
		return nil, nil, nil, err
	}

	next, err := r.p.Step(r.cur, u)
	if err != nil {
		r.status = Terminated
		return nil, nil, nil, err
	}
	if err := checkFinite(next); err != nil {
		r.status = Terminated
		return nil, nil, nil, fmt.Errorf("step %d: %w", r.step, err)
	}

	r.cur = next
	r.step++
	if float64(r.step)*r.dt >= r.horizon {
		r.status = Terminated
	}

	return next, u, dx, nil
}

// Tick advances the closed loop by one control step and returns the new
// plant state. Once the simulated time reaches the horizon the regulator
// terminates and further ticks fail.
func (r *Regulator) Tick() (*lqr.State, error) {
	if r.status != Running {
		return nil, fmt.Errorf("tick in status %v: %w", r.status, lqr.ErrConfiguration)
	}

	next, _, _, err := r.advance()

	return next, err
}

// Run drives the closed loop from the current state until the horizon
// elapses and returns the recorded trace
func (r *Regulator) Run() (*Trace, error) {
	if r.status != Running {
		return nil, fmt.Errorf("run in status %v: %w", r.status, lqr.ErrConfiguration)
	}

	n := int(math.Ceil(r.horizon/r.dt)) - r.step
	if n < 0 {
		n = 0
	}
	tr := &Trace{
		Times:      make([]float64, 0, n),
		States:     make([]*lqr.State, 0, n),
		Controls:   make([]*mat.VecDense, 0, n),
		Deviations: make([]*mat.VecDense, 0, n),
	}

	for r.status == Running {
		next, u, dx, err := r.advance()
		if err != nil {
			return nil, err
		}
		tr.Times = append(tr.Times, float64(r.step)*r.dt)
		tr.States = append(tr.States, next)
		tr.Controls = append(tr.Controls, u)
		tr.Deviations = append(tr.Deviations, dx)
	}

	return tr, nil
}

// checkFinite returns error if the state contains NaN or Inf entries
func checkFinite(s *lqr.State) error {
	for _, v := range s.Pos().Raw() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("state position diverged")
		}
	}
	v := s.Vel()
	for i := 0; i < v.Len(); i++ {
		if math.IsNaN(v.AtVec(i)) || math.IsInf(v.AtVec(i), 0) {
			return fmt.Errorf("state velocity diverged")
		}
	}

	return nil
}
