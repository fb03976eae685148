package control

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	lqr "github.com/milosgajdos/go-lqr"
)

// flatPlant is a semi implicit double integrator over a flat position space
type flatPlant struct {
	dt float64
}

func (p *flatPlant) Dims() (nq, nv, nu int) { return 1, 1, 1 }

func (p *flatPlant) Timestep() float64 { return p.dt }

func (p *flatPlant) Step(s *lqr.State, u mat.Vector) (*lqr.State, error) {
	v := s.Vel().AtVec(0) + p.dt*u.AtVec(0)
	q := s.Pos().AtVec(0) + p.dt*v

	return lqr.NewState(lqr.NewPosition([]float64{q}), mat.NewVecDense(1, []float64{v})), nil
}

func (p *flatPlant) Difference(ref, other lqr.Position) (lqr.Tangent, error) {
	return lqr.NewTangentFrom([]float64{other.AtVec(0) - ref.AtVec(0)}), nil
}

func (p *flatPlant) Retract(q lqr.Position, dq lqr.Tangent, scale float64) (lqr.Position, error) {
	return lqr.NewPosition([]float64{q.AtVec(0) + scale*dq.AtVec(0)}), nil
}

// nanPlant blows up after a fixed number of steps
type nanPlant struct {
	flatPlant
	failAt int
	count  int
}

func (p *nanPlant) Step(s *lqr.State, u mat.Vector) (*lqr.State, error) {
	if p.count >= p.failAt {
		return lqr.NewState(s.Pos(), mat.NewVecDense(1, []float64{math.NaN()})), nil
	}
	p.count++

	return p.flatPlant.Step(s, u)
}

// constDist replays the same disturbance vector at every step
type constDist struct {
	w *mat.VecDense
}

func (d *constDist) Sample(step int) mat.Vector { return d.w }

func newRegulator(t *testing.T, dt, horizon float64) *Regulator {
	s0 := lqr.NewState(lqr.NewPosition([]float64{1.0}), mat.NewVecDense(1, nil))
	u0 := mat.NewVecDense(1, []float64{2.0})
	k := mat.NewDense(1, 2, []float64{10.0, 5.0})

	r, err := New(&flatPlant{dt: dt}, s0, u0, k, nil, horizon)
	if err != nil {
		t.Fatalf("failed to create regulator: %v", err)
	}

	return r
}

func TestStatusString(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("idle", Idle.String())
	assert.Equal("running", Running.String())
	assert.Equal("terminated", Terminated.String())
	assert.Equal("unknown", Status(42).String())
}

func TestNewValidation(t *testing.T) {
	p := &flatPlant{dt: 0.01}
	s0 := lqr.NewState(lqr.NewPosition([]float64{1.0}), mat.NewVecDense(1, nil))
	u0 := mat.NewVecDense(1, nil)
	k := mat.NewDense(1, 2, nil)

	testCases := []struct {
		name    string
		p       Plant
		s0      *lqr.State
		u0      mat.Vector
		k       mat.Matrix
		horizon float64
		want    error
	}{
		{"state dims", p, lqr.NewState(lqr.NewPosition([]float64{1.0, 0.0}), mat.NewVecDense(2, nil)), u0, k, 1.0, lqr.ErrDimensionMismatch},
		{"control dims", p, s0, mat.NewVecDense(3, nil), k, 1.0, lqr.ErrDimensionMismatch},
		{"gain rows", p, s0, u0, mat.NewDense(2, 2, nil), 1.0, lqr.ErrDimensionMismatch},
		{"gain cols", p, s0, u0, mat.NewDense(1, 3, nil), 1.0, lqr.ErrDimensionMismatch},
		{"zero horizon", p, s0, u0, k, 0.0, lqr.ErrConfiguration},
		{"bad timestep", &flatPlant{dt: 0.0}, s0, u0, k, 1.0, lqr.ErrConfiguration},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.p, tc.s0, tc.u0, tc.k, nil, tc.horizon); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestLifecycle(t *testing.T) {
	assert := assert.New(t)

	r := newRegulator(t, 0.01, 0.05)
	assert.Equal(Idle, r.Status())
	assert.Nil(r.State())

	// the loop cannot advance before it has an initial state
	_, err := r.Tick()
	assert.ErrorIs(err, lqr.ErrConfiguration)
	_, err = r.Run()
	assert.ErrorIs(err, lqr.ErrConfiguration)

	init := lqr.NewState(lqr.NewPosition([]float64{1.0}), mat.NewVecDense(1, nil))
	assert.NoError(r.Start(init))
	assert.Equal(Running, r.Status())
	assert.ErrorIs(r.Start(init), lqr.ErrConfiguration)

	badInit := lqr.NewState(lqr.NewPosition([]float64{1.0, 0.0}), mat.NewVecDense(2, nil))
	r2 := newRegulator(t, 0.01, 0.05)
	assert.ErrorIs(r2.Start(badInit), lqr.ErrDimensionMismatch)
	assert.Equal(Idle, r2.Status())
}

func TestControlLaw(t *testing.T) {
	assert := assert.New(t)

	r := newRegulator(t, 0.01, 1.0)

	// dx = [0.3, -0.2], u = 2 - (10*0.3 + 5*(-0.2)) = 0
	s := lqr.NewState(lqr.NewPosition([]float64{1.3}), mat.NewVecDense(1, []float64{-0.2}))
	u, err := r.Control(s, 0)
	assert.NoError(err)
	assert.InDelta(0.0, u.AtVec(0), 1e-12)

	// dx = [-0.1, 0.1], u = 2 - (-1.0 + 0.5) = 2.5
	s = lqr.NewState(lqr.NewPosition([]float64{0.9}), mat.NewVecDense(1, []float64{0.1}))
	u, err = r.Control(s, 0)
	assert.NoError(err)
	assert.InDelta(2.5, u.AtVec(0), 1e-12)

	// at the reference the regulator holds the trim control
	s = lqr.NewState(lqr.NewPosition([]float64{1.0}), mat.NewVecDense(1, nil))
	u, err = r.Control(s, 0)
	assert.NoError(err)
	assert.Equal(2.0, u.AtVec(0))
}

func TestHorizon(t *testing.T) {
	assert := assert.New(t)

	r := newRegulator(t, 0.01, 0.05)
	init := lqr.NewState(lqr.NewPosition([]float64{1.0}), mat.NewVecDense(1, nil))
	assert.NoError(r.Start(init))

	tr, err := r.Run()
	assert.NoError(err)
	assert.Equal(Terminated, r.Status())
	assert.Equal(5, tr.Steps())
	assert.Equal(5, r.Step())
	assert.InDelta(0.05, tr.Times[len(tr.Times)-1], 1e-12)

	_, err = r.Tick()
	assert.ErrorIs(err, lqr.ErrConfiguration)
}

func TestTick(t *testing.T) {
	assert := assert.New(t)

	dt := 0.01
	r := newRegulator(t, dt, 1.0)
	init := lqr.NewState(lqr.NewPosition([]float64{1.0}), mat.NewVecDense(1, nil))
	assert.NoError(r.Start(init))

	// at the reference u = u0 = 2: v = dt*2, q = 1 + dt*v
	s, err := r.Tick()
	assert.NoError(err)
	assert.InDelta(dt*2.0, s.Vel().AtVec(0), 1e-15)
	assert.InDelta(1.0+dt*dt*2.0, s.Pos().AtVec(0), 1e-15)
	assert.Equal(1, r.Step())
	assert.Equal(Running, r.Status())
}

func TestConvergence(t *testing.T) {
	assert := assert.New(t)

	p := &flatPlant{dt: 0.01}
	s0 := lqr.NewState(lqr.NewPosition([]float64{1.0}), mat.NewVecDense(1, nil))
	u0 := mat.NewVecDense(1, nil)
	k := mat.NewDense(1, 2, []float64{10.0, 5.0})

	r, err := New(p, s0, u0, k, nil, 10.0)
	assert.NoError(err)

	init := lqr.NewState(lqr.NewPosition([]float64{1.5}), mat.NewVecDense(1, nil))
	assert.NoError(r.Start(init))

	tr, err := r.Run()
	assert.NoError(err)

	// the loop pulls the state back to the reference
	dev := tr.DeviationSeries(0)
	assert.InDelta(0.5, dev[0], 1e-12)
	final := tr.States[len(tr.States)-1]
	assert.InDelta(1.0, final.Pos().AtVec(0), 1e-2)
	assert.InDelta(0.0, final.Vel().AtVec(0), 1e-2)
}

func TestDisturbance(t *testing.T) {
	assert := assert.New(t)

	dt := 0.01
	p := &flatPlant{dt: dt}
	s0 := lqr.NewState(lqr.NewPosition([]float64{0.0}), mat.NewVecDense(1, nil))
	u0 := mat.NewVecDense(1, nil)
	k := mat.NewDense(1, 2, nil)
	d := &constDist{w: mat.NewVecDense(1, []float64{0.25})}

	r, err := New(p, s0, u0, k, d, 1.0)
	assert.NoError(err)
	assert.NoError(r.Start(s0.Clone()))

	// with zero gain and zero trim control only the disturbance acts
	s, err := r.Tick()
	assert.NoError(err)
	assert.InDelta(dt*0.25, s.Vel().AtVec(0), 1e-15)

	bad := &constDist{w: mat.NewVecDense(3, nil)}
	r2, err := New(p, s0, u0, k, bad, 1.0)
	assert.NoError(err)
	assert.NoError(r2.Start(s0.Clone()))
	_, err = r2.Tick()
	assert.ErrorIs(err, lqr.ErrDimensionMismatch)
	assert.Equal(Terminated, r2.Status())
}

func TestDivergence(t *testing.T) {
	assert := assert.New(t)

	p := &nanPlant{flatPlant: flatPlant{dt: 0.01}, failAt: 2}
	s0 := lqr.NewState(lqr.NewPosition([]float64{0.0}), mat.NewVecDense(1, nil))
	r, err := New(p, s0, mat.NewVecDense(1, nil), mat.NewDense(1, 2, nil), nil, 1.0)
	assert.NoError(err)
	assert.NoError(r.Start(s0.Clone()))

	_, err = r.Run()
	assert.Error(err)
	assert.Contains(err.Error(), "diverged")
	assert.Equal(Terminated, r.Status())
}

func TestTraceSeries(t *testing.T) {
	assert := assert.New(t)

	r := newRegulator(t, 0.01, 0.03)
	init := lqr.NewState(lqr.NewPosition([]float64{1.2}), mat.NewVecDense(1, nil))
	assert.NoError(r.Start(init))

	tr, err := r.Run()
	assert.NoError(err)
	assert.Equal(3, tr.Steps())
	assert.Len(tr.DeviationSeries(0), 3)
	assert.Len(tr.DeviationSeries(1), 3)
	assert.Len(tr.ControlSeries(0), 3)
	assert.InDelta(0.2, tr.DeviationSeries(0)[0], 1e-12)
}

func TestGainIsCopied(t *testing.T) {
	assert := assert.New(t)

	p := &flatPlant{dt: 0.01}
	s0 := lqr.NewState(lqr.NewPosition([]float64{0.0}), mat.NewVecDense(1, nil))
	k := mat.NewDense(1, 2, []float64{10.0, 5.0})

	r, err := New(p, s0, mat.NewVecDense(1, nil), k, nil, 1.0)
	assert.NoError(err)

	// mutating the caller's gain must not change the loop
	k.Set(0, 0, 1e6)
	s := lqr.NewState(lqr.NewPosition([]float64{0.1}), mat.NewVecDense(1, nil))
	u, err := r.Control(s, 0)
	assert.NoError(err)
	assert.InDelta(-1.0, u.AtVec(0), 1e-12)
}
