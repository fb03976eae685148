package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	lqr "github.com/milosgajdos/go-lqr"
	"github.com/milosgajdos/go-lqr/control"
	"github.com/milosgajdos/go-lqr/disturb"
	"github.com/milosgajdos/go-lqr/linearize"
	"github.com/milosgajdos/go-lqr/riccati"
	"github.com/milosgajdos/go-lqr/trim"
)

func eyeSym(n int) *mat.SymDense {
	q := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		q.SetSym(i, i, 1.0)
	}

	return q
}

// TestHopperPipeline drives the whole synthesis chain on the hopper: trim
// the plant onto its leg, linearize at the trim point, solve the Riccati
// equation and regulate the nonlinear plant back to the trim height.
func TestHopperPipeline(t *testing.T) {
	assert := assert.New(t)

	h, err := NewHopper(0.002)
	assert.NoError(err)

	qInit := lqr.NewPosition([]float64{h.Equilibrium() + 4e-4})
	pt, err := trim.Solve(h, qInit, nil)
	assert.NoError(err)

	s0 := pt.State()
	a, b, err := linearize.Transition(h, s0, pt.Ctrl(), 0.0)
	assert.NoError(err)

	sol, err := riccati.SolveDARE(a, b, eyeSym(2), eyeSym(1), nil)
	assert.NoError(err)

	reg, err := control.New(h, s0, pt.Ctrl(), sol.Gain(), nil, 16.0)
	assert.NoError(err)

	init := lqr.NewState(lqr.NewPosition([]float64{h.Equilibrium() + 0.01}), mat.NewVecDense(1, nil))
	assert.NoError(reg.Start(init))

	tr, err := reg.Run()
	assert.NoError(err)
	assert.Equal(control.Terminated, reg.Status())

	final := tr.States[len(tr.States)-1]
	assert.InDelta(h.Equilibrium(), final.Pos().AtVec(0), 1e-3)
	assert.InDelta(0.0, final.Vel().AtVec(0), 1e-3)
}

// TestCartpolePipeline balances the pole from a tilted start through the
// linearize, Riccati and closed loop stages
func TestCartpolePipeline(t *testing.T) {
	assert := assert.New(t)

	c, err := NewCartpole(0.01)
	assert.NoError(err)

	s0 := lqr.NewState(lqr.NewPosition([]float64{0.0, 0.0}), mat.NewVecDense(2, nil))
	u0 := mat.NewVecDense(1, nil)

	a, b, err := linearize.Transition(c, s0, u0, 0.0)
	assert.NoError(err)

	sol, err := riccati.SolveDARE(a, b, eyeSym(4), eyeSym(1), nil)
	assert.NoError(err)

	reg, err := control.New(c, s0, u0, sol.Gain(), nil, 20.0)
	assert.NoError(err)

	init := lqr.NewState(lqr.NewPosition([]float64{0.0, 0.1}), mat.NewVecDense(2, nil))
	assert.NoError(reg.Start(init))

	tr, err := reg.Run()
	assert.NoError(err)
	assert.Equal(2000, tr.Steps())

	final := tr.States[len(tr.States)-1]
	assert.InDelta(0.0, final.Pos().AtVec(1), 1e-3)
	assert.InDelta(0.0, final.Pos().AtVec(0), 1e-2)
	assert.InDelta(0.0, final.Vel().AtVec(0), 1e-2)
	assert.InDelta(0.0, final.Vel().AtVec(1), 1e-2)
}

// TestCartpoleDisturbedPipeline keeps the pole up under smoothed random
// pushes on the cart
func TestCartpoleDisturbedPipeline(t *testing.T) {
	assert := assert.New(t)

	dt := 0.01
	c, err := NewCartpole(dt)
	assert.NoError(err)

	s0 := lqr.NewState(lqr.NewPosition([]float64{0.0, 0.0}), mat.NewVecDense(2, nil))
	u0 := mat.NewVecDense(1, nil)

	a, b, err := linearize.Transition(c, s0, u0, 0.0)
	assert.NoError(err)
	sol, err := riccati.SolveDARE(a, b, eyeSym(4), eyeSym(1), nil)
	assert.NoError(err)

	steps := 2000
	d, err := disturb.New(steps, 1, dt, &disturb.Config{Std: []float64{0.05}, CorrTime: 0.1, Seed: 5})
	assert.NoError(err)

	reg, err := control.New(c, s0, u0, sol.Gain(), d, 20.0)
	assert.NoError(err)

	init := lqr.NewState(lqr.NewPosition([]float64{0.0, 0.05}), mat.NewVecDense(2, nil))
	assert.NoError(reg.Start(init))

	tr, err := reg.Run()
	assert.NoError(err)

	// the pole never falls
	for _, theta := range tr.DeviationSeries(1) {
		assert.Less(math.Abs(theta), 0.3)
	}
}

// TestAttitudePipeline recovers a tilted orientation back to the identity,
// regulating directly on the quaternion manifold
func TestAttitudePipeline(t *testing.T) {
	assert := assert.New(t)

	att, err := NewAttitude(0.01)
	assert.NoError(err)

	s0 := lqr.NewState(identityPos(), mat.NewVecDense(3, nil))
	u0 := mat.NewVecDense(3, nil)

	a, b, err := linearize.Transition(att, s0, u0, 0.0)
	assert.NoError(err)

	sol, err := riccati.SolveDARE(a, b, eyeSym(6), eyeSym(3), nil)
	assert.NoError(err)

	reg, err := control.New(att, s0, u0, sol.Gain(), nil, 20.0)
	assert.NoError(err)

	init := lqr.NewState(rotatedPos([3]float64{0.2, 0.0, 0.0}), mat.NewVecDense(3, nil))
	assert.NoError(reg.Start(init))

	tr, err := reg.Run()
	assert.NoError(err)

	final := tr.States[len(tr.States)-1]
	dq, err := att.Difference(identityPos(), final.Pos())
	assert.NoError(err)
	assert.InDelta(0.0, mat.Norm(dq.VecDense, 2), 1e-3)
	assert.InDelta(0.0, mat.Norm(final.Vel(), 2), 1e-3)
}
