package model

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	lqr "github.com/milosgajdos/go-lqr"
)

var (
	figJoints []Joint
	figActs   []Actuator
)

func setup() {
	figJoints = []Joint{
		{Name: "root", Type: Free, Group: Root},
		{Name: "hip", Type: Hinge, Group: Balance},
		{Name: "knee", Type: Hinge, Group: Balance},
		{Name: "shoulder", Type: Ball, Group: Other},
	}
	figActs = []Actuator{
		{Name: "hip", Joint: "hip"},
		{Name: "knee", Joint: "knee"},
		{Name: "shoulder_x", Joint: "shoulder", Axis: 0},
		{Name: "shoulder_y", Joint: "shoulder", Axis: 1},
	}
}

func TestMain(m *testing.M) {
	setup()
	m.Run()
}

func TestNew(t *testing.T) {
	assert := assert.New(t)

	m, err := New(figJoints, figActs)
	assert.NotNil(m)
	assert.NoError(err)

	nq, nv, nu := m.Dims()
	assert.Equal(13, nq)
	assert.Equal(11, nv)
	assert.Equal(4, nu)

	// invalid layouts
	cases := []struct {
		name   string
		joints []Joint
		acts   []Actuator
	}{
		{"no joints", nil, figActs},
		{"no actuators", figJoints, nil},
		{"duplicate joint", append([]Joint{{Name: "root", Type: Hinge}}, figJoints...), figActs},
		{"duplicate actuator", figJoints, append([]Actuator{{Name: "hip", Joint: "knee"}}, figActs...)},
		{"unknown joint", figJoints, []Actuator{{Name: "a", Joint: "nosuch"}}},
		{"axis out of range", figJoints, []Actuator{{Name: "a", Joint: "hip", Axis: 1}}},
		{"invalid type", []Joint{{Name: "j", Type: JointType(42)}}, []Actuator{{Name: "a", Joint: "j"}}},
	}
	for _, c := range cases {
		m, err := New(c.joints, c.acts)
		assert.Nil(m, c.name)
		assert.True(errors.Is(err, lqr.ErrConfiguration), c.name)
	}
}

func TestAddressing(t *testing.T) {
	assert := assert.New(t)

	m, err := New(figJoints, figActs)
	assert.NoError(err)

	pa, err := m.PosAddr("knee")
	assert.NoError(err)
	assert.Equal(8, pa)

	va, err := m.VelAddr("shoulder")
	assert.NoError(err)
	assert.Equal(8, va)

	j, err := m.Joint("hip")
	assert.NoError(err)
	assert.Equal(Balance, j.Group)

	if _, err := m.PosAddr("nosuch"); !errors.Is(err, lqr.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestGroups(t *testing.T) {
	assert := assert.New(t)

	m, err := New(figJoints, figActs)
	assert.NoError(err)

	groups := m.VelGroups()
	assert.Len(groups, 11)
	for i := 0; i < 6; i++ {
		assert.Equal(Root, groups[i])
	}
	assert.Equal(Balance, groups[6])
	assert.Equal(Balance, groups[7])
	assert.Equal(Other, groups[8])

	ag := m.ActuatorGroups()
	assert.Equal([]Group{Balance, Balance, Other, Other}, ag)

	stds := m.ActuatorStds(0.01, 0.08)
	assert.Equal([]float64{0.01, 0.01, 0.08, 0.08}, stds)
}

func TestUnitActuation(t *testing.T) {
	assert := assert.New(t)

	m, err := New(figJoints, figActs)
	assert.NoError(err)

	am := m.UnitActuation()
	r, c := am.Dims()
	assert.Equal(4, r)
	assert.Equal(11, c)

	// hip drives tangent coordinate 6, shoulder_y coordinate 9
	assert.Equal(1.0, am.At(0, 6))
	assert.Equal(1.0, am.At(3, 9))
	// one unit moment arm per row
	for i := 0; i < r; i++ {
		sum := 0.0
		for j := 0; j < c; j++ {
			sum += am.At(i, j)
		}
		assert.Equal(1.0, sum)
	}
}

func TestConfig(t *testing.T) {
	assert := assert.New(t)

	c := DefaultConfig()
	c.Joints = []JointConfig{
		{Name: "root", Type: "free", Group: "root"},
		{Name: "hip", Type: "hinge", Group: "balance"},
	}
	c.Actuators = []ActuatorConfig{{Name: "hip", Joint: "hip"}}
	c.Cost.Body = "torso"
	c.Cost.Support = "foot"

	m, err := c.Model()
	assert.NotNil(m)
	assert.NoError(err)

	nq, nv, nu := m.Dims()
	assert.Equal(8, nq)
	assert.Equal(7, nv)
	assert.Equal(1, nu)

	// YAML round trip
	path := filepath.Join(t.TempDir(), "figure.yaml")
	assert.NoError(SaveConfig(path, c))

	c2, err := LoadConfig(path)
	assert.NoError(err)
	assert.Equal(c, c2)

	// unknown type and group names must fail
	c.Joints[0].Type = "helical"
	if _, err := c.Model(); !errors.Is(err, lqr.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
	c.Joints[0].Type = "free"
	c.Joints[0].Group = "primary"
	if _, err := c.Model(); !errors.Is(err, lqr.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nosuch.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
