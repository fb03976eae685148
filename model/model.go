package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	lqr "github.com/milosgajdos/go-lqr"
)

// JointType enumerates the supported joint coordinate layouts
type JointType int

const (
	// Hinge is a 1 DOF rotational joint
	Hinge JointType = iota
	// Slide is a 1 DOF prismatic joint
	Slide
	// Ball is a 3 DOF rotational joint parametrized by a unit quaternion
	Ball
	// Free is a 6 DOF floating base: 3 translations plus a unit quaternion
	Free
)

// PosDim returns the number of position coordinates of the joint type
func (t JointType) PosDim() int {
	switch t {
	case Hinge, Slide:
		return 1
	case Ball:
		return 4
	case Free:
		return 7
	}

	return 0
}

// TanDim returns the number of tangent space coordinates of the joint type
func (t JointType) TanDim() int {
	switch t {
	case Hinge, Slide:
		return 1
	case Ball:
		return 3
	case Free:
		return 6
	}

	return 0
}

// String implements the Stringer interface
func (t JointType) String() string {
	switch t {
	case Hinge:
		return "hinge"
	case Slide:
		return "slide"
	case Ball:
		return "ball"
	case Free:
		return "free"
	}

	return "unknown"
}

// ParseJointType parses a joint type from its string name
func ParseJointType(s string) (JointType, error) {
	switch s {
	case "hinge":
		return Hinge, nil
	case "slide":
		return Slide, nil
	case "ball":
		return Ball, nil
	case "free":
		return Free, nil
	}

	return 0, fmt.Errorf("unknown joint type %q: %w", s, lqr.ErrConfiguration)
}

// Group classifies joints for cost shaping and disturbance scaling
type Group int

const (
	// Root marks floating base coordinates; they receive no direct
	// regularization since the balance term already covers them
	Root Group = iota
	// Balance marks joints critical for keeping balance
	Balance
	// Other marks joints free to assist with counterbalancing
	Other
)

// String implements the Stringer interface
func (g Group) String() string {
	switch g {
	case Root:
		return "root"
	case Balance:
		return "balance"
	case Other:
		return "other"
	}

	return "unknown"
}

// ParseGroup parses a joint group from its string name
func ParseGroup(s string) (Group, error) {
	switch s {
	case "root":
		return Root, nil
	case "balance":
		return Balance, nil
	case "other":
		return Other, nil
	}

	return 0, fmt.Errorf("unknown joint group %q: %w", s, lqr.ErrConfiguration)
}

// Joint is a single articulated joint of a figure
type Joint struct {
	// Name identifies the joint
	Name string
	// Type selects the joint coordinate layout
	Type JointType
	// Group selects the cost and disturbance policy of the joint
	Group Group
}

// Actuator is a scalar actuator driving one tangent coordinate of a joint
type Actuator struct {
	// Name identifies the actuator
	Name string
	// Joint names the driven joint
	Joint string
	// Axis indexes the driven coordinate within the joint tangent block
	Axis int
}

// Model describes the kinematic layout of an articulated figure: its joints
// in tree order and its actuators. It provides coordinate block addressing
// and tangent space operations for positions that contain quaternion blocks.
type Model struct {
	joints  []Joint
	acts    []Actuator
	posAddr []int
	velAddr []int
	index   map[string]int
	nq      int
	nv      int
}

// New creates a figure model from joints and actuators.
// It returns error if joints or actuators are empty, any name is duplicate,
// an actuator references an unknown joint or an axis outside the tangent
// block of its joint.
func New(joints []Joint, acts []Actuator) (*Model, error) {
	if len(joints) == 0 {
		return nil, fmt.Errorf("no joints given: %w", lqr.ErrConfiguration)
	}
	if len(acts) == 0 {
		return nil, fmt.Errorf("no actuators given: %w", lqr.ErrConfiguration)
	}

	m := &Model{
		joints:  make([]Joint, len(joints)),
		acts:    make([]Actuator, len(acts)),
		posAddr: make([]int, len(joints)),
		velAddr: make([]int, len(joints)),
		index:   make(map[string]int, len(joints)),
	}
	copy(m.joints, joints)
	copy(m.acts, acts)

	for i, j := range m.joints {
		if j.Type.PosDim() == 0 {
			return nil, fmt.Errorf("joint %s: invalid type: %w", j.Name, lqr.ErrConfiguration)
		}
		if _, ok := m.index[j.Name]; ok {
			return nil, fmt.Errorf("duplicate joint name %s: %w", j.Name, lqr.ErrConfiguration)
		}
		m.index[j.Name] = i
		m.posAddr[i] = m.nq
		m.velAddr[i] = m.nv
		m.nq += j.Type.PosDim()
		m.nv += j.Type.TanDim()
	}

	seen := make(map[string]bool, len(acts))
	for _, a := range m.acts {
		if seen[a.Name] {
			return nil, fmt.Errorf("duplicate actuator name %s: %w", a.Name, lqr.ErrConfiguration)
		}
		seen[a.Name] = true

		i, ok := m.index[a.Joint]
		if !ok {
			return nil, fmt.Errorf("actuator %s: unknown joint %s: %w", a.Name, a.Joint, lqr.ErrConfiguration)
		}
		if a.Axis < 0 || a.Axis >= m.joints[i].Type.TanDim() {
			return nil, fmt.Errorf("actuator %s: axis %d outside joint %s tangent block: %w",
				a.Name, a.Axis, a.Joint, lqr.ErrConfiguration)
		}
	}

	return m, nil
}

// Dims returns the position, tangent and control space dimensions
func (m *Model) Dims() (nq, nv, nu int) {
	return m.nq, m.nv, len(m.acts)
}

// Joints returns a copy of the model joints
func (m *Model) Joints() []Joint {
	j := make([]Joint, len(m.joints))
	copy(j, m.joints)

	return j
}

// Actuators returns a copy of the model actuators
func (m *Model) Actuators() []Actuator {
	a := make([]Actuator, len(m.acts))
	copy(a, m.acts)

	return a
}

// Joint returns the named joint
func (m *Model) Joint(name string) (Joint, error) {
	i, ok := m.index[name]
	if !ok {
		return Joint{}, fmt.Errorf("unknown joint %q: %w", name, lqr.ErrConfiguration)
	}

	return m.joints[i], nil
}

// PosAddr returns the position block start address of the named joint
func (m *Model) PosAddr(name string) (int, error) {
	i, ok := m.index[name]
	if !ok {
		return 0, fmt.Errorf("unknown joint %q: %w", name, lqr.ErrConfiguration)
	}

	return m.posAddr[i], nil
}

// VelAddr returns the tangent block start address of the named joint
func (m *Model) VelAddr(name string) (int, error) {
	i, ok := m.index[name]
	if !ok {
		return 0, fmt.Errorf("unknown joint %q: %w", name, lqr.ErrConfiguration)
	}

	return m.velAddr[i], nil
}

// VelGroups returns the group of every tangent space coordinate
func (m *Model) VelGroups() []Group {
	g := make([]Group, 0, m.nv)
	for _, j := range m.joints {
		for k := 0; k < j.Type.TanDim(); k++ {
			g = append(g, j.Group)
		}
	}

	return g
}

// ActuatorGroups returns the group of the joint driven by every actuator
func (m *Model) ActuatorGroups() []Group {
	g := make([]Group, len(m.acts))
	for i, a := range m.acts {
		g[i] = m.joints[m.index[a.Joint]].Group
	}

	return g
}

// ActuatorStds returns per actuator noise standard deviations: balanceStd
// for actuators driving Root and Balance group joints, otherStd for the rest
func (m *Model) ActuatorStds(balanceStd, otherStd float64) []float64 {
	stds := make([]float64, len(m.acts))
	for i, g := range m.ActuatorGroups() {
		if g == Other {
			stds[i] = otherStd
			continue
		}
		stds[i] = balanceStd
	}

	return stds
}

// UnitActuation returns the nu x nv direct drive moment matrix with a unit
// moment arm at the driven tangent coordinate of every actuator
func (m *Model) UnitActuation() *mat.Dense {
	am := mat.NewDense(len(m.acts), m.nv, nil)
	for i, a := range m.acts {
		am.Set(i, m.velAddr[m.index[a.Joint]]+a.Axis, 1.0)
	}

	return am
}
