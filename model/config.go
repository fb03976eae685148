package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// JointConfig configures a single joint
type JointConfig struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Group string `yaml:"group"`
}

// ActuatorConfig configures a single actuator
type ActuatorConfig struct {
	Name  string `yaml:"name"`
	Joint string `yaml:"joint"`
	Axis  int    `yaml:"axis"`
}

// CostConfig configures the balance cost matrices
type CostConfig struct {
	// BalanceCoeff scales the CoM over support balance term
	BalanceCoeff float64 `yaml:"balance_coeff"`
	// BalanceWeight regularizes balance group joints
	BalanceWeight float64 `yaml:"balance_weight"`
	// OtherWeight regularizes other group joints
	OtherWeight float64 `yaml:"other_weight"`
	// Body names the body whose CoM drift is penalized
	Body string `yaml:"body"`
	// Support names the ground contact reference body
	Support string `yaml:"support"`
}

// DisturbConfig configures control disturbance traces
type DisturbConfig struct {
	// BalanceStd is the noise std of balance and root group actuators
	BalanceStd float64 `yaml:"balance_std"`
	// OtherStd is the noise std of other group actuators
	OtherStd float64 `yaml:"other_std"`
	// CorrTime is the noise correlation time in seconds
	CorrTime float64 `yaml:"correlation_time"`
	// Seed seeds the noise source
	Seed uint64 `yaml:"seed"`
}

// Config is the serializable description of a synthesis setup
type Config struct {
	Joints    []JointConfig    `yaml:"joints"`
	Actuators []ActuatorConfig `yaml:"actuators"`
	Cost      CostConfig       `yaml:"cost"`
	Disturb   DisturbConfig    `yaml:"disturbance"`
}

// DefaultConfig returns a config with default cost and disturbance
// parameters and no joints or actuators
func DefaultConfig() *Config {
	return &Config{
		Cost: CostConfig{
			BalanceCoeff:  1000.0,
			BalanceWeight: 3.0,
			OtherWeight:   0.3,
		},
		Disturb: DisturbConfig{
			BalanceStd: 0.01,
			OtherStd:   0.08,
			CorrTime:   0.25,
			Seed:       1,
		},
	}
}

// LoadConfig reads a config from the YAML file at path. Parameters missing
// from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := DefaultConfig()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return c, nil
}

// SaveConfig writes the config to a YAML file at path
func SaveConfig(path string, c *Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Model builds the figure model described by the config
func (c *Config) Model() (*Model, error) {
	joints := make([]Joint, len(c.Joints))
	for i, jc := range c.Joints {
		t, err := ParseJointType(jc.Type)
		if err != nil {
			return nil, fmt.Errorf("joint %s: %w", jc.Name, err)
		}
		g, err := ParseGroup(jc.Group)
		if err != nil {
			return nil, fmt.Errorf("joint %s: %w", jc.Name, err)
		}
		joints[i] = Joint{Name: jc.Name, Type: t, Group: g}
	}

	acts := make([]Actuator, len(c.Actuators))
	for i, ac := range c.Actuators {
		acts[i] = Actuator{Name: ac.Name, Joint: ac.Joint, Axis: ac.Axis}
	}

	return New(joints, acts)
}
