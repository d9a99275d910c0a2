package engine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultStepTime         = 0.001
	DefaultGravityY         = -9.8
	DefaultSolverIters      = 50
	DefaultSolverSOR        = 1.3
	DefaultMaxCorrectingVel = 100.0
	DefaultSurfaceLayer     = 0.001
	DefaultMaxContacts      = 20
)

// Config is the engine-wide parameter tree consumed by Load. Unset fields
// take the documented defaults; backends ignore tuning knobs they do not
// support.
type Config struct {
	Backend  string       `yaml:"backend"`
	Gravity  Vec3         `yaml:"gravity"`
	StepTime float64      `yaml:"step_time"`
	Solver   SolverConfig `yaml:"solver"`
}

// SolverConfig is the backend-defined bag of solver tuning scalars.
type SolverConfig struct {
	ERP              float64 `yaml:"erp"`
	CFM              float64 `yaml:"cfm"`
	Iters            int     `yaml:"iters"`
	SOR              float64 `yaml:"sor"`
	AutoDisable      bool    `yaml:"auto_disable"`
	MaxCorrectingVel float64 `yaml:"max_correcting_vel"`
	SurfaceLayer     float64 `yaml:"surface_layer"`
	MaxContacts      int     `yaml:"max_contacts"`
}

// JointConfig is the per-joint parameter tree consumed by Joint.Load. Parent
// and Child name links resolved through the world collaborator; an empty
// Parent anchors the joint to the static frame.
type JointConfig struct {
	Name       string  `yaml:"name"`
	Type       string  `yaml:"type"`
	Parent     string  `yaml:"parent"`
	Child      string  `yaml:"child"`
	Anchor     Vec3    `yaml:"anchor"`
	Axis       Vec3    `yaml:"axis"`
	LowerLimit float64 `yaml:"lower_limit"`
	UpperLimit float64 `yaml:"upper_limit"`
	Damping    float64 `yaml:"damping"`
	Stiffness  float64 `yaml:"stiffness"`
	ERP        float64 `yaml:"erp"`
	CFM        float64 `yaml:"cfm"`
}

func DefaultConfig() *Config {
	return &Config{
		Gravity:  Vec3{Y: DefaultGravityY},
		StepTime: DefaultStepTime,
		Solver: SolverConfig{
			Iters:            DefaultSolverIters,
			SOR:              DefaultSolverSOR,
			MaxCorrectingVel: DefaultMaxCorrectingVel,
			SurfaceLayer:     DefaultSurfaceLayer,
			MaxContacts:      DefaultMaxContacts,
		},
	}
}

// LoadConfig reads a yaml config file, overlaying it on the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig unmarshals yaml bytes over the defaults and validates.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.StepTime <= 0 {
		return fmt.Errorf("%w: step time %g, must be positive", ErrInvalidConfig, c.StepTime)
	}
	if c.Solver.Iters < 0 {
		return fmt.Errorf("%w: solver iters %d, must be non-negative", ErrInvalidConfig, c.Solver.Iters)
	}
	if c.Solver.MaxContacts < 0 {
		return fmt.Errorf("%w: max contacts %d, must be non-negative", ErrInvalidConfig, c.Solver.MaxContacts)
	}
	return nil
}

func (c *JointConfig) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("%w: joint %q has no type", ErrInvalidConfig, c.Name)
	}
	if c.Child == "" {
		return fmt.Errorf("%w: joint %q has no child link", ErrInvalidConfig, c.Name)
	}
	if c.Parent == c.Child {
		return fmt.Errorf("%w: joint %q connects link %q to itself", ErrInvalidConfig, c.Name, c.Child)
	}
	if c.UpperLimit < c.LowerLimit && c.UpperLimit != 0 {
		return fmt.Errorf("%w: joint %q limits [%g, %g] inverted", ErrInvalidConfig, c.Name, c.LowerLimit, c.UpperLimit)
	}
	return nil
}
