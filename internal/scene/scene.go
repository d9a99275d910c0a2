// Package scene holds the world collaborator the engine weakly references:
// named models owning named links, plus the yaml description used to
// populate an engine through its entity factories. The scene owns names and
// structure; the engine owns the bodies.
package scene

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/physkit/internal/engine"
)

// Config is the yaml scene description.
type Config struct {
	Models []ModelConfig        `yaml:"models"`
	Joints []engine.JointConfig `yaml:"joints"`
}

type ModelConfig struct {
	Name  string       `yaml:"name"`
	Links []LinkConfig `yaml:"links"`
}

type LinkConfig struct {
	Name       string      `yaml:"name"`
	Shape      string      `yaml:"shape"`
	Position   engine.Vec3 `yaml:"position"`
	Size       engine.Vec3 `yaml:"size"`
	Radius     float64     `yaml:"radius"`
	Mass       float64     `yaml:"mass"`
	Friction   float64     `yaml:"friction"`
	Elasticity float64     `yaml:"elasticity"`
	Static     bool        `yaml:"static"`
}

// Load reads a yaml scene file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse unmarshals yaml bytes and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for _, m := range c.Models {
		if m.Name == "" {
			return fmt.Errorf("%w: model with no name", engine.ErrInvalidConfig)
		}
		for _, l := range m.Links {
			if l.Name == "" {
				return fmt.Errorf("%w: model %q has a link with no name", engine.ErrInvalidConfig, m.Name)
			}
			full := m.Name + "::" + l.Name
			if seen[full] {
				return fmt.Errorf("%w: duplicate link %q", engine.ErrInvalidConfig, full)
			}
			seen[full] = true
			if l.Shape == "" {
				return fmt.Errorf("%w: link %q has no shape", engine.ErrInvalidConfig, full)
			}
		}
	}
	for i := range c.Joints {
		if err := c.Joints[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Model is a named group of links.
type Model struct {
	name  string
	links []engine.Link
}

func (m *Model) Name() string         { return m.name }
func (m *Model) Links() []engine.Link { return m.links }

var _ engine.World = (*Scene)(nil)

// Scene is the built world: the name index the engine resolves joints
// against, plus the joint list the caller steps and tears down.
type Scene struct {
	models    []*Model
	links     map[string]engine.Link
	ambiguous map[string]bool
	joints    []engine.Joint
}

func New() *Scene {
	return &Scene{
		links:     make(map[string]engine.Link),
		ambiguous: make(map[string]bool),
	}
}

// LinkByName resolves a scene-scoped link name. The model-qualified form
// ("pendulum::ball") always resolves; the short form ("ball") resolves only
// while exactly one model declares it.
func (s *Scene) LinkByName(name string) (engine.Link, error) {
	if l, ok := s.links[name]; ok {
		return l, nil
	}
	return nil, fmt.Errorf("%w: link %q", engine.ErrUnknownLink, name)
}

// LinkNames lists every registered link name, model-qualified, sorted.
func (s *Scene) LinkNames() []string {
	names := make([]string, 0, len(s.links))
	for n := range s.links {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *Scene) Models() []*Model { return s.models }

func (s *Scene) Joints() []engine.Joint { return s.joints }

// Populate builds the described models, links and joints inside the engine.
// The scene must be the world the engine was constructed with, otherwise
// joint name resolution goes through the wrong index.
func (s *Scene) Populate(e engine.Engine, cfg *Config) error {
	for _, mc := range cfg.Models {
		model := &Model{name: mc.Name}
		for _, lc := range mc.Links {
			link, err := s.buildLink(e, model, &lc)
			if err != nil {
				return fmt.Errorf("model %q link %q: %w", mc.Name, lc.Name, err)
			}
			model.links = append(model.links, link)
			full := mc.Name + "::" + lc.Name
			s.links[full] = link
			// a short name reused across models stops resolving
			switch _, dup := s.links[lc.Name]; {
			case s.ambiguous[lc.Name]:
			case dup:
				delete(s.links, lc.Name)
				s.ambiguous[lc.Name] = true
			default:
				s.links[lc.Name] = link
			}
		}
		s.models = append(s.models, model)
	}

	for i := range cfg.Joints {
		jc := cfg.Joints[i]
		j, err := e.CreateJoint(jc.Type)
		if err != nil {
			return fmt.Errorf("joint %q: %w", jc.Name, err)
		}
		if err := j.Load(&jc); err != nil {
			return fmt.Errorf("joint %q: %w", jc.Name, err)
		}
		s.joints = append(s.joints, j)
	}
	return nil
}

func (s *Scene) buildLink(e engine.Engine, model *Model, lc *LinkConfig) (engine.Link, error) {
	link, err := e.CreateLink(model)
	if err != nil {
		return nil, err
	}
	coll, err := e.CreateCollision(lc.Shape, link)
	if err != nil {
		return nil, err
	}

	if loader, ok := coll.(engine.ShapeLoader); ok {
		sc := &engine.ShapeConfig{
			Size:       lc.Size,
			Radius:     lc.Radius,
			Mass:       lc.Mass,
			Friction:   lc.Friction,
			Elasticity: lc.Elasticity,
		}
		if sc.Size.IsZero() {
			sc.Size = engine.Vec3{X: 1, Y: 1, Z: 1}
		}
		if sc.Radius == 0 {
			sc.Radius = 0.5
		}
		if sc.Mass == 0 {
			sc.Mass = 1
		}
		if err := loader.LoadShape(sc); err != nil {
			return nil, err
		}
	}
	if p, ok := link.(engine.Positioned); ok {
		p.SetPosition(lc.Position)
	}
	if lc.Static {
		if sb, ok := link.(engine.StaticBody); ok {
			sb.SetStatic(true)
		}
	}
	return link, nil
}

// Detach tears every scene joint down, leaving links in place.
func (s *Scene) Detach() {
	for _, j := range s.joints {
		j.Detach()
	}
	s.joints = nil
}
