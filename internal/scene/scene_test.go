package scene

import (
	"errors"
	"io"
	"log"
	"testing"

	"github.com/san-kum/physkit/internal/engine"
)

type fakeLink struct {
	name   string
	pos    engine.Vec3
	mass   float64
	static bool
}

func (l *fakeLink) Name() string              { return l.name }
func (l *fakeLink) Position() engine.Vec3     { return l.pos }
func (l *fakeLink) SetPosition(p engine.Vec3) { l.pos = p }
func (l *fakeLink) Mass() float64             { return l.mass }
func (l *fakeLink) SetMass(m float64)         { l.mass = m }
func (l *fakeLink) Static() bool              { return l.static }
func (l *fakeLink) SetStatic(on bool)         { l.static = on }

type fakeCollision struct {
	name  string
	link  engine.Link
	shape *engine.ShapeConfig
}

func (c *fakeCollision) Name() string      { return c.name }
func (c *fakeCollision) Link() engine.Link { return c.link }

func (c *fakeCollision) LoadShape(cfg *engine.ShapeConfig) error {
	c.shape = cfg
	return nil
}

type fakeJoint struct {
	*engine.JointBase
	world engine.World
}

func (j *fakeJoint) Load(cfg *engine.JointConfig) error {
	if err := j.JointBase.Load(cfg); err != nil {
		return err
	}
	var parent, child engine.Link
	var err error
	if cfg.Parent != "" {
		if parent, err = j.world.LinkByName(cfg.Parent); err != nil {
			return err
		}
	}
	if child, err = j.world.LinkByName(cfg.Child); err != nil {
		return err
	}
	return j.Attach(parent, child)
}

type fakeEngine struct {
	*engine.Base
	nlinks int
}

func newFakeEngine(world engine.World) *fakeEngine {
	e := &fakeEngine{Base: engine.NewBase("fake", world, 0)}
	e.SetLogger(log.New(io.Discard, "", 0))
	e.RegisterLinkFactory(func(parent engine.Model) (engine.Link, error) {
		e.nlinks++
		return &fakeLink{name: parent.Name()}, nil
	})
	for _, shape := range []string{"box", "sphere", "plane"} {
		shape := shape
		e.RegisterShapeType(shape,
			func(link engine.Link) (engine.Collision, error) {
				return &fakeCollision{name: shape, link: link}, nil
			},
			func(c engine.Collision) (engine.Shape, error) {
				return nil, nil
			})
	}
	e.RegisterJointType("hinge", func() (engine.Joint, error) {
		return &fakeJoint{
			JointBase: engine.NewJointBase("fake", "hinge", e.Logger()),
			world:     world,
		}, nil
	})
	e.MarkInitialized()
	return e
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Load(cfg *engine.Config) error { return e.LoadBase(cfg) }

func (e *fakeEngine) Init() error { return nil }

func (e *fakeEngine) InitForThread() {}

func (e *fakeEngine) UpdateCollision() { e.Contacts().BeginTick() }

func (e *fakeEngine) SetGravity(g engine.Vec3) { e.CacheGravity(g) }

var _ engine.Engine = (*fakeEngine)(nil)

const sceneYAML = `
models:
  - name: pendulum
    links:
      - name: base
        shape: box
        position: {y: 2}
        static: true
      - name: bob
        shape: sphere
        position: {x: 1, y: 2}
        radius: 0.25
        mass: 3
joints:
  - name: pivot
    type: hinge
    parent: base
    child: bob
    anchor: {y: 2}
`

func TestParseAndPopulate(t *testing.T) {
	cfg, err := Parse([]byte(sceneYAML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	s := New()
	e := newFakeEngine(s)

	if err := s.Populate(e, cfg); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}
	if len(s.Models()) != 1 || len(s.Models()[0].Links()) != 2 {
		t.Fatalf("built %d models, want 1 with 2 links", len(s.Models()))
	}
	if len(s.Joints()) != 1 {
		t.Fatalf("built %d joints, want 1", len(s.Joints()))
	}

	bob, err := s.LinkByName("bob")
	if err != nil {
		t.Fatalf("short name lookup failed: %v", err)
	}
	qualified, err := s.LinkByName("pendulum::bob")
	if err != nil {
		t.Fatalf("qualified lookup failed: %v", err)
	}
	if bob != qualified {
		t.Error("short and qualified names resolve to different links")
	}

	fl := bob.(*fakeLink)
	if fl.pos != (engine.Vec3{X: 1, Y: 2}) {
		t.Errorf("bob position = %+v", fl.pos)
	}
	base, _ := s.LinkByName("base")
	if !base.(*fakeLink).static {
		t.Error("base not pinned static")
	}

	j := s.Joints()[0]
	if !j.AreConnected(base, bob) {
		t.Error("pivot joint not connected after Populate")
	}
	s.Detach()
	if len(s.Joints()) != 0 {
		t.Error("Detach left joints registered")
	}
}

func TestAmbiguousShortNameDropped(t *testing.T) {
	const twoArms = `
models:
  - name: left
    links:
      - {name: arm, shape: box}
  - name: right
    links:
      - {name: arm, shape: box}
`
	cfg, err := Parse([]byte(twoArms))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	s := New()
	e := newFakeEngine(s)
	if err := s.Populate(e, cfg); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	if _, err := s.LinkByName("arm"); !errors.Is(err, engine.ErrUnknownLink) {
		t.Errorf("ambiguous short name resolved, err = %v", err)
	}
	l, err := s.LinkByName("left::arm")
	if err != nil {
		t.Fatalf("qualified lookup failed: %v", err)
	}
	r, err := s.LinkByName("right::arm")
	if err != nil {
		t.Fatalf("qualified lookup failed: %v", err)
	}
	if l == r {
		t.Error("qualified names resolve to the same link")
	}
}

func TestLinkByNameUnknown(t *testing.T) {
	s := New()
	if _, err := s.LinkByName("ghost"); !errors.Is(err, engine.ErrUnknownLink) {
		t.Errorf("LinkByName = %v, want ErrUnknownLink", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"unnamed model", "models:\n  - links:\n      - {name: a, shape: box}\n"},
		{"unnamed link", "models:\n  - name: m\n    links:\n      - {shape: box}\n"},
		{"missing shape", "models:\n  - name: m\n    links:\n      - {name: a}\n"},
		{"duplicate link", "models:\n  - name: m\n    links:\n      - {name: a, shape: box}\n      - {name: a, shape: box}\n"},
		{"self joint", "joints:\n  - {name: j, type: hinge, parent: a, child: a}\n"},
		{"malformed", ":\n  nope\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.yaml)); err == nil {
				t.Error("Parse accepted an invalid scene")
			}
		})
	}
}
