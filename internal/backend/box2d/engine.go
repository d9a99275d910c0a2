// Package box2d implements the physics engine contract on top of the Box2D
// port (github.com/ByteArena/box2d). Unlike chipmunk this backend keeps the
// two update phases separate: UpdateCollision versions the contact registry
// and harvests touching pairs from the world's contact list, UpdatePhysics
// advances the solver. Contacts therefore reflect the state after the most
// recent integration step.
//
// The solver is planar: engine vectors map onto the XY plane and the Z
// component is ignored.
package box2d

import (
	"fmt"

	"github.com/ByteArena/box2d"

	"github.com/san-kum/physkit/internal/engine"
)

const backendName = "box2d"

const positionIters = 3

const caps = engine.CapSolverIters |
	engine.CapAutoDisable |
	engine.CapRayCast |
	engine.CapJointAnchor |
	engine.CapJointForce |
	engine.CapJointTorque |
	engine.CapJointAttribute

func init() {
	engine.Register(backendName, func(world engine.World) engine.Engine {
		return New(world)
	})
}

var _ engine.Engine = (*Engine)(nil)

// Engine drives one box2d.B2World.
type Engine struct {
	*engine.Base

	world  *box2d.B2World
	ground *box2d.B2Body
	links  []*Link
	nlinks int

	iters       int
	autoDisable bool
	warnedZ     bool
}

func New(world engine.World) *Engine {
	return &Engine{
		Base:  engine.NewBase(backendName, world, caps),
		iters: engine.DefaultSolverIters,
	}
}

func (e *Engine) Name() string { return backendName }

func (e *Engine) Load(cfg *engine.Config) error {
	if err := e.LoadBase(cfg); err != nil {
		return err
	}
	e.iters = cfg.Solver.Iters
	e.autoDisable = cfg.Solver.AutoDisable
	return nil
}

func (e *Engine) Init() error {
	if e.world != nil {
		return fmt.Errorf("%w: Init called twice", engine.ErrInvalidParameter)
	}
	g := e.GetGravity()
	w := box2d.MakeB2World(box2d.MakeB2Vec2(g.X, g.Y))
	e.world = &w
	e.warnZ(g)
	e.applyAutoDisable()

	groundDef := box2d.MakeB2BodyDef()
	groundDef.Type = box2d.B2BodyType.B2_staticBody
	e.ground = e.world.CreateBody(&groundDef)

	e.RegisterLinkFactory(e.newLink)
	e.RegisterShapeType("box", e.newCollision("box"), newShape("box"))
	e.RegisterShapeType("sphere", e.newCollision("sphere"), newShape("sphere"))
	e.RegisterShapeType("plane", e.newCollision("plane"), newShape("plane"))
	e.RegisterJointType("hinge", e.newJoint("hinge"))
	e.RegisterJointType("ball", e.newJoint("ball"))
	e.RegisterJointType("slider", e.newJoint("slider"))
	e.RegisterJointType("spring", e.newJoint("spring"))
	e.RegisterJointType("fixed", e.newJoint("fixed"))

	e.MarkInitialized()
	return nil
}

// InitForThread is a no-op: the port keeps no thread-local solver state.
func (e *Engine) InitForThread() {}

func (e *Engine) Fini() {
	e.world = nil
	e.ground = nil
	e.links = nil
	e.Base.Fini()
}

// Reset returns every link to its spawn pose with zeroed velocities.
func (e *Engine) Reset() {
	for _, l := range e.links {
		l.body.SetTransform(l.spawn, 0)
		l.body.SetLinearVelocity(box2d.MakeB2Vec2(0, 0))
		l.body.SetAngularVelocity(0)
		l.body.SetAwake(true)
	}
}

// UpdateCollision versions the contact registry and refills it from the
// world's touching contacts. Traversal happens under the ray lock so a query
// never races the list walk.
func (e *Engine) UpdateCollision() {
	if e.world == nil {
		return
	}
	mu := e.GetRayMutex()
	mu.Lock()
	defer mu.Unlock()
	e.Contacts().BeginTick()
	for ct := e.world.GetContactList(); ct != nil; ct = ct.GetNext() {
		if !ct.IsTouching() {
			continue
		}
		la, _ := ct.GetFixtureA().GetBody().GetUserData().(*Link)
		lb, _ := ct.GetFixtureB().GetBody().GetUserData().(*Link)
		e.AddLinkPair(la, lb)
	}
}

// UpdatePhysics advances the solver by one step.
func (e *Engine) UpdatePhysics() {
	if e.world == nil {
		return
	}
	mu := e.GetRayMutex()
	mu.Lock()
	defer mu.Unlock()
	e.world.Step(e.GetStepTime(), e.iters, positionIters)
}

func (e *Engine) SetGravity(g engine.Vec3) {
	e.CacheGravity(g)
	if e.world == nil {
		return
	}
	e.warnZ(g)
	e.world.SetGravity(box2d.MakeB2Vec2(g.X, g.Y))
	for _, l := range e.links {
		l.body.SetAwake(true)
	}
}

func (e *Engine) warnZ(g engine.Vec3) {
	if g.Z != 0 && !e.warnedZ {
		e.Logger().Printf("box2d: planar solver, gravity z component %g ignored", g.Z)
		e.warnedZ = true
	}
}

// SetSolverIterations sets the velocity iteration count used on the next
// step. Position iterations stay fixed.
func (e *Engine) SetSolverIterations(n int) {
	if n <= 0 {
		return
	}
	e.iters = n
}

func (e *Engine) GetSolverIterations() int { return e.iters }

func (e *Engine) SetAutoDisableFlag(on bool) {
	e.autoDisable = on
	e.applyAutoDisable()
}

func (e *Engine) GetAutoDisableFlag() bool { return e.autoDisable }

func (e *Engine) applyAutoDisable() {
	if e.world != nil {
		e.world.SetAllowSleeping(e.autoDisable)
	}
}

// RayCast performs a closest-hit query under the ray lock.
func (e *Engine) RayCast(from, to engine.Vec3) (engine.RayHit, bool) {
	mu := e.GetRayMutex()
	mu.Lock()
	defer mu.Unlock()
	if e.world == nil {
		return engine.RayHit{}, false
	}
	var hit engine.RayHit
	found := false
	e.world.RayCast(func(fixture *box2d.B2Fixture, point box2d.B2Vec2, normal box2d.B2Vec2, fraction float64) float64 {
		link, _ := fixture.GetBody().GetUserData().(*Link)
		hit = engine.RayHit{
			Link:     link,
			Point:    engine.Vec3{X: point.X, Y: point.Y},
			Normal:   engine.Vec3{X: normal.X, Y: normal.Y},
			Fraction: fraction,
		}
		found = true
		return fraction
	}, box2d.MakeB2Vec2(from.X, from.Y), box2d.MakeB2Vec2(to.X, to.Y))
	return hit, found
}

func (e *Engine) OnPhysicsMsg(msg *engine.PhysicsMsg) {
	if err := engine.ApplyPhysicsMsg(e, msg); err != nil {
		e.Logger().Printf("box2d: physics msg rejected: %v", err)
	}
}

// Link is a rigid body in the world.
type Link struct {
	name  string
	model engine.Model
	body  *box2d.B2Body
	e     *Engine
	spawn box2d.B2Vec2
}

func (e *Engine) newLink(parent engine.Model) (engine.Link, error) {
	e.nlinks++
	name := fmt.Sprintf("link_%d", e.nlinks)
	if parent != nil {
		name = parent.Name() + "::" + name
	}
	def := box2d.MakeB2BodyDef()
	def.Type = box2d.B2BodyType.B2_dynamicBody
	body := e.world.CreateBody(&def)
	l := &Link{name: name, model: parent, body: body, e: e}
	body.SetUserData(l)
	e.links = append(e.links, l)
	return l, nil
}

func (l *Link) Name() string { return l.name }

func (l *Link) Position() engine.Vec3 {
	p := l.body.GetPosition()
	return engine.Vec3{X: p.X, Y: p.Y}
}

func (l *Link) SetPosition(p engine.Vec3) {
	l.spawn = box2d.MakeB2Vec2(p.X, p.Y)
	l.body.SetTransform(l.spawn, l.body.GetAngle())
}

func (l *Link) Mass() float64 { return l.body.GetMass() }

func (l *Link) SetMass(m float64) {
	if m <= 0 {
		return
	}
	l.body.SetMassData(&box2d.B2MassData{
		Mass:   m,
		Center: l.body.GetLocalCenter(),
		I:      l.body.GetInertia(),
	})
}

func (l *Link) Static() bool {
	return l.body.GetType() == box2d.B2BodyType.B2_staticBody
}

func (l *Link) SetStatic(on bool) {
	if on {
		l.body.SetType(box2d.B2BodyType.B2_staticBody)
	} else {
		l.body.SetType(box2d.B2BodyType.B2_dynamicBody)
	}
}

// Collision is a collision geometry bound to one link. LoadShape replaces
// the fixture when the host sizes it.
type Collision struct {
	name      string
	shapeType string
	link      *Link
	fixture   *box2d.B2Fixture
	e         *Engine
}

func (e *Engine) newCollision(shapeType string) func(link engine.Link) (engine.Collision, error) {
	return func(link engine.Link) (engine.Collision, error) {
		l, ok := link.(*Link)
		if !ok || l == nil {
			return nil, fmt.Errorf("%w: collision needs a box2d link", engine.ErrUnknownLink)
		}
		c := &Collision{
			name:      l.name + "::" + shapeType,
			shapeType: shapeType,
			link:      l,
			e:         e,
		}
		if err := c.LoadShape(&engine.ShapeConfig{Size: engine.Vec3{X: 1, Y: 1, Z: 1}, Radius: 0.5, Mass: 1, Friction: 0.5}); err != nil {
			return nil, err
		}
		return c, nil
	}
}

func (c *Collision) Name() string      { return c.name }
func (c *Collision) Link() engine.Link { return c.link }

// LoadShape builds the fixture for the collision, replacing any prior one.
// Density is derived from the requested mass and the shape's area so the
// body mass comes out right after ResetMassData.
func (c *Collision) LoadShape(cfg *engine.ShapeConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil shape config", engine.ErrInvalidConfig)
	}
	body := c.link.body
	if c.fixture != nil {
		body.DestroyFixture(c.fixture)
		c.fixture = nil
	}

	def := box2d.MakeB2FixtureDef()
	def.Friction = cfg.Friction
	def.Restitution = cfg.Elasticity

	switch c.shapeType {
	case "box":
		w, h := cfg.Size.X, cfg.Size.Y
		if w <= 0 || h <= 0 {
			return fmt.Errorf("%w: box size %gx%g", engine.ErrInvalidConfig, w, h)
		}
		shape := box2d.MakeB2PolygonShape()
		shape.SetAsBox(w/2, h/2)
		def.Shape = &shape
		if cfg.Mass > 0 {
			def.Density = cfg.Mass / (w * h)
		}
	case "sphere":
		if cfg.Radius <= 0 {
			return fmt.Errorf("%w: sphere radius %g", engine.ErrInvalidConfig, cfg.Radius)
		}
		shape := box2d.MakeB2CircleShape()
		shape.M_radius = cfg.Radius
		def.Shape = &shape
		if cfg.Mass > 0 {
			def.Density = cfg.Mass / (box2d.B2_pi * cfg.Radius * cfg.Radius)
		}
	case "plane":
		half := cfg.Size.X
		if half <= 0 {
			half = 500
		}
		shape := box2d.MakeB2EdgeShape()
		shape.Set(box2d.MakeB2Vec2(-half, 0), box2d.MakeB2Vec2(half, 0))
		def.Shape = &shape
	default:
		return fmt.Errorf("%w: shape %q", engine.ErrUnsupportedType, c.shapeType)
	}

	c.fixture = body.CreateFixtureFromDef(&def)
	body.ResetMassData()
	return nil
}

// Shape is the thin handle over a collision's primitive.
type Shape struct {
	shapeType string
	collision engine.Collision
}

func newShape(shapeType string) func(c engine.Collision) (engine.Shape, error) {
	return func(c engine.Collision) (engine.Shape, error) {
		if c == nil {
			return nil, fmt.Errorf("%w: shape needs a collision", engine.ErrInvalidConfig)
		}
		return &Shape{shapeType: shapeType, collision: c}, nil
	}
}

func (s *Shape) Type() string { return s.shapeType }
