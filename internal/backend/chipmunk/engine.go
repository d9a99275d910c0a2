// Package chipmunk implements the physics engine contract on top of the
// Chipmunk2D solver (github.com/jakecoffman/cp). Chipmunk fuses collision
// detection and integration in Space.Step, so the whole tick runs in
// UpdateCollision and UpdatePhysics stays the inherited no-op.
//
// The solver is planar: engine vectors map onto the XY plane and the Z
// component is ignored.
package chipmunk

import (
	"fmt"
	"math"

	"github.com/jakecoffman/cp"

	"github.com/san-kum/physkit/internal/engine"
)

const backendName = "chipmunk"

// All shapes share one collision type; the tick handler uses it to funnel
// every arbiter into the contact registry.
const linkCollisionType cp.CollisionType = 1

const caps = engine.CapSolverIters |
	engine.CapSurfaceLayer |
	engine.CapAutoDisable |
	engine.CapRayCast |
	engine.CapJointDamping |
	engine.CapJointAttribute

func init() {
	engine.Register(backendName, func(world engine.World) engine.Engine {
		return New(world)
	})
}

var _ engine.Engine = (*Engine)(nil)

// Engine drives one cp.Space.
type Engine struct {
	*engine.Base

	space  *cp.Space
	shapes map[*cp.Shape]*Link
	links  []*Link
	nlinks int

	iters        int
	surfaceLayer float64
	autoDisable  bool
	warnedZ      bool
}

func New(world engine.World) *Engine {
	return &Engine{
		Base:         engine.NewBase(backendName, world, caps),
		shapes:       make(map[*cp.Shape]*Link),
		iters:        engine.DefaultSolverIters,
		surfaceLayer: engine.DefaultSurfaceLayer,
	}
}

func (e *Engine) Name() string { return backendName }

func (e *Engine) Load(cfg *engine.Config) error {
	if err := e.LoadBase(cfg); err != nil {
		return err
	}
	e.iters = cfg.Solver.Iters
	e.surfaceLayer = cfg.Solver.SurfaceLayer
	e.autoDisable = cfg.Solver.AutoDisable
	return nil
}

func (e *Engine) Init() error {
	if e.space != nil {
		return fmt.Errorf("%w: Init called twice", engine.ErrInvalidParameter)
	}
	e.space = cp.NewSpace()
	e.applyIters()
	e.applySurfaceLayer()
	e.applyAutoDisable()
	e.pushGravity(e.GetGravity())

	handler := e.space.NewCollisionHandler(linkCollisionType, linkCollisionType)
	handler.UserData = e
	handler.PreSolveFunc = func(arb *cp.Arbiter, _ *cp.Space, userData interface{}) bool {
		eng := userData.(*Engine)
		sa, sb := arb.Shapes()
		eng.AddLinkPair(eng.shapes[sa], eng.shapes[sb])
		return true
	}

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

// InitForThread is a no-op: Chipmunk keeps no thread-local solver state.
func (e *Engine) InitForThread() {}

func (e *Engine) Fini() {
	e.space = nil
	e.shapes = make(map[*cp.Shape]*Link)
	e.links = nil
	e.Base.Fini()
}

// Reset returns every link to its spawn pose with zeroed velocities.
func (e *Engine) Reset() {
	for _, l := range e.links {
		l.body.SetPosition(l.spawn)
		l.body.SetVelocity(0, 0)
		l.body.SetAngularVelocity(0)
		l.body.SetAngle(0)
		l.reindexShapes()
	}
}

// UpdateCollision runs the fused tick: it versions the contact registry and
// steps the space; the collision handler repopulates the registry during the
// step. Broadphase mutation happens under the ray lock.
func (e *Engine) UpdateCollision() {
	if e.space == nil {
		return
	}
	mu := e.GetRayMutex()
	mu.Lock()
	defer mu.Unlock()
	e.Contacts().BeginTick()
	e.space.Step(e.GetStepTime())
}

func (e *Engine) SetGravity(g engine.Vec3) {
	e.CacheGravity(g)
	e.pushGravity(g)
}

func (e *Engine) pushGravity(g engine.Vec3) {
	if e.space == nil {
		return
	}
	if g.Z != 0 && !e.warnedZ {
		e.Logger().Printf("chipmunk: planar solver, gravity z component %g ignored", g.Z)
		e.warnedZ = true
	}
	e.space.SetGravity(cp.Vector{X: g.X, Y: g.Y})
}

func (e *Engine) SetSolverIterations(n int) {
	if n <= 0 {
		return
	}
	e.iters = n
	e.applyIters()
}

func (e *Engine) GetSolverIterations() int { return e.iters }

func (e *Engine) applyIters() {
	if e.space != nil {
		e.space.Iterations = uint(e.iters)
	}
}

func (e *Engine) SetContactSurfaceLayer(depth float64) {
	e.surfaceLayer = depth
	e.applySurfaceLayer()
}

func (e *Engine) GetContactSurfaceLayer() float64 { return e.surfaceLayer }

func (e *Engine) applySurfaceLayer() {
	if e.space != nil {
		e.space.SetCollisionSlop(e.surfaceLayer)
	}
}

func (e *Engine) SetAutoDisableFlag(on bool) {
	e.autoDisable = on
	e.applyAutoDisable()
}

func (e *Engine) GetAutoDisableFlag() bool { return e.autoDisable }

func (e *Engine) applyAutoDisable() {
	if e.space == nil {
		return
	}
	if e.autoDisable {
		e.space.SleepTimeThreshold = 0.5
	} else {
		e.space.SleepTimeThreshold = math.MaxFloat64
	}
}

// RayCast performs a first-hit segment query under the ray lock.
func (e *Engine) RayCast(from, to engine.Vec3) (engine.RayHit, bool) {
	mu := e.GetRayMutex()
	mu.Lock()
	defer mu.Unlock()
	if e.space == nil {
		return engine.RayHit{}, false
	}
	filter := cp.ShapeFilter{Group: cp.NO_GROUP, Categories: cp.ALL_CATEGORIES, Mask: cp.ALL_CATEGORIES}
	info := e.space.SegmentQueryFirst(cp.Vector{X: from.X, Y: from.Y}, cp.Vector{X: to.X, Y: to.Y}, 0, filter)
	if info.Shape == nil {
		return engine.RayHit{}, false
	}
	return engine.RayHit{
		Link:     e.shapes[info.Shape],
		Point:    engine.Vec3{X: info.Point.X, Y: info.Point.Y},
		Normal:   engine.Vec3{X: info.Normal.X, Y: info.Normal.Y},
		Fraction: info.Alpha,
	}, true
}

func (e *Engine) OnPhysicsMsg(msg *engine.PhysicsMsg) {
	if err := engine.ApplyPhysicsMsg(e, msg); err != nil {
		e.Logger().Printf("chipmunk: physics msg rejected: %v", err)
	}
}

// Link is a rigid body in the space.
type Link struct {
	name  string
	model engine.Model
	body  *cp.Body
	e     *Engine
	spawn cp.Vector
}

func (e *Engine) newLink(parent engine.Model) (engine.Link, error) {
	e.nlinks++
	name := fmt.Sprintf("link_%d", e.nlinks)
	if parent != nil {
		name = parent.Name() + "::" + name
	}
	body := cp.NewBody(1, cp.MomentForBox(1, 1, 1))
	e.space.AddBody(body)
	l := &Link{name: name, model: parent, body: body, e: e}
	e.links = append(e.links, l)
	return l, nil
}

func (l *Link) Name() string { return l.name }

func (l *Link) Position() engine.Vec3 {
	p := l.body.Position()
	return engine.Vec3{X: p.X, Y: p.Y}
}

func (l *Link) SetPosition(p engine.Vec3) {
	l.spawn = cp.Vector{X: p.X, Y: p.Y}
	l.body.SetPosition(l.spawn)
	l.reindexShapes()
}

func (l *Link) Mass() float64 { return l.body.Mass() }

func (l *Link) SetMass(m float64) {
	if m > 0 {
		l.body.SetMass(m)
	}
}

func (l *Link) Static() bool { return l.body.GetType() == cp.BODY_STATIC }

func (l *Link) SetStatic(on bool) {
	if on {
		l.body.SetType(cp.BODY_STATIC)
	} else {
		l.body.SetType(cp.BODY_DYNAMIC)
	}
	l.reindexShapes()
}

// reindexShapes refreshes the broadphase after the body is moved outside a
// step. The cp port has no per-object reindex, so each shape is pulled out
// of the space and re-inserted, which recomputes its transform cache and
// bounding box. Without this a ray cast issued before the first step sees
// the shapes where they were created, not where they were placed.
func (l *Link) reindexShapes() {
	if l.e.space == nil {
		return
	}
	var shapes []*cp.Shape
	l.body.EachShape(func(s *cp.Shape) { shapes = append(shapes, s) })
	for _, s := range shapes {
		l.e.space.RemoveShape(s)
		l.e.space.AddShape(s)
	}
}

// Collision is a collision geometry bound to one link. LoadShape replaces
// the primitive when the host sizes it.
type Collision struct {
	name      string
	shapeType string
	link      *Link
	shape     *cp.Shape
	e         *Engine
}

func (e *Engine) newCollision(shapeType string) func(link engine.Link) (engine.Collision, error) {
	return func(link engine.Link) (engine.Collision, error) {
		l, ok := link.(*Link)
		if !ok || l == nil {
			return nil, fmt.Errorf("%w: collision needs a chipmunk link", engine.ErrUnknownLink)
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

// LoadShape builds the cp primitive for the collision, replacing any prior
// one, and refreshes the body's mass and moment.
func (c *Collision) LoadShape(cfg *engine.ShapeConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil shape config", engine.ErrInvalidConfig)
	}
	if c.shape != nil {
		c.e.space.RemoveShape(c.shape)
		delete(c.e.shapes, c.shape)
	}

	body := c.link.body
	var shape *cp.Shape
	switch c.shapeType {
	case "box":
		w, h := cfg.Size.X, cfg.Size.Y
		if w <= 0 || h <= 0 {
			return fmt.Errorf("%w: box size %gx%g", engine.ErrInvalidConfig, w, h)
		}
		shape = cp.NewBox(body, w, h, 0)
		if cfg.Mass > 0 {
			body.SetMass(cfg.Mass)
			body.SetMoment(cp.MomentForBox(cfg.Mass, w, h))
		}
	case "sphere":
		if cfg.Radius <= 0 {
			return fmt.Errorf("%w: sphere radius %g", engine.ErrInvalidConfig, cfg.Radius)
		}
		shape = cp.NewCircle(body, cfg.Radius, cp.Vector{})
		if cfg.Mass > 0 {
			body.SetMass(cfg.Mass)
			body.SetMoment(cp.MomentForCircle(cfg.Mass, 0, cfg.Radius, cp.Vector{}))
		}
	case "plane":
		half := cfg.Size.X
		if half <= 0 {
			half = 500
		}
		shape = cp.NewSegment(body, cp.Vector{X: -half}, cp.Vector{X: half}, 0)
	default:
		return fmt.Errorf("%w: shape %q", engine.ErrUnsupportedType, c.shapeType)
	}

	shape.SetFriction(cfg.Friction)
	shape.SetElasticity(cfg.Elasticity)
	shape.SetCollisionType(linkCollisionType)
	c.e.space.AddShape(shape)
	c.e.shapes[shape] = c.link
	c.shape = shape
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
