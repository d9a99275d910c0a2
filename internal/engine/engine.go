package engine

import (
	"fmt"
	"log"
	"sync"
)

// Engine is the per-world physics façade. One instance drives one backend
// solver world; it is not copyable and not safe for concurrent stepping.
type Engine interface {
	// Name identifies the backend ("chipmunk", "box2d", ...).
	Name() string

	// Load parses engine-wide parameters into engine state. Must be called
	// before Init; calling it twice is undefined unless the backend
	// documents otherwise.
	Load(cfg *Config) error
	// Init allocates the backend solver world. Exactly once, after Load.
	Init() error
	// InitForThread registers backend thread-local solver state; a host
	// must call it once per worker thread before stepping on that thread.
	InitForThread()
	// Fini releases backend resources.
	Fini()
	// Reset returns the world to its loaded state where the backend
	// supports it.
	Reset()

	// UpdateCollision runs collision detection and rebuilds the contact
	// registry. UpdatePhysics then integrates dynamics; backends that fuse
	// both phases do all work in UpdateCollision and inherit the no-op
	// UpdatePhysics.
	UpdateCollision()
	UpdatePhysics()

	// Step time and update rate are reciprocal; setting one recomputes the
	// other. Non-positive values are rejected and the prior value kept.
	SetStepTime(t float64) error
	GetStepTime() float64
	SetUpdateRate(hz float64) error
	GetUpdateRate() float64

	SetGravity(g Vec3)
	GetGravity() Vec3

	// Entity factories, string-keyed per backend type registry. An
	// unregistered type name fails with ErrUnsupportedType.
	CreateLink(parent Model) (Link, error)
	CreateCollision(shapeType string, link Link) (Collision, error)
	CreateCollisionByName(shapeType, linkName string) (Collision, error)
	CreateShape(shapeType string, collision Collision) (Shape, error)
	CreateJoint(jointType string) (Joint, error)

	// Solver tuning. Unsupported parameters silently keep the inert
	// default so generic code can probe capabilities without
	// special-casing backends; use Supports for a hard guarantee.
	SetWorldCFM(v float64)
	GetWorldCFM() float64
	SetWorldERP(v float64)
	GetWorldERP() float64
	SetAutoDisableFlag(v bool)
	GetAutoDisableFlag() bool
	SetSolverIterations(n int)
	GetSolverIterations() int
	SetSolverSOR(w float64)
	GetSolverSOR() float64
	SetMaxCorrectingVel(v float64)
	GetMaxCorrectingVel() float64
	SetContactSurfaceLayer(depth float64)
	GetContactSurfaceLayer() float64
	SetMaxContacts(n int)
	GetMaxContacts() int

	Supports(c Capability) bool

	// Contact bookkeeping, rebuilt once per tick by UpdateCollision.
	AddLinkPair(a, b Link)
	AreTouching(a, b Link) bool
	Contacts() *ContactRegistry

	// GetRayMutex returns the lock guarding spatial queries that touch
	// solver broadphase state concurrently with stepping. Queries must not
	// re-enter while holding it.
	GetRayMutex() *sync.Mutex
	// RayCast performs a guarded segment query; a backend without ray
	// support answers (zero, false).
	RayCast(from, to Vec3) (RayHit, bool)

	// Transport hooks; no-ops unless the backend overrides them.
	OnRequest(req *Request)
	OnPhysicsMsg(msg *PhysicsMsg)
}

// Base carries the backend-independent engine state. A backend embeds *Base
// and supplies Name, Load, Init, InitForThread, UpdateCollision and
// SetGravity, plus overrides for whatever tuning it actually implements.
type Base struct {
	world World
	caps  Capability

	backend string
	logger  *log.Logger

	stepTime   float64
	updateRate float64
	gravity    Vec3

	contacts *ContactRegistry
	rayMu    sync.Mutex

	linkCtor       func(parent Model) (Link, error)
	collisionCtors map[string]func(link Link) (Collision, error)
	shapeCtors     map[string]func(c Collision) (Shape, error)
	jointCtors     map[string]func() (Joint, error)

	showContacts bool
	initialized  bool
}

func NewBase(backend string, world World, caps Capability) *Base {
	return &Base{
		world:          world,
		caps:           caps,
		backend:        backend,
		logger:         log.Default(),
		stepTime:       DefaultStepTime,
		updateRate:     1 / DefaultStepTime,
		gravity:        Vec3{Y: DefaultGravityY},
		contacts:       NewContactRegistry(),
		collisionCtors: make(map[string]func(link Link) (Collision, error)),
		shapeCtors:     make(map[string]func(c Collision) (Shape, error)),
		jointCtors:     make(map[string]func() (Joint, error)),
	}
}

// SetLogger redirects capability-gap warnings; mostly for tests.
func (b *Base) SetLogger(l *log.Logger) {
	if l != nil {
		b.logger = l
	}
}

func (b *Base) Logger() *log.Logger { return b.logger }

// World returns the weakly-held scene collaborator.
func (b *Base) World() World { return b.world }

// LoadBase applies the backend-independent part of Load: validation, timing
// and the gravity cache. Backends call it first from their own Load.
func (b *Base) LoadBase(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	b.stepTime = cfg.StepTime
	b.updateRate = 1 / cfg.StepTime
	b.gravity = cfg.Gravity
	return nil
}

// MarkInitialized records that Init completed; the entity factories fail
// fast until it has.
func (b *Base) MarkInitialized() { b.initialized = true }

func (b *Base) Initialized() bool { return b.initialized }

func (b *Base) ClearInitialized() { b.initialized = false }

func (b *Base) ensureReady() error {
	if !b.initialized {
		return ErrNotInitialized
	}
	return nil
}

// Fini releases the base bookkeeping. Backends releasing solver resources
// call it last from their own Fini.
func (b *Base) Fini() {
	b.contacts = NewContactRegistry()
	b.initialized = false
}

func (b *Base) Reset() {}

// UpdatePhysics is a no-op so a backend that fuses collision detection and
// integration overrides only UpdateCollision.
func (b *Base) UpdatePhysics() {}

func (b *Base) SetStepTime(t float64) error {
	if t <= 0 {
		return fmt.Errorf("%w: step time %g, must be positive", ErrInvalidParameter, t)
	}
	b.stepTime = t
	b.updateRate = 1 / t
	return nil
}

func (b *Base) GetStepTime() float64 { return b.stepTime }

func (b *Base) SetUpdateRate(hz float64) error {
	if hz <= 0 {
		return fmt.Errorf("%w: update rate %g, must be positive", ErrInvalidParameter, hz)
	}
	b.updateRate = hz
	b.stepTime = 1 / hz
	return nil
}

func (b *Base) GetUpdateRate() float64 { return b.updateRate }

// CacheGravity records the engine-level gravity vector. SetGravity itself is
// backend-supplied; implementations push the vector into the solver and then
// cache it here.
func (b *Base) CacheGravity(g Vec3) { b.gravity = g }
func (b *Base) GetGravity() Vec3    { return b.gravity }

// RegisterLinkFactory installs the backend body constructor.
func (b *Base) RegisterLinkFactory(ctor func(parent Model) (Link, error)) {
	b.linkCtor = ctor
}

// RegisterShapeType installs the constructors dispatched for one shape type
// name. Either constructor may be nil when the backend splits support.
func (b *Base) RegisterShapeType(name string, collision func(link Link) (Collision, error), shape func(c Collision) (Shape, error)) {
	if collision != nil {
		b.collisionCtors[name] = collision
	}
	if shape != nil {
		b.shapeCtors[name] = shape
	}
}

// RegisterJointType installs the constructor dispatched for one joint type
// name.
func (b *Base) RegisterJointType(name string, ctor func() (Joint, error)) {
	b.jointCtors[name] = ctor
}

func (b *Base) CreateLink(parent Model) (Link, error) {
	if err := b.ensureReady(); err != nil {
		return nil, err
	}
	if b.linkCtor == nil {
		return nil, fmt.Errorf("%w: link", ErrUnsupportedType)
	}
	return b.linkCtor(parent)
}

func (b *Base) CreateCollision(shapeType string, link Link) (Collision, error) {
	if err := b.ensureReady(); err != nil {
		return nil, err
	}
	ctor, ok := b.collisionCtors[shapeType]
	if !ok {
		return nil, fmt.Errorf("%w: collision %q", ErrUnsupportedType, shapeType)
	}
	return ctor(link)
}

// CreateCollisionByName resolves the link through the world collaborator
// first.
func (b *Base) CreateCollisionByName(shapeType, linkName string) (Collision, error) {
	if b.world == nil {
		return nil, fmt.Errorf("%w: no world to resolve %q", ErrUnknownLink, linkName)
	}
	link, err := b.world.LinkByName(linkName)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnknownLink, linkName, err)
	}
	return b.CreateCollision(shapeType, link)
}

func (b *Base) CreateShape(shapeType string, collision Collision) (Shape, error) {
	if err := b.ensureReady(); err != nil {
		return nil, err
	}
	ctor, ok := b.shapeCtors[shapeType]
	if !ok {
		return nil, fmt.Errorf("%w: shape %q", ErrUnsupportedType, shapeType)
	}
	return ctor(collision)
}

func (b *Base) CreateJoint(jointType string) (Joint, error) {
	if err := b.ensureReady(); err != nil {
		return nil, err
	}
	ctor, ok := b.jointCtors[jointType]
	if !ok {
		return nil, fmt.Errorf("%w: joint %q", ErrUnsupportedType, jointType)
	}
	return ctor()
}

// Solver tuning defaults. Every pair keeps the inert value until a backend
// overrides it; the getters answer zero/false so capability probes stay
// uniform.

func (b *Base) SetWorldCFM(float64) { b.warnUnsupported("world cfm") }

func (b *Base) GetWorldCFM() float64 { return 0 }

func (b *Base) SetWorldERP(float64) { b.warnUnsupported("world erp") }

func (b *Base) GetWorldERP() float64 { return 0 }

func (b *Base) SetAutoDisableFlag(bool) { b.warnUnsupported("auto disable") }

func (b *Base) GetAutoDisableFlag() bool { return false }

func (b *Base) SetSolverIterations(int) { b.warnUnsupported("solver iterations") }

func (b *Base) GetSolverIterations() int { return 0 }

func (b *Base) SetSolverSOR(float64) { b.warnUnsupported("solver sor") }

func (b *Base) GetSolverSOR() float64 { return 0 }

func (b *Base) SetMaxCorrectingVel(float64) { b.warnUnsupported("max correcting velocity") }

func (b *Base) GetMaxCorrectingVel() float64 { return 0 }

func (b *Base) SetContactSurfaceLayer(float64) { b.warnUnsupported("contact surface layer") }

func (b *Base) GetContactSurfaceLayer() float64 { return 0 }

func (b *Base) SetMaxContacts(int) { b.warnUnsupported("max contacts") }

func (b *Base) GetMaxContacts() int { return 0 }

func (b *Base) Supports(c Capability) bool {
	return b.caps&c == c
}

func (b *Base) AddLinkPair(a, link Link) {
	b.contacts.AddPair(a, link)
}

func (b *Base) AreTouching(a, link Link) bool {
	return b.contacts.Touching(a, link)
}

func (b *Base) Contacts() *ContactRegistry { return b.contacts }

func (b *Base) GetRayMutex() *sync.Mutex { return &b.rayMu }

func (b *Base) RayCast(from, to Vec3) (RayHit, bool) {
	b.warnUnsupported("ray cast")
	return RayHit{}, false
}

// ShowContacts toggles contact visualization for hosts that render it.
func (b *Base) ShowContacts(show bool) { b.showContacts = show }

func (b *Base) ContactsShown() bool { return b.showContacts }

func (b *Base) OnRequest(req *Request) {
	if req != nil && req.Op == "show_contacts" {
		b.showContacts = req.Flag
	}
}

func (b *Base) OnPhysicsMsg(msg *PhysicsMsg) {}

func (b *Base) warnUnsupported(op string) {
	b.logger.Printf("engine: %s not supported by %s backend", op, b.backend)
}

// ApplyPhysicsMsg pushes the populated fields of msg into e through the
// generic accessor family. Backends use it from their OnPhysicsMsg override
// so runtime parameter pushes follow the same soft-capability rules as
// direct calls.
func ApplyPhysicsMsg(e Engine, msg *PhysicsMsg) error {
	if msg == nil {
		return nil
	}
	if msg.StepTime != nil {
		if err := e.SetStepTime(*msg.StepTime); err != nil {
			return err
		}
	}
	if msg.Gravity != nil {
		e.SetGravity(*msg.Gravity)
	}
	if s := msg.Solver; s != nil {
		e.SetWorldERP(s.ERP)
		e.SetWorldCFM(s.CFM)
		e.SetAutoDisableFlag(s.AutoDisable)
		e.SetSolverIterations(s.Iters)
		e.SetSolverSOR(s.SOR)
		e.SetMaxCorrectingVel(s.MaxCorrectingVel)
		e.SetContactSurfaceLayer(s.SurfaceLayer)
		e.SetMaxContacts(s.MaxContacts)
	}
	return nil
}
