package engine

// The entity handles below are owned by the world/scene collaborator, not by
// the engine. Backends return their own implementations from the factories;
// implementations must be comparable so links can key the contact registry.

// Link is one rigid body in the world.
type Link interface {
	Name() string
}

// Model groups links; CreateLink attaches a new body to one.
type Model interface {
	Name() string
}

// Collision is a collision geometry attached to a link.
type Collision interface {
	Name() string
	Link() Link
}

// Shape is the geometric primitive backing a collision.
type Shape interface {
	Type() string
}

// World is the narrow view of the scene graph the engine holds. The engine
// keeps only this weak reference; it never owns links.
type World interface {
	LinkByName(name string) (Link, error)
}

// Optional entity abilities. Hosts probe them with type assertions; a
// backend that cannot express one simply doesn't implement it.

// Positioned is implemented by links whose pose can be read and written.
type Positioned interface {
	Position() Vec3
	SetPosition(p Vec3)
}

// Massful is implemented by links with adjustable mass.
type Massful interface {
	Mass() float64
	SetMass(m float64)
}

// StaticBody is implemented by links that can be pinned to the world frame.
type StaticBody interface {
	Static() bool
	SetStatic(on bool)
}

// ShapeConfig sizes a collision primitive; interpretation is per shape type
// (Size for boxes, Radius for spheres, Size.X as half-extent for planes).
type ShapeConfig struct {
	Size       Vec3    `yaml:"size"`
	Radius     float64 `yaml:"radius"`
	Mass       float64 `yaml:"mass"`
	Friction   float64 `yaml:"friction"`
	Elasticity float64 `yaml:"elasticity"`
}

// ShapeLoader is implemented by collisions whose primitive can be re-sized
// after creation, mirroring the create-then-load entity lifecycle.
type ShapeLoader interface {
	LoadShape(cfg *ShapeConfig) error
}

// RayHit is the result of a spatial ray query.
type RayHit struct {
	Link     Link
	Point    Vec3
	Normal   Vec3
	Fraction float64
}

// Request is an inbound host/transport request, e.g. toggling contact
// visualization. Handled by the OnRequest hook; unknown ops are ignored.
type Request struct {
	Op   string `json:"op"`
	Flag bool   `json:"flag,omitempty"`
}

// PhysicsMsg pushes runtime parameter changes into a live engine. Nil fields
// are left untouched.
type PhysicsMsg struct {
	Gravity  *Vec3
	StepTime *float64
	Solver   *SolverConfig
}

// Capability identifies one optional backend feature. Backends declare the
// set they implement at construction; everything else keeps the inert
// neutral-default behavior.
type Capability uint32

const (
	CapWorldERP Capability = 1 << iota
	CapWorldCFM
	CapAutoDisable
	CapSolverIters
	CapSolverSOR
	CapMaxCorrectingVel
	CapSurfaceLayer
	CapMaxContacts
	CapRayCast
	CapJointAnchor
	CapJointDamping
	CapJointForce
	CapJointTorque
	CapJointAttribute
)

// Attribute enumerates the per-joint scalar parameters reachable through the
// generic SetAttribute dispatch.
type Attribute int

const (
	AttrERP Attribute = iota
	AttrCFM
	AttrStopERP
	AttrStopCFM
	AttrHiStop
	AttrLoStop
	AttrMotorVelocity
	AttrMaxForce
	AttrFudgeFactor
)

var attributeNames = map[Attribute]string{
	AttrERP:           "erp",
	AttrCFM:           "cfm",
	AttrStopERP:       "stop_erp",
	AttrStopCFM:       "stop_cfm",
	AttrHiStop:        "hi_stop",
	AttrLoStop:        "lo_stop",
	AttrMotorVelocity: "motor_velocity",
	AttrMaxForce:      "max_force",
	AttrFudgeFactor:   "fudge_factor",
}

func (a Attribute) String() string {
	if s, ok := attributeNames[a]; ok {
		return s
	}
	return "unknown"
}
