package engine

import (
	"fmt"
	"log"
)

// Joint is one constraint between two links. Instances come from
// Engine.CreateJoint with no attached bodies; Load configures them, Attach
// binds them, Detach returns them to an inert state.
type Joint interface {
	// Type returns the factory type name this joint was created under.
	Type() string

	// Load parses joint parameters and, where the backend resolves link
	// names itself, attaches the joint.
	Load(cfg *JointConfig) error
	// Update re-applies constraint parameters that must be refreshed
	// around each dynamics step.
	Update()
	// Reset returns the joint to its configured rest state.
	Reset()

	// Attach binds the joint to its parent and child links. A nil parent
	// anchors the child to the static frame; child must be non-nil and
	// distinct from parent.
	Attach(parent, child Link) error
	// Detach severs both link references and releases the backend
	// constraint. The joint stays alive but inert; it may not be reused
	// without a fresh Load.
	Detach()

	// GetJointLink returns the link at index 0 (parent) or 1 (child);
	// ErrNotAttached if the index is out of range or that side is empty.
	GetJointLink(index int) (Link, error)
	// AreConnected reports whether this joint's links are exactly {a, b}
	// in either order.
	AreConnected(a, b Link) bool

	// ERP and CFM operate on cached scalars pushed into the backend
	// constraint on write. Concrete on JointBase, not backend-overridable.
	SetERP(v float64)
	GetERP() float64
	SetCFM(v float64)
	GetCFM() float64

	// Soft-capability operations: the base answers with a logged warning
	// and a neutral zero; backends override individually.
	SetAnchor(index int, anchor Vec3)
	GetAnchor(index int) Vec3
	SetDamping(index int, damping float64)
	GetLinkForce(index int) Vec3
	GetLinkTorque(index int) Vec3
	SetAttribute(attr Attribute, index int, value float64)
}

// JointBase carries the solver-independent joint state. Backends embed
// *JointBase and install the apply/release hooks for their constraint
// handle; operations their solver cannot express inherit the neutral
// defaults below.
type JointBase struct {
	backend   string
	jointType string
	logger    *log.Logger

	links [2]Link
	erp   float64
	cfm   float64

	// applyTuning pushes the cached ERP/CFM into the live constraint;
	// releaseConstraint frees it on Detach. Either may be nil.
	applyTuning       func(erp, cfm float64)
	releaseConstraint func()
}

func NewJointBase(backend, jointType string, logger *log.Logger) *JointBase {
	if logger == nil {
		logger = log.Default()
	}
	return &JointBase{backend: backend, jointType: jointType, logger: logger}
}

// SetHooks installs the backend constraint hooks.
func (j *JointBase) SetHooks(applyTuning func(erp, cfm float64), release func()) {
	j.applyTuning = applyTuning
	j.releaseConstraint = release
}

func (j *JointBase) Type() string { return j.jointType }

// Load applies the solver-independent part of the configuration. Backends
// call it first from their own Load, then build the constraint.
func (j *JointBase) Load(cfg *JointConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil joint config", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	j.erp = cfg.ERP
	j.cfm = cfg.CFM
	return nil
}

func (j *JointBase) Update() {}

func (j *JointBase) Reset() {}

func (j *JointBase) Attach(parent, child Link) error {
	if child == nil {
		return fmt.Errorf("%w: child link is nil", ErrNotAttached)
	}
	if parent == child {
		return fmt.Errorf("%w: joint cannot connect link %q to itself", ErrInvalidConfig, child.Name())
	}
	j.links[0] = parent
	j.links[1] = child
	return nil
}

func (j *JointBase) Detach() {
	if j.releaseConstraint != nil {
		j.releaseConstraint()
	}
	j.links[0] = nil
	j.links[1] = nil
}

func (j *JointBase) GetJointLink(index int) (Link, error) {
	if index < 0 || index > 1 {
		return nil, fmt.Errorf("%w: index %d out of range", ErrNotAttached, index)
	}
	if j.links[index] == nil {
		return nil, fmt.Errorf("%w: index %d", ErrNotAttached, index)
	}
	return j.links[index], nil
}

func (j *JointBase) AreConnected(a, b Link) bool {
	if a == nil || b == nil {
		return false
	}
	if j.links[0] == nil || j.links[1] == nil {
		return false
	}
	return (j.links[0] == a && j.links[1] == b) || (j.links[0] == b && j.links[1] == a)
}

// Links returns both ends without the error contract; nil means unattached.
func (j *JointBase) Links() (parent, child Link) {
	return j.links[0], j.links[1]
}

func (j *JointBase) SetERP(v float64) {
	j.erp = v
	if j.applyTuning != nil {
		j.applyTuning(j.erp, j.cfm)
	}
}

func (j *JointBase) GetERP() float64 { return j.erp }

func (j *JointBase) SetCFM(v float64) {
	j.cfm = v
	if j.applyTuning != nil {
		j.applyTuning(j.erp, j.cfm)
	}
}

func (j *JointBase) GetCFM() float64 { return j.cfm }

func (j *JointBase) SetAnchor(int, Vec3) { j.warnUnsupported("set anchor") }

func (j *JointBase) GetAnchor(int) Vec3 {
	j.warnUnsupported("get anchor")
	return Vec3{}
}

func (j *JointBase) SetDamping(int, float64) { j.warnUnsupported("set damping") }

func (j *JointBase) GetLinkForce(int) Vec3 {
	j.warnUnsupported("link force")
	return Vec3{}
}

func (j *JointBase) GetLinkTorque(int) Vec3 {
	j.warnUnsupported("link torque")
	return Vec3{}
}

func (j *JointBase) SetAttribute(attr Attribute, _ int, _ float64) {
	j.warnUnsupported("attribute " + attr.String())
}

func (j *JointBase) warnUnsupported(op string) {
	j.logger.Printf("engine: joint %s not supported by %s backend", op, j.backend)
}
