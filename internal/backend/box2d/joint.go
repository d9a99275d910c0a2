package box2d

import (
	"fmt"

	"github.com/ByteArena/box2d"

	"github.com/san-kum/physkit/internal/engine"
)

var _ engine.Joint = (*Joint)(nil)

// Joint maps the abstract joint types onto Box2D joints:
//
//	hinge, ball -> revolute (+ angle limits when set)
//	slider      -> prismatic along the configured axis
//	spring      -> soft distance joint, stiffness as oscillation frequency
//	fixed       -> weld
//
// Box2D has no ERP/CFM; the cached scalars are accepted and surfaced through
// GetERP/GetCFM but do not retune the solver.
type Joint struct {
	*engine.JointBase

	e     *Engine
	cfg   *engine.JointConfig
	joint box2d.B2JointInterface
}

func (e *Engine) newJoint(jointType string) func() (engine.Joint, error) {
	return func() (engine.Joint, error) {
		j := &Joint{
			JointBase: engine.NewJointBase(backendName, jointType, e.Logger()),
			e:         e,
		}
		j.SetHooks(nil, j.release)
		return j, nil
	}
}

func (j *Joint) Load(cfg *engine.JointConfig) error {
	if err := j.JointBase.Load(cfg); err != nil {
		return err
	}
	j.cfg = cfg

	var parent, child engine.Link
	var err error
	world := j.e.World()
	if world == nil {
		return fmt.Errorf("%w: no world to resolve joint links", engine.ErrUnknownLink)
	}
	if cfg.Parent != "" {
		if parent, err = world.LinkByName(cfg.Parent); err != nil {
			return fmt.Errorf("%w: %q: %v", engine.ErrUnknownLink, cfg.Parent, err)
		}
	}
	if child, err = world.LinkByName(cfg.Child); err != nil {
		return fmt.Errorf("%w: %q: %v", engine.ErrUnknownLink, cfg.Child, err)
	}
	return j.Attach(parent, child)
}

// Attach builds the Box2D joint between the two links; a nil parent anchors
// the child to the world's ground body.
func (j *Joint) Attach(parent, child engine.Link) error {
	if err := j.JointBase.Attach(parent, child); err != nil {
		return err
	}
	if j.e.world == nil {
		return engine.ErrNotInitialized
	}

	bodyA := j.e.ground
	if parent != nil {
		pl, ok := parent.(*Link)
		if !ok {
			return fmt.Errorf("%w: parent is not a box2d link", engine.ErrUnknownLink)
		}
		bodyA = pl.body
	}
	cl, ok := child.(*Link)
	if !ok {
		return fmt.Errorf("%w: child is not a box2d link", engine.ErrUnknownLink)
	}
	bodyB := cl.body

	cfg := j.cfg
	if cfg == nil {
		cfg = &engine.JointConfig{}
	}
	anchor := box2d.MakeB2Vec2(cfg.Anchor.X, cfg.Anchor.Y)

	j.release()
	switch j.Type() {
	case "hinge", "ball":
		def := box2d.MakeB2RevoluteJointDef()
		def.Initialize(bodyA, bodyB, anchor)
		j.joint = j.e.spliceJoint(&def)
		if cfg.LowerLimit != 0 || cfg.UpperLimit != 0 {
			rj := j.joint.(*box2d.B2RevoluteJoint)
			rj.SetLimits(cfg.LowerLimit, cfg.UpperLimit)
			rj.EnableLimit(true)
		}
	case "slider":
		axis := box2d.MakeB2Vec2(cfg.Axis.X, cfg.Axis.Y)
		if axis.X == 0 && axis.Y == 0 {
			axis = box2d.MakeB2Vec2(1, 0)
		}
		def := box2d.MakeB2PrismaticJointDef()
		def.Initialize(bodyA, bodyB, anchor, axis)
		j.joint = j.e.spliceJoint(&def)
		if cfg.LowerLimit != 0 || cfg.UpperLimit != 0 {
			pj := j.joint.(*box2d.B2PrismaticJoint)
			pj.SetLimits(cfg.LowerLimit, cfg.UpperLimit)
			pj.EnableLimit(true)
		}
	case "spring":
		def := box2d.MakeB2DistanceJointDef()
		def.Initialize(bodyA, bodyB, bodyA.GetWorldCenter(), bodyB.GetWorldCenter())
		if cfg.UpperLimit > 0 {
			def.Length = cfg.UpperLimit
		}
		def.FrequencyHz = cfg.Stiffness
		if def.FrequencyHz <= 0 {
			def.FrequencyHz = 5
		}
		def.DampingRatio = cfg.Damping
		j.joint = j.e.spliceJoint(&def)
	case "fixed":
		def := box2d.MakeB2WeldJointDef()
		def.Initialize(bodyA, bodyB, anchor)
		j.joint = j.e.spliceJoint(&def)
	default:
		return fmt.Errorf("%w: joint %q", engine.ErrUnsupportedType, j.Type())
	}
	return nil
}

// spliceJoint builds the typed joint and links it into the world and body
// joint lists. The port's B2World.CreateJoint only accepts the base def
// struct, which the joint factory rejects for every concrete type, so the
// list wiring it would have done is repeated here against the typed def.
func (e *Engine) spliceJoint(def box2d.B2JointDefInterface) box2d.B2JointInterface {
	j := box2d.B2JointCreate(def)

	j.SetPrev(nil)
	j.SetNext(e.world.M_jointList)
	if e.world.M_jointList != nil {
		e.world.M_jointList.SetPrev(j)
	}
	e.world.M_jointList = j
	e.world.M_jointCount++

	bodyA := j.GetBodyA()
	bodyB := j.GetBodyB()

	edgeA := j.GetEdgeA()
	edgeA.Joint = j
	edgeA.Other = bodyB
	edgeA.Prev = nil
	edgeA.Next = bodyA.M_jointList
	if bodyA.M_jointList != nil {
		bodyA.M_jointList.Prev = edgeA
	}
	bodyA.M_jointList = edgeA

	edgeB := j.GetEdgeB()
	edgeB.Joint = j
	edgeB.Other = bodyA
	edgeB.Prev = nil
	edgeB.Next = bodyB.M_jointList
	if bodyB.M_jointList != nil {
		bodyB.M_jointList.Prev = edgeB
	}
	bodyB.M_jointList = edgeB

	if !j.IsCollideConnected() {
		for edge := bodyB.GetContactList(); edge != nil; edge = edge.Next {
			if edge.Other == bodyA {
				edge.Contact.FlagForFiltering()
			}
		}
	}
	return j
}

// jointReactions covers the anchor and reaction accessors every concrete
// Box2D joint defines but B2JointInterface omits.
type jointReactions interface {
	GetAnchorA() box2d.B2Vec2
	GetAnchorB() box2d.B2Vec2
	GetReactionForce(invDT float64) box2d.B2Vec2
	GetReactionTorque(invDT float64) float64
}

func (j *Joint) release() {
	if j.joint != nil && j.e.world != nil {
		j.e.world.DestroyJoint(j.joint)
	}
	j.joint = nil
}

// GetAnchor reports the world-frame anchor on the indexed link's side.
func (j *Joint) GetAnchor(index int) engine.Vec3 {
	rj, ok := j.joint.(jointReactions)
	if !ok {
		return engine.Vec3{}
	}
	var p box2d.B2Vec2
	if index == 0 {
		p = rj.GetAnchorA()
	} else {
		p = rj.GetAnchorB()
	}
	return engine.Vec3{X: p.X, Y: p.Y}
}

// GetLinkForce reports the reaction force the joint applied over the last
// step, scaled back to newtons by the current step time.
func (j *Joint) GetLinkForce(index int) engine.Vec3 {
	rj, ok := j.joint.(jointReactions)
	if !ok {
		return engine.Vec3{}
	}
	dt := j.e.GetStepTime()
	if dt <= 0 {
		return engine.Vec3{}
	}
	f := rj.GetReactionForce(1 / dt)
	if index != 0 {
		f = box2d.MakeB2Vec2(-f.X, -f.Y)
	}
	return engine.Vec3{X: f.X, Y: f.Y}
}

// GetLinkTorque reports the reaction torque about the planar axis.
func (j *Joint) GetLinkTorque(index int) engine.Vec3 {
	rj, ok := j.joint.(jointReactions)
	if !ok {
		return engine.Vec3{}
	}
	dt := j.e.GetStepTime()
	if dt <= 0 {
		return engine.Vec3{}
	}
	t := rj.GetReactionTorque(1 / dt)
	if index != 0 {
		t = -t
	}
	return engine.Vec3{Z: t}
}

// SetAttribute routes the motor and limit parameters onto the concrete
// joint; everything else falls through to the inherited warning path.
func (j *Joint) SetAttribute(attr engine.Attribute, index int, value float64) {
	switch tj := j.joint.(type) {
	case *box2d.B2RevoluteJoint:
		switch attr {
		case engine.AttrMotorVelocity:
			tj.SetMotorSpeed(value)
			tj.EnableMotor(true)
			return
		case engine.AttrMaxForce:
			tj.SetMaxMotorTorque(value)
			tj.EnableMotor(true)
			return
		case engine.AttrHiStop:
			tj.SetLimits(tj.M_lowerAngle, value)
			tj.EnableLimit(true)
			return
		case engine.AttrLoStop:
			tj.SetLimits(value, tj.M_upperAngle)
			tj.EnableLimit(true)
			return
		}
	case *box2d.B2PrismaticJoint:
		switch attr {
		case engine.AttrMotorVelocity:
			tj.SetMotorSpeed(value)
			tj.EnableMotor(true)
			return
		case engine.AttrMaxForce:
			tj.SetMaxMotorForce(value)
			tj.EnableMotor(true)
			return
		case engine.AttrHiStop:
			tj.SetLimits(tj.M_lowerTranslation, value)
			tj.EnableLimit(true)
			return
		case engine.AttrLoStop:
			tj.SetLimits(value, tj.M_upperTranslation)
			tj.EnableLimit(true)
			return
		}
	case *box2d.B2DistanceJoint:
		if attr == engine.AttrHiStop {
			tj.SetLength(value)
			return
		}
	}
	j.JointBase.SetAttribute(attr, index, value)
}
