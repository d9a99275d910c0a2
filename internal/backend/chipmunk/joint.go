package chipmunk

import (
	"fmt"
	"math"

	"github.com/jakecoffman/cp"

	"github.com/san-kum/physkit/internal/engine"
)

var _ engine.Joint = (*Joint)(nil)

// Joint maps the abstract joint types onto cp constraints:
//
//	hinge, ball -> pivot (+ rotary limit when limits are set)
//	slider      -> slide joint, limits as min/max separation
//	spring      -> damped spring
//	fixed       -> pin + zero-range rotary limit
//
// Chipmunk has no per-constraint ERP/CFM; the cached scalars are translated
// into error bias (ERP as the per-step correction fraction at 60 Hz) and max
// force (CFM as inverse stiffness ceiling) on every write.
type Joint struct {
	*engine.JointBase

	e           *Engine
	cfg         *engine.JointConfig
	constraints []*cp.Constraint
}

func (e *Engine) newJoint(jointType string) func() (engine.Joint, error) {
	return func() (engine.Joint, error) {
		j := &Joint{
			JointBase: engine.NewJointBase(backendName, jointType, e.Logger()),
			e:         e,
		}
		j.SetHooks(j.applyTuning, j.release)
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

// Attach builds the cp constraints between the two links; a nil parent
// anchors the child to the space's static body.
func (j *Joint) Attach(parent, child engine.Link) error {
	if err := j.JointBase.Attach(parent, child); err != nil {
		return err
	}
	if j.e.space == nil {
		return engine.ErrNotInitialized
	}

	bodyA := j.e.space.StaticBody
	if parent != nil {
		pl, ok := parent.(*Link)
		if !ok {
			return fmt.Errorf("%w: parent is not a chipmunk link", engine.ErrUnknownLink)
		}
		bodyA = pl.body
	}
	cl, ok := child.(*Link)
	if !ok {
		return fmt.Errorf("%w: child is not a chipmunk link", engine.ErrUnknownLink)
	}
	bodyB := cl.body

	cfg := j.cfg
	if cfg == nil {
		cfg = &engine.JointConfig{}
	}
	anchor := cp.Vector{X: cfg.Anchor.X, Y: cfg.Anchor.Y}

	j.release()
	switch j.Type() {
	case "hinge", "ball":
		j.constraints = append(j.constraints, cp.NewPivotJoint(bodyA, bodyB, anchor))
		if cfg.LowerLimit != 0 || cfg.UpperLimit != 0 {
			j.constraints = append(j.constraints,
				cp.NewRotaryLimitJoint(bodyA, bodyB, cfg.LowerLimit, cfg.UpperLimit))
		}
	case "slider":
		j.constraints = append(j.constraints,
			cp.NewSlideJoint(bodyA, bodyB, anchor, cp.Vector{}, cfg.LowerLimit, cfg.UpperLimit))
	case "spring":
		stiffness := cfg.Stiffness
		if stiffness <= 0 {
			stiffness = 100
		}
		rest := cfg.UpperLimit
		j.constraints = append(j.constraints,
			cp.NewDampedSpring(bodyA, bodyB, anchor, cp.Vector{}, rest, stiffness, cfg.Damping))
	case "fixed":
		j.constraints = append(j.constraints,
			cp.NewPinJoint(bodyA, bodyB, anchor, cp.Vector{}),
			cp.NewRotaryLimitJoint(bodyA, bodyB, 0, 0))
	default:
		return fmt.Errorf("%w: joint %q", engine.ErrUnsupportedType, j.Type())
	}

	for _, c := range j.constraints {
		j.e.space.AddConstraint(c)
	}
	j.applyTuning(j.GetERP(), j.GetCFM())
	return nil
}

func (j *Joint) applyTuning(erp, cfm float64) {
	for _, c := range j.constraints {
		if erp > 0 && erp < 1 {
			c.SetErrorBias(math.Pow(1-erp, 60))
		}
		if cfm > 0 {
			c.SetMaxForce(1 / cfm)
		}
	}
}

func (j *Joint) release() {
	if j.e.space != nil {
		for _, c := range j.constraints {
			j.e.space.RemoveConstraint(c)
		}
	}
	j.constraints = nil
}

func (j *Joint) SetDamping(index int, damping float64) {
	for _, c := range j.constraints {
		if ds, ok := c.Class.(*cp.DampedSpring); ok {
			ds.Damping = damping
			return
		}
	}
	j.JointBase.SetDamping(index, damping)
}

func (j *Joint) SetAttribute(attr engine.Attribute, index int, value float64) {
	switch attr {
	case engine.AttrERP:
		j.SetERP(value)
	case engine.AttrCFM:
		j.SetCFM(value)
	case engine.AttrMaxForce:
		for _, c := range j.constraints {
			c.SetMaxForce(value)
		}
	case engine.AttrHiStop, engine.AttrLoStop:
		for _, c := range j.constraints {
			if rl, ok := c.Class.(*cp.RotaryLimitJoint); ok {
				if attr == engine.AttrHiStop {
					rl.Max = value
				} else {
					rl.Min = value
				}
				return
			}
		}
		j.JointBase.SetAttribute(attr, index, value)
	default:
		j.JointBase.SetAttribute(attr, index, value)
	}
}
