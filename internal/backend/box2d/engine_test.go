package box2d

import (
	"errors"
	"io"
	"log"
	"math"
	"testing"

	"github.com/san-kum/physkit/internal/engine"
)

type testWorld struct{ links map[string]engine.Link }

func newTestWorld() *testWorld {
	return &testWorld{links: make(map[string]engine.Link)}
}

func (w *testWorld) add(name string, l engine.Link) { w.links[name] = l }

func (w *testWorld) LinkByName(name string) (engine.Link, error) {
	if l, ok := w.links[name]; ok {
		return l, nil
	}
	return nil, errors.New("no such link")
}

func newTestEngine(t *testing.T, world engine.World) *Engine {
	t.Helper()
	e := New(world)
	e.SetLogger(log.New(io.Discard, "", 0))
	if err := e.Load(engine.DefaultConfig()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := e.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return e
}

func step(e *Engine, n int) {
	for i := 0; i < n; i++ {
		e.UpdateCollision()
		e.UpdatePhysics()
	}
}

func TestGravityFall(t *testing.T) {
	e := newTestEngine(t, nil)
	defer e.Fini()

	link, err := e.CreateLink(nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.CreateCollision("box", link); err != nil {
		t.Fatal(err)
	}
	pos := link.(engine.Positioned)
	pos.SetPosition(engine.Vec3{Y: 10})

	if err := e.SetStepTime(0.01); err != nil {
		t.Fatal(err)
	}
	step(e, 50)

	if got := pos.Position().Y; got >= 10 {
		t.Errorf("link did not fall, y = %g", got)
	}
}

func TestTwoPhaseContacts(t *testing.T) {
	e := newTestEngine(t, nil)
	defer e.Fini()

	ground, _ := e.CreateLink(nil)
	if _, err := e.CreateCollision("plane", ground); err != nil {
		t.Fatal(err)
	}
	ground.(engine.StaticBody).SetStatic(true)

	box, _ := e.CreateLink(nil)
	if _, err := e.CreateCollision("box", box); err != nil {
		t.Fatal(err)
	}
	box.(engine.Positioned).SetPosition(engine.Vec3{Y: 0.4})

	e.SetStepTime(0.01)

	// contacts surface one tick after the bodies first overlap
	e.UpdateCollision()
	if e.AreTouching(box, ground) {
		t.Fatal("contacts reported before the solver ever stepped")
	}
	e.UpdatePhysics()
	e.UpdateCollision()
	if !e.AreTouching(box, ground) {
		t.Fatal("overlapping box and ground not touching after a step")
	}
	if !e.AreTouching(ground, box) {
		t.Fatal("contact must be symmetric")
	}
}

func TestRayCastClosestHit(t *testing.T) {
	e := newTestEngine(t, nil)
	defer e.Fini()

	near, _ := e.CreateLink(nil)
	if _, err := e.CreateCollision("sphere", near); err != nil {
		t.Fatal(err)
	}
	near.(engine.Positioned).SetPosition(engine.Vec3{X: 3})

	far, _ := e.CreateLink(nil)
	if _, err := e.CreateCollision("sphere", far); err != nil {
		t.Fatal(err)
	}
	far.(engine.Positioned).SetPosition(engine.Vec3{X: 7})

	hit, ok := e.RayCast(engine.Vec3{}, engine.Vec3{X: 10})
	if !ok {
		t.Fatal("ray missed two spheres on its path")
	}
	if hit.Link != near {
		t.Error("ray did not report the closest link")
	}
	if math.Abs(hit.Point.X-2.5) > 1e-6 {
		t.Errorf("hit point x = %g, want 2.5", hit.Point.X)
	}

	if _, ok := e.RayCast(engine.Vec3{Y: 50}, engine.Vec3{X: 10, Y: 50}); ok {
		t.Error("ray far from all shapes reported a hit")
	}
}

func TestHingeAnchorAndForce(t *testing.T) {
	world := newTestWorld()
	e := newTestEngine(t, world)
	defer e.Fini()

	arm, _ := e.CreateLink(nil)
	if _, err := e.CreateCollision("box", arm); err != nil {
		t.Fatal(err)
	}
	arm.(engine.Positioned).SetPosition(engine.Vec3{X: 1})
	world.add("arm", arm)

	j, err := e.CreateJoint("hinge")
	if err != nil {
		t.Fatal(err)
	}
	// world-anchored: empty parent pins the arm to the ground body
	cfg := &engine.JointConfig{Type: "hinge", Child: "arm"}
	if err := j.Load(cfg); err != nil {
		t.Fatalf("joint Load failed: %v", err)
	}

	if got := j.GetAnchor(0); !got.IsZero() {
		t.Errorf("anchor A = %+v, want origin", got)
	}

	e.SetStepTime(0.01)
	step(e, 20)

	f := j.GetLinkForce(0)
	if f.IsZero() {
		t.Error("hinge holding a body under gravity reports zero reaction force")
	}
	if got := j.GetLinkForce(1); got.X != -f.X || got.Y != -f.Y {
		t.Errorf("reaction forces not equal and opposite: %+v vs %+v", f, got)
	}
}

func TestSliderMotorAttributes(t *testing.T) {
	world := newTestWorld()
	e := newTestEngine(t, world)
	defer e.Fini()

	a, _ := e.CreateLink(nil)
	b, _ := e.CreateLink(nil)
	world.add("a", a)
	world.add("b", b)

	j, err := e.CreateJoint("slider")
	if err != nil {
		t.Fatal(err)
	}
	cfg := &engine.JointConfig{Type: "slider", Parent: "a", Child: "b", Axis: engine.Vec3{X: 1}}
	if err := j.Load(cfg); err != nil {
		t.Fatalf("joint Load failed: %v", err)
	}

	j.SetAttribute(engine.AttrMotorVelocity, 0, 2)
	j.SetAttribute(engine.AttrMaxForce, 0, 100)
	j.SetAttribute(engine.AttrLoStop, 0, -1)
	j.SetAttribute(engine.AttrHiStop, 0, 1)

	e.SetStepTime(0.01)
	step(e, 10)

	// the motor drives b away from a along x, capped by the stops
	dx := b.(engine.Positioned).Position().X - a.(engine.Positioned).Position().X
	if dx <= 0 {
		t.Errorf("motor did not separate the links, dx = %g", dx)
	}
}

func TestDetachDestroysJoint(t *testing.T) {
	world := newTestWorld()
	e := newTestEngine(t, world)
	defer e.Fini()

	a, _ := e.CreateLink(nil)
	b, _ := e.CreateLink(nil)
	world.add("a", a)
	world.add("b", b)

	j, _ := e.CreateJoint("fixed")
	cfg := &engine.JointConfig{Type: "fixed", Parent: "a", Child: "b"}
	if err := j.Load(cfg); err != nil {
		t.Fatal(err)
	}
	if e.world.M_jointCount != 1 {
		t.Fatalf("joint count = %d after load, want 1", e.world.M_jointCount)
	}

	j.Detach()
	if e.world.M_jointCount != 0 {
		t.Errorf("joint count = %d after detach, want 0", e.world.M_jointCount)
	}
	if _, err := j.GetJointLink(0); !errors.Is(err, engine.ErrNotAttached) {
		t.Errorf("GetJointLink after detach = %v, want ErrNotAttached", err)
	}
	if j.AreConnected(a, b) {
		t.Error("detached joint still reports its links connected")
	}
	if got := j.GetAnchor(0); !got.IsZero() {
		t.Errorf("anchor of a detached joint = %+v, want zero", got)
	}
	if got := j.GetLinkForce(0); !got.IsZero() {
		t.Errorf("force of a detached joint = %+v, want zero", got)
	}
	if got := j.GetLinkTorque(0); !got.IsZero() {
		t.Errorf("torque of a detached joint = %+v, want zero", got)
	}
}

func TestCapabilityGaps(t *testing.T) {
	e := newTestEngine(t, nil)
	defer e.Fini()

	e.SetSolverIterations(12)
	if got := e.GetSolverIterations(); got != 12 {
		t.Errorf("solver iterations = %d, want 12", got)
	}
	e.SetAutoDisableFlag(true)
	if !e.GetAutoDisableFlag() {
		t.Error("auto disable not applied")
	}

	e.SetContactSurfaceLayer(0.01)
	if got := e.GetContactSurfaceLayer(); got != 0 {
		t.Errorf("surface layer = %g, want inert 0", got)
	}
	if e.Supports(engine.CapSurfaceLayer) {
		t.Error("box2d must not claim surface layer support")
	}
	if !e.Supports(engine.CapJointForce | engine.CapJointTorque | engine.CapJointAnchor) {
		t.Error("box2d must claim joint reaction support")
	}
}
