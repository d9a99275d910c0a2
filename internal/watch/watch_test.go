package watch

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/san-kum/physkit/internal/engine"
)

type msgEngine struct {
	*engine.Base
	msgs chan *engine.PhysicsMsg
}

func newMsgEngine() *msgEngine {
	e := &msgEngine{
		Base: engine.NewBase("stub", nil, 0),
		msgs: make(chan *engine.PhysicsMsg, 4),
	}
	e.SetLogger(log.New(io.Discard, "", 0))
	return e
}

func (e *msgEngine) Name() string { return "stub" }

func (e *msgEngine) Load(cfg *engine.Config) error { return e.LoadBase(cfg) }

func (e *msgEngine) Init() error {
	e.MarkInitialized()
	return nil
}

func (e *msgEngine) InitForThread() {}

func (e *msgEngine) UpdateCollision() { e.Contacts().BeginTick() }

func (e *msgEngine) SetGravity(g engine.Vec3) { e.CacheGravity(g) }

func (e *msgEngine) OnPhysicsMsg(msg *engine.PhysicsMsg) { e.msgs <- msg }

var _ engine.Engine = (*msgEngine)(nil)

func TestMsgFromConfig(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.Gravity = engine.Vec3{Y: -3}
	cfg.StepTime = 0.02
	cfg.Solver.Iters = 7

	msg := MsgFromConfig(cfg)
	if msg.Gravity == nil || msg.Gravity.Y != -3 {
		t.Errorf("gravity = %+v", msg.Gravity)
	}
	if msg.StepTime == nil || *msg.StepTime != 0.02 {
		t.Errorf("step time = %+v", msg.StepTime)
	}
	if msg.Solver == nil || msg.Solver.Iters != 7 {
		t.Errorf("solver = %+v", msg.Solver)
	}
}

func TestWatcherPushesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "physics.yaml")
	if err := os.WriteFile(path, []byte("step_time: 0.001\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	e := newMsgEngine()
	w, err := New(path, e, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("step_time: 0.02\ngravity: {y: -1}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-e.msgs:
		if msg.StepTime == nil || *msg.StepTime != 0.02 {
			t.Errorf("pushed step time = %+v, want 0.02", msg.StepTime)
		}
		if msg.Gravity == nil || msg.Gravity.Y != -1 {
			t.Errorf("pushed gravity = %+v, want y -1", msg.Gravity)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no physics message after config write")
	}
}

func TestWatcherSkipsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "physics.yaml")
	if err := os.WriteFile(path, []byte("step_time: 0.001\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	e := newMsgEngine()
	w, err := New(path, e, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Close()

	// negative step time fails validation and must not reach the engine
	if err := os.WriteFile(path, []byte("step_time: -5\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-e.msgs:
		t.Fatalf("invalid config pushed anyway: %+v", msg)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "physics.yaml")
	if err := os.WriteFile(path, []byte("step_time: 0.001\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	e := newMsgEngine()
	w, err := New(path, e, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Close()

	other := filepath.Join(dir, "notes.yaml")
	if err := os.WriteFile(other, []byte("step_time: 0.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-e.msgs:
		t.Fatalf("sibling file write pushed a message: %+v", msg)
	case <-time.After(300 * time.Millisecond):
	}
}
