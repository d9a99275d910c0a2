package engine

import "testing"

func TestContactRegistryTickVersioning(t *testing.T) {
	r := NewContactRegistry()
	a := &stubLink{name: "a"}
	b := &stubLink{name: "b"}

	r.AddPair(a, b)
	if !r.Touching(a, b) {
		t.Fatal("pair not recorded")
	}

	tick := r.Tick()
	r.BeginTick()
	if r.Tick() != tick+1 {
		t.Errorf("tick = %d, want %d", r.Tick(), tick+1)
	}
	if r.Touching(a, b) {
		t.Error("pair survived BeginTick")
	}
	if r.Size() != 0 {
		t.Errorf("size = %d after BeginTick, want 0", r.Size())
	}
}

// Each link records a single touching partner; later pairs for the same link
// only fill in directions that are still empty. The behavior is documented,
// so pin it.
func TestContactRegistryOnePartnerPerLink(t *testing.T) {
	r := NewContactRegistry()
	a := &stubLink{name: "a"}
	b := &stubLink{name: "b"}
	c := &stubLink{name: "c"}

	r.AddPair(a, b)
	r.AddPair(a, c)

	if !r.Touching(a, b) {
		t.Error("first pair lost")
	}
	// a already maps to b, but c's own direction (c -> a) was inserted, so
	// the lookup still succeeds through c.
	if !r.Touching(a, c) {
		t.Error("second pair not reachable through the partner direction")
	}
	if !r.Touching(c, a) {
		t.Error("Touching must be order-independent")
	}
}

func TestContactRegistryNilLinks(t *testing.T) {
	r := NewContactRegistry()
	a := &stubLink{name: "a"}
	r.AddPair(nil, a)
	r.AddPair(a, nil)
	if r.Size() != 0 {
		t.Errorf("nil links must not be recorded, size = %d", r.Size())
	}
}
