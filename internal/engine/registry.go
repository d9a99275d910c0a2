package engine

import (
	"fmt"
	"sort"
	"sync"
)

// Factory constructs an engine bound to a world. The world reference may be
// nil for hosts that never resolve links by name.
type Factory func(world World) Engine

var (
	backendsMu sync.Mutex
	backends   = make(map[string]Factory)
)

// Register makes a backend available under name. Backend packages call it
// from init, driver style; registering the same name twice panics.
func Register(name string, factory Factory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if factory == nil {
		panic("engine: Register factory is nil")
	}
	if _, dup := backends[name]; dup {
		panic("engine: Register called twice for backend " + name)
	}
	backends[name] = factory
}

// New instantiates the backend registered under name.
func New(name string, world World) (Engine, error) {
	backendsMu.Lock()
	factory, ok := backends[name]
	backendsMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return factory(world), nil
}

// Backends lists the registered backend names, sorted.
func Backends() []string {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
