package engine

import "errors"

// Domain errors for the abstraction layer. Capability gaps are deliberately
// absent: an unsupported operation answers with a neutral value, never an
// error (see package doc).
var (
	// ErrUnsupportedType indicates an entity factory was asked for a type
	// name the active backend never registered.
	ErrUnsupportedType = errors.New("engine: unsupported entity type")

	// ErrInvalidConfig indicates malformed or out-of-range configuration.
	ErrInvalidConfig = errors.New("engine: invalid configuration")

	// ErrInvalidParameter indicates an out-of-range runtime parameter, e.g.
	// a non-positive step time. The previous valid value is kept.
	ErrInvalidParameter = errors.New("engine: invalid parameter")

	// ErrNotAttached indicates a joint link query for an index that is out
	// of the two-link range or currently unattached.
	ErrNotAttached = errors.New("engine: joint link not attached")

	// ErrNotInitialized indicates an operation that needs backend solver
	// resources was called before Init.
	ErrNotInitialized = errors.New("engine: engine not initialized")

	// ErrUnknownBackend indicates no backend was registered under the
	// requested name.
	ErrUnknownBackend = errors.New("engine: unknown backend")

	// ErrUnknownLink indicates a link name could not be resolved through
	// the world collaborator.
	ErrUnknownLink = errors.New("engine: unknown link")
)
