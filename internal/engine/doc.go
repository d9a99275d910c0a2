// Package engine defines the solver-independent rigid-body physics layer:
// the contract a constraint-solver backend must satisfy to be pluggable,
// plus the bookkeeping that is the same for every backend.
//
// The central pieces are:
//
//   - [Engine]: the per-world façade a host drives (lifecycle, two-phase
//     stepping, entity factories, solver tuning, contact queries)
//   - [Base]: the partial implementation a backend embeds; it owns the
//     simulation timing, the gravity cache, the [ContactRegistry], the
//     entity-type constructor registries and the ray-query lock
//   - [Joint]: the per-constraint contract, with [JointBase] carrying the
//     cached ERP/CFM scalars and the attach/detach bookkeeping
//
// Backends register themselves with [Register] (driver style) and are
// instantiated with [New]. A host then calls Load, Init and, once per tick,
// UpdateCollision followed by UpdatePhysics.
//
// # Capability gaps
//
// Not every solver exposes every tuning knob. Operations a backend does not
// support are absorbed locally: they log a warning and answer with a neutral
// zero value, never an error, so generic host code stays backend-agnostic.
// Callers that need a hard guarantee probe [Engine.Supports] with a
// [Capability] mask before relying on a value.
package engine
