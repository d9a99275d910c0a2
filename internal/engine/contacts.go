package engine

// ContactRegistry records which link pairs the collision-detection phase
// found touching this tick. Pairs are inserted in both directions so a
// lookup from either side succeeds.
//
// Known limitation, kept on purpose: each link maps to a single touching
// partner, so a link in contact with several others only records the first
// pair registered per direction. Callers that need the full contact set must
// get it from the backend directly.
//
// Mutation is confined to the stepping thread; readers racing a rebuild need
// external synchronization.
type ContactRegistry struct {
	pairs map[Link]Link
	tick  uint64
}

func NewContactRegistry() *ContactRegistry {
	return &ContactRegistry{pairs: make(map[Link]Link)}
}

// BeginTick discards the previous tick's pairs and advances the tick
// counter, so stale reads are detectable by comparing Tick values.
func (r *ContactRegistry) BeginTick() {
	clear(r.pairs)
	r.tick++
}

// Tick returns the version of the current contact set.
func (r *ContactRegistry) Tick() uint64 {
	return r.tick
}

// AddPair registers a touching pair. Re-adding a direction that is already
// present is a no-op, which also preserves the one-partner-per-link rule.
func (r *ContactRegistry) AddPair(a, b Link) {
	if a == nil || b == nil {
		return
	}
	if _, ok := r.pairs[a]; !ok {
		r.pairs[a] = b
	}
	if _, ok := r.pairs[b]; !ok {
		r.pairs[b] = a
	}
}

// Touching reports whether (a,b) was registered this tick, in either order.
func (r *ContactRegistry) Touching(a, b Link) bool {
	if p, ok := r.pairs[a]; ok && p == b {
		return true
	}
	if p, ok := r.pairs[b]; ok && p == a {
		return true
	}
	return false
}

// Partner returns the link recorded as touching l this tick, or nil.
func (r *ContactRegistry) Partner(l Link) Link {
	return r.pairs[l]
}

// Size returns the number of directed entries currently recorded.
func (r *ContactRegistry) Size() int {
	return len(r.pairs)
}
