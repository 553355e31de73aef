// Package store implements the engine's store model: an
// address-keyed, space-partitioned map, an abstract per-address
// cardinality map, and the concrete/abstract State types built on top of
// both.
//
// A persistent, map-backed structure; the allocation counter is the
// engine's one piece of shared mutable state and carries the only lock.
package store

import (
	"sync"

	"github.com/dkellis-lab/semlab/internal/card"
	"github.com/dkellis-lab/semlab/internal/dpattern"
	"github.com/dkellis-lab/semlab/internal/engineerr"
)

// Store is a mapping from address-space tag to a mapping from address
// identifier to DPattern. It is persistent: every mutating method
// returns a new Store sharing untouched partitions with the receiver,
// so aliasing across non-deterministic branches is never a hazard.
type Store struct {
	partitions map[string]partition
}

// partition is itself persistent: Set returns a new partition, copying
// only the changed bucket's backing map.
type partition map[uint64]dpattern.DPattern

// Empty returns a store with no entries.
func Empty() *Store {
	return &Store{partitions: map[string]partition{}}
}

// Lookup reads the store at (spaceTag, id). A miss is reported via the
// second return, not an error — callers that treat an unmapped address
// as an error raise it themselves (internal/expr), since this package
// has no opinion on error stage tagging.
func (s *Store) Lookup(spaceTag string, id uint64) (dpattern.DPattern, bool) {
	if s == nil {
		return nil, false
	}
	p, ok := s.partitions[spaceTag]
	if !ok {
		return nil, false
	}
	v, ok := p[id]
	return v, ok
}

// LookupAddr is a convenience wrapper taking a dpattern.Address.
func (s *Store) LookupAddr(a dpattern.Address) (dpattern.DPattern, bool) {
	return s.Lookup(a.SpaceTag, a.ID)
}

// Deref adapts LookupAddr to dpattern.Deref's signature, for passing this
// store into dpattern.Equal / the matcher.
func (s *Store) Deref(a dpattern.Address) (dpattern.DPattern, bool) {
	return s.LookupAddr(a)
}

// Set returns a new Store with (spaceTag, id) bound to v, strong-
// overwriting any previous entry (the strong-update case; weak
// updates are computed by the caller — internal/expr — which joins the
// old and new value with abstract.Join before calling Set).
func (s *Store) Set(spaceTag string, id uint64, v dpattern.DPattern) *Store {
	out := s.clonePartitions()
	old := out[spaceTag]
	np := make(partition, len(old)+1)
	for k, ov := range old {
		np[k] = ov
	}
	np[id] = v
	out[spaceTag] = np
	return &Store{partitions: out}
}

// SetAddr is a convenience wrapper taking a dpattern.Address.
func (s *Store) SetAddr(a dpattern.Address, v dpattern.DPattern) *Store {
	return s.Set(a.SpaceTag, a.ID, v)
}

func (s *Store) clonePartitions() map[string]partition {
	out := make(map[string]partition, len(s.partitions)+1)
	for tag, p := range s.partitions {
		out[tag] = p
	}
	return out
}

// Partition returns the tag's partition as an ordinary map, for callers
// (internal/expr's raw store views, internal/rule's state hashing and
// equality, CheckCardinalityInvariant) that need to enumerate entries. The
// returned map is a defensive copy.
func (s *Store) Partition(spaceTag string) map[uint64]dpattern.DPattern {
	p := s.partitions[spaceTag]
	out := make(map[uint64]dpattern.DPattern, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Tags returns every address-space tag with at least one entry.
func (s *Store) Tags() []string {
	out := make([]string, 0, len(s.partitions))
	for tag := range s.partitions {
		out = append(out, tag)
	}
	return out
}

//-----------------------------------------------------------------------------
// Allocation
//-----------------------------------------------------------------------------

// AllocCounter is the engine's one piece of shared mutable state:
// a monotonic generator of fresh concrete address identifiers.
// Scoped per run rather than a package-level global, so tests and
// concurrent runs never share a counter by accident.
type AllocCounter struct {
	mu   sync.Mutex
	next uint64
}

// NewAllocCounter returns a counter starting at 1 (0 is reserved so a
// zero-valued Address is recognizable as "never allocated").
func NewAllocCounter() *AllocCounter {
	return &AllocCounter{next: 1}
}

// Fresh returns a new, never-before-issued identifier.
func (c *AllocCounter) Fresh() uint64 {
	c.mu.Lock()
	id := c.next
	c.next++
	c.mu.Unlock()
	return id
}

//-----------------------------------------------------------------------------
// Abstract cardinality map
//-----------------------------------------------------------------------------

// Count is the abstract interpreter's per-address cardinality map:
// address identifier to Cardinality. Persistent, like Store.
type Count struct {
	byID map[uint64]card.Cardinality
}

// EmptyCount returns a count map with no entries (every address
// implicitly at Zero).
func EmptyCount() *Count {
	return &Count{byID: map[uint64]card.Cardinality{}}
}

// Get returns the cardinality recorded for id, defaulting to Zero.
func (c *Count) Get(id uint64) card.Cardinality {
	if c == nil {
		return card.Zero
	}
	return c.byID[id]
}

// Bump implements the allocation transition, returning a new Count
// with id's cardinality advanced one step (0→1, 1→ω, ω→ω).
func (c *Count) Bump(id uint64) *Count {
	out := c.clone()
	out.byID[id] = c.Get(id).Bump()
	return out
}

// Join returns a new Count that is the pointwise lattice join of c and o.
// The rule driver keeps non-deterministic branches separate and does not
// call it.
func (c *Count) Join(o *Count) *Count {
	out := c.clone()
	for id, card2 := range o.byID {
		out.byID[id] = out.Get(id).Join(card2)
	}
	return out
}

// Snapshot returns the count map's entries as an ordinary map (a
// defensive copy), for enumeration by hashing/equality code that cannot
// reach the unexported representation.
func (c *Count) Snapshot() map[uint64]card.Cardinality {
	if c == nil {
		return nil
	}
	out := make(map[uint64]card.Cardinality, len(c.byID))
	for k, v := range c.byID {
		out[k] = v
	}
	return out
}

// Saturate returns a new Count with id pinned at Omega, regardless of its
// current value. Used by widening policies (internal/abstract).
func (c *Count) Saturate(id uint64) *Count {
	out := c.clone()
	out.byID[id] = card.Omega
	return out
}

// Touched returns the ids whose cardinality differs from their value in
// before, i.e. the addresses a rule firing allocated or widened.
func (c *Count) Touched(before *Count) []uint64 {
	var out []uint64
	for id, v := range c.byID {
		if before.Get(id) != v {
			out = append(out, id)
		}
	}
	return out
}

func (c *Count) clone() *Count {
	out := &Count{byID: make(map[uint64]card.Cardinality, len(c.byID)+1)}
	for k, v := range c.byID {
		out.byID[k] = v
	}
	return out
}

//-----------------------------------------------------------------------------
// States
//-----------------------------------------------------------------------------

// State pairs a term with a store.
type State struct {
	Term  dpattern.DPattern
	Store *Store
}

// AbstractState additionally carries a cardinality map.
type AbstractState struct {
	Term  dpattern.DPattern
	Store *Store
	Count *Count
}

// CheckCardinalityInvariant checks that every address reachable from the
// term or store has a cardinality entry of at least 1. Used by tests; not
// called on the hot path.
func (s *AbstractState) CheckCardinalityInvariant() error {
	var bad []uint64
	walk := func(d dpattern.DPattern) {
		if a, ok := d.(dpattern.Address); ok {
			if s.Count.Get(a.ID) == card.Zero {
				bad = append(bad, a.ID)
			}
		}
	}
	dpattern.Walk(s.Term, walk)
	for _, tag := range s.Store.Tags() {
		for _, v := range s.Store.Partition(tag) {
			dpattern.Walk(v, walk)
		}
	}
	if len(bad) > 0 {
		return engineerr.Newf(engineerr.StageInSpace, bad, "addresses reachable with cardinality 0: %v", bad)
	}
	return nil
}
