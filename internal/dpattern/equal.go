package dpattern

// Deref resolves an address to its currently stored value. Implemented by
// internal/store; passed in here as a function value so internal/dpattern
// never needs to import internal/store (store entries are themselves
// DPatterns, so the dependency would otherwise cycle).
type Deref func(Address) (DPattern, bool)

// structuralEqualNoStore compares two DPatterns without access to a
// store: addresses compare by syntactic identity,
// regardless of kind. This is what map/set construction and dedup use
// internally, since building a Map or Set is not itself a store
// operation. Callers that need full structural-address semantics
// (dereference-then-compare) must use Equal with a Deref function instead.
func structuralEqualNoStore(a, b DPattern) bool {
	return Equal(a, b, nil)
}

// Equal implements structural equality over DPatterns: atom equality,
// the structural-address rule, and the matcher's map-pattern key/value
// comparison.
//
// deref is consulted whenever a structural address is compared against
// anything: per the policy pinned in DESIGN.md, a structural address is
// ALWAYS dereferenced before comparison, even against another structural
// address, even against a
// non-address value. A nil deref treats every address as undereferenceable
// and falls back to syntactic comparison (used by collection construction,
// where no store exists yet).
func Equal(a, b DPattern, deref Deref) bool {
	return equalDepth(a, b, deref, 0)
}

const maxEqualDepth = 10000

func equalDepth(a, b DPattern, deref Deref, depth int) bool {
	if depth > maxEqualDepth {
		// Cyclic store structure; two values that recurse this deep
		// without resolving are treated as unequal rather than
		// overflowing the stack.
		return false
	}
	a = resolve(a, deref, depth)
	b = resolve(b, deref, depth)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Number:
		bv := b.(Number)
		return av.Equal(bv)
	case Bool:
		return av == b.(Bool)
	case Symbol:
		return av == b.(Symbol)
	case Char:
		return av == b.(Char)
	case String:
		return av == b.(String)
	case *Variant:
		bv := b.(*Variant)
		if av.Descriptor != bv.Descriptor && av.Name() != bv.Name() {
			return false
		}
		if len(av.Children) != len(bv.Children) {
			return false
		}
		for i := range av.Children {
			if !equalDepth(av.Children[i], bv.Children[i], deref, depth+1) {
				return false
			}
		}
		return true
	case Address:
		bv := b.(Address)
		return addressEqual(av, bv, deref, depth)
	case *Map:
		bv := b.(*Map)
		if av.Len() != bv.Len() {
			return false
		}
		for _, e := range av.Entries {
			other, ok := lookupEqual(bv, e.Key, deref, depth)
			if !ok || !equalDepth(e.Value, other, deref, depth+1) {
				return false
			}
		}
		return true
	case *Set:
		bv := b.(*Set)
		if av.Len() != bv.Len() {
			return false
		}
		for _, e := range av.Elements {
			if !containsEqual(bv, e, deref, depth) {
				return false
			}
		}
		return true
	case *External:
		bv := b.(*External)
		if av.SpaceName != bv.SpaceName {
			return false
		}
		return av.Payload.String() == bv.Payload.String()
	default:
		return false
	}
}

// resolve dereferences a through a chain of structural addresses. Egal
// addresses and non-address values pass through unchanged.
func resolve(d DPattern, deref Deref, depth int) DPattern {
	for depth < maxEqualDepth {
		addr, ok := d.(Address)
		if !ok || addr.AddrKind != Structural || deref == nil {
			return d
		}
		next, found := deref(addr)
		if !found {
			return d
		}
		d = next
		depth++
	}
	return d
}

// addressEqual only sees addresses resolve left alone: egal addresses
// (never dereferenced) and structural addresses with no store entry.
// Both compare syntactically; a mapped structural address was already
// replaced by its stored value before this point.
func addressEqual(a, b Address, _ Deref, _ int) bool {
	return a.SyntacticEqual(b)
}

func lookupEqual(m *Map, key DPattern, deref Deref, depth int) (DPattern, bool) {
	for _, e := range m.Entries {
		if equalDepth(e.Key, key, deref, depth+1) {
			return e.Value, true
		}
	}
	return nil, false
}

func containsEqual(s *Set, d DPattern, deref Deref, depth int) bool {
	for _, e := range s.Elements {
		if equalDepth(e, d, deref, depth+1) {
			return true
		}
	}
	return false
}
