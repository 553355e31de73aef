// Package abstract holds the additions the abstract interpreter layers on
// top of the concrete engine: value joins for weak updates, count-aware
// three-valued equality, and the pluggable widening policies the driver
// may select.
package abstract

import (
	"github.com/dkellis-lab/semlab/internal/card"
	"github.com/dkellis-lab/semlab/internal/dpattern"
	"github.com/dkellis-lab/semlab/internal/store"
)

// Join merges a freshly written value into the prior contents of an
// ω-cardinality address. The joined representation is
// a set of possible denotations: joining two non-set values yields the
// two-element set, joining into an existing denotation set adds the new
// value. A nil old value (first write) yields the new value unchanged.
//
// Store entries for addresses at cardinality ω are therefore canonically
// either a single value (one denotation so far) or a *dpattern.Set of
// denotations; Denotations inverts this encoding.
func Join(old, new dpattern.DPattern) dpattern.DPattern {
	if old == nil {
		return new
	}
	if s, ok := old.(*dpattern.Set); ok {
		return s.Add(new)
	}
	if dpattern.Equal(old, new, nil) {
		return old
	}
	return dpattern.NewSet(old, new)
}

// Denotations returns the set of values a stored entry may denote: the
// elements of a join-produced set, or the singleton of any other value.
func Denotations(d dpattern.DPattern) []dpattern.DPattern {
	if s, ok := d.(*dpattern.Set); ok {
		return s.Elements
	}
	return []dpattern.DPattern{d}
}

// SpecialEqualFn resolves an external value pair through its space's
// special-equality oracle, if the space declares one. The bool reports
// whether an oracle was found; false falls back to payload comparison.
type SpecialEqualFn func(a, b *dpattern.External) (card.Quality, bool)

// EqualQ is the count-aware three-valued equality of the abstract
// interpreter: Must means the two values are equal in every concretization,
// MustNot means they are equal in none, May means both outcomes are
// possible.
//
// May arises from three sources: a structural address at cardinality ω
// (its denotations may differ between, or even within, concretizations),
// an egal address at cardinality ω compared against itself (two distinct
// concrete addresses may share the abstract name), and an external space's
// special-equality oracle returning may.
func EqualQ(a, b dpattern.DPattern, st *store.Store, cnt *store.Count, special SpecialEqualFn) card.Quality {
	return equalQ(a, b, st, cnt, special, 0)
}

const maxDepth = 10000

func equalQ(a, b dpattern.DPattern, st *store.Store, cnt *store.Count, special SpecialEqualFn, depth int) card.Quality {
	if depth > maxDepth {
		return card.May
	}
	if aa, ok := a.(dpattern.Address); ok {
		return addressEqualQ(aa, b, st, cnt, special, depth)
	}
	if ba, ok := b.(dpattern.Address); ok {
		return addressEqualQ(ba, a, st, cnt, special, depth)
	}
	if a.Kind() != b.Kind() {
		return card.MustNot
	}
	switch av := a.(type) {
	case *dpattern.Variant:
		bv := b.(*dpattern.Variant)
		if av.Name() != bv.Name() || len(av.Children) != len(bv.Children) {
			return card.MustNot
		}
		q := card.Must
		for i := range av.Children {
			cq := equalQ(av.Children[i], bv.Children[i], st, cnt, special, depth+1)
			if cq == card.MustNot {
				return card.MustNot
			}
			q = card.Combine(q, cq)
		}
		return q
	case *dpattern.Map:
		return mapEqualQ(av, b.(*dpattern.Map), st, cnt, special, depth)
	case *dpattern.Set:
		return setEqualQ(av, b.(*dpattern.Set), st, cnt, special, depth)
	case *dpattern.External:
		bv := b.(*dpattern.External)
		if special != nil {
			if q, ok := special(av, bv); ok {
				return q
			}
		}
		return card.LiftBool(dpattern.Equal(av, bv, nil))
	default:
		// Atoms.
		return card.LiftBool(dpattern.Equal(a, b, nil))
	}
}

func addressEqualQ(a dpattern.Address, b dpattern.DPattern, st *store.Store, cnt *store.Count, special SpecialEqualFn, depth int) card.Quality {
	if ba, ok := b.(dpattern.Address); ok && a.AddrKind == dpattern.Egal && ba.AddrKind == dpattern.Egal {
		if !a.SyntacticEqual(ba) {
			return card.MustNot
		}
		// Same abstract name; at ω it stands for several concrete
		// addresses, any two of which may be distinct.
		if cnt.Get(a.ID) == card.Omega {
			return card.May
		}
		return card.Must
	}
	if a.AddrKind == dpattern.Structural {
		if v, ok := st.LookupAddr(a); ok {
			omega := cnt.Get(a.ID) == card.Omega
			q := anyDenotationEqualQ(v, b, st, cnt, special, depth)
			if omega && q == card.Must {
				return card.May
			}
			return q
		}
	}
	if ba, ok := b.(dpattern.Address); ok {
		return card.LiftBool(a.SyntacticEqual(ba))
	}
	return card.MustNot
}

// anyDenotationEqualQ compares each denotation of a stored entry against b
// and folds the verdicts: all-must is must, all-must-not is must-not,
// anything mixed or indeterminate is may.
func anyDenotationEqualQ(stored, b dpattern.DPattern, st *store.Store, cnt *store.Count, special SpecialEqualFn, depth int) card.Quality {
	dens := Denotations(stored)
	sawEq, sawNeq := false, false
	for _, d := range dens {
		switch equalQ(d, b, st, cnt, special, depth+1) {
		case card.Must:
			sawEq = true
		case card.MustNot:
			sawNeq = true
		default:
			return card.May
		}
	}
	if sawEq && sawNeq {
		return card.May
	}
	if sawEq {
		if len(dens) > 1 {
			return card.May
		}
		return card.Must
	}
	return card.MustNot
}

func mapEqualQ(a, b *dpattern.Map, st *store.Store, cnt *store.Count, special SpecialEqualFn, depth int) card.Quality {
	if a.Len() != b.Len() {
		return card.MustNot
	}
	q := card.Must
	for _, e := range a.Entries {
		best := card.MustNot
		for _, o := range b.Entries {
			kq := equalQ(e.Key, o.Key, st, cnt, special, depth+1)
			if kq == card.MustNot {
				continue
			}
			vq := equalQ(e.Value, o.Value, st, cnt, special, depth+1)
			if vq == card.MustNot {
				continue
			}
			pair := card.Combine(kq, vq)
			if pair == card.Must {
				best = card.Must
				break
			}
			best = card.May
		}
		if best == card.MustNot {
			return card.MustNot
		}
		q = card.Combine(q, best)
	}
	return q
}

func setEqualQ(a, b *dpattern.Set, st *store.Store, cnt *store.Count, special SpecialEqualFn, depth int) card.Quality {
	if a.Len() != b.Len() {
		return card.MustNot
	}
	q := card.Must
	for _, e := range a.Elements {
		best := card.MustNot
		for _, o := range b.Elements {
			eq := equalQ(e, o, st, cnt, special, depth+1)
			if eq == card.MustNot {
				continue
			}
			if eq == card.Must {
				best = card.Must
				break
			}
			best = card.May
		}
		if best == card.MustNot {
			return card.MustNot
		}
		q = card.Combine(q, best)
	}
	return q
}
