package pattern

import (
	"github.com/dkellis-lab/semlab/internal/abstract"
	"github.com/dkellis-lab/semlab/internal/card"
	"github.com/dkellis-lab/semlab/internal/dpattern"
	"github.com/dkellis-lab/semlab/internal/engineerr"
	"github.com/dkellis-lab/semlab/internal/env"
	"github.com/dkellis-lab/semlab/internal/space"
	"github.com/dkellis-lab/semlab/internal/store"
)

// MatchResult is one environment an abstract match produced, tagged with
// its quality: must if it follows in every concretization, may
// otherwise. Must collapses to may at the first indeterminate step.
type MatchResult struct {
	Env     *env.Env
	Quality card.Quality
}

// MatchAbstract is the abstract match relation: a set of
// quality-tagged environments. Non-determinism arises when an
// ω-cardinality address dereferences to several denotations, and when
// set-with / map-with destructuring admits several element choices.
// There is no other map pattern, so abstract map keys are never paired
// in more than one way beyond map-with's entry choices.
func MatchAbstract(l *space.Language, p Pattern, d dpattern.DPattern, en *env.Env, st *store.Store, cnt *store.Count) ([]MatchResult, error) {
	return matchAbs(l, p, d, en, st, cnt, card.Must)
}

func matchAbs(l *space.Language, p Pattern, d dpattern.DPattern, en *env.Env, st *store.Store, cnt *store.Count, q card.Quality) ([]MatchResult, error) {
	// Quantifier annotations apply when the matched value is a set.
	if p.Quant != QuantNone {
		if s, ok := d.(*dpattern.Set); ok {
			return matchQuantified(l, p, s, en, st, cnt, q)
		}
	}

	switch p.Kind {
	case KindBindingVar:
		if existing, ok := en.Lookup(p.VarName); ok {
			eq := abstract.EqualQ(existing, d, st, cnt, specialEqual(l))
			if eq == card.MustNot {
				return nil, nil
			}
			return []MatchResult{{Env: en, Quality: card.Combine(q, mustOf(eq))}}, nil
		}
		if p.SpaceCheck != "" {
			mq, err := space.InSpaceQ(l, p.SpaceCheck, d, st.Deref)
			if err != nil {
				return nil, err
			}
			if mq == card.MustNot {
				return nil, nil
			}
			q = card.Combine(q, mustOf(mq))
		}
		return []MatchResult{{Env: en.Extend(p.VarName, d), Quality: q}}, nil

	case KindRefVar:
		existing, ok := en.Lookup(p.VarName)
		if !ok {
			return nil, engineerr.Newf(engineerr.StageMatch, p.VarName,
				"reference variable %q is unbound", p.VarName)
		}
		eq := abstract.EqualQ(existing, d, st, cnt, specialEqual(l))
		if eq == card.MustNot {
			return nil, nil
		}
		return []MatchResult{{Env: en, Quality: card.Combine(q, mustOf(eq))}}, nil

	case KindAtom:
		eq := abstract.EqualQ(p.Atom, d, st, cnt, specialEqual(l))
		if eq == card.MustNot {
			return nil, nil
		}
		return []MatchResult{{Env: en, Quality: card.Combine(q, mustOf(eq))}}, nil

	case KindVariant, KindSetWith, KindMapWith:
		return matchAbsCompound(l, p, d, en, st, cnt, q)

	default:
		return nil, engineerr.Newf(engineerr.StageMatch, p, "pattern has unknown kind %d", p.Kind)
	}
}

// matchAbsCompound handles the pattern kinds that inspect the value's
// shape, fanning out over an ω address's denotations first.
func matchAbsCompound(l *space.Language, p Pattern, d dpattern.DPattern, en *env.Env, st *store.Store, cnt *store.Count, q card.Quality) ([]MatchResult, error) {
	if addr, ok := d.(dpattern.Address); ok && addr.AddrKind == dpattern.Structural {
		stored, found := st.LookupAddr(addr)
		if !found {
			return nil, nil
		}
		dens := abstract.Denotations(stored)
		dq := q
		if cnt.Get(addr.ID) == card.Omega || len(dens) > 1 {
			dq = card.May
		}
		var out []MatchResult
		for _, den := range dens {
			rs, err := matchAbsCompound(l, p, den, en, st, cnt, dq)
			if err != nil {
				return nil, err
			}
			out = append(out, rs...)
		}
		return out, nil
	}

	switch p.Kind {
	case KindVariant:
		v, ok := d.(*dpattern.Variant)
		if !ok || (v.Descriptor != p.Variant && v.Name() != p.Variant.Name) || len(v.Children) != len(p.Children) {
			return nil, nil
		}
		results := []MatchResult{{Env: en, Quality: q}}
		for i, cp := range p.Children {
			var next []MatchResult
			for _, r := range results {
				rs, err := matchAbs(l, cp, v.Children[i], r.Env, st, cnt, r.Quality)
				if err != nil {
					return nil, err
				}
				next = append(next, rs...)
			}
			if len(next) == 0 {
				return nil, nil
			}
			results = next
		}
		return filterGuardAbs(p, en, results, st)

	case KindSetWith:
		s, ok := d.(*dpattern.Set)
		if !ok {
			return nil, nil
		}
		choiceQ := q
		if s.Len() > 1 {
			choiceQ = card.May
		}
		var out []MatchResult
		for i, e := range s.Elements {
			rs, err := matchAbs(l, *p.Elem, e, en, st, cnt, choiceQ)
			if err != nil {
				return nil, err
			}
			for _, r := range rs {
				if p.Rest != "" {
					r.Env = r.Env.Extend(p.Rest, s.Without(i))
				}
				out = append(out, r)
			}
		}
		return out, nil

	case KindMapWith:
		m, ok := d.(*dpattern.Map)
		if !ok {
			return nil, nil
		}
		choiceQ := q
		if m.Len() > 1 {
			choiceQ = card.May
		}
		var out []MatchResult
		for i, e := range m.Entries {
			krs, err := matchAbs(l, *p.Key, e.Key, en, st, cnt, choiceQ)
			if err != nil {
				return nil, err
			}
			for _, kr := range krs {
				vrs, err := matchAbs(l, *p.Val, e.Value, kr.Env, st, cnt, kr.Quality)
				if err != nil {
					return nil, err
				}
				for _, vr := range vrs {
					if p.Rest != "" {
						vr.Env = vr.Env.Extend(p.Rest, m.Without(i))
					}
					out = append(out, vr)
				}
			}
		}
		return out, nil
	}
	return nil, nil
}

// matchQuantified implements the ∀/∃ annotations over a set-shaped
// argument. Exists fans out one result bundle per element; ForAll threads
// the environment through every element, requiring each to match.
func matchQuantified(l *space.Language, p Pattern, s *dpattern.Set, en *env.Env, st *store.Store, cnt *store.Count, q card.Quality) ([]MatchResult, error) {
	inner := p
	inner.Quant = QuantNone

	if p.Quant == QuantExists {
		choiceQ := q
		if s.Len() > 1 {
			choiceQ = card.May
		}
		var out []MatchResult
		for _, e := range s.Elements {
			rs, err := matchAbs(l, inner, e, en, st, cnt, choiceQ)
			if err != nil {
				return nil, err
			}
			out = append(out, rs...)
		}
		return out, nil
	}

	// ForAll: every element must admit a match; environments thread so a
	// non-linear binder constrains all elements to agree.
	results := []MatchResult{{Env: en, Quality: q}}
	for _, e := range s.Elements {
		var next []MatchResult
		for _, r := range results {
			rs, err := matchAbs(l, inner, e, r.Env, st, cnt, r.Quality)
			if err != nil {
				return nil, err
			}
			next = append(next, rs...)
		}
		if len(next) == 0 {
			return nil, nil
		}
		results = next
	}
	return results, nil
}

func filterGuardAbs(p Pattern, before *env.Env, results []MatchResult, st *store.Store) ([]MatchResult, error) {
	guard, ok := p.Variant.Guard.(VariantGuard)
	if !ok || guard == nil {
		return results, nil
	}
	var out []MatchResult
	for _, r := range results {
		bound := map[string]dpattern.DPattern{}
		for _, name := range r.Env.Names() {
			if before.Has(name) {
				continue
			}
			if v, ok := r.Env.Lookup(name); ok {
				bound[name] = v
			}
		}
		pass, err := guard(bound)
		if err != nil {
			return nil, engineerr.Newf(engineerr.StageMatch, p.Variant.Name,
				"variant %q guard: %v", p.Variant.Name, err)
		}
		if pass {
			out = append(out, r)
		}
	}
	return out, nil
}

// mustOf maps an equality/membership verdict onto the match-quality
// lattice: a may verdict taints the match, a must verdict leaves it alone.
// MustNot never reaches here (callers prune first).
func mustOf(q card.Quality) card.Quality {
	if q == card.May {
		return card.May
	}
	return card.Must
}

func specialEqual(l *space.Language) abstract.SpecialEqualFn {
	return space.SpecialEqualOracle(l)
}
