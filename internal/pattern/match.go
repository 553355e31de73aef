package pattern

import (
	"github.com/dkellis-lab/semlab/internal/dpattern"
	"github.com/dkellis-lab/semlab/internal/engineerr"
	"github.com/dkellis-lab/semlab/internal/env"
	"github.com/dkellis-lab/semlab/internal/space"
	"github.com/dkellis-lab/semlab/internal/store"
)

// Match is the concrete match relation: deterministic, returning
// either fail (ok == false) or exactly one extended environment. Match
// failure is silent; an error return is reserved for structural problems
// (undefined space in a binder check, unbound reference variable).
//
// Structural addresses are dereferenced through the store before matching
// against variant or atom patterns — the deref-always policy pinned in
// DESIGN.md. Binding variables bind the value as presented, address
// included, so a rule can capture an address and re-emit it in its RHS.
func Match(l *space.Language, p Pattern, d dpattern.DPattern, en *env.Env, st *store.Store) (*env.Env, bool, error) {
	switch p.Kind {
	case KindBindingVar:
		if existing, ok := en.Lookup(p.VarName); ok {
			// Non-linear binder: the prior binding must equal the value.
			return en, dpattern.Equal(existing, d, st.Deref), nil
		}
		if p.SpaceCheck != "" {
			ok, err := space.InSpace(l, p.SpaceCheck, d, st.Deref)
			if err != nil {
				return nil, false, err
			}
			if !ok {
				return nil, false, nil
			}
		}
		return en.Extend(p.VarName, d), true, nil

	case KindRefVar:
		existing, ok := en.Lookup(p.VarName)
		if !ok {
			return nil, false, engineerr.Newf(engineerr.StageMatch, p.VarName,
				"reference variable %q is unbound", p.VarName)
		}
		return en, dpattern.Equal(existing, d, st.Deref), nil

	case KindAtom:
		return en, dpattern.Equal(p.Atom, d, st.Deref), nil

	case KindVariant:
		v, ok := derefValue(d, st).(*dpattern.Variant)
		if !ok {
			return nil, false, nil
		}
		if v.Descriptor != p.Variant && v.Name() != p.Variant.Name {
			return nil, false, nil
		}
		if len(v.Children) != len(p.Children) {
			return nil, false, nil
		}
		out := en
		for i, cp := range p.Children {
			var matched bool
			var err error
			out, matched, err = Match(l, cp, v.Children[i], out, st)
			if err != nil || !matched {
				return nil, false, err
			}
		}
		return applyGuard(p, en, out, st)

	case KindSetWith:
		s, ok := derefValue(d, st).(*dpattern.Set)
		if !ok {
			return nil, false, nil
		}
		// First matching element wins in concrete mode.
		for i, e := range s.Elements {
			out, matched, err := Match(l, *p.Elem, e, en, st)
			if err != nil {
				return nil, false, err
			}
			if !matched {
				continue
			}
			if p.Rest != "" {
				out = out.Extend(p.Rest, s.Without(i))
			}
			return out, true, nil
		}
		return nil, false, nil

	case KindMapWith:
		m, ok := derefValue(d, st).(*dpattern.Map)
		if !ok {
			return nil, false, nil
		}
		for i, e := range m.Entries {
			out, matched, err := Match(l, *p.Key, e.Key, en, st)
			if err != nil {
				return nil, false, err
			}
			if !matched {
				continue
			}
			out, matched, err = Match(l, *p.Val, e.Value, out, st)
			if err != nil {
				return nil, false, err
			}
			if !matched {
				continue
			}
			if p.Rest != "" {
				out = out.Extend(p.Rest, m.Without(i))
			}
			return out, true, nil
		}
		return nil, false, nil

	default:
		return nil, false, engineerr.Newf(engineerr.StageMatch, p, "pattern has unknown kind %d", p.Kind)
	}
}

// derefValue resolves a structural address to its stored value, chasing
// chains. Egal addresses and plain values pass through.
func derefValue(d dpattern.DPattern, st *store.Store) dpattern.DPattern {
	for i := 0; i < 1000; i++ {
		addr, ok := d.(dpattern.Address)
		if !ok || addr.AddrKind != dpattern.Structural || st == nil {
			return d
		}
		v, found := st.LookupAddr(addr)
		if !found {
			return d
		}
		d = v
	}
	return d
}

// applyGuard runs a variant descriptor's optional side condition
// over the names this variant's children bound.
// A nil or non-VariantGuard Guard is a no-op.
func applyGuard(p Pattern, before, after *env.Env, st *store.Store) (*env.Env, bool, error) {
	guard, ok := p.Variant.Guard.(VariantGuard)
	if !ok || guard == nil {
		return after, true, nil
	}
	bound := map[string]dpattern.DPattern{}
	for _, name := range after.Names() {
		if before.Has(name) {
			continue
		}
		if v, ok := after.Lookup(name); ok {
			bound[name] = v
		}
	}
	pass, err := guard(bound)
	if err != nil {
		return nil, false, engineerr.Newf(engineerr.StageMatch, p.Variant.Name,
			"variant %q guard: %v", p.Variant.Name, err)
	}
	if !pass {
		return nil, false, nil
	}
	return after, true, nil
}
