package expr

import (
	"github.com/dkellis-lab/semlab/internal/abstract"
	"github.com/dkellis-lab/semlab/internal/card"
	"github.com/dkellis-lab/semlab/internal/dpattern"
	"github.com/dkellis-lab/semlab/internal/engineerr"
	"github.com/dkellis-lab/semlab/internal/env"
	"github.com/dkellis-lab/semlab/internal/pattern"
	"github.com/dkellis-lab/semlab/internal/space"
	"github.com/dkellis-lab/semlab/internal/store"
)

// Mode selects the concrete or the abstract evaluation semantics.
type Mode int

const (
	Concrete Mode = iota
	Abstract
)

// Result is one effectful outcome of evaluating an expression: a value
// plus the threaded store, and in abstract mode the threaded count and
// the result's quality. Count is nil and Quality is Must throughout in
// concrete mode.
type Result struct {
	Value   dpattern.DPattern
	Store   *store.Store
	Count   *store.Count
	Quality card.Quality
}

// MetaCaller resolves meta-function calls. Implemented by
// internal/rule's System; declared here so this package never imports the
// rule driver (the dependency runs the other way).
type MetaCaller interface {
	CallMeta(name string, arg dpattern.DPattern, st *store.Store, cnt *store.Count) ([]Result, error)
}

// Evaluator evaluates expressions against (environment, store [, count]).
// A single Evaluator is scoped to one rule application: RuleName feeds
// abstract allocation.
type Evaluator struct {
	Lang     *space.Language
	Mode     Mode
	Alloc    *store.AllocCounter // concrete allocation; unused in abstract mode
	Meta     MetaCaller          // nil means meta-function calls error
	RuleName string
}

// Eval returns the set of results of evaluating e. Ordering is
// unspecified; an empty slice means every branch pruned (not an error).
func (ev *Evaluator) Eval(e *Expr, en *env.Env, st *store.Store, cnt *store.Count) ([]Result, error) {
	switch e.Kind {
	case KindTerm:
		v, err := pattern.Instantiate(e.Pat, en)
		if err != nil {
			return nil, err
		}
		return []Result{{Value: v, Store: st, Count: cnt, Quality: card.Must}}, nil

	case KindLitBool:
		return []Result{{Value: dpattern.Bool(e.BoolVal), Store: st, Count: cnt, Quality: card.Must}}, nil

	case KindMapLookup:
		return ev.evalMapLookup(e, en, st, cnt)

	case KindMapExtend:
		return ev.evalMapExtend(e, en, st, cnt)

	case KindStoreLookup:
		return ev.evalStoreLookup(e, en, st, cnt)

	case KindIf:
		gs, err := ev.Eval(e.Guard, en, st, cnt)
		if err != nil {
			return nil, err
		}
		var out []Result
		for _, g := range gs {
			branch := e.Then
			if !truthy(g.Value) {
				branch = e.Else
			}
			rs, err := ev.Eval(branch, en, g.Store, g.Count)
			if err != nil {
				return nil, err
			}
			out = append(out, tagQuality(rs, g.Quality)...)
		}
		return out, nil

	case KindLet:
		brs, err := ev.EvalBindings(e.Bindings, en, st, cnt)
		if err != nil {
			return nil, err
		}
		var out []Result
		for _, br := range brs {
			rs, err := ev.Eval(e.Body, br.Env, br.Store, br.Count)
			if err != nil {
				return nil, err
			}
			out = append(out, tagQuality(rs, br.Quality)...)
		}
		return out, nil

	case KindEqual:
		return ev.evalEqual(e, en, st, cnt)

	case KindInDom:
		return ev.evalInDom(e, en, st, cnt)

	case KindInSet:
		return ev.evalInSet(e, en, st, cnt)

	case KindEmptySet:
		return []Result{{Value: dpattern.NewSet(), Store: st, Count: cnt, Quality: card.Must}}, nil

	case KindSetUnion:
		return ev.evalSetUnion(e, en, st, cnt)

	case KindSetAdd:
		return ev.evalSetAdd(e, en, st, cnt)

	case KindMetaCall:
		arg, err := pattern.Instantiate(e.Pat, en)
		if err != nil {
			return nil, err
		}
		if ev.Meta == nil {
			return nil, engineerr.Newf(engineerr.StageMfEval, e.MetaName,
				"unknown meta-function %q", e.MetaName)
		}
		return ev.Meta.CallMeta(e.MetaName, arg, st, cnt)

	case KindChoose:
		return ev.evalChoose(e, en, st, cnt)

	case KindAlloc:
		return ev.evalAlloc(e, en, st, cnt)

	case KindUnsafeStoreSpaceRef:
		return []Result{{Value: rawStoreValue(st), Store: st, Count: cnt, Quality: card.Must}}, nil

	case KindUnsafeStoreRef:
		tag, err := ev.addressTag(e.SpaceName)
		if err != nil {
			return nil, err
		}
		return []Result{{Value: rawPartitionValue(st, tag), Store: st, Count: cnt, Quality: card.Must}}, nil

	default:
		return nil, engineerr.Newf(engineerr.StageExprEval, e, "expression has unknown kind %d", e.Kind)
	}
}

// truthy implements If's scrutiny: only the boolean false is falsy.
func truthy(d dpattern.DPattern) bool {
	b, ok := d.(dpattern.Bool)
	return !ok || bool(b)
}

func tagQuality(rs []Result, q card.Quality) []Result {
	if q == card.Must {
		return rs
	}
	out := make([]Result, len(rs))
	for i, r := range rs {
		r.Quality = card.Combine(r.Quality, q)
		out[i] = r
	}
	return out
}

// lookupMapVar resolves the map variable of Map-lookup / Map-extend /
// In-Dom; an unbound or non-map binding is the structural "unbound map
// variable" error.
func lookupMapVar(en *env.Env, name string) (*dpattern.Map, error) {
	v, ok := en.Lookup(name)
	if !ok {
		return nil, engineerr.Newf(engineerr.StageExprEval, name, "unbound map variable %q", name)
	}
	m, ok := v.(*dpattern.Map)
	if !ok {
		return nil, engineerr.Newf(engineerr.StageExprEval, v, "variable %q is bound to a non-map", name)
	}
	return m, nil
}

func (ev *Evaluator) evalMapLookup(e *Expr, en *env.Env, st *store.Store, cnt *store.Count) ([]Result, error) {
	m, err := lookupMapVar(en, e.MVar)
	if err != nil {
		return nil, err
	}
	krs, err := ev.Eval(e.Key, en, st, cnt)
	if err != nil {
		return nil, err
	}
	var out []Result
	for _, kr := range krs {
		if ev.Mode == Concrete {
			v, ok := concreteMapLookup(m, kr.Value, kr.Store)
			if ok {
				out = append(out, Result{Value: v, Store: kr.Store, Count: kr.Count, Quality: kr.Quality})
				continue
			}
			if e.Default == nil {
				return nil, engineerr.Newf(engineerr.StageExprEval, kr.Value,
					"map-lookup: key %v not found and no default", kr.Value)
			}
			rs, err := ev.Eval(e.Default, en, kr.Store, kr.Count)
			if err != nil {
				return nil, err
			}
			out = append(out, tagQuality(rs, kr.Quality)...)
			continue
		}

		// Abstract: a must-equal key resolves exactly; otherwise every
		// may-equal entry is a candidate, and absence stays possible.
		hit, candidates := abstractMapCandidates(m, kr.Value, kr.Store, kr.Count, ev.oracle())
		if hit != nil {
			out = append(out, Result{Value: hit, Store: kr.Store, Count: kr.Count, Quality: kr.Quality})
			continue
		}
		for _, c := range candidates {
			out = append(out, Result{Value: c, Store: kr.Store, Count: kr.Count, Quality: card.May})
		}
		if e.Default != nil {
			rs, err := ev.Eval(e.Default, en, kr.Store, kr.Count)
			if err != nil {
				return nil, err
			}
			q := kr.Quality
			if len(candidates) > 0 {
				q = card.May
			}
			out = append(out, tagQuality(rs, q)...)
		} else if len(candidates) == 0 {
			return nil, engineerr.Newf(engineerr.StageExprEval, kr.Value,
				"map-lookup: key %v not found and no default", kr.Value)
		}
	}
	return out, nil
}

// concreteMapLookup is the fast-path-then-linear-scan lookup, under
// the matcher's own equality (structural addresses dereference).
func concreteMapLookup(m *dpattern.Map, key dpattern.DPattern, st *store.Store) (dpattern.DPattern, bool) {
	if v, ok := m.Lookup(key); ok {
		return v, true
	}
	for _, e := range m.Entries {
		if dpattern.Equal(e.Key, key, st.Deref) {
			return e.Value, true
		}
	}
	return nil, false
}

// abstractMapCandidates scans every entry under three-valued equality:
// the first must-equal entry wins outright; otherwise all may-equal
// entries are returned as candidates.
func abstractMapCandidates(m *dpattern.Map, key dpattern.DPattern, st *store.Store, cnt *store.Count, oracle abstract.SpecialEqualFn) (dpattern.DPattern, []dpattern.DPattern) {
	var candidates []dpattern.DPattern
	for _, e := range m.Entries {
		switch abstract.EqualQ(e.Key, key, st, cnt, oracle) {
		case card.Must:
			return e.Value, nil
		case card.May:
			candidates = append(candidates, e.Value)
		}
	}
	return nil, candidates
}

func (ev *Evaluator) evalMapExtend(e *Expr, en *env.Env, st *store.Store, cnt *store.Count) ([]Result, error) {
	m, err := lookupMapVar(en, e.MVar)
	if err != nil {
		return nil, err
	}
	krs, err := ev.Eval(e.Key, en, st, cnt)
	if err != nil {
		return nil, err
	}
	var out []Result
	for _, kr := range krs {
		vrs, err := ev.Eval(e.Val, en, kr.Store, kr.Count)
		if err != nil {
			return nil, err
		}
		for _, vr := range vrs {
			q := card.Combine(kr.Quality, vr.Quality)
			var updated *dpattern.Map
			if ev.Mode == Abstract && !e.TrustStrong && omegaAddress(kr.Value, vr.Count) {
				// Weak update: join with the prior contents for this key.
				old, _ := m.Lookup(kr.Value)
				updated = m.Extend(kr.Value, abstract.Join(old, vr.Value))
			} else {
				updated = m.Extend(kr.Value, vr.Value)
			}
			out = append(out, Result{Value: updated, Store: vr.Store, Count: vr.Count, Quality: q})
		}
	}
	return out, nil
}

func omegaAddress(d dpattern.DPattern, cnt *store.Count) bool {
	a, ok := d.(dpattern.Address)
	return ok && cnt.Get(a.ID) == card.Omega
}

func (ev *Evaluator) evalStoreLookup(e *Expr, en *env.Env, st *store.Store, cnt *store.Count) ([]Result, error) {
	krs, err := ev.Eval(e.Key, en, st, cnt)
	if err != nil {
		return nil, err
	}
	var out []Result
	for _, kr := range krs {
		addr, ok := kr.Value.(dpattern.Address)
		if !ok {
			return nil, engineerr.Newf(engineerr.StageExprEval, kr.Value,
				"store-lookup: key is not an address: %v", kr.Value)
		}
		v, found := kr.Store.LookupAddr(addr)
		if !found {
			return nil, engineerr.Newf(engineerr.StageExprEval, addr,
				"store-lookup: unmapped address %v", addr)
		}
		if ev.Mode == Abstract {
			dens := abstract.Denotations(v)
			q := kr.Quality
			if kr.Count.Get(addr.ID) == card.Omega || len(dens) > 1 {
				q = card.May
			}
			for _, den := range dens {
				out = append(out, Result{Value: den, Store: kr.Store, Count: kr.Count, Quality: q})
			}
			continue
		}
		out = append(out, Result{Value: v, Store: kr.Store, Count: kr.Count, Quality: kr.Quality})
	}
	return out, nil
}

func (ev *Evaluator) evalEqual(e *Expr, en *env.Env, st *store.Store, cnt *store.Count) ([]Result, error) {
	lrs, err := ev.Eval(e.L, en, st, cnt)
	if err != nil {
		return nil, err
	}
	var out []Result
	for _, lr := range lrs {
		rrs, err := ev.Eval(e.R, en, lr.Store, lr.Count)
		if err != nil {
			return nil, err
		}
		for _, rr := range rrs {
			q := card.Combine(lr.Quality, rr.Quality)
			if ev.Mode == Concrete {
				eq := dpattern.Equal(lr.Value, rr.Value, rr.Store.Deref)
				out = append(out, Result{Value: dpattern.Bool(eq), Store: rr.Store, Count: rr.Count, Quality: q})
				continue
			}
			switch abstract.EqualQ(lr.Value, rr.Value, rr.Store, rr.Count, ev.oracle()) {
			case card.Must:
				out = append(out, Result{Value: dpattern.Bool(true), Store: rr.Store, Count: rr.Count, Quality: q})
			case card.MustNot:
				out = append(out, Result{Value: dpattern.Bool(false), Store: rr.Store, Count: rr.Count, Quality: q})
			default:
				out = append(out,
					Result{Value: dpattern.Bool(true), Store: rr.Store, Count: rr.Count, Quality: card.May},
					Result{Value: dpattern.Bool(false), Store: rr.Store, Count: rr.Count, Quality: card.May})
			}
		}
	}
	return out, nil
}

func (ev *Evaluator) evalInDom(e *Expr, en *env.Env, st *store.Store, cnt *store.Count) ([]Result, error) {
	m, err := lookupMapVar(en, e.MVar)
	if err != nil {
		return nil, err
	}
	krs, err := ev.Eval(e.Key, en, st, cnt)
	if err != nil {
		return nil, err
	}
	var out []Result
	for _, kr := range krs {
		if ev.Mode == Concrete {
			_, found := concreteMapLookup(m, kr.Value, kr.Store)
			out = append(out, Result{Value: dpattern.Bool(found), Store: kr.Store, Count: kr.Count, Quality: kr.Quality})
			continue
		}
		hit, candidates := abstractMapCandidates(m, kr.Value, kr.Store, kr.Count, ev.oracle())
		switch {
		case hit != nil:
			out = append(out, Result{Value: dpattern.Bool(true), Store: kr.Store, Count: kr.Count, Quality: kr.Quality})
		case len(candidates) > 0:
			out = append(out,
				Result{Value: dpattern.Bool(true), Store: kr.Store, Count: kr.Count, Quality: card.May},
				Result{Value: dpattern.Bool(false), Store: kr.Store, Count: kr.Count, Quality: card.May})
		default:
			out = append(out, Result{Value: dpattern.Bool(false), Store: kr.Store, Count: kr.Count, Quality: kr.Quality})
		}
	}
	return out, nil
}

func (ev *Evaluator) evalInSet(e *Expr, en *env.Env, st *store.Store, cnt *store.Count) ([]Result, error) {
	srs, err := ev.Eval(e.SetE, en, st, cnt)
	if err != nil {
		return nil, err
	}
	var out []Result
	for _, sr := range srs {
		s, ok := sr.Value.(*dpattern.Set)
		if !ok {
			return nil, engineerr.Newf(engineerr.StageExprEval, sr.Value, "in-set: not a set: %v", sr.Value)
		}
		ers, err := ev.Eval(e.Elem, en, sr.Store, sr.Count)
		if err != nil {
			return nil, err
		}
		for _, er := range ers {
			q := card.Combine(sr.Quality, er.Quality)
			if ev.Mode == Concrete {
				found := false
				for _, el := range s.Elements {
					if dpattern.Equal(el, er.Value, er.Store.Deref) {
						found = true
						break
					}
				}
				out = append(out, Result{Value: dpattern.Bool(found), Store: er.Store, Count: er.Count, Quality: q})
				continue
			}
			verdict := card.MustNot
			for _, el := range s.Elements {
				eq := abstract.EqualQ(el, er.Value, er.Store, er.Count, ev.oracle())
				if eq == card.Must {
					verdict = card.Must
					break
				}
				if eq == card.May {
					verdict = card.May
				}
			}
			switch verdict {
			case card.Must:
				out = append(out, Result{Value: dpattern.Bool(true), Store: er.Store, Count: er.Count, Quality: q})
			case card.MustNot:
				out = append(out, Result{Value: dpattern.Bool(false), Store: er.Store, Count: er.Count, Quality: q})
			default:
				out = append(out,
					Result{Value: dpattern.Bool(true), Store: er.Store, Count: er.Count, Quality: card.May},
					Result{Value: dpattern.Bool(false), Store: er.Store, Count: er.Count, Quality: card.May})
			}
		}
	}
	return out, nil
}

func (ev *Evaluator) evalSetUnion(e *Expr, en *env.Env, st *store.Store, cnt *store.Count) ([]Result, error) {
	results := []Result{{Value: dpattern.NewSet(), Store: st, Count: cnt, Quality: card.Must}}
	for _, sub := range e.Exprs {
		var next []Result
		for _, r := range results {
			acc := r.Value.(*dpattern.Set)
			rs, err := ev.Eval(sub, en, r.Store, r.Count)
			if err != nil {
				return nil, err
			}
			for _, sr := range rs {
				s, ok := sr.Value.(*dpattern.Set)
				if !ok {
					return nil, engineerr.Newf(engineerr.StageExprEval, sr.Value, "set-union: not a set: %v", sr.Value)
				}
				next = append(next, Result{Value: acc.Union(s), Store: sr.Store, Count: sr.Count,
					Quality: card.Combine(r.Quality, sr.Quality)})
			}
		}
		results = next
	}
	return results, nil
}

func (ev *Evaluator) evalSetAdd(e *Expr, en *env.Env, st *store.Store, cnt *store.Count) ([]Result, error) {
	srs, err := ev.Eval(e.SetE, en, st, cnt)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(srs))
	for _, sr := range srs {
		if _, ok := sr.Value.(*dpattern.Set); !ok {
			return nil, engineerr.Newf(engineerr.StageExprEval, sr.Value, "set-add: not a set: %v", sr.Value)
		}
		results = append(results, sr)
	}
	for _, sub := range e.Exprs {
		var next []Result
		for _, r := range results {
			acc := r.Value.(*dpattern.Set)
			rs, err := ev.Eval(sub, en, r.Store, r.Count)
			if err != nil {
				return nil, err
			}
			for _, er := range rs {
				next = append(next, Result{Value: acc.Add(er.Value), Store: er.Store, Count: er.Count,
					Quality: card.Combine(r.Quality, er.Quality)})
			}
		}
		results = next
	}
	return results, nil
}

func (ev *Evaluator) evalChoose(e *Expr, en *env.Env, st *store.Store, cnt *store.Count) ([]Result, error) {
	srs, err := ev.Eval(e.SetE, en, st, cnt)
	if err != nil {
		return nil, err
	}
	var out []Result
	for _, sr := range srs {
		s, ok := sr.Value.(*dpattern.Set)
		if !ok {
			return nil, engineerr.Newf(engineerr.StageExprEval, sr.Value, "choose: not a set: %v", sr.Value)
		}
		q := sr.Quality
		if ev.Mode == Abstract && s.Len() > 1 {
			q = card.May
		}
		// One result per member; an empty set prunes the branch.
		for _, el := range s.Elements {
			out = append(out, Result{Value: el, Store: sr.Store, Count: sr.Count, Quality: q})
		}
	}
	return out, nil
}

func (ev *Evaluator) evalAlloc(e *Expr, en *env.Env, st *store.Store, cnt *store.Count) ([]Result, error) {
	tag, err := ev.addressTag(e.AllocSpace)
	if err != nil {
		return nil, err
	}
	if ev.Mode == Concrete {
		// Hints are an abstract-naming input only; evaluate for effect
		// ordering, then discard.
		if e.AllocHint != nil {
			hrs, err := ev.Eval(e.AllocHint, en, st, cnt)
			if err != nil {
				return nil, err
			}
			var out []Result
			for _, hr := range hrs {
				addr := dpattern.NewAddress(e.AllocKind, tag, ev.Alloc.Fresh())
				out = append(out, Result{Value: addr, Store: hr.Store, Count: hr.Count, Quality: hr.Quality})
			}
			return out, nil
		}
		addr := dpattern.NewAddress(e.AllocKind, tag, ev.Alloc.Fresh())
		return []Result{{Value: addr, Store: st, Count: cnt, Quality: card.Must}}, nil
	}

	// Abstract allocation is pure: the identifier is deterministic in
	// (rule name, allocation site, hint), so re-running a rule
	// re-derives the same abstract address and the count saturates.
	if e.AllocHint != nil {
		hrs, err := ev.Eval(e.AllocHint, en, st, cnt)
		if err != nil {
			return nil, err
		}
		var out []Result
		for _, hr := range hrs {
			id := abstractAddrID(ev.RuleName, e.AllocSite, hr.Value)
			addr := dpattern.NewAddress(e.AllocKind, tag, id)
			out = append(out, Result{Value: addr, Store: hr.Store, Count: hr.Count.Bump(id), Quality: hr.Quality})
		}
		return out, nil
	}
	id := abstractAddrID(ev.RuleName, e.AllocSite, nil)
	addr := dpattern.NewAddress(e.AllocKind, tag, id)
	return []Result{{Value: addr, Store: st, Count: cnt.Bump(id), Quality: card.Must}}, nil
}

func abstractAddrID(ruleName, site string, hint dpattern.DPattern) uint64 {
	h := dpattern.HashWithTag(0x7f, []byte(ruleName))
	h = dpattern.HashBytes(h, []byte{0})
	h = dpattern.HashBytes(h, []byte(site))
	if hint != nil {
		hh := hint.Hash()
		var buf [8]byte
		for i := 0; i < 8; i++ {
			buf[i] = byte(hh >> (8 * i))
		}
		h = dpattern.HashBytes(h, buf[:])
	}
	return h
}

func (ev *Evaluator) addressTag(spaceName string) (string, error) {
	sp, err := ev.Lang.Lookup(spaceName)
	if err != nil {
		return "", err
	}
	if sp.Kind != space.KindAddress {
		return "", engineerr.Newf(engineerr.StageExprEval, spaceName,
			"alloc: %q is not an address space", spaceName)
	}
	return sp.Address.Tag, nil
}

func (ev *Evaluator) oracle() abstract.SpecialEqualFn {
	return space.SpecialEqualOracle(ev.Lang)
}

// rawStoreValue exposes the whole store as a raw dictionary from space
// tag to partition dictionary.
func rawStoreValue(st *store.Store) dpattern.DPattern {
	var entries []dpattern.MapEntry
	for _, tag := range st.Tags() {
		entries = append(entries, dpattern.MapEntry{
			Key:   dpattern.Symbol(tag),
			Value: rawPartitionValue(st, tag),
		})
	}
	return dpattern.NewMap(dpattern.FormRaw, entries...)
}

// rawPartitionValue exposes one partition as a raw dictionary from egal
// address to stored value.
func rawPartitionValue(st *store.Store, tag string) dpattern.DPattern {
	var entries []dpattern.MapEntry
	for id, v := range st.Partition(tag) {
		entries = append(entries, dpattern.MapEntry{
			Key:   dpattern.NewAddress(dpattern.Egal, tag, id),
			Value: v,
		})
	}
	return dpattern.NewMap(dpattern.FormRaw, entries...)
}
