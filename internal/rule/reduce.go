package rule

import (
	"errors"
	"sort"

	"github.com/dkellis-lab/semlab/internal/dpattern"
	"github.com/dkellis-lab/semlab/internal/env"
	"github.com/dkellis-lab/semlab/internal/pattern"
	"github.com/dkellis-lab/semlab/internal/store"
)

// ErrBudgetExhausted reports that a fixed-point iteration hit its step
// budget before reaching all normal forms — the caller's timeout
// mechanism: callers impose timeouts by bounding the fixed-point
// iteration.
var ErrBudgetExhausted = errors.New("reduction budget exhausted")

// ApplyRule applies one rule to a concrete state: match the LHS
// under an empty environment, evaluate the binding list threading store
// updates, and instantiate the RHS per surviving branch.
func (sys *System) ApplyRule(r *Rule, s store.State) ([]store.State, error) {
	en, ok, err := pattern.Match(sys.Lang, r.LHS, s.Term, env.Empty(), s.Store)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	brs, err := sys.evaluator(r.Name).EvalBindings(r.Bindings, en, s.Store, nil)
	if err != nil {
		return nil, err
	}
	var out []store.State
	for _, br := range brs {
		term, err := pattern.Instantiate(r.RHS, br.Env)
		if err != nil {
			return nil, err
		}
		out = append(out, store.State{Term: term, Store: br.Store})
	}
	return out, nil
}

// Apply is the one-step reduction relation: the union over rules
// of their applications, deduplicated as a set. Errors from any rule
// terminate the whole application.
func (sys *System) Apply(s store.State) ([]store.State, error) {
	var out []store.State
	for _, r := range sys.Rules {
		ss, err := sys.ApplyRule(r, s)
		if err != nil {
			return nil, err
		}
		for _, succ := range ss {
			if !containsState(out, succ) {
				out = append(out, succ)
			}
		}
	}
	return out, nil
}

// ApplyStar iterates Apply to fixed point: a state whose image is
// empty is a normal form and joins the result set. No visited tracking —
// a cyclic reduction only terminates via the step budget (0 means
// unbounded). budget counts Apply invocations.
func (sys *System) ApplyStar(s store.State, budget int) ([]store.State, error) {
	var normal []store.State
	work := []store.State{s}
	steps := 0
	for len(work) > 0 {
		if budget > 0 && steps >= budget {
			return normal, ErrBudgetExhausted
		}
		cur := work[len(work)-1]
		work = work[:len(work)-1]
		steps++
		succ, err := sys.Apply(cur)
		if err != nil {
			return nil, err
		}
		if len(succ) == 0 {
			if !containsState(normal, cur) {
				normal = append(normal, cur)
			}
			continue
		}
		work = append(work, succ...)
	}
	return normal, nil
}

// Exploration is the result of a memoized closure: the normal
// forms reached, plus every state visited exactly once.
type Exploration struct {
	Normal  []store.State
	Visited []store.State
}

// ApplyStarMemo is the memoized transitive closure: a visited set
// keyed by value equality over (term, store) turns revisits into ∅,
// giving a complete exploration without revisits even on cyclic
// reduction graphs. The visited set is scoped to this invocation.
func (sys *System) ApplyStarMemo(s store.State, budget int) (*Exploration, error) {
	ex := &Exploration{}
	visited := newStateSet()
	work := []store.State{s}
	steps := 0
	for len(work) > 0 {
		if budget > 0 && steps >= budget {
			return ex, ErrBudgetExhausted
		}
		cur := work[len(work)-1]
		work = work[:len(work)-1]
		if visited.has(cur) {
			continue
		}
		visited.add(cur)
		ex.Visited = append(ex.Visited, cur)
		steps++
		succ, err := sys.Apply(cur)
		if err != nil {
			return nil, err
		}
		if len(succ) == 0 {
			ex.Normal = append(ex.Normal, cur)
			continue
		}
		work = append(work, succ...)
	}
	return ex, nil
}

//-----------------------------------------------------------------------------
// State identity
//-----------------------------------------------------------------------------

// stateSet is the memoized closure's visited set: hash buckets confirmed
// by full value equality, reusing internal/dpattern's FNV support the way
// the matcher's map fast path does.
type stateSet struct {
	buckets map[uint64][]store.State
}

func newStateSet() *stateSet {
	return &stateSet{buckets: map[uint64][]store.State{}}
}

func (ss *stateSet) has(s store.State) bool {
	for _, o := range ss.buckets[stateHash(s)] {
		if statesEqual(s, o) {
			return true
		}
	}
	return false
}

func (ss *stateSet) add(s store.State) {
	h := stateHash(s)
	ss.buckets[h] = append(ss.buckets[h], s)
}

func containsState(ss []store.State, s store.State) bool {
	for _, o := range ss {
		if statesEqual(s, o) {
			return true
		}
	}
	return false
}

func stateHash(s store.State) uint64 {
	h := s.Term.Hash()
	return h ^ storeHash(s.Store)
}

// storeHash folds partitions in sorted order so equal stores hash
// equally regardless of insertion history.
func storeHash(st *store.Store) uint64 {
	tags := st.Tags()
	sort.Strings(tags)
	h := dpattern.HashWithTag(0x53, nil)
	for _, tag := range tags {
		h = dpattern.HashBytes(h, []byte(tag))
		p := st.Partition(tag)
		ids := make([]uint64, 0, len(p))
		for id := range p {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			var buf [8]byte
			for i := 0; i < 8; i++ {
				buf[i] = byte(id >> (8 * i))
			}
			h = dpattern.HashBytes(h, buf[:])
			vh := p[id].Hash()
			for i := 0; i < 8; i++ {
				buf[i] = byte(vh >> (8 * i))
			}
			h = dpattern.HashBytes(h, buf[:])
		}
	}
	return h
}

// statesEqual is value equality over (term, store): terms compare
// syntactically (addresses by identity — two states whose terms alias
// different addresses are different exploration nodes even if the
// dereferenced contents agree), stores compare entry-wise.
func statesEqual(a, b store.State) bool {
	if !dpattern.Equal(a.Term, b.Term, nil) {
		return false
	}
	return storesEqual(a.Store, b.Store)
}

func storesEqual(a, b *store.Store) bool {
	at, bt := a.Tags(), b.Tags()
	if len(at) != len(bt) {
		return false
	}
	sort.Strings(at)
	sort.Strings(bt)
	for i := range at {
		if at[i] != bt[i] {
			return false
		}
	}
	for _, tag := range at {
		ap, bp := a.Partition(tag), b.Partition(tag)
		if len(ap) != len(bp) {
			return false
		}
		for id, av := range ap {
			bv, ok := bp[id]
			if !ok || !dpattern.Equal(av, bv, nil) {
				return false
			}
		}
	}
	return true
}
