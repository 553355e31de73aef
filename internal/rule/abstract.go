package rule

import (
	"sort"

	"github.com/dkellis-lab/semlab/internal/dpattern"
	"github.com/dkellis-lab/semlab/internal/env"
	"github.com/dkellis-lab/semlab/internal/pattern"
	"github.com/dkellis-lab/semlab/internal/store"
)

// AbstractApplyRule applies one rule to an abstract state: the abstract
// match fans out into quality-tagged environments, the binding list
// threads both store and count, and the widening policy runs over the
// count delta after the firing.
func (sys *System) AbstractApplyRule(r *Rule, s store.AbstractState) ([]store.AbstractState, error) {
	mrs, err := pattern.MatchAbstract(sys.Lang, r.LHS, s.Term, env.Empty(), s.Store, s.Count)
	if err != nil {
		return nil, err
	}
	ev := sys.evaluator(r.Name)
	var out []store.AbstractState
	for _, mr := range mrs {
		brs, err := ev.EvalBindings(r.Bindings, mr.Env, s.Store, s.Count)
		if err != nil {
			return nil, err
		}
		for _, br := range brs {
			term, err := pattern.Instantiate(r.RHS, br.Env)
			if err != nil {
				return nil, err
			}
			cnt := sys.Widen.AfterRule(r.Name, s.Count, br.Count)
			out = append(out, store.AbstractState{Term: term, Store: br.Store, Count: cnt})
		}
	}
	return out, nil
}

// AbstractApply is the abstract one-step reduction relation: the union
// over rules, deduplicated as a set.
func (sys *System) AbstractApply(s store.AbstractState) ([]store.AbstractState, error) {
	var out []store.AbstractState
	for _, r := range sys.Rules {
		ss, err := sys.AbstractApplyRule(r, s)
		if err != nil {
			return nil, err
		}
		for _, succ := range ss {
			if !containsAbstractState(out, succ) {
				out = append(out, succ)
			}
		}
	}
	return out, nil
}

// AbstractExploration is the abstract analogue of Exploration.
type AbstractExploration struct {
	Normal  []store.AbstractState
	Visited []store.AbstractState
}

// AbstractApplyStarMemo explores the abstract reduction graph with a
// visited set over (term, store, count). Because value domains are finite
// under abstraction and counts saturate at ω, exploration terminates
// without a budget for trust-recursive languages; budget still bounds it
// defensively (0 means unbounded).
func (sys *System) AbstractApplyStarMemo(s store.AbstractState, budget int) (*AbstractExploration, error) {
	ex := &AbstractExploration{}
	visited := map[uint64][]store.AbstractState{}
	seen := func(st store.AbstractState) bool {
		for _, o := range visited[abstractStateHash(st)] {
			if abstractStatesEqual(st, o) {
				return true
			}
		}
		return false
	}
	work := []store.AbstractState{s}
	steps := 0
	for len(work) > 0 {
		if budget > 0 && steps >= budget {
			return ex, ErrBudgetExhausted
		}
		cur := work[len(work)-1]
		work = work[:len(work)-1]
		if seen(cur) {
			continue
		}
		h := abstractStateHash(cur)
		visited[h] = append(visited[h], cur)
		ex.Visited = append(ex.Visited, cur)
		steps++
		succ, err := sys.AbstractApply(cur)
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

func containsAbstractState(ss []store.AbstractState, s store.AbstractState) bool {
	for _, o := range ss {
		if abstractStatesEqual(s, o) {
			return true
		}
	}
	return false
}

func abstractStateHash(s store.AbstractState) uint64 {
	h := stateHash(store.State{Term: s.Term, Store: s.Store})
	snap := s.Count.Snapshot()
	ids := make([]uint64, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		var buf [9]byte
		for i := 0; i < 8; i++ {
			buf[i] = byte(id >> (8 * i))
		}
		buf[8] = byte(snap[id])
		h = dpattern.HashBytes(h, buf[:])
	}
	return h
}

func abstractStatesEqual(a, b store.AbstractState) bool {
	if !statesEqual(store.State{Term: a.Term, Store: a.Store}, store.State{Term: b.Term, Store: b.Store}) {
		return false
	}
	as, bs := a.Count.Snapshot(), b.Count.Snapshot()
	if len(as) != len(bs) {
		return false
	}
	for id, av := range as {
		if bv, ok := bs[id]; !ok || av != bv {
			return false
		}
	}
	return true
}
