package expr

import (
	"github.com/dkellis-lab/semlab/internal/abstract"
	"github.com/dkellis-lab/semlab/internal/card"
	"github.com/dkellis-lab/semlab/internal/dpattern"
	"github.com/dkellis-lab/semlab/internal/engineerr"
	"github.com/dkellis-lab/semlab/internal/env"
	"github.com/dkellis-lab/semlab/internal/pattern"
	"github.com/dkellis-lab/semlab/internal/store"
)

// BindingResult is one surviving branch of a binding list: the
// extended environment plus the threaded store/count and the branch's
// accumulated quality.
type BindingResult struct {
	Env     *env.Env
	Store   *store.Store
	Count   *store.Count
	Quality card.Quality
}

// EvalBindings evaluates a binding list in textual order, used by
// Let bodies and rule side conditions. Each form's effects thread
// into subsequent forms; failed matches and falsy When conditions prune
// their branch silently.
func (ev *Evaluator) EvalBindings(bindings []BindingForm, en *env.Env, st *store.Store, cnt *store.Count) ([]BindingResult, error) {
	results := []BindingResult{{Env: en, Store: st, Count: cnt, Quality: card.Must}}
	for _, b := range bindings {
		var next []BindingResult
		for _, br := range results {
			rs, err := ev.evalBindingForm(b, br)
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

func (ev *Evaluator) evalBindingForm(b BindingForm, br BindingResult) ([]BindingResult, error) {
	switch b.Kind {
	case BindPat:
		rs, err := ev.Eval(b.Expr, br.Env, br.Store, br.Count)
		if err != nil {
			return nil, err
		}
		var out []BindingResult
		for _, r := range rs {
			q := card.Combine(br.Quality, r.Quality)
			if ev.Mode == Concrete {
				en2, ok, err := pattern.Match(ev.Lang, b.Pat, r.Value, br.Env, r.Store)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
				out = append(out, BindingResult{Env: en2, Store: r.Store, Count: r.Count, Quality: q})
				continue
			}
			mrs, err := pattern.MatchAbstract(ev.Lang, b.Pat, r.Value, br.Env, r.Store, r.Count)
			if err != nil {
				return nil, err
			}
			for _, mr := range mrs {
				out = append(out, BindingResult{Env: mr.Env, Store: r.Store, Count: r.Count,
					Quality: card.Combine(q, mr.Quality)})
			}
		}
		return out, nil

	case BindStoreExtend:
		krs, err := ev.Eval(b.KeyE, br.Env, br.Store, br.Count)
		if err != nil {
			return nil, err
		}
		var out []BindingResult
		for _, kr := range krs {
			addr, ok := kr.Value.(dpattern.Address)
			if !ok {
				return nil, engineerr.Newf(engineerr.StageExprEval, kr.Value,
					"store-extend: key is not an address: %v", kr.Value)
			}
			vrs, err := ev.Eval(b.ValE, br.Env, kr.Store, kr.Count)
			if err != nil {
				return nil, err
			}
			for _, vr := range vrs {
				q := card.Combine(br.Quality, card.Combine(kr.Quality, vr.Quality))
				st2 := writeStore(ev.Mode, vr.Store, vr.Count, addr, vr.Value, b.TrustStrong)
				out = append(out, BindingResult{Env: br.Env, Store: st2, Count: vr.Count, Quality: q})
			}
		}
		return out, nil

	case BindWhen:
		rs, err := ev.Eval(b.Expr, br.Env, br.Store, br.Count)
		if err != nil {
			return nil, err
		}
		var out []BindingResult
		for _, r := range rs {
			if !truthy(r.Value) {
				continue
			}
			out = append(out, BindingResult{Env: br.Env, Store: r.Store, Count: r.Count,
				Quality: card.Combine(br.Quality, r.Quality)})
		}
		return out, nil

	default:
		return nil, engineerr.Newf(engineerr.StageExprEval, b, "binding form has unknown kind %d", b.Kind)
	}
}

// writeStore applies the update policy: strong (overwrite) at
// cardinality 1 or under trust-strong?, weak (join with prior contents)
// at ω in abstract mode.
func writeStore(mode Mode, st *store.Store, cnt *store.Count, addr dpattern.Address, v dpattern.DPattern, trustStrong bool) *store.Store {
	if mode == Abstract && !trustStrong && cnt.Get(addr.ID) == card.Omega {
		old, _ := st.LookupAddr(addr)
		return st.SetAddr(addr, abstract.Join(old, v))
	}
	return st.SetAddr(addr, v)
}
