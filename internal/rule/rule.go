// Package rule implements the rule driver, the reduction relation
// with its memoized transitive closure, and the meta-function
// runtime, in both concrete and abstract modes.
//
// The driver is a top-level evaluate-then-thread-state loop over a
// worklist of states.
package rule

import (
	"github.com/dkellis-lab/semlab/internal/abstract"
	"github.com/dkellis-lab/semlab/internal/card"
	"github.com/dkellis-lab/semlab/internal/dpattern"
	"github.com/dkellis-lab/semlab/internal/engineerr"
	"github.com/dkellis-lab/semlab/internal/env"
	"github.com/dkellis-lab/semlab/internal/expr"
	"github.com/dkellis-lab/semlab/internal/pattern"
	"github.com/dkellis-lab/semlab/internal/space"
	"github.com/dkellis-lab/semlab/internal/store"
)

// Rule is one reduction-relation row: match lhs, run the binding
// list, instantiate rhs.
type Rule struct {
	Name     string
	LHS      pattern.Pattern
	RHS      pattern.Pattern
	Bindings []expr.BindingForm
}

// MetaFunction is a named, rule-defined function callable from
// expressions, with optional trusted implementations that bypass
// the rules entirely in their respective modes.
type MetaFunction struct {
	Name  string
	Rules []*Rule

	// ConcreteImpl, when non-nil, is invoked directly in concrete mode,
	// receiving the store and the instantiated argument.
	ConcreteImpl func(st *store.Store, arg dpattern.DPattern) (dpattern.DPattern, *store.Store, error)

	// AbstractImpl, when non-nil, is invoked directly in abstract mode.
	AbstractImpl func(st *store.Store, cnt *store.Count, arg dpattern.DPattern) ([]expr.Result, error)
}

// System bundles a language with its rules and meta-functions and fixes
// the evaluation mode. The zero value is unusable; construct with
// NewSystem.
type System struct {
	Lang  *space.Language
	Rules []*Rule
	Meta  map[string]*MetaFunction
	Mode  expr.Mode

	// Alloc is the per-run concrete allocation counter — scoped
	// here, not process-global, so concurrent runs and tests never share.
	Alloc *store.AllocCounter

	// Widen is the abstract widening policy (applied after each abstract
	// rule firing). Defaults to abstract.DefaultPolicy.
	Widen abstract.Policy
}

func NewSystem(lang *space.Language, mode expr.Mode, rules ...*Rule) *System {
	return &System{
		Lang:  lang,
		Rules: rules,
		Meta:  map[string]*MetaFunction{},
		Mode:  mode,
		Alloc: store.NewAllocCounter(),
		Widen: abstract.DefaultPolicy{},
	}
}

// Define registers a meta-function.
func (sys *System) Define(mf *MetaFunction) {
	sys.Meta[mf.Name] = mf
}

func (sys *System) evaluator(ruleName string) *expr.Evaluator {
	return &expr.Evaluator{
		Lang:     sys.Lang,
		Mode:     sys.Mode,
		Alloc:    sys.Alloc,
		Meta:     sys,
		RuleName: ruleName,
	}
}

// CallMeta implements expr.MetaCaller: trusted implementations are
// invoked directly; otherwise the first rule whose application yields a
// non-empty result set wins. The store threads through exactly as in rule
// application.
func (sys *System) CallMeta(name string, arg dpattern.DPattern, st *store.Store, cnt *store.Count) ([]expr.Result, error) {
	mf, ok := sys.Meta[name]
	if !ok {
		return nil, engineerr.Newf(engineerr.StageMfEval, name, "unknown meta-function %q", name)
	}
	if sys.Mode == expr.Concrete && mf.ConcreteImpl != nil {
		v, st2, err := mf.ConcreteImpl(st, arg)
		if err != nil {
			return nil, err
		}
		return []expr.Result{{Value: v, Store: st2, Count: cnt, Quality: card.Must}}, nil
	}
	if sys.Mode == expr.Abstract && mf.AbstractImpl != nil {
		return mf.AbstractImpl(st, cnt, arg)
	}
	for _, r := range mf.Rules {
		rs, err := sys.applyMetaRule(r, arg, st, cnt)
		if err != nil {
			return nil, err
		}
		if len(rs) > 0 {
			return rs, nil
		}
	}
	return nil, engineerr.Newf(engineerr.StageMfEval, arg,
		"meta-function %q: no rule matched %v", name, arg)
}

func (sys *System) applyMetaRule(r *Rule, arg dpattern.DPattern, st *store.Store, cnt *store.Count) ([]expr.Result, error) {
	ev := sys.evaluator(r.Name)
	if sys.Mode == expr.Concrete {
		en, ok, err := pattern.Match(sys.Lang, r.LHS, arg, env.Empty(), st)
		if err != nil || !ok {
			return nil, err
		}
		brs, err := ev.EvalBindings(r.Bindings, en, st, cnt)
		if err != nil {
			return nil, err
		}
		var out []expr.Result
		for _, br := range brs {
			v, err := pattern.Instantiate(r.RHS, br.Env)
			if err != nil {
				return nil, err
			}
			out = append(out, expr.Result{Value: v, Store: br.Store, Count: br.Count, Quality: br.Quality})
		}
		return out, nil
	}

	mrs, err := pattern.MatchAbstract(sys.Lang, r.LHS, arg, env.Empty(), st, cnt)
	if err != nil {
		return nil, err
	}
	var out []expr.Result
	for _, mr := range mrs {
		brs, err := ev.EvalBindings(r.Bindings, mr.Env, st, cnt)
		if err != nil {
			return nil, err
		}
		for _, br := range brs {
			v, err := pattern.Instantiate(r.RHS, br.Env)
			if err != nil {
				return nil, err
			}
			out = append(out, expr.Result{Value: v, Store: br.Store, Count: br.Count,
				Quality: card.Combine(mr.Quality, br.Quality)})
		}
	}
	return out, nil
}

var _ expr.MetaCaller = (*System)(nil)
