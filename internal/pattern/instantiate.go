package pattern

import (
	"github.com/dkellis-lab/semlab/internal/dpattern"
	"github.com/dkellis-lab/semlab/internal/engineerr"
	"github.com/dkellis-lab/semlab/internal/env"
)

// Instantiate builds the DPattern a pattern denotes under an environment:
// the RHS half of rule application and the Term expression.
// Every variable must be bound — an unbound variable at instantiation is a
// structural error, not a silent failure.
func Instantiate(p Pattern, en *env.Env) (dpattern.DPattern, error) {
	switch p.Kind {
	case KindBindingVar, KindRefVar:
		v, ok := en.Lookup(p.VarName)
		if !ok {
			return nil, engineerr.Newf(engineerr.StageExprEval, p.VarName,
				"pattern variable %q unbound at instantiation", p.VarName)
		}
		return v, nil

	case KindAtom:
		return p.Atom, nil

	case KindVariant:
		if len(p.Children) != p.Variant.Arity() {
			return nil, engineerr.Newf(engineerr.StageExprEval, p.Variant.Name,
				"variant %q instantiated with %d children, arity is %d",
				p.Variant.Name, len(p.Children), p.Variant.Arity())
		}
		children := make([]dpattern.DPattern, len(p.Children))
		for i, cp := range p.Children {
			c, err := Instantiate(cp, en)
			if err != nil {
				return nil, err
			}
			children[i] = c
		}
		return dpattern.NewVariant(p.Variant, children...), nil

	case KindSetWith:
		// Constructive dual of destructuring: the remainder set plus the
		// instantiated element.
		if p.Rest == "" {
			return nil, engineerr.New(engineerr.StageExprEval, nil,
				"set-with pattern without a remainder cannot be instantiated")
		}
		restV, ok := en.Lookup(p.Rest)
		if !ok {
			return nil, engineerr.Newf(engineerr.StageExprEval, p.Rest,
				"pattern variable %q unbound at instantiation", p.Rest)
		}
		rest, ok := restV.(*dpattern.Set)
		if !ok {
			return nil, engineerr.Newf(engineerr.StageExprEval, restV,
				"set-with remainder %q is bound to a non-set", p.Rest)
		}
		e, err := Instantiate(*p.Elem, en)
		if err != nil {
			return nil, err
		}
		return rest.Add(e), nil

	case KindMapWith:
		if p.Rest == "" {
			return nil, engineerr.New(engineerr.StageExprEval, nil,
				"map-with pattern without a remainder cannot be instantiated")
		}
		restV, ok := en.Lookup(p.Rest)
		if !ok {
			return nil, engineerr.Newf(engineerr.StageExprEval, p.Rest,
				"pattern variable %q unbound at instantiation", p.Rest)
		}
		rest, ok := restV.(*dpattern.Map)
		if !ok {
			return nil, engineerr.Newf(engineerr.StageExprEval, restV,
				"map-with remainder %q is bound to a non-map", p.Rest)
		}
		k, err := Instantiate(*p.Key, en)
		if err != nil {
			return nil, err
		}
		v, err := Instantiate(*p.Val, en)
		if err != nil {
			return nil, err
		}
		return rest.Extend(k, v), nil

	default:
		return nil, engineerr.Newf(engineerr.StageExprEval, p, "pattern has unknown kind %d", p.Kind)
	}
}
