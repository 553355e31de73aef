package sexp

import (
	"strings"

	"github.com/dkellis-lab/semlab/internal/engineerr"
	"github.com/dkellis-lab/semlab/internal/pattern"
	"github.com/dkellis-lab/semlab/internal/space"
)

// ParsePattern reads a matching pattern in the same tree syntax terms
// use, extended with variable markers:
//
//	?x          binding variable
//	?x:Space    binding variable with a membership check
//	!x          reference variable
//	(Head p …)  variant pattern, Head resolved through the language
//	other atom  atom pattern
//
// Used by the YAML language bundles (internal/langcfg) to express rule
// left- and right-hand sides as strings.
func ParsePattern(input string, l *space.Language) (pattern.Pattern, error) {
	n, err := readTree(input)
	if err != nil {
		return pattern.Pattern{}, err
	}
	return patternOf(n, l)
}

func patternOf(n *node, l *space.Language) (pattern.Pattern, error) {
	switch n.kind {
	case nAtom:
		switch {
		case strings.HasPrefix(n.text, "?"):
			body := n.text[1:]
			if body == "" {
				return pattern.Pattern{}, engineerr.New(engineerr.StageParse, nil, "empty binding variable")
			}
			if i := strings.Index(body, ":"); i > 0 {
				return pattern.B(body[:i], body[i+1:]), nil
			}
			return pattern.B(body, ""), nil
		case strings.HasPrefix(n.text, "!"):
			if len(n.text) == 1 {
				return pattern.Pattern{}, engineerr.New(engineerr.StageParse, nil, "empty reference variable")
			}
			return pattern.R(n.text[1:]), nil
		default:
			v, err := atomValue(n.text)
			if err != nil {
				return pattern.Pattern{}, err
			}
			return pattern.Atom(v), nil
		}

	case nList:
		if len(n.children) == 0 || n.children[0].kind != nAtom {
			return pattern.Pattern{}, engineerr.New(engineerr.StageParse, nil, "variant pattern needs a symbol head")
		}
		head := n.children[0].text
		desc, ok := l.Variant(head)
		if !ok {
			return pattern.Pattern{}, engineerr.Newf(engineerr.StageParse, head,
				"unknown variant head %q", head)
		}
		if len(n.children)-1 != desc.Arity() {
			return pattern.Pattern{}, engineerr.Newf(engineerr.StageParse, head,
				"variant %q expects %d components, got %d", head, desc.Arity(), len(n.children)-1)
		}
		children := make([]pattern.Pattern, len(n.children)-1)
		for i, c := range n.children[1:] {
			p, err := patternOf(c, l)
			if err != nil {
				return pattern.Pattern{}, err
			}
			children[i] = p
		}
		return pattern.V(desc, children...), nil

	default:
		return pattern.Pattern{}, engineerr.New(engineerr.StageParse, nil,
			"dictionary and set literals are not pattern syntax")
	}
}
