// Package env implements the matcher/evaluator's Environment:
// a finite, immutable mapping from pattern-variable name to DPattern,
// persistent across a match the same way internal/store's Store is
// persistent across a reduction.
//
// A flat persistent map rather than a scope chain — the matcher never
// needs lexical nesting, only "extend with one more binding and hand the
// result to the next match step".
package env

import "github.com/dkellis-lab/semlab/internal/dpattern"

// Env is an immutable mapping from pattern-variable name to DPattern.
type Env struct {
	bindings map[string]dpattern.DPattern
}

// Empty returns an environment with no bindings.
func Empty() *Env {
	return &Env{bindings: map[string]dpattern.DPattern{}}
}

// Lookup returns the value bound to name, if any.
func (e *Env) Lookup(name string) (dpattern.DPattern, bool) {
	if e == nil {
		return nil, false
	}
	v, ok := e.bindings[name]
	return v, ok
}

// Has reports whether name is bound.
func (e *Env) Has(name string) bool {
	_, ok := e.Lookup(name)
	return ok
}

// Extend returns a new Env with name bound to v, sharing every other
// binding with e (persistent extension; e itself is never mutated).
func (e *Env) Extend(name string, v dpattern.DPattern) *Env {
	out := make(map[string]dpattern.DPattern, len(e.bindings)+1)
	for k, bv := range e.bindings {
		out[k] = bv
	}
	out[name] = v
	return &Env{bindings: out}
}

// Names returns every bound pattern-variable name, unordered.
func (e *Env) Names() []string {
	out := make([]string, 0, len(e.bindings))
	for k := range e.bindings {
		out = append(out, k)
	}
	return out
}
