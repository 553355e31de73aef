package space

import (
	"github.com/dkellis-lab/semlab/internal/card"
	"github.com/dkellis-lab/semlab/internal/dpattern"
)

// SpecialEqualOracle adapts a language's external spaces into the
// equality-oracle shape the abstract equality check consumes
// (abstract.SpecialEqualFn): two external values of the same space with a
// declared oracle are compared by that oracle; the bool reports whether
// one applied.
func SpecialEqualOracle(l *Language) func(a, b *dpattern.External) (card.Quality, bool) {
	return func(a, b *dpattern.External) (card.Quality, bool) {
		if a.SpaceName != b.SpaceName {
			return card.MustNot, true
		}
		sp, ok := l.Spaces[a.SpaceName]
		if !ok || sp.Kind != KindExternal || sp.External.SpecialEqual == nil {
			return card.MustNot, false
		}
		return sp.External.SpecialEqual(a, b), true
	}
}
