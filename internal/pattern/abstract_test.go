package pattern

import (
	"testing"

	"github.com/dkellis-lab/semlab/internal/abstract"
	"github.com/dkellis-lab/semlab/internal/card"
	"github.com/dkellis-lab/semlab/internal/dpattern"
	"github.com/dkellis-lab/semlab/internal/env"
	"github.com/dkellis-lab/semlab/internal/store"
)

func TestMatchAbstractSingleDenotationIsMust(t *testing.T) {
	l := lambdaLanguage(t)
	varD := mustVariant(t, l, "Var")

	term := dpattern.NewVariant(varD, dpattern.Symbol("x"))
	rs, err := MatchAbstract(l, V(varD, B("n", "")), term, env.Empty(), store.Empty(), store.EmptyCount())
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(rs) != 1 || rs[0].Quality != card.Must {
		t.Fatalf("expected one must result, got %v", rs)
	}
}

func TestMatchAbstractOmegaAddressFansOut(t *testing.T) {
	l := lambdaLanguage(t)
	varD := mustVariant(t, l, "Var")

	// An omega address whose entry joined two denotations.
	addr := dpattern.NewAddress(dpattern.Structural, "A", 1)
	joined := abstract.Join(
		dpattern.NewVariant(varD, dpattern.Symbol("p")),
		dpattern.NewVariant(varD, dpattern.Symbol("q")))
	st := store.Empty().SetAddr(addr, joined)
	cnt := store.EmptyCount().Bump(1).Bump(1)

	rs, err := MatchAbstract(l, V(varD, B("n", "")), addr, env.Empty(), st, cnt)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(rs) != 2 {
		t.Fatalf("expected 2 environments, got %d", len(rs))
	}
	seen := map[string]bool{}
	for _, r := range rs {
		if r.Quality != card.May {
			t.Fatalf("omega fan-out must be tagged may, got %v", r.Quality)
		}
		n, _ := r.Env.Lookup("n")
		seen[string(n.(dpattern.Symbol))] = true
	}
	if !seen["p"] || !seen["q"] {
		t.Fatalf("expected both denotations bound, saw %v", seen)
	}
}

func TestMatchAbstractQualityCollapse(t *testing.T) {
	l := lambdaLanguage(t)
	appD := mustVariant(t, l, "App")
	varD := mustVariant(t, l, "Var")

	// First child matches through an omega address (may), second is exact
	// (must): the whole match collapses to may.
	addr := dpattern.NewAddress(dpattern.Structural, "A", 1)
	st := store.Empty().SetAddr(addr, dpattern.NewVariant(varD, dpattern.Symbol("p")))
	cnt := store.EmptyCount().Bump(1).Bump(1)

	term := dpattern.NewVariant(appD, addr, dpattern.NewVariant(varD, dpattern.Symbol("q")))
	rs, err := MatchAbstract(l, V(appD, V(varD, B("a", "")), V(varD, B("b", ""))), term, env.Empty(), st, cnt)
	if err != nil || len(rs) != 1 {
		t.Fatalf("expected one result, got %v err=%v", rs, err)
	}
	if rs[0].Quality != card.May {
		t.Fatalf("quality must collapse at the first may step, got %v", rs[0].Quality)
	}
}

func TestMatchAbstractSetWithFansOverChoices(t *testing.T) {
	l := lambdaLanguage(t)
	s := dpattern.NewSet(dpattern.Int(1), dpattern.Int(2), dpattern.Int(3))

	rs, err := MatchAbstract(l, SetWith(B("e", ""), "rest"), s, env.Empty(), store.Empty(), store.EmptyCount())
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(rs) != 3 {
		t.Fatalf("expected one environment per element choice, got %d", len(rs))
	}
	for _, r := range rs {
		if r.Quality != card.May {
			t.Fatalf("multi-element choice is may, got %v", r.Quality)
		}
		rest, _ := r.Env.Lookup("rest")
		if rest.(*dpattern.Set).Len() != 2 {
			t.Fatalf("remainder must drop exactly the chosen element")
		}
	}
}

func TestMatchQuantifiers(t *testing.T) {
	l := lambdaLanguage(t)
	varD := mustVariant(t, l, "Var")

	vs := dpattern.NewSet(
		dpattern.NewVariant(varD, dpattern.Symbol("x")),
		dpattern.NewVariant(varD, dpattern.Symbol("y")))

	// Exists: one result per element.
	rs, err := MatchAbstract(l, Quantified(QuantExists, V(varD, B("n", ""))), vs,
		env.Empty(), store.Empty(), store.EmptyCount())
	if err != nil || len(rs) != 2 {
		t.Fatalf("exists: expected 2 results, got %v err=%v", rs, err)
	}

	// ForAll with a shape every element satisfies.
	rs, err = MatchAbstract(l, Quantified(QuantForAll, V(varD, B("n", ""))), vs,
		env.Empty(), store.Empty(), store.EmptyCount())
	// The non-linear binder n cannot agree across x and y.
	if err != nil || len(rs) != 0 {
		t.Fatalf("forall with disagreeing binder should fail, got %v err=%v", rs, err)
	}

	same := dpattern.NewSet(dpattern.NewVariant(varD, dpattern.Symbol("x")))
	rs, err = MatchAbstract(l, Quantified(QuantForAll, V(varD, B("n", ""))), same,
		env.Empty(), store.Empty(), store.EmptyCount())
	if err != nil || len(rs) != 1 {
		t.Fatalf("forall over singleton should succeed, got %v err=%v", rs, err)
	}

	// Concrete mode ignores the annotation: the set matches as a set value,
	// so a variant pattern against it fails.
	if _, ok, _ := Match(l, Quantified(QuantForAll, V(varD, B("n", ""))), vs, env.Empty(), store.Empty()); ok {
		t.Fatalf("concrete match must ignore quantifiers and fail on the set shape")
	}
}
