package abstract

import (
	"testing"

	"github.com/dkellis-lab/semlab/internal/card"
	"github.com/dkellis-lab/semlab/internal/dpattern"
	"github.com/dkellis-lab/semlab/internal/store"
)

func TestJoinBuildsDenotationSet(t *testing.T) {
	j := Join(nil, dpattern.Int(1))
	if !dpattern.Equal(j, dpattern.Int(1), nil) {
		t.Fatalf("first write should pass through, got %v", j)
	}
	j = Join(dpattern.Int(1), dpattern.Int(2))
	dens := Denotations(j)
	if len(dens) != 2 {
		t.Fatalf("expected 2 denotations, got %v", dens)
	}
	j = Join(j, dpattern.Int(3))
	if len(Denotations(j)) != 3 {
		t.Fatalf("expected 3 denotations after third write, got %v", j)
	}
	// Re-joining an existing denotation does not duplicate.
	j = Join(j, dpattern.Int(2))
	if len(Denotations(j)) != 3 {
		t.Fatalf("expected dedup on re-join, got %v", j)
	}
}

func TestEqualQAtoms(t *testing.T) {
	st := store.Empty()
	cnt := store.EmptyCount()
	if q := EqualQ(dpattern.Int(1), dpattern.Int(1), st, cnt, nil); q != card.Must {
		t.Fatalf("1 == 1 should be must, got %v", q)
	}
	if q := EqualQ(dpattern.Int(1), dpattern.Int(2), st, cnt, nil); q != card.MustNot {
		t.Fatalf("1 == 2 should be must-not, got %v", q)
	}
	if q := EqualQ(dpattern.Symbol("x"), dpattern.String("x"), st, cnt, nil); q != card.MustNot {
		t.Fatalf("symbol vs string should be must-not, got %v", q)
	}
}

func TestEqualQOmegaEgalAddressIsMay(t *testing.T) {
	a := dpattern.NewAddress(dpattern.Egal, "A", 7)
	st := store.Empty()

	one := store.EmptyCount().Bump(7)
	if q := EqualQ(a, a, st, one, nil); q != card.Must {
		t.Fatalf("egal address at cardinality 1 equals itself must, got %v", q)
	}
	omega := one.Bump(7)
	if q := EqualQ(a, a, st, omega, nil); q != card.May {
		t.Fatalf("egal address at cardinality omega is may against itself, got %v", q)
	}
	b := dpattern.NewAddress(dpattern.Egal, "A", 8)
	if q := EqualQ(a, b, st, omega, nil); q != card.MustNot {
		t.Fatalf("distinct egal addresses are must-not, got %v", q)
	}
}

func TestEqualQStructuralOmegaDenotations(t *testing.T) {
	a := dpattern.NewAddress(dpattern.Structural, "A", 1)
	joined := Join(dpattern.Int(1), dpattern.Int(2))
	st := store.Empty().SetAddr(a, joined)
	cnt := store.EmptyCount().Bump(1).Bump(1)

	if q := EqualQ(a, dpattern.Int(1), st, cnt, nil); q != card.May {
		t.Fatalf("omega structural address vs one of its denotations should be may, got %v", q)
	}
	if q := EqualQ(a, dpattern.Int(9), st, cnt, nil); q != card.MustNot {
		t.Fatalf("omega structural address vs non-denotation should be must-not, got %v", q)
	}
}

func TestThresholdPolicySaturates(t *testing.T) {
	before := store.EmptyCount()
	after := before.Bump(1).Bump(2).Bump(3)

	kept := ThresholdPolicy{N: 5}.AfterRule("r", before, after)
	if kept.Get(1) != card.One {
		t.Fatalf("under threshold, counts unchanged; got %v", kept.Get(1))
	}
	widened := ThresholdPolicy{N: 2}.AfterRule("r", before, after)
	for _, id := range []uint64{1, 2, 3} {
		if widened.Get(id) != card.Omega {
			t.Fatalf("over threshold, id %d should be omega, got %v", id, widened.Get(id))
		}
	}
	if got := (DefaultPolicy{}).AfterRule("r", before, after); got != after {
		t.Fatalf("default policy must return the count untouched")
	}
}
