package space

import (
	"math/big"
	"testing"

	"github.com/dkellis-lab/semlab/internal/card"
	"github.com/dkellis-lab/semlab/internal/descriptor"
	"github.com/dkellis-lab/semlab/internal/dpattern"
)

func exprLanguage(t *testing.T) *Language {
	t.Helper()
	varDesc := descriptor.NewVariant("Var", descriptor.Anything())
	appDesc := descriptor.NewVariant("App", descriptor.SpaceRef("E"), descriptor.SpaceRef("E"))
	lamDesc := descriptor.NewVariant("Lam", descriptor.Anything(), descriptor.SpaceRef("E"))
	l, err := NewLanguage("expr", map[string]*Space{
		"E": NewUserSpace(false, VariantAlt(varDesc), VariantAlt(appDesc), VariantAlt(lamDesc)),
	})
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	return l
}

func TestInSpaceVariantRecursion(t *testing.T) {
	l := exprLanguage(t)
	varDesc := l.variants["Var"]
	appDesc := l.variants["App"]

	x := dpattern.NewVariant(varDesc, dpattern.Symbol("x"))
	y := dpattern.NewVariant(varDesc, dpattern.Symbol("y"))
	app := dpattern.NewVariant(appDesc, x, y)

	ok, err := InSpace(l, "E", app, nil)
	if err != nil || !ok {
		t.Fatalf("expected (App (Var x) (Var y)) in E, ok=%v err=%v", ok, err)
	}
	ok, err = InSpace(l, "E", dpattern.Int(1), nil)
	if err != nil || ok {
		t.Fatalf("expected plain integer not in E, ok=%v err=%v", ok, err)
	}
}

func TestInSpaceUndefinedIsError(t *testing.T) {
	l := exprLanguage(t)
	if _, err := InSpace(l, "NoSuchSpace", dpattern.Int(1), nil); err == nil {
		t.Fatalf("expected error for undefined space")
	}
}

func TestInComponentAddressSpace(t *testing.T) {
	l, err := NewLanguage("addr", map[string]*Space{
		"A": NewAddressSpace("A"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	comp := descriptor.AddressSpace("A")
	good := dpattern.NewAddress(dpattern.Structural, "A", 1)
	bad := dpattern.NewAddress(dpattern.Structural, "B", 1)

	ok, err := InComponent(l, comp, good, nil)
	if err != nil || !ok {
		t.Fatalf("expected address stamped A to satisfy AddressSpace(A), ok=%v err=%v", ok, err)
	}
	ok, err = InComponent(l, comp, bad, nil)
	if err != nil || ok {
		t.Fatalf("expected address stamped B to fail AddressSpace(A), ok=%v err=%v", ok, err)
	}
}

func TestInComponentSetOf(t *testing.T) {
	l := exprLanguage(t)
	comp := descriptor.SetOf(descriptor.SpaceRef("E"))
	varDesc := l.variants["Var"]
	x := dpattern.NewVariant(varDesc, dpattern.Symbol("x"))
	set := dpattern.NewSet(x)
	ok, err := InComponent(l, comp, set, nil)
	if err != nil || !ok {
		t.Fatalf("expected set of E values to satisfy SetOf(E), ok=%v err=%v", ok, err)
	}
	badSet := dpattern.NewSet(dpattern.Int(1))
	ok, err = InComponent(l, comp, badSet, nil)
	if err != nil || ok {
		t.Fatalf("expected set containing a non-E value to fail, ok=%v err=%v", ok, err)
	}
}

func TestExternalSpaceThreeValuedMembership(t *testing.T) {
	l, err := NewLanguage("ext", map[string]*Space{
		"Evens": NewExternalSpace(&ExternalSpace{
			Name: "Evens",
			Member: func(d dpattern.DPattern) card.Quality {
				n, ok := d.(dpattern.Number)
				if !ok || !n.IsInt() {
					return card.MustNot
				}
				if new(big.Int).Mod(n.Int, big.NewInt(2)).Sign() == 0 {
					return card.Must
				}
				return card.MustNot
			},
			Cardinality:  func(dpattern.DPattern) int { return 1 },
			MayExceedOne: false,
		}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok, err := InSpace(l, "Evens", dpattern.Int(4), nil)
	if err != nil || !ok {
		t.Fatalf("expected 4 in Evens, ok=%v err=%v", ok, err)
	}
	ok, err = InSpace(l, "Evens", dpattern.Int(3), nil)
	if err != nil || ok {
		t.Fatalf("expected 3 not in Evens, ok=%v err=%v", ok, err)
	}
}
