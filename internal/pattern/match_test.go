package pattern

import (
	"testing"

	"github.com/dkellis-lab/semlab/internal/descriptor"
	"github.com/dkellis-lab/semlab/internal/dpattern"
	"github.com/dkellis-lab/semlab/internal/env"
	"github.com/dkellis-lab/semlab/internal/space"
	"github.com/dkellis-lab/semlab/internal/store"
)

func lambdaLanguage(t *testing.T) *space.Language {
	t.Helper()
	varDesc := descriptor.NewVariant("Var", descriptor.Anything())
	appDesc := descriptor.NewVariant("App", descriptor.SpaceRef("E"), descriptor.SpaceRef("E"))
	lamDesc := descriptor.NewVariant("Lam", descriptor.Anything(), descriptor.SpaceRef("E"))
	l, err := space.NewLanguage("lambda", map[string]*space.Space{
		"E": space.NewUserSpace(false,
			space.VariantAlt(varDesc), space.VariantAlt(appDesc), space.VariantAlt(lamDesc)),
		"A": space.NewAddressSpace("A"),
	})
	if err != nil {
		t.Fatalf("language: %v", err)
	}
	return l
}

func mustVariant(t *testing.T, l *space.Language, name string) *descriptor.Variant {
	t.Helper()
	v, ok := l.Variant(name)
	if !ok {
		t.Fatalf("variant %q not interned", name)
	}
	return v
}

func TestMatchVariantBindsChildren(t *testing.T) {
	l := lambdaLanguage(t)
	appD := mustVariant(t, l, "App")
	lamD := mustVariant(t, l, "Lam")
	varD := mustVariant(t, l, "Var")

	// (App (Lam a (Var a)) (Var b))
	term := dpattern.NewVariant(appD,
		dpattern.NewVariant(lamD, dpattern.Symbol("a"),
			dpattern.NewVariant(varD, dpattern.Symbol("a"))),
		dpattern.NewVariant(varD, dpattern.Symbol("b")))

	pat := V(appD, V(lamD, B("x", ""), B("body", "E")), B("arg", "E"))
	en, ok, err := Match(l, pat, term, env.Empty(), store.Empty())
	if err != nil || !ok {
		t.Fatalf("expected match, ok=%v err=%v", ok, err)
	}
	x, _ := en.Lookup("x")
	if !dpattern.Equal(x, dpattern.Symbol("a"), nil) {
		t.Fatalf("x bound to %v, want symbol a", x)
	}
	arg, _ := en.Lookup("arg")
	if !dpattern.Equal(arg, dpattern.NewVariant(varD, dpattern.Symbol("b")), nil) {
		t.Fatalf("arg bound to %v", arg)
	}
}

func TestMatchVariantNameMismatchFailsSilently(t *testing.T) {
	l := lambdaLanguage(t)
	varD := mustVariant(t, l, "Var")
	lamD := mustVariant(t, l, "Lam")

	term := dpattern.NewVariant(varD, dpattern.Symbol("x"))
	_, ok, err := Match(l, V(lamD, B("a", ""), B("b", "")), term, env.Empty(), store.Empty())
	if err != nil {
		t.Fatalf("mismatch must be silent, got error %v", err)
	}
	if ok {
		t.Fatalf("expected fail")
	}
}

func TestMatchNonLinearBinder(t *testing.T) {
	l := lambdaLanguage(t)
	appD := mustVariant(t, l, "App")
	varD := mustVariant(t, l, "Var")

	same := dpattern.NewVariant(appD,
		dpattern.NewVariant(varD, dpattern.Symbol("x")),
		dpattern.NewVariant(varD, dpattern.Symbol("x")))
	diff := dpattern.NewVariant(appD,
		dpattern.NewVariant(varD, dpattern.Symbol("x")),
		dpattern.NewVariant(varD, dpattern.Symbol("y")))

	pat := V(appD, B("e", ""), B("e", ""))
	if _, ok, _ := Match(l, pat, same, env.Empty(), store.Empty()); !ok {
		t.Fatalf("expected non-linear match on equal children")
	}
	if _, ok, _ := Match(l, pat, diff, env.Empty(), store.Empty()); ok {
		t.Fatalf("expected non-linear fail on unequal children")
	}
}

func TestMatchBinderSpaceCheck(t *testing.T) {
	l := lambdaLanguage(t)
	varD := mustVariant(t, l, "Var")

	good := dpattern.NewVariant(varD, dpattern.Symbol("x"))
	en, ok, err := Match(l, B("e", "E"), good, env.Empty(), store.Empty())
	if err != nil || !ok {
		t.Fatalf("expected (Var x) to satisfy space E, ok=%v err=%v", ok, err)
	}
	if v, _ := en.Lookup("e"); !dpattern.Equal(v, good, nil) {
		t.Fatalf("binding lost: %v", v)
	}
	if _, ok, _ := Match(l, B("e", "E"), dpattern.Int(3), env.Empty(), store.Empty()); ok {
		t.Fatalf("expected 3 to fail the E space check")
	}
	if _, _, err := Match(l, B("e", "NoSuch"), good, env.Empty(), store.Empty()); err == nil {
		t.Fatalf("expected hard error on undefined space")
	}
}

// TestStructuralAddressDerefPolicy pins the repository's answer to the
// open policy question: a structural address matched against a variant or
// atom pattern is always dereferenced through the store first.
func TestStructuralAddressDerefPolicy(t *testing.T) {
	l := lambdaLanguage(t)
	varD := mustVariant(t, l, "Var")

	inner := dpattern.NewVariant(varD, dpattern.Symbol("x"))
	addr := dpattern.NewAddress(dpattern.Structural, "A", 1)
	st := store.Empty().SetAddr(addr, inner)

	en, ok, err := Match(l, V(varD, B("n", "")), addr, env.Empty(), st)
	if err != nil || !ok {
		t.Fatalf("expected deref-then-match to succeed, ok=%v err=%v", ok, err)
	}
	if n, _ := en.Lookup("n"); !dpattern.Equal(n, dpattern.Symbol("x"), nil) {
		t.Fatalf("n bound to %v", n)
	}

	// Atom pattern against a dereferencing address.
	addr2 := dpattern.NewAddress(dpattern.Structural, "A", 2)
	st = st.SetAddr(addr2, dpattern.Int(42))
	if _, ok, _ := Match(l, Atom(dpattern.Int(42)), addr2, env.Empty(), st); !ok {
		t.Fatalf("expected atom pattern to match through structural address")
	}

	// An egal address is never dereferenced: binding only.
	egal := dpattern.NewAddress(dpattern.Egal, "A", 3)
	st = st.SetAddr(egal, dpattern.Int(7))
	if _, ok, _ := Match(l, Atom(dpattern.Int(7)), egal, env.Empty(), st); ok {
		t.Fatalf("egal address must not deref under an atom pattern")
	}
}

func TestMatchStructuralAddressEquality(t *testing.T) {
	// deref(a) == deref(b) iff a matches against b.
	l := lambdaLanguage(t)
	a := dpattern.NewAddress(dpattern.Structural, "A", 1)
	b := dpattern.NewAddress(dpattern.Structural, "A", 2)
	c := dpattern.NewAddress(dpattern.Structural, "A", 3)
	st := store.Empty().
		SetAddr(a, dpattern.Int(1)).
		SetAddr(b, dpattern.Int(1)).
		SetAddr(c, dpattern.Int(2))

	en := env.Empty().Extend("x", a)
	if _, ok, _ := Match(l, R("x"), b, en, st); !ok {
		t.Fatalf("structural addresses with equal contents must match")
	}
	if _, ok, _ := Match(l, R("x"), c, en, st); ok {
		t.Fatalf("structural addresses with unequal contents must not match")
	}
}

func TestMatchSetWith(t *testing.T) {
	l := lambdaLanguage(t)
	s := dpattern.NewSet(dpattern.Int(1), dpattern.Int(2), dpattern.Int(3))

	en, ok, err := Match(l, SetWith(Atom(dpattern.Int(2)), "rest"), s, env.Empty(), store.Empty())
	if err != nil || !ok {
		t.Fatalf("expected set-with to find 2, ok=%v err=%v", ok, err)
	}
	rest, _ := en.Lookup("rest")
	rs := rest.(*dpattern.Set)
	if rs.Len() != 2 || rs.Contains(dpattern.Int(2)) {
		t.Fatalf("remainder wrong: %v", rs)
	}
	if _, ok, _ := Match(l, SetWith(Atom(dpattern.Int(9)), ""), s, env.Empty(), store.Empty()); ok {
		t.Fatalf("expected fail on absent element")
	}
}

func TestMatchMapWith(t *testing.T) {
	l := lambdaLanguage(t)
	m := dpattern.NewMap(dpattern.FormDiscrete,
		dpattern.MapEntry{Key: dpattern.Symbol("x"), Value: dpattern.Int(1)},
		dpattern.MapEntry{Key: dpattern.Symbol("y"), Value: dpattern.Int(2)})

	en, ok, err := Match(l, MapWith(Atom(dpattern.Symbol("y")), B("v", ""), "rest"), m, env.Empty(), store.Empty())
	if err != nil || !ok {
		t.Fatalf("expected map-with to find y, ok=%v err=%v", ok, err)
	}
	if v, _ := en.Lookup("v"); !dpattern.Equal(v, dpattern.Int(2), nil) {
		t.Fatalf("v bound to %v", v)
	}
	rest, _ := en.Lookup("rest")
	if rest.(*dpattern.Map).Len() != 1 {
		t.Fatalf("remainder wrong: %v", rest)
	}
}

func TestInstantiateRoundTrip(t *testing.T) {
	l := lambdaLanguage(t)
	varD := mustVariant(t, l, "Var")
	appD := mustVariant(t, l, "App")

	en := env.Empty().
		Extend("f", dpattern.NewVariant(varD, dpattern.Symbol("f"))).
		Extend("a", dpattern.NewVariant(varD, dpattern.Symbol("a")))
	out, err := Instantiate(V(appD, R("f"), R("a")), en)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	want := dpattern.NewVariant(appD,
		dpattern.NewVariant(varD, dpattern.Symbol("f")),
		dpattern.NewVariant(varD, dpattern.Symbol("a")))
	if !dpattern.Equal(out, want, nil) {
		t.Fatalf("instantiated %v, want %v", out, want)
	}

	if _, err := Instantiate(V(appD, R("f"), R("missing")), en); err == nil {
		t.Fatalf("expected unbound-variable error")
	}
}

func TestVariantGuard(t *testing.T) {
	l := lambdaLanguage(t)
	varD := mustVariant(t, l, "Var")

	guarded := descriptor.NewVariant("Var", descriptor.Anything()).WithGuard(VariantGuard(
		func(children map[string]dpattern.DPattern) (bool, error) {
			v, ok := children["n"]
			return ok && dpattern.Equal(v, dpattern.Symbol("keep"), nil), nil
		}))

	keep := dpattern.NewVariant(varD, dpattern.Symbol("keep"))
	drop := dpattern.NewVariant(varD, dpattern.Symbol("drop"))

	if _, ok, err := Match(l, V(guarded, B("n", "")), keep, env.Empty(), store.Empty()); err != nil || !ok {
		t.Fatalf("guard should pass for keep, ok=%v err=%v", ok, err)
	}
	if _, ok, _ := Match(l, V(guarded, B("n", "")), drop, env.Empty(), store.Empty()); ok {
		t.Fatalf("guard should fail for drop")
	}
}
