package expr

import (
	"testing"

	"github.com/dkellis-lab/semlab/internal/card"
	"github.com/dkellis-lab/semlab/internal/dpattern"
	"github.com/dkellis-lab/semlab/internal/env"
	"github.com/dkellis-lab/semlab/internal/pattern"
	"github.com/dkellis-lab/semlab/internal/space"
	"github.com/dkellis-lab/semlab/internal/store"
)

func testEvaluator(t *testing.T, mode Mode) *Evaluator {
	t.Helper()
	l, err := space.NewLanguage("t", map[string]*space.Space{
		"A": space.NewAddressSpace("A"),
	})
	if err != nil {
		t.Fatalf("language: %v", err)
	}
	return &Evaluator{Lang: l, Mode: mode, Alloc: store.NewAllocCounter(), RuleName: "r"}
}

func values(rs []Result) []dpattern.DPattern {
	out := make([]dpattern.DPattern, len(rs))
	for i, r := range rs {
		out[i] = r.Value
	}
	return out
}

// S3: map lookup with a default falls back; without one it errors.
func TestMapLookupDefault(t *testing.T) {
	ev := testEvaluator(t, Concrete)
	rho := dpattern.NewMap(dpattern.FormDiscrete,
		dpattern.MapEntry{Key: dpattern.String("x"), Value: dpattern.Int(1)})
	en := env.Empty().Extend("rho", rho)

	rs, err := ev.Eval(MapLookup("rho", Term(pattern.Atom(dpattern.String("y"))), Term(pattern.Atom(dpattern.Int(0)))),
		en, store.Empty(), nil)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if len(rs) != 1 || !dpattern.Equal(rs[0].Value, dpattern.Int(0), nil) {
		t.Fatalf("expected default 0, got %v", values(rs))
	}

	rs, err = ev.Eval(MapLookup("rho", Term(pattern.Atom(dpattern.String("x"))), nil), en, store.Empty(), nil)
	if err != nil || len(rs) != 1 || !dpattern.Equal(rs[0].Value, dpattern.Int(1), nil) {
		t.Fatalf("expected hit 1, got %v err=%v", values(rs), err)
	}

	if _, err := ev.Eval(MapLookup("rho", Term(pattern.Atom(dpattern.String("y"))), nil), en, store.Empty(), nil); err == nil {
		t.Fatalf("expected error on miss without default")
	}

	if _, err := ev.Eval(MapLookup("nosuch", Term(pattern.Atom(dpattern.String("x"))), nil), en, store.Empty(), nil); err == nil {
		t.Fatalf("expected unbound map variable error")
	}
}

// S4: Choose fans out over every set member.
func TestChooseFansOut(t *testing.T) {
	ev := testEvaluator(t, Concrete)
	e := Choose(SetAdd(EmptySet(),
		Term(pattern.Atom(dpattern.Int(1))),
		Term(pattern.Atom(dpattern.Int(2))),
		Term(pattern.Atom(dpattern.Int(3)))))
	rs, err := ev.Eval(e, env.Empty(), store.Empty(), nil)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if len(rs) != 3 {
		t.Fatalf("expected 3 results, got %d", len(rs))
	}
	want := dpattern.NewSet(dpattern.Int(1), dpattern.Int(2), dpattern.Int(3))
	for _, r := range rs {
		if !want.Contains(r.Value) {
			t.Fatalf("unexpected choice %v", r.Value)
		}
	}

	// Choose over the empty set prunes.
	rs, err = ev.Eval(Choose(EmptySet()), env.Empty(), store.Empty(), nil)
	if err != nil || len(rs) != 0 {
		t.Fatalf("expected no results for empty choose, got %v err=%v", values(rs), err)
	}
}

func TestIfScrutiny(t *testing.T) {
	ev := testEvaluator(t, Concrete)
	e := If(LitBool(true), Term(pattern.Atom(dpattern.Int(1))), Term(pattern.Atom(dpattern.Int(2))))
	rs, err := ev.Eval(e, env.Empty(), store.Empty(), nil)
	if err != nil || len(rs) != 1 || !dpattern.Equal(rs[0].Value, dpattern.Int(1), nil) {
		t.Fatalf("then branch expected, got %v err=%v", values(rs), err)
	}
	e = If(LitBool(false), Term(pattern.Atom(dpattern.Int(1))), Term(pattern.Atom(dpattern.Int(2))))
	rs, err = ev.Eval(e, env.Empty(), store.Empty(), nil)
	if err != nil || len(rs) != 1 || !dpattern.Equal(rs[0].Value, dpattern.Int(2), nil) {
		t.Fatalf("else branch expected, got %v err=%v", values(rs), err)
	}
}

func TestLetBindingsThread(t *testing.T) {
	ev := testEvaluator(t, Concrete)
	// let x = 1; when x == 1; in x
	e := Let([]BindingForm{
		Binding(pattern.B("x", ""), Term(pattern.Atom(dpattern.Int(1)))),
		When(Equal(Term(pattern.R("x")), Term(pattern.Atom(dpattern.Int(1))))),
	}, Term(pattern.R("x")))
	rs, err := ev.Eval(e, env.Empty(), store.Empty(), nil)
	if err != nil || len(rs) != 1 || !dpattern.Equal(rs[0].Value, dpattern.Int(1), nil) {
		t.Fatalf("let: got %v err=%v", values(rs), err)
	}

	// A failing When prunes to zero results, silently.
	e = Let([]BindingForm{
		Binding(pattern.B("x", ""), Term(pattern.Atom(dpattern.Int(1)))),
		When(Equal(Term(pattern.R("x")), Term(pattern.Atom(dpattern.Int(2))))),
	}, Term(pattern.R("x")))
	rs, err = ev.Eval(e, env.Empty(), store.Empty(), nil)
	if err != nil || len(rs) != 0 {
		t.Fatalf("pruned let: got %v err=%v", values(rs), err)
	}
}

func TestStoreExtendLookup(t *testing.T) {
	ev := testEvaluator(t, Concrete)
	// let a = SAlloc(A); store[a] := 42; in store-lookup(a)
	e := Let([]BindingForm{
		Binding(pattern.B("a", ""), SAlloc("A", "s0")),
		StoreExtend(Term(pattern.R("a")), Term(pattern.Atom(dpattern.Int(42))), false),
	}, StoreLookup(Term(pattern.R("a"))))
	rs, err := ev.Eval(e, env.Empty(), store.Empty(), nil)
	if err != nil || len(rs) != 1 {
		t.Fatalf("eval: %v err=%v", values(rs), err)
	}
	if !dpattern.Equal(rs[0].Value, dpattern.Int(42), nil) {
		t.Fatalf("store round-trip got %v", rs[0].Value)
	}

	// Unmapped address lookup is always an error.
	en := env.Empty().Extend("a", dpattern.NewAddress(dpattern.Structural, "A", 999))
	if _, err := ev.Eval(StoreLookup(Term(pattern.R("a"))), en, store.Empty(), nil); err == nil {
		t.Fatalf("expected unmapped-address error")
	}
}

// Invariant 5: a pure expression is deterministic in the concrete
// interpreter — the result set is a singleton.
func TestPureExpressionsDeterministic(t *testing.T) {
	ev := testEvaluator(t, Concrete)
	pure := []*Expr{
		Term(pattern.Atom(dpattern.Int(1))),
		LitBool(true),
		Equal(Term(pattern.Atom(dpattern.Int(1))), Term(pattern.Atom(dpattern.Int(1)))),
		SetAdd(EmptySet(), Term(pattern.Atom(dpattern.Int(1)))),
		If(LitBool(true), Term(pattern.Atom(dpattern.Int(1))), Term(pattern.Atom(dpattern.Int(2)))),
	}
	for _, e := range pure {
		if c := Classify(e); !c.Pure() {
			t.Fatalf("expected pure classifier, got %v", c)
		}
		rs, err := ev.Eval(e, env.Empty(), store.Empty(), nil)
		if err != nil || len(rs) != 1 {
			t.Fatalf("pure expression returned %d results, err=%v", len(rs), err)
		}
	}
}

func TestClassifierBits(t *testing.T) {
	if c := Classify(StoreLookup(Term(pattern.R("a")))); c&ClassRead == 0 {
		t.Fatalf("store-lookup must classify read, got %v", c)
	}
	if c := Classify(SAlloc("A", "s")); c&ClassAlloc == 0 {
		t.Fatalf("alloc must classify alloc, got %v", c)
	}
	if c := Classify(Choose(EmptySet())); c&ClassMany == 0 {
		t.Fatalf("choose must classify many, got %v", c)
	}
	let := Let([]BindingForm{
		StoreExtend(Term(pattern.R("a")), Term(pattern.Atom(dpattern.Int(1))), false),
	}, LitBool(true))
	if c := Classify(let); c&ClassWrite == 0 {
		t.Fatalf("store-extend binding must classify write, got %v", c)
	}
}

func TestAbstractEqualMayFansOut(t *testing.T) {
	ev := testEvaluator(t, Abstract)
	// An omega egal address compared against itself is indeterminate.
	addr := dpattern.NewAddress(dpattern.Egal, "A", 5)
	en := env.Empty().Extend("a", addr)
	cnt := store.EmptyCount().Bump(5).Bump(5)

	rs, err := ev.Eval(Equal(Term(pattern.R("a")), Term(pattern.R("a"))), en, store.Empty(), cnt)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if len(rs) != 2 {
		t.Fatalf("expected true and false, got %v", values(rs))
	}
	for _, r := range rs {
		if r.Quality != card.May {
			t.Fatalf("indeterminate equality results must be may, got %v", r.Quality)
		}
	}
}

func TestAbstractWeakStoreUpdateJoins(t *testing.T) {
	ev := testEvaluator(t, Abstract)
	addr := dpattern.NewAddress(dpattern.Egal, "A", 3)
	en := env.Empty().Extend("a", addr)
	cnt := store.EmptyCount().Bump(3).Bump(3) // omega

	st := store.Empty().SetAddr(addr, dpattern.Int(1))
	brs, err := ev.EvalBindings([]BindingForm{
		StoreExtend(Term(pattern.R("a")), Term(pattern.Atom(dpattern.Int(2))), false),
	}, en, st, cnt)
	if err != nil || len(brs) != 1 {
		t.Fatalf("bindings: %v err=%v", brs, err)
	}

	// Reading back fans out over the joined denotations.
	rs, err := ev.Eval(StoreLookup(Term(pattern.R("a"))), en, brs[0].Store, brs[0].Count)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(rs) != 2 {
		t.Fatalf("expected both denotations after weak update, got %v", values(rs))
	}

	// trust-strong? overrides to overwrite.
	brs, err = ev.EvalBindings([]BindingForm{
		StoreExtend(Term(pattern.R("a")), Term(pattern.Atom(dpattern.Int(2))), true),
	}, en, st, cnt)
	if err != nil {
		t.Fatalf("bindings: %v", err)
	}
	rs, err = ev.Eval(StoreLookup(Term(pattern.R("a"))), en, brs[0].Store, brs[0].Count)
	if err != nil || len(rs) != 1 || !dpattern.Equal(rs[0].Value, dpattern.Int(2), nil) {
		t.Fatalf("trust-strong write must overwrite, got %v err=%v", values(rs), err)
	}
}

func TestAbstractAllocDeterministicSaturates(t *testing.T) {
	ev := testEvaluator(t, Abstract)
	e := SAlloc("A", "site0")

	rs1, err := ev.Eval(e, env.Empty(), store.Empty(), store.EmptyCount())
	if err != nil || len(rs1) != 1 {
		t.Fatalf("alloc: %v err=%v", rs1, err)
	}
	a1 := rs1[0].Value.(dpattern.Address)
	if rs1[0].Count.Get(a1.ID) != card.One {
		t.Fatalf("first allocation should set count 1, got %v", rs1[0].Count.Get(a1.ID))
	}

	rs2, err := ev.Eval(e, env.Empty(), store.Empty(), rs1[0].Count)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	a2 := rs2[0].Value.(dpattern.Address)
	if a1.ID != a2.ID {
		t.Fatalf("abstract allocation must be deterministic per (rule, site), got %d vs %d", a1.ID, a2.ID)
	}
	if rs2[0].Count.Get(a2.ID) != card.Omega {
		t.Fatalf("second allocation should saturate to omega")
	}

	// A different hint names a different address.
	h1, _ := ev.Eval(QSAlloc("A", "site0", Term(pattern.Atom(dpattern.Int(1)))), env.Empty(), store.Empty(), store.EmptyCount())
	h2, _ := ev.Eval(QSAlloc("A", "site0", Term(pattern.Atom(dpattern.Int(2)))), env.Empty(), store.Empty(), store.EmptyCount())
	if h1[0].Value.(dpattern.Address).ID == h2[0].Value.(dpattern.Address).ID {
		t.Fatalf("distinct hints must name distinct abstract addresses")
	}
}

func TestConcreteAllocFresh(t *testing.T) {
	ev := testEvaluator(t, Concrete)
	rs1, err := ev.Eval(MAlloc("A", "s"), env.Empty(), store.Empty(), nil)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	rs2, err := ev.Eval(MAlloc("A", "s"), env.Empty(), store.Empty(), nil)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	a1 := rs1[0].Value.(dpattern.Address)
	a2 := rs2[0].Value.(dpattern.Address)
	if a1.ID == a2.ID {
		t.Fatalf("concrete allocation must be globally fresh")
	}
	if a1.AddrKind != dpattern.Egal {
		t.Fatalf("MAlloc yields egal addresses, got %v", a1.AddrKind)
	}
}

func TestUnsafeStoreRef(t *testing.T) {
	ev := testEvaluator(t, Concrete)
	st := store.Empty().Set("A", 1, dpattern.Int(10)).Set("A", 2, dpattern.Int(20))
	rs, err := ev.Eval(UnsafeStoreRef("A"), env.Empty(), st, nil)
	if err != nil || len(rs) != 1 {
		t.Fatalf("eval: %v err=%v", values(rs), err)
	}
	m := rs[0].Value.(*dpattern.Map)
	if m.Len() != 2 {
		t.Fatalf("expected 2 raw entries, got %d", m.Len())
	}
}
