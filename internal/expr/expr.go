// Package expr implements the expression language: the recognized
// expression forms, their store-interaction classifier, binding lists,
// and the evaluator shared by the concrete and abstract interpreters.
//
// One tagged node kind per form, an exhaustive switch in the evaluator,
// and left-to-right effect threading through sub-expressions.
package expr

import (
	"github.com/dkellis-lab/semlab/internal/dpattern"
	"github.com/dkellis-lab/semlab/internal/pattern"
)

// Kind discriminates the expression forms. The set is exhaustive:
// the evaluator errors on anything else.
type Kind int

const (
	KindTerm Kind = iota
	KindLitBool
	KindMapLookup
	KindMapExtend
	KindStoreLookup
	KindIf
	KindLet
	KindEqual
	KindInDom
	KindInSet
	KindEmptySet
	KindSetUnion
	KindSetAdd
	KindMetaCall
	KindChoose
	KindAlloc
	KindUnsafeStoreSpaceRef
	KindUnsafeStoreRef
)

// Expr is one expression node. Exactly the fields relevant to Kind are
// populated, mirroring internal/descriptor's tagged-union convention.
type Expr struct {
	Kind Kind

	// KindTerm, KindMetaCall (the argument pattern)
	Pat pattern.Pattern

	// KindLitBool
	BoolVal bool

	// KindMapLookup / KindMapExtend / KindInDom: the map variable's name
	// in the environment (m comes from the environment; an unbound name
	// is a structural error, not a match failure).
	MVar string

	// Sub-expressions, by role.
	Key     *Expr // map key / store address
	Val     *Expr // map value
	Default *Expr // KindMapLookup: nil means no default (miss is an error)
	Guard   *Expr // KindIf
	Then    *Expr
	Else    *Expr
	L       *Expr // KindEqual
	R       *Expr
	SetE    *Expr   // KindInSet / KindChoose / KindSetAdd base
	Elem    *Expr   // KindInSet element
	Exprs   []*Expr // KindSetUnion operands, KindSetAdd elements

	// KindLet
	Bindings []BindingForm
	Body     *Expr

	// KindMapExtend and the Store-extend binding form: treat the update
	// as strong even when the key is an ω-cardinality address.
	TrustStrong bool

	// KindMetaCall
	MetaName string

	// KindAlloc
	AllocSpace string // address-space name, resolved to its tag at eval
	AllocKind  dpattern.AddressKind
	AllocSite  string // stable site label; abstract naming input
	AllocHint  *Expr  // Q-variants only

	// KindUnsafeStoreRef
	SpaceName string
}

func Term(p pattern.Pattern) *Expr { return &Expr{Kind: KindTerm, Pat: p} }

func LitBool(b bool) *Expr { return &Expr{Kind: KindLitBool, BoolVal: b} }

// MapLookup looks key up in the map bound to mvar. A nil def makes a miss
// an error.
func MapLookup(mvar string, key, def *Expr) *Expr {
	return &Expr{Kind: KindMapLookup, MVar: mvar, Key: key, Default: def}
}

func MapExtend(mvar string, key, val *Expr, trustStrong bool) *Expr {
	return &Expr{Kind: KindMapExtend, MVar: mvar, Key: key, Val: val, TrustStrong: trustStrong}
}

func StoreLookup(key *Expr) *Expr { return &Expr{Kind: KindStoreLookup, Key: key} }

func If(guard, then, els *Expr) *Expr {
	return &Expr{Kind: KindIf, Guard: guard, Then: then, Else: els}
}

func Let(bindings []BindingForm, body *Expr) *Expr {
	return &Expr{Kind: KindLet, Bindings: bindings, Body: body}
}

func Equal(l, r *Expr) *Expr { return &Expr{Kind: KindEqual, L: l, R: r} }

func InDom(mvar string, key *Expr) *Expr {
	return &Expr{Kind: KindInDom, MVar: mvar, Key: key}
}

func InSet(set, elem *Expr) *Expr { return &Expr{Kind: KindInSet, SetE: set, Elem: elem} }

func EmptySet() *Expr { return &Expr{Kind: KindEmptySet} }

func SetUnion(es ...*Expr) *Expr { return &Expr{Kind: KindSetUnion, Exprs: es} }

// SetAdd evaluates set, then each element left to right, adding each.
func SetAdd(set *Expr, es ...*Expr) *Expr {
	return &Expr{Kind: KindSetAdd, SetE: set, Exprs: es}
}

func MetaCall(name string, arg pattern.Pattern) *Expr {
	return &Expr{Kind: KindMetaCall, MetaName: name, Pat: arg}
}

func Choose(set *Expr) *Expr { return &Expr{Kind: KindChoose, SetE: set} }

// MAlloc allocates a fresh egal address in the named address space.
func MAlloc(spaceName, site string) *Expr {
	return &Expr{Kind: KindAlloc, AllocSpace: spaceName, AllocKind: dpattern.Egal, AllocSite: site}
}

// SAlloc allocates a fresh structural address in the named address space.
func SAlloc(spaceName, site string) *Expr {
	return &Expr{Kind: KindAlloc, AllocSpace: spaceName, AllocKind: dpattern.Structural, AllocSite: site}
}

// QMAlloc is MAlloc with a client hint folded into abstract naming.
func QMAlloc(spaceName, site string, hint *Expr) *Expr {
	return &Expr{Kind: KindAlloc, AllocSpace: spaceName, AllocKind: dpattern.Egal, AllocSite: site, AllocHint: hint}
}

// QSAlloc is SAlloc with a client hint folded into abstract naming.
func QSAlloc(spaceName, site string, hint *Expr) *Expr {
	return &Expr{Kind: KindAlloc, AllocSpace: spaceName, AllocKind: dpattern.Structural, AllocSite: site, AllocHint: hint}
}

func UnsafeStoreSpaceRef() *Expr { return &Expr{Kind: KindUnsafeStoreSpaceRef} }

func UnsafeStoreRef(spaceName string) *Expr {
	return &Expr{Kind: KindUnsafeStoreRef, SpaceName: spaceName}
}

//-----------------------------------------------------------------------------
// Binding lists
//-----------------------------------------------------------------------------

// BindingFormKind discriminates the three binding-list forms.
type BindingFormKind int

const (
	BindPat BindingFormKind = iota
	BindStoreExtend
	BindWhen
)

// BindingForm is one entry of a binding list, evaluated in textual order
// with effects threading into subsequent forms.
type BindingForm struct {
	Kind BindingFormKind

	// BindPat
	Pat pattern.Pattern

	// BindPat (the bound expression) and BindWhen (the condition).
	Expr *Expr

	// BindStoreExtend
	KeyE        *Expr
	ValE        *Expr
	TrustStrong bool
}

// Binding evaluates expr and matches pat against each result;
// match failure prunes that branch.
func Binding(pat pattern.Pattern, e *Expr) BindingForm {
	return BindingForm{Kind: BindPat, Pat: pat, Expr: e}
}

// StoreExtend writes the store at key; no value is bound.
func StoreExtend(key, val *Expr, trustStrong bool) BindingForm {
	return BindingForm{Kind: BindStoreExtend, KeyE: key, ValE: val, TrustStrong: trustStrong}
}

// When evaluates e and prunes the branch if falsy.
func When(e *Expr) BindingForm {
	return BindingForm{Kind: BindWhen, Expr: e}
}
