// Package pattern implements the matcher: the Pattern grammar and
// both the concrete (deterministic) and abstract (set-of-environments,
// quality-tagged) match relations.
//
// Pattern nodes form a small tagged union; Match and MatchAbstract
// dispatch recursively with one case per Pattern kind.
package pattern

import (
	"github.com/dkellis-lab/semlab/internal/descriptor"
	"github.com/dkellis-lab/semlab/internal/dpattern"
)

// Kind discriminates the pattern grammar, plus the two collection
// destructuring forms.
type Kind int

const (
	KindBindingVar Kind = iota
	KindRefVar
	KindVariant
	KindAtom
	KindSetWith
	KindMapWith
)

// Quant annotates a recursive meta-function argument position:
// in abstract mode, a quantified pattern matched against a set-shaped
// argument either fans out over each element (Exists) or must match every
// element (ForAll). Concrete mode ignores the annotation entirely and
// matches the set value as-is.
type Quant int

const (
	QuantNone Quant = iota
	QuantForAll
	QuantExists
)

// Pattern is a matching form that can bind or reference pattern
// variables.
type Pattern struct {
	Kind  Kind
	Quant Quant

	// KindBindingVar / KindRefVar
	VarName string
	// KindBindingVar only: optional membership check on the bound
	// value; "" means no check.
	SpaceCheck string

	// KindVariant
	Variant  *descriptor.Variant
	Children []Pattern

	// KindAtom
	Atom dpattern.DPattern

	// KindSetWith: destructures one element plus an optional remainder.
	// Pointers, so the struct is not recursive by value.
	Elem *Pattern
	Rest string // "" means no remainder binding

	// KindMapWith: destructures one key/value entry plus an optional
	// remainder.
	Key *Pattern
	Val *Pattern
}

// B constructs a binding-variable pattern.
// space == "" means no membership check.
func B(name, space string) Pattern {
	return Pattern{Kind: KindBindingVar, VarName: name, SpaceCheck: space}
}

// R constructs a reference-variable pattern.
func R(name string) Pattern {
	return Pattern{Kind: KindRefVar, VarName: name}
}

// V constructs a variant pattern.
func V(desc *descriptor.Variant, children ...Pattern) Pattern {
	return Pattern{Kind: KindVariant, Variant: desc, Children: children}
}

// Atom constructs an atom literal pattern.
func Atom(d dpattern.DPattern) Pattern {
	return Pattern{Kind: KindAtom, Atom: d}
}

// SetWith constructs a one-element-plus-remainder set destructuring
// pattern. rest == "" binds no remainder.
func SetWith(elem Pattern, rest string) Pattern {
	return Pattern{Kind: KindSetWith, Elem: &elem, Rest: rest}
}

// MapWith constructs a one-entry-plus-remainder map destructuring
// pattern. rest == "" binds no remainder.
func MapWith(key, val Pattern, rest string) Pattern {
	return Pattern{Kind: KindMapWith, Key: &key, Val: &val, Rest: rest}
}

// Quantified returns p with its quantifier annotation set.
func Quantified(q Quant, p Pattern) Pattern {
	p.Quant = q
	return p
}

// VariantGuard is the concrete type internal/descriptor.Variant.Guard is
// type-asserted to when present: given the matched children (pattern-variable name to bound value, restricted to
// names bound directly by this variant's own children), it returns
// whether the guard is satisfied. A guard that needs the full
// environment or store is out of scope for this minimal extension point
// — see DESIGN.md's Open Question 3 decision.
type VariantGuard func(children map[string]dpattern.DPattern) (bool, error)
