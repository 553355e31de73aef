// Package space implements the value/space model's upper half: spaces,
// variants, and the mutually recursive membership predicate family
// in-space/in-variant/in-component.
package space

import (
	"github.com/dkellis-lab/semlab/internal/card"
	"github.com/dkellis-lab/semlab/internal/descriptor"
	"github.com/dkellis-lab/semlab/internal/dpattern"
)

// AltKind discriminates the three kinds of alternative a UserSpace may
// list.
type AltKind int

const (
	AltVariant AltKind = iota
	AltSpaceRef
	AltComponent
)

// Alternative is one entry of a user space's definition.
type Alternative struct {
	Kind      AltKind
	Variant   *descriptor.Variant
	SpaceName string
	Component *descriptor.Component
}

func VariantAlt(v *descriptor.Variant) Alternative { return Alternative{Kind: AltVariant, Variant: v} }
func SpaceRefAlt(name string) Alternative          { return Alternative{Kind: AltSpaceRef, SpaceName: name} }
func ComponentAlt(c *descriptor.Component) Alternative {
	return Alternative{Kind: AltComponent, Component: c}
}

// UserSpace is a list of alternatives plus the trust-recursion flag: the
// user asserts finiteness under abstraction even if the definition is
// self-referential.
type UserSpace struct {
	Alternatives   []Alternative
	TrustRecursion bool
}

// AddressSpace is the set of addresses stamped with Tag.
type AddressSpace struct {
	Tag string
}

// MemberFn is an external space's membership predicate, lifted to the
// three-valued quality lattice. Use
// BoolMember to adapt a plain boolean predicate.
type MemberFn func(d dpattern.DPattern) card.Quality

// BoolMember lifts a boolean membership predicate into a MemberFn via
// card.LiftBool, so existing two-valued external spaces need no changes.
func BoolMember(pred func(d dpattern.DPattern) bool) MemberFn {
	return func(d dpattern.DPattern) card.Quality {
		return card.LiftBool(pred(d))
	}
}

// SpecialEqual is an external space's optional equality oracle:
// given two candidate members, it returns a definite or indeterminate
// verdict.
type SpecialEqual func(a, b dpattern.DPattern) card.Quality

// ExternalSpace is a space whose values are defined by an opaque
// membership predicate, a cardinality function, a flag for whether
// cardinality is ever >1, and an optional special-equality oracle.
type ExternalSpace struct {
	Name         string
	Member       MemberFn
	Cardinality  func(d dpattern.DPattern) int
	MayExceedOne bool
	SpecialEqual SpecialEqual // nil if none
}

// SpaceKind discriminates the three Space variants.
type SpaceKind int

const (
	KindUser SpaceKind = iota
	KindAddress
	KindExternal
)

// Space is one of UserSpace, AddressSpace, or ExternalSpace. Exactly
// one of the embedded pointers is non-nil, selected by Kind.
type Space struct {
	Kind     SpaceKind
	User     *UserSpace
	Address  *AddressSpace
	External *ExternalSpace
}

func NewUserSpace(trustRecursion bool, alts ...Alternative) *Space {
	return &Space{Kind: KindUser, User: &UserSpace{Alternatives: alts, TrustRecursion: trustRecursion}}
}

func NewAddressSpace(tag string) *Space {
	return &Space{Kind: KindAddress, Address: &AddressSpace{Tag: tag}}
}

func NewExternalSpace(ext *ExternalSpace) *Space {
	return &Space{Kind: KindExternal, External: ext}
}
