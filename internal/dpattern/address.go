package dpattern

import "fmt"

// AddressKind distinguishes the two disjoint kinds of address.
type AddressKind int

const (
	// Structural addresses compare equal iff dereferencing both sides
	// through the store yields structurally equal DPatterns.
	Structural AddressKind = iota
	// Egal addresses compare equal iff the (space tag, identifier) pair
	// is syntactically identical.
	Egal
)

func (k AddressKind) String() string {
	if k == Egal {
		return "egal"
	}
	return "structural"
}

// Address is a handle into a store partition, stamped with an
// address-space tag.
type Address struct {
	AddrKind AddressKind
	SpaceTag string
	ID       uint64
}

func NewAddress(kind AddressKind, spaceTag string, id uint64) Address {
	return Address{AddrKind: kind, SpaceTag: spaceTag, ID: id}
}

func (Address) Kind() Kind { return KindAddress }

func (a Address) Hash() uint64 {
	// Hash is purely syntactic for both kinds: the matcher's fast-path
	// dictionary lookup dereferences structural addresses itself
	// before relying on Hash/Equal; Hash is only ever used as a bucket
	// key, never as the sole equality oracle.
	h := HashWithTag(tagAddress, []byte(a.SpaceTag))
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(a.ID >> (8 * i))
	}
	return combine(h, HashBytes(fnvOffset64, buf[:]))
}

func (a Address) String() string {
	return fmt.Sprintf("#%s:%s:%d", a.AddrKind, a.SpaceTag, a.ID)
}

// SyntacticEqual reports whether two addresses have the same kind, space
// tag and identifier. Used for egal-address comparison and for any
// address that comparison leaves undereferenced (a structural address
// with no deref function or no store entry).
func (a Address) SyntacticEqual(b Address) bool {
	return a.AddrKind == b.AddrKind && a.SpaceTag == b.SpaceTag && a.ID == b.ID
}
