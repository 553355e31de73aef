package dpattern

import "github.com/dkellis-lab/semlab/internal/descriptor"

// Variant pairs a pointer to its descriptor with a fixed-length immutable
// sequence of DPattern components.
type Variant struct {
	Descriptor *descriptor.Variant
	Children   []DPattern
}

// NewVariant constructs a variant value. It does not itself validate arity
// against the descriptor — that is internal/space's in-variant's job,
// since validation requires a Language to resolve nested space references.
func NewVariant(desc *descriptor.Variant, children ...DPattern) *Variant {
	cs := make([]DPattern, len(children))
	copy(cs, children)
	return &Variant{Descriptor: desc, Children: cs}
}

func (*Variant) Kind() Kind { return KindVariant }

func (v *Variant) Hash() uint64 {
	h := HashWithTag(tagVariant, []byte(v.Descriptor.Name))
	for _, c := range v.Children {
		h = combine(h, c.Hash())
	}
	return h
}

func (v *Variant) Name() string { return v.Descriptor.Name }
