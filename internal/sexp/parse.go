package sexp

import (
	"github.com/dkellis-lab/semlab/internal/card"
	"github.com/dkellis-lab/semlab/internal/descriptor"
	"github.com/dkellis-lab/semlab/internal/dpattern"
	"github.com/dkellis-lab/semlab/internal/engineerr"
	"github.com/dkellis-lab/semlab/internal/space"
)

// Parse reads a term against the named space: inner nodes are
// (head child …) where head is a variant name of the expected space;
// maps come from dictionary literals, sets from set literals, addresses
// from their serialized identifier under an egal address space.
func Parse(input, spaceName string, l *space.Language) (dpattern.DPattern, error) {
	n, err := readTree(input)
	if err != nil {
		return nil, err
	}
	return parseInSpace(n, spaceName, l)
}

func parseInSpace(n *node, spaceName string, l *space.Language) (dpattern.DPattern, error) {
	sp, err := l.Lookup(spaceName)
	if err != nil {
		return nil, engineerr.Newf(engineerr.StageParse, spaceName, "unexpected space %q", spaceName)
	}
	switch sp.Kind {
	case space.KindAddress:
		return parseAddress(n, sp.Address.Tag)

	case space.KindExternal:
		// The boundary only reconstructs atom-shaped external members;
		// the space's own predicate is the arbiter.
		if n.kind != nAtom {
			return nil, engineerr.Newf(engineerr.StageParse, spaceName,
				"external space %q only parses atoms", spaceName)
		}
		v, err := atomValue(n.text)
		if err != nil {
			return nil, err
		}
		if sp.External.Member(v) == card.MustNot {
			return nil, engineerr.Newf(engineerr.StageParse, v,
				"%v is not a member of external space %q", v, spaceName)
		}
		return v, nil

	case space.KindUser:
		return parseInUserSpace(n, spaceName, sp.User, l)
	}
	return nil, engineerr.Newf(engineerr.StageParse, spaceName, "unexpected space %q", spaceName)
}

func parseInUserSpace(n *node, spaceName string, us *space.UserSpace, l *space.Language) (dpattern.DPattern, error) {
	if n.kind == nList {
		if len(n.children) == 0 || n.children[0].kind != nAtom {
			return nil, engineerr.New(engineerr.StageParse, nil, "variant node needs a symbol head")
		}
		head := n.children[0].text
		v := findVariant(us, head, l, map[string]bool{})
		if v == nil {
			return nil, engineerr.Newf(engineerr.StageParse, head,
				"unknown variant head %q in space %q", head, spaceName)
		}
		args := n.children[1:]
		if len(args) != v.Arity() {
			return nil, engineerr.Newf(engineerr.StageParse, head,
				"variant %q expects %d components, got %d", head, v.Arity(), len(args))
		}
		children := make([]dpattern.DPattern, len(args))
		for i, a := range args {
			c, err := parseComponent(a, v.Components[i], l)
			if err != nil {
				return nil, err
			}
			children[i] = c
		}
		return dpattern.NewVariant(v, children...), nil
	}

	// Non-list nodes try the space's non-variant alternatives in order.
	var firstErr error
	for _, alt := range us.Alternatives {
		switch alt.Kind {
		case space.AltSpaceRef:
			d, err := parseInSpace(n, alt.SpaceName, l)
			if err == nil {
				return d, nil
			}
			if firstErr == nil {
				firstErr = err
			}
		case space.AltComponent:
			d, err := parseComponent(n, alt.Component, l)
			if err == nil {
				return d, nil
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, engineerr.Newf(engineerr.StageParse, spaceName,
		"space %q admits no atom alternatives", spaceName)
}

// findVariant resolves a variant head through the space's alternatives,
// following space-reference inclusions.
func findVariant(us *space.UserSpace, head string, l *space.Language, seen map[string]bool) *descriptor.Variant {
	for _, alt := range us.Alternatives {
		switch alt.Kind {
		case space.AltVariant:
			if alt.Variant.Name == head {
				return alt.Variant
			}
		case space.AltSpaceRef:
			if seen[alt.SpaceName] {
				continue
			}
			seen[alt.SpaceName] = true
			if sp, ok := l.Spaces[alt.SpaceName]; ok && sp.Kind == space.KindUser {
				if v := findVariant(sp.User, head, l, seen); v != nil {
					return v
				}
			}
		}
	}
	return nil
}

func parseComponent(n *node, comp *descriptor.Component, l *space.Language) (dpattern.DPattern, error) {
	switch comp.Kind {
	case descriptor.ComponentSpaceRef:
		return parseInSpace(n, comp.SpaceName, l)

	case descriptor.ComponentAddressSpace:
		return parseAddress(n, comp.SpaceName)

	case descriptor.ComponentMap:
		return parseDict(n, comp.Domain, comp.Range, dpattern.FormDiscrete, l)

	case descriptor.ComponentQualifiedMap:
		return parseDict(n, comp.Domain, comp.Range, mapFormFor(comp.DomainPrecision), l)

	case descriptor.ComponentSetOf:
		if n.kind != nSet {
			return nil, engineerr.New(engineerr.StageParse, nil, "expected a set literal")
		}
		elems := make([]dpattern.DPattern, len(n.children))
		for i, c := range n.children {
			e, err := parseComponent(c, comp.Elem, l)
			if err != nil {
				return nil, err
			}
			elems[i] = e
		}
		return dpattern.NewSet(elems...), nil

	case descriptor.ComponentAnything:
		return parseAny(n, l)

	default:
		return nil, engineerr.Newf(engineerr.StageParse, comp, "component has unknown kind %d", comp.Kind)
	}
}

// mapFormFor maps the domain-precision classifier onto the three map
// representations: concrete domains hash exactly, discrete-abstraction
// domains are trusted raw dictionaries, abstract domains need the full
// key scan.
func mapFormFor(p descriptor.Precision) dpattern.MapForm {
	switch p {
	case descriptor.PrecisionConcrete:
		return dpattern.FormDiscrete
	case descriptor.PrecisionDiscreteAbstraction:
		return dpattern.FormRaw
	default:
		return dpattern.FormAbstract
	}
}

func parseDict(n *node, dom, rng *descriptor.Component, form dpattern.MapForm, l *space.Language) (dpattern.DPattern, error) {
	if n.kind != nDict {
		return nil, engineerr.New(engineerr.StageParse, nil, "expected a dictionary literal")
	}
	entries := make([]dpattern.MapEntry, 0, len(n.children)/2)
	for i := 0; i+1 < len(n.children); i += 2 {
		k, err := parseComponent(n.children[i], dom, l)
		if err != nil {
			return nil, err
		}
		v, err := parseComponent(n.children[i+1], rng, l)
		if err != nil {
			return nil, err
		}
		entries = append(entries, dpattern.MapEntry{Key: k, Value: v})
	}
	return dpattern.NewMap(form, entries...), nil
}

func parseAddress(n *node, tag string) (dpattern.DPattern, error) {
	if n.kind != nAtom {
		return nil, engineerr.New(engineerr.StageParse, nil, "expected a serialized address")
	}
	v, err := atomValue(n.text)
	if err != nil {
		return nil, err
	}
	addr, ok := v.(dpattern.Address)
	if !ok {
		return nil, engineerr.Newf(engineerr.StageParse, v, "expected an address, got %v", v)
	}
	if addr.SpaceTag != tag {
		return nil, engineerr.Newf(engineerr.StageParse, addr,
			"address tagged %q where space %q was expected", addr.SpaceTag, tag)
	}
	return addr, nil
}

// parseAny handles the Anything component: atoms, raw dictionaries, and
// sets parse; a compound (head …) node cannot be resolved without an
// expected space and errors.
func parseAny(n *node, l *space.Language) (dpattern.DPattern, error) {
	anything := descriptor.Anything()
	switch n.kind {
	case nAtom:
		return atomValue(n.text)
	case nDict:
		return parseDict(n, anything, anything, dpattern.FormRaw, l)
	case nSet:
		elems := make([]dpattern.DPattern, len(n.children))
		for i, c := range n.children {
			e, err := parseAny(c, l)
			if err != nil {
				return nil, err
			}
			elems[i] = e
		}
		return dpattern.NewSet(elems...), nil
	default:
		return nil, engineerr.New(engineerr.StageParse, nil,
			"cannot parse a compound term without an expected space")
	}
}
