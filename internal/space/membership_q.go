package space

import (
	"github.com/dkellis-lab/semlab/internal/card"
	"github.com/dkellis-lab/semlab/internal/descriptor"
	"github.com/dkellis-lab/semlab/internal/dpattern"
	"github.com/dkellis-lab/semlab/internal/engineerr"
)

// InSpaceQ is the three-valued counterpart of InSpace, used by the
// abstract matcher: external-space membership may be indeterminate
// (card.May), and that indeterminacy propagates through user-space
// alternatives. The boolean InSpace family collapses May to non-member;
// this family keeps it.
func InSpaceQ(l *Language, spaceName string, d dpattern.DPattern, deref dpattern.Deref) (card.Quality, error) {
	sp, err := l.Lookup(spaceName)
	if err != nil {
		return card.MustNot, err
	}
	return inSpaceValueQ(l, sp, d, deref)
}

func inSpaceValueQ(l *Language, sp *Space, d dpattern.DPattern, deref dpattern.Deref) (card.Quality, error) {
	switch sp.Kind {
	case KindUser:
		// Member if any alternative accepts: must if any alternative is a
		// definite member, may if the best verdict is indeterminate.
		best := card.MustNot
		for _, alt := range sp.User.Alternatives {
			q, err := inAlternativeQ(l, alt, d, deref)
			if err != nil {
				return card.MustNot, err
			}
			if q == card.Must {
				return card.Must, nil
			}
			if q == card.May {
				best = card.May
			}
		}
		return best, nil
	case KindAddress:
		addr, ok := d.(dpattern.Address)
		if !ok {
			return card.MustNot, nil
		}
		return card.LiftBool(addr.SpaceTag == sp.Address.Tag), nil
	case KindExternal:
		return sp.External.Member(d), nil
	default:
		return card.MustNot, engineerr.Newf(engineerr.StageInSpace, sp, "space has unknown kind %d", sp.Kind)
	}
}

func inAlternativeQ(l *Language, alt Alternative, d dpattern.DPattern, deref dpattern.Deref) (card.Quality, error) {
	switch alt.Kind {
	case AltVariant:
		return InVariantQ(l, alt.Variant, d, deref)
	case AltSpaceRef:
		return InSpaceQ(l, alt.SpaceName, d, deref)
	case AltComponent:
		return InComponentQ(l, alt.Component, d, deref)
	default:
		return card.MustNot, engineerr.Newf(engineerr.StageInSpace, alt, "alternative has unknown kind %d", alt.Kind)
	}
}

// InVariantQ mirrors InVariant with quality propagation: the verdict is
// the conjunction of the children's verdicts, collapsing to May at the
// first indeterminate child (card.Combine's semantics).
func InVariantQ(l *Language, variant *descriptor.Variant, d dpattern.DPattern, deref dpattern.Deref) (card.Quality, error) {
	v, ok := d.(*dpattern.Variant)
	if !ok || v.Name() != variant.Name || len(v.Children) != len(variant.Components) {
		return card.MustNot, nil
	}
	q := card.Must
	for i, comp := range variant.Components {
		cq, err := InComponentQ(l, comp, v.Children[i], deref)
		if err != nil {
			return card.MustNot, err
		}
		if cq == card.MustNot {
			return card.MustNot, nil
		}
		q = card.Combine(q, cq)
	}
	return q, nil
}

// InComponentQ mirrors InComponent with quality propagation.
func InComponentQ(l *Language, comp *descriptor.Component, d dpattern.DPattern, deref dpattern.Deref) (card.Quality, error) {
	switch comp.Kind {
	case descriptor.ComponentAnything:
		return card.Must, nil
	case descriptor.ComponentSpaceRef:
		return InSpaceQ(l, comp.SpaceName, d, deref)
	case descriptor.ComponentAddressSpace:
		addr, ok := d.(dpattern.Address)
		if !ok {
			return card.MustNot, nil
		}
		return card.LiftBool(addr.SpaceTag == comp.SpaceName), nil
	case descriptor.ComponentMap, descriptor.ComponentQualifiedMap:
		m, ok := d.(*dpattern.Map)
		if !ok {
			return card.MustNot, nil
		}
		q := card.Must
		for _, e := range m.Entries {
			kq, err := InComponentQ(l, comp.Domain, e.Key, deref)
			if err != nil {
				return card.MustNot, err
			}
			vq, err := InComponentQ(l, comp.Range, e.Value, deref)
			if err != nil {
				return card.MustNot, err
			}
			if kq == card.MustNot || vq == card.MustNot {
				return card.MustNot, nil
			}
			q = card.Combine(q, card.Combine(kq, vq))
		}
		return q, nil
	case descriptor.ComponentSetOf:
		s, ok := d.(*dpattern.Set)
		if !ok {
			return card.MustNot, nil
		}
		q := card.Must
		for _, e := range s.Elements {
			eq, err := InComponentQ(l, comp.Elem, e, deref)
			if err != nil {
				return card.MustNot, err
			}
			if eq == card.MustNot {
				return card.MustNot, nil
			}
			q = card.Combine(q, eq)
		}
		return q, nil
	default:
		return card.MustNot, engineerr.Newf(engineerr.StageInSpace, comp, "component has unknown kind %d", comp.Kind)
	}
}
