package space

import (
	"github.com/dkellis-lab/semlab/internal/card"
	"github.com/dkellis-lab/semlab/internal/descriptor"
	"github.com/dkellis-lab/semlab/internal/dpattern"
	"github.com/dkellis-lab/semlab/internal/engineerr"
)

// InSpace, InVariant, and InComponent form the mutually recursive
// membership predicate family. Membership is purely structural:
// no value carries a tag identifying which space it was built for, so
// every check walks the value against the space's shape.
//
// deref is passed down through the whole family, but no predicate in it
// dereferences: an address never satisfies a variant, map or set shape,
// whatever value it points at.
func InSpace(l *Language, spaceName string, d dpattern.DPattern, deref dpattern.Deref) (bool, error) {
	sp, err := l.Lookup(spaceName)
	if err != nil {
		return false, err
	}
	return inSpaceValue(l, sp, d, deref)
}

func inSpaceValue(l *Language, sp *Space, d dpattern.DPattern, deref dpattern.Deref) (bool, error) {
	switch sp.Kind {
	case KindUser:
		for _, alt := range sp.User.Alternatives {
			ok, err := inAlternative(l, alt, d, deref)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case KindAddress:
		addr, ok := d.(dpattern.Address)
		if !ok {
			return false, nil
		}
		return addr.SpaceTag == sp.Address.Tag, nil
	case KindExternal:
		q := sp.External.Member(d)
		return q == card.Must, nil
	default:
		return false, engineerr.Newf(engineerr.StageInSpace, sp, "space has unknown kind %d", sp.Kind)
	}
}

func inAlternative(l *Language, alt Alternative, d dpattern.DPattern, deref dpattern.Deref) (bool, error) {
	switch alt.Kind {
	case AltVariant:
		return InVariant(l, alt.Variant, d, deref)
	case AltSpaceRef:
		return InSpace(l, alt.SpaceName, d, deref)
	case AltComponent:
		return InComponent(l, alt.Component, d, deref)
	default:
		return false, engineerr.Newf(engineerr.StageInSpace, alt, "alternative has unknown kind %d", alt.Kind)
	}
}

// InVariant reports whether d is a variant value whose descriptor
// matches variant (by interned name), and whose children
// each satisfy the corresponding component descriptor.
func InVariant(l *Language, variant *descriptor.Variant, d dpattern.DPattern, deref dpattern.Deref) (bool, error) {
	v, ok := d.(*dpattern.Variant)
	if !ok {
		return false, nil
	}
	if v.Name() != variant.Name {
		return false, nil
	}
	if len(v.Children) != len(variant.Components) {
		return false, nil
	}
	for i, comp := range variant.Components {
		ok, err := InComponent(l, comp, v.Children[i], deref)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// InComponent reports whether d satisfies a single component descriptor.
func InComponent(l *Language, comp *descriptor.Component, d dpattern.DPattern, deref dpattern.Deref) (bool, error) {
	switch comp.Kind {
	case descriptor.ComponentAnything:
		return true, nil
	case descriptor.ComponentSpaceRef:
		return InSpace(l, comp.SpaceName, d, deref)
	case descriptor.ComponentAddressSpace:
		addr, ok := d.(dpattern.Address)
		if !ok {
			return false, nil
		}
		return addr.SpaceTag == comp.SpaceName, nil
	case descriptor.ComponentMap, descriptor.ComponentQualifiedMap:
		m, ok := d.(*dpattern.Map)
		if !ok {
			return false, nil
		}
		for _, e := range m.Entries {
			kok, err := InComponent(l, comp.Domain, e.Key, deref)
			if err != nil {
				return false, err
			}
			if !kok {
				return false, nil
			}
			vok, err := InComponent(l, comp.Range, e.Value, deref)
			if err != nil {
				return false, err
			}
			if !vok {
				return false, nil
			}
		}
		return true, nil
	case descriptor.ComponentSetOf:
		s, ok := d.(*dpattern.Set)
		if !ok {
			return false, nil
		}
		for _, e := range s.Elements {
			ok, err := InComponent(l, comp.Elem, e, deref)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	default:
		return false, engineerr.Newf(engineerr.StageInSpace, comp, "component has unknown kind %d", comp.Kind)
	}
}
