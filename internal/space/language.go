package space

import (
	"fmt"
	"sort"

	"github.com/dkellis-lab/semlab/internal/descriptor"
	"github.com/dkellis-lab/semlab/internal/engineerr"
)

// Language is a name plus a mapping from space name to space, with
// mutually recursive scope.
type Language struct {
	Name   string
	Spaces map[string]*Space

	// variants interns every distinct variant name seen across the
	// language's spaces onto a single *descriptor.Variant pointer, so
	// name comparison is pointer comparison.
	variants map[string]*descriptor.Variant
}

// NewLanguage builds and validates a Language from a name and a mapping
// from space name to space.
//
// Every violated invariant is accumulated into a single error rather
// than stopping at the first. Validates:
//   - every space reference resolves,
//   - arities of same-named variants agree,
//   - address-space tags are unique,
//   - mutually recursive user spaces either all or none declare
//     trust-recursion? — approximated here as: every user space in
//     the language agrees on trust-recursion; a single flag per language
//     is the conservative reading, since recursive groups are not
//     partitioned further.
func NewLanguage(name string, spaces map[string]*Space) (*Language, error) {
	l := &Language{Name: name, Spaces: spaces, variants: map[string]*descriptor.Variant{}}

	var problems []string

	// Intern variants and check arity agreement.
	for spaceName, sp := range spaces {
		if sp == nil || sp.Kind != KindUser {
			continue
		}
		for i := range sp.User.Alternatives {
			alt := &sp.User.Alternatives[i]
			if alt.Kind != AltVariant || alt.Variant == nil {
				continue
			}
			v := alt.Variant
			if existing, ok := l.variants[v.Name]; ok {
				if !descriptor.SameArity(existing, v) {
					problems = append(problems, fmt.Sprintf(
						"space %q: variant %q redeclared with arity %d, previously %d",
						spaceName, v.Name, v.Arity(), existing.Arity()))
					continue
				}
				// Re-point this alternative's descriptor at the interned
				// one so later pointer-equality comparisons work.
				alt.Variant = existing
			} else {
				l.variants[v.Name] = v
			}
		}
	}

	// Every space reference (alternative, component, address-space tag)
	// must resolve.
	for spaceName, sp := range spaces {
		problems = append(problems, checkResolves(l, spaceName, sp)...)
	}

	// Address-space tags are unique.
	tagOwners := map[string]string{}
	for spaceName, sp := range spaces {
		if sp == nil || sp.Kind != KindAddress {
			continue
		}
		if owner, ok := tagOwners[sp.Address.Tag]; ok {
			problems = append(problems, fmt.Sprintf(
				"address space tag %q used by both %q and %q", sp.Address.Tag, owner, spaceName))
			continue
		}
		tagOwners[sp.Address.Tag] = spaceName
	}

	// trust-recursion? must agree across every user space in the
	// language (see doc comment above).
	var sawTrue, sawFalse bool
	for _, sp := range spaces {
		if sp == nil || sp.Kind != KindUser {
			continue
		}
		if sp.User.TrustRecursion {
			sawTrue = true
		} else {
			sawFalse = true
		}
	}
	if sawTrue && sawFalse {
		problems = append(problems, "mutually recursive user spaces disagree on trust-recursion?")
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, engineerr.New(engineerr.StageInSpace, name, fmt.Sprintf(
			"language %q failed validation:\n  - %s", name, joinProblems(problems)))
	}
	return l, nil
}

func joinProblems(problems []string) string {
	out := problems[0]
	for _, p := range problems[1:] {
		out += "\n  - " + p
	}
	return out
}

func checkResolves(l *Language, ownerSpace string, sp *Space) []string {
	var problems []string
	if sp == nil {
		return problems
	}
	switch sp.Kind {
	case KindUser:
		for _, alt := range sp.User.Alternatives {
			switch alt.Kind {
			case AltSpaceRef:
				if _, ok := l.Spaces[alt.SpaceName]; !ok {
					problems = append(problems, fmt.Sprintf(
						"space %q: undefined space reference %q", ownerSpace, alt.SpaceName))
				}
			case AltVariant:
				for _, c := range alt.Variant.Components {
					problems = append(problems, checkComponentResolves(l, ownerSpace, c)...)
				}
			case AltComponent:
				problems = append(problems, checkComponentResolves(l, ownerSpace, alt.Component)...)
			}
		}
	case KindAddress, KindExternal:
		// no nested references to validate.
	}
	return problems
}

func checkComponentResolves(l *Language, ownerSpace string, c *descriptor.Component) []string {
	if c == nil {
		return nil
	}
	var problems []string
	switch c.Kind {
	case descriptor.ComponentSpaceRef, descriptor.ComponentAddressSpace:
		if _, ok := l.Spaces[c.SpaceName]; !ok {
			problems = append(problems, fmt.Sprintf(
				"space %q: undefined space reference %q", ownerSpace, c.SpaceName))
		}
	case descriptor.ComponentMap, descriptor.ComponentQualifiedMap:
		problems = append(problems, checkComponentResolves(l, ownerSpace, c.Domain)...)
		problems = append(problems, checkComponentResolves(l, ownerSpace, c.Range)...)
	case descriptor.ComponentSetOf:
		problems = append(problems, checkComponentResolves(l, ownerSpace, c.Elem)...)
	case descriptor.ComponentAnything:
	}
	return problems
}

// Variant returns the interned variant descriptor for name, if any space
// in the language declares it.
func (l *Language) Variant(name string) (*descriptor.Variant, bool) {
	v, ok := l.variants[name]
	return v, ok
}

// Lookup returns the named space, or an error tagged StageInSpace if
// undefined.
func (l *Language) Lookup(name string) (*Space, error) {
	sp, ok := l.Spaces[name]
	if !ok {
		return nil, engineerr.New(engineerr.StageInSpace, name, fmt.Sprintf("undefined space %q", name))
	}
	return sp, nil
}
