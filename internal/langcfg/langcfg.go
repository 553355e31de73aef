// Package langcfg loads declarative language/rule-set bundles from YAML:
// a small yaml-tagged struct family unmarshalled with gopkg.in/yaml.v3,
// then validated and lowered onto the engine's own types.
//
// Bundles carry the language's spaces, pure pattern-to-pattern rewrite
// rules (binding lists and meta-functions stay programmatic — they are
// code, not configuration), and an optional start state for the demo
// driver.
package langcfg

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dkellis-lab/semlab/internal/descriptor"
	"github.com/dkellis-lab/semlab/internal/rule"
	"github.com/dkellis-lab/semlab/internal/sexp"
	"github.com/dkellis-lab/semlab/internal/space"
	"github.com/dkellis-lab/semlab/internal/store"
)

// Bundle is the top-level YAML document.
type Bundle struct {
	Language LanguageConfig `yaml:"language"`
	Rules    []RuleConfig   `yaml:"rules"`
	Start    *StartConfig   `yaml:"start"`
	MaxSteps int            `yaml:"max-steps"`
}

type LanguageConfig struct {
	Name   string                 `yaml:"name"`
	Spaces map[string]SpaceConfig `yaml:"spaces"`
}

// SpaceConfig declares one space: an address space (address-tag set) or
// a user space (alternatives set). External spaces are code, not
// configuration — they carry opaque predicates.
type SpaceConfig struct {
	AddressTag     string      `yaml:"address-tag"`
	TrustRecursion bool        `yaml:"trust-recursion"`
	Alternatives   []AltConfig `yaml:"alternatives"`
}

// AltConfig is one alternative: exactly one field is set.
type AltConfig struct {
	Variant   *VariantConfig `yaml:"variant"`
	Ref       string         `yaml:"ref"`
	Component string         `yaml:"component"`
}

type VariantConfig struct {
	Name       string   `yaml:"name"`
	Components []string `yaml:"components"`
}

// RuleConfig is a pure rewrite rule: both sides in the pattern syntax of
// internal/sexp.ParsePattern.
type RuleConfig struct {
	Name string `yaml:"name"`
	LHS  string `yaml:"lhs"`
	RHS  string `yaml:"rhs"`
}

type StartConfig struct {
	Space string `yaml:"space"`
	Term  string `yaml:"term"`
}

// Load reads and decodes a bundle file.
func Load(path string) (*Bundle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}
	return Decode(raw)
}

// Decode decodes a bundle from YAML bytes.
func Decode(raw []byte) (*Bundle, error) {
	var b Bundle
	if err := yaml.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decoding bundle: %w", err)
	}
	if b.Language.Name == "" {
		return nil, fmt.Errorf("bundle is missing language.name")
	}
	return &b, nil
}

// BuildLanguage lowers the bundle's space declarations onto a validated
// Language.
func (b *Bundle) BuildLanguage() (*space.Language, error) {
	spaces := make(map[string]*space.Space, len(b.Language.Spaces))
	for name, sc := range b.Language.Spaces {
		sp, err := sc.build(name)
		if err != nil {
			return nil, err
		}
		spaces[name] = sp
	}
	return space.NewLanguage(b.Language.Name, spaces)
}

func (sc SpaceConfig) build(name string) (*space.Space, error) {
	if sc.AddressTag != "" {
		if len(sc.Alternatives) > 0 {
			return nil, fmt.Errorf("space %q declares both an address tag and alternatives", name)
		}
		return space.NewAddressSpace(sc.AddressTag), nil
	}
	alts := make([]space.Alternative, 0, len(sc.Alternatives))
	for i, ac := range sc.Alternatives {
		switch {
		case ac.Variant != nil:
			comps := make([]*descriptor.Component, len(ac.Variant.Components))
			for j, cs := range ac.Variant.Components {
				c, err := parseComponentSpec(cs)
				if err != nil {
					return nil, fmt.Errorf("space %q variant %q component %d: %w",
						name, ac.Variant.Name, j, err)
				}
				comps[j] = c
			}
			alts = append(alts, space.VariantAlt(descriptor.NewVariant(ac.Variant.Name, comps...)))
		case ac.Ref != "":
			alts = append(alts, space.SpaceRefAlt(ac.Ref))
		case ac.Component != "":
			c, err := parseComponentSpec(ac.Component)
			if err != nil {
				return nil, fmt.Errorf("space %q alternative %d: %w", name, i, err)
			}
			alts = append(alts, space.ComponentAlt(c))
		default:
			return nil, fmt.Errorf("space %q alternative %d is empty", name, i)
		}
	}
	return space.NewUserSpace(sc.TrustRecursion, alts...), nil
}

// parseComponentSpec reads the component mini-syntax used in bundles:
//
//	anything        the trusted Anything component
//	addr:TAG        an address-space component
//	map[D]R        a map component (D, R recursively specs)
//	absmap[D]R     a qualified map with an abstract domain
//	set[E]          a set-of component
//	NAME            a space reference
func parseComponentSpec(s string) (*descriptor.Component, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return nil, fmt.Errorf("empty component spec")
	case s == "anything":
		return descriptor.Anything(), nil
	case strings.HasPrefix(s, "addr:"):
		return descriptor.AddressSpace(s[len("addr:"):]), nil
	case strings.HasPrefix(s, "map["):
		dom, rng, err := splitMapSpec(s[len("map["):])
		if err != nil {
			return nil, err
		}
		return descriptor.Map(dom, rng), nil
	case strings.HasPrefix(s, "absmap["):
		dom, rng, err := splitMapSpec(s[len("absmap["):])
		if err != nil {
			return nil, err
		}
		return descriptor.QualifiedMap(dom, descriptor.PrecisionAbstract, rng), nil
	case strings.HasPrefix(s, "set["):
		if !strings.HasSuffix(s, "]") {
			return nil, fmt.Errorf("unterminated set component %q", s)
		}
		elem, err := parseComponentSpec(s[len("set[") : len(s)-1])
		if err != nil {
			return nil, err
		}
		return descriptor.SetOf(elem), nil
	default:
		return descriptor.SpaceRef(s), nil
	}
}

// splitMapSpec parses "D]R" where D is bracket-balanced.
func splitMapSpec(s string) (*descriptor.Component, *descriptor.Component, error) {
	depth := 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			if depth == 0 {
				dom, err := parseComponentSpec(s[:i])
				if err != nil {
					return nil, nil, err
				}
				rng, err := parseComponentSpec(s[i+1:])
				if err != nil {
					return nil, nil, err
				}
				return dom, rng, nil
			}
			depth--
		}
	}
	return nil, nil, fmt.Errorf("unterminated map component %q", s)
}

// BuildRules lowers the bundle's rewrite rules against a built language.
func (b *Bundle) BuildRules(l *space.Language) ([]*rule.Rule, error) {
	rules := make([]*rule.Rule, 0, len(b.Rules))
	for _, rc := range b.Rules {
		if rc.Name == "" {
			return nil, fmt.Errorf("rule with empty name")
		}
		lhs, err := sexp.ParsePattern(rc.LHS, l)
		if err != nil {
			return nil, fmt.Errorf("rule %q lhs: %w", rc.Name, err)
		}
		rhs, err := sexp.ParsePattern(rc.RHS, l)
		if err != nil {
			return nil, fmt.Errorf("rule %q rhs: %w", rc.Name, err)
		}
		rules = append(rules, &rule.Rule{Name: rc.Name, LHS: lhs, RHS: rhs})
	}
	return rules, nil
}

// BuildStart parses the bundle's start term into an initial state with an
// empty store.
func (b *Bundle) BuildStart(l *space.Language) (store.State, error) {
	if b.Start == nil {
		return store.State{}, fmt.Errorf("bundle declares no start state")
	}
	term, err := sexp.Parse(b.Start.Term, b.Start.Space, l)
	if err != nil {
		return store.State{}, err
	}
	return store.State{Term: term, Store: store.Empty()}, nil
}
