package sexp

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dkellis-lab/semlab/internal/dpattern"
)

// Print renders a DPattern in the concrete syntax Parse reads:
// variants as (name child …), maps as dictionaries with recursively
// rendered keys and values, external values as their payload verbatim.
// Map entries and set elements print in sorted text order so equal
// values print identically regardless of construction history.
func Print(d dpattern.DPattern) string {
	var b strings.Builder
	printTo(&b, d)
	return b.String()
}

func printTo(b *strings.Builder, d dpattern.DPattern) {
	switch v := d.(type) {
	case dpattern.Number:
		b.WriteString(v.String())
	case dpattern.Bool:
		if v {
			b.WriteString("#t")
		} else {
			b.WriteString("#f")
		}
	case dpattern.Symbol:
		b.WriteString(string(v))
	case dpattern.Char:
		printChar(b, rune(v))
	case dpattern.String:
		b.WriteString(strconv.Quote(string(v)))
	case *dpattern.Variant:
		b.WriteByte('(')
		b.WriteString(v.Name())
		for _, c := range v.Children {
			b.WriteByte(' ')
			printTo(b, c)
		}
		b.WriteByte(')')
	case dpattern.Address:
		if v.AddrKind == dpattern.Egal {
			fmt.Fprintf(b, "@%s:%d", v.SpaceTag, v.ID)
		} else {
			// Structural addresses have no parseable serialization; only
			// egal addresses round-trip.
			fmt.Fprintf(b, "@~%s:%d", v.SpaceTag, v.ID)
		}
	case *dpattern.Map:
		pairs := make([]string, 0, v.Len())
		for _, e := range v.Entries {
			pairs = append(pairs, Print(e.Key)+" "+Print(e.Value))
		}
		sort.Strings(pairs)
		b.WriteByte('{')
		b.WriteString(strings.Join(pairs, " "))
		b.WriteByte('}')
	case *dpattern.Set:
		elems := make([]string, 0, v.Len())
		for _, e := range v.Elements {
			elems = append(elems, Print(e))
		}
		sort.Strings(elems)
		b.WriteString("#{")
		b.WriteString(strings.Join(elems, " "))
		b.WriteByte('}')
	case *dpattern.External:
		b.WriteString(v.Payload.String())
	default:
		fmt.Fprintf(b, "#<unprintable %T>", d)
	}
}

func printChar(b *strings.Builder, r rune) {
	switch r {
	case ' ':
		b.WriteString("#\\space")
	case '\n':
		b.WriteString("#\\newline")
	case '\t':
		b.WriteString("#\\tab")
	default:
		b.WriteString("#\\")
		b.WriteRune(r)
	}
}
