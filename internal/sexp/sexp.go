// Package sexp implements the engine's term I/O boundary: parsing
// terms from the tagged-tree form against an expected space, and printing
// them back. The reader is a small hand-rolled recursive-descent scanner,
// not a grammar toolkit — the surface is a fixed tree shape, not a
// surface language.
//
// Concrete syntax accepted:
//
//	(Head child …)     variant value, Head a variant name of the space
//	{k v k v …}        map value
//	#{e e …}           set value
//	@TAG:ID            egal address in the TAG address space
//	#t  #f             booleans
//	#\c #\space        characters
//	"…"                strings
//	123  -4  2.5       numbers
//	anything-else      symbol
package sexp

import (
	"math/big"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dkellis-lab/semlab/internal/dpattern"
	"github.com/dkellis-lab/semlab/internal/engineerr"
)

type nodeKind int

const (
	nAtom nodeKind = iota
	nList
	nDict
	nSet
)

// node is the untyped tree the scanner produces; space-directed parsing
// (parse.go) turns it into DPatterns.
type node struct {
	kind     nodeKind
	text     string // nAtom
	children []*node
}

type scanner struct {
	src []rune
	pos int
}

func readTree(input string) (*node, error) {
	s := &scanner{src: []rune(input)}
	s.skipSpace()
	n, err := s.readNode()
	if err != nil {
		return nil, err
	}
	s.skipSpace()
	if s.pos < len(s.src) {
		return nil, engineerr.Newf(engineerr.StageParse, input,
			"trailing input at offset %d", s.pos)
	}
	return n, nil
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.src) {
		r := s.src[s.pos]
		if r == ',' || unicode.IsSpace(r) {
			s.pos++
			continue
		}
		break
	}
}

func (s *scanner) readNode() (*node, error) {
	if s.pos >= len(s.src) {
		return nil, engineerr.New(engineerr.StageParse, nil, "unexpected end of input")
	}
	switch r := s.src[s.pos]; {
	case r == '(':
		s.pos++
		children, err := s.readUntil(')')
		if err != nil {
			return nil, err
		}
		return &node{kind: nList, children: children}, nil
	case r == '{':
		s.pos++
		children, err := s.readUntil('}')
		if err != nil {
			return nil, err
		}
		if len(children)%2 != 0 {
			return nil, engineerr.New(engineerr.StageParse, nil, "dictionary literal with odd element count")
		}
		return &node{kind: nDict, children: children}, nil
	case r == '#' && s.peek(1) == '{':
		s.pos += 2
		children, err := s.readUntil('}')
		if err != nil {
			return nil, err
		}
		return &node{kind: nSet, children: children}, nil
	case r == ')' || r == '}':
		return nil, engineerr.Newf(engineerr.StageParse, string(r), "unexpected %q", string(r))
	case r == '"':
		return s.readString()
	default:
		return s.readAtom()
	}
}

func (s *scanner) peek(off int) rune {
	if s.pos+off >= len(s.src) {
		return 0
	}
	return s.src[s.pos+off]
}

func (s *scanner) readUntil(close rune) ([]*node, error) {
	var out []*node
	for {
		s.skipSpace()
		if s.pos >= len(s.src) {
			return nil, engineerr.Newf(engineerr.StageParse, nil, "missing closing %q", string(close))
		}
		if s.src[s.pos] == close {
			s.pos++
			return out, nil
		}
		n, err := s.readNode()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
}

func (s *scanner) readString() (*node, error) {
	var b strings.Builder
	b.WriteRune('"')
	s.pos++
	for s.pos < len(s.src) {
		r := s.src[s.pos]
		if r == '\\' && s.pos+1 < len(s.src) {
			b.WriteRune(r)
			b.WriteRune(s.src[s.pos+1])
			s.pos += 2
			continue
		}
		if r == '"' {
			s.pos++
			b.WriteRune('"')
			return &node{kind: nAtom, text: b.String()}, nil
		}
		b.WriteRune(r)
		s.pos++
	}
	return nil, engineerr.New(engineerr.StageParse, nil, "unterminated string literal")
}

func (s *scanner) readAtom() (*node, error) {
	start := s.pos
	// #\c character literals may contain delimiters' first runes; take
	// the prefix plus one rune or a trailing name.
	if s.src[s.pos] == '#' && s.peek(1) == '\\' {
		s.pos += 2
		for s.pos < len(s.src) && isAtomRune(s.src[s.pos]) {
			s.pos++
		}
		if s.pos == start+2 && s.pos < len(s.src) {
			s.pos++ // punctuation character literal like #\(
		}
		return &node{kind: nAtom, text: string(s.src[start:s.pos])}, nil
	}
	for s.pos < len(s.src) && isAtomRune(s.src[s.pos]) {
		s.pos++
	}
	if s.pos == start {
		return nil, engineerr.Newf(engineerr.StageParse, string(s.src[s.pos]),
			"unexpected character %q", string(s.src[s.pos]))
	}
	return &node{kind: nAtom, text: string(s.src[start:s.pos])}, nil
}

func isAtomRune(r rune) bool {
	if unicode.IsSpace(r) {
		return false
	}
	switch r {
	case '(', ')', '{', '}', '"', ',':
		return false
	}
	return true
}

// atomValue classifies an atom token into its DPattern, including the
// egal-address serialization.
func atomValue(text string) (dpattern.DPattern, error) {
	switch {
	case text == "#t":
		return dpattern.Bool(true), nil
	case text == "#f":
		return dpattern.Bool(false), nil
	case strings.HasPrefix(text, "#\\"):
		return charValue(text)
	case strings.HasPrefix(text, "\""):
		unq, err := strconv.Unquote(text)
		if err != nil {
			return nil, engineerr.Newf(engineerr.StageParse, text, "bad string literal %s", text)
		}
		return dpattern.String(unq), nil
	case strings.HasPrefix(text, "@"):
		return addressValue(text)
	}
	if i, ok := new(big.Int).SetString(text, 10); ok {
		return dpattern.BigInt(i), nil
	}
	if looksNumeric(text) {
		f, err := strconv.ParseFloat(text, 64)
		if err == nil {
			return dpattern.Float(f), nil
		}
	}
	return dpattern.Symbol(text), nil
}

func looksNumeric(text string) bool {
	if text == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text)
	if r == '-' || r == '+' {
		r2, _ := utf8.DecodeRuneInString(text[1:])
		return unicode.IsDigit(r2)
	}
	return unicode.IsDigit(r)
}

func charValue(text string) (dpattern.DPattern, error) {
	body := text[2:]
	switch body {
	case "space":
		return dpattern.Char(' '), nil
	case "newline":
		return dpattern.Char('\n'), nil
	case "tab":
		return dpattern.Char('\t'), nil
	}
	r, size := utf8.DecodeRuneInString(body)
	if size == 0 || size != len(body) {
		return nil, engineerr.Newf(engineerr.StageParse, text, "bad character literal %s", text)
	}
	return dpattern.Char(r), nil
}

// addressValue parses a serialized egal address @TAG:ID.
func addressValue(text string) (dpattern.DPattern, error) {
	body := text[1:]
	i := strings.LastIndex(body, ":")
	if i <= 0 {
		return nil, engineerr.Newf(engineerr.StageParse, text, "bad address literal %s", text)
	}
	id, err := strconv.ParseUint(body[i+1:], 10, 64)
	if err != nil {
		return nil, engineerr.Newf(engineerr.StageParse, text, "bad address identifier in %s", text)
	}
	return dpattern.NewAddress(dpattern.Egal, body[:i], id), nil
}
