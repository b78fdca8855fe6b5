// Package parser turns CSS selector text into token sequences.
//
// A selector group is a comma-separated list of alternatives; each
// alternative parses to a Sequence of tokens alternating simple selectors
// and combinators. The parser performs no matching and attaches no
// semantics beyond the token taxonomy; nested selector lists inside
// :not()/:is()/:has()-style pseudos are parsed recursively.
package parser

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSyntax is wrapped by all selector syntax errors.
var ErrSyntax = errors.New("selector syntax error")

// Kind identifies a token. Combinator kinds sort after simple-selector
// kinds; see Token.IsCombinator.
type Kind uint8

const (
	Tag Kind = iota
	Universal
	Attribute
	Pseudo
	PseudoElement
	Descendant
	Child
	Adjacent
	Sibling
)

// AttrAction is the comparison an attribute token performs.
type AttrAction uint8

const (
	Exists  AttrAction = iota // [attr]
	Equals                    // [attr=v], #id
	Element                   // [attr~=v], .class
	Start                     // [attr^=v]
	End                       // [attr$=v]
	Any                       // [attr*=v]
	Not                       // [attr!=v]
	Hyphen                    // [attr|=v]
)

// Token is one step of a selector sequence. The populated fields depend on
// Kind: Name holds the tag, attribute, or pseudo name; Action/Value/IgnoreCase
// apply to attributes; Data holds a raw pseudo argument; Subselect holds the
// parsed nested selector list of :not/:is/:matches/:where/:has.
type Token struct {
	Kind       Kind
	Name       string
	Action     AttrAction
	Value      string
	IgnoreCase bool
	Data       string
	Subselect  []Sequence
}

// Sequence is one selector alternative.
type Sequence []Token

// IsCombinator reports whether the token is a traversal step rather than a
// simple selector.
func (t Token) IsCombinator() bool {
	return t.Kind >= Descendant
}

// subselectPseudos take a selector list, not a plain string, as argument.
var subselectPseudos = map[string]bool{
	"not":     true,
	"is":      true,
	"matches": true,
	"where":   true,
	"has":     true,
}

// Parse parses a selector group into its alternatives.
func Parse(selector string) ([]Sequence, error) {
	sc := &scanner{src: selector}
	var group []Sequence
	for {
		seq, err := sc.parseSequence()
		if err != nil {
			return nil, err
		}
		if len(seq) == 0 {
			return nil, fmt.Errorf("%w: empty selector in %q", ErrSyntax, selector)
		}
		group = append(group, seq)
		if sc.eof() {
			return group, nil
		}
		// parseSequence only stops early at a comma
		sc.pos++
	}
}

type scanner struct {
	src string
	pos int
}

func (sc *scanner) eof() bool {
	return sc.pos >= len(sc.src)
}

func (sc *scanner) peek() byte {
	return sc.src[sc.pos]
}

func (sc *scanner) skipSpace() {
	for !sc.eof() && isSpace(sc.peek()) {
		sc.pos++
	}
}

func (sc *scanner) parseSequence() (Sequence, error) {
	var seq Sequence
	sc.skipSpace()
	for !sc.eof() {
		switch c := sc.peek(); {
		case c == ',':
			return sc.finishSequence(seq)
		case c == '>' || c == '+' || c == '~':
			if len(seq) > 0 && seq[len(seq)-1].IsCombinator() {
				if seq[len(seq)-1].Kind != Descendant {
					return nil, fmt.Errorf("%w: consecutive combinators at offset %d", ErrSyntax, sc.pos)
				}
				seq = seq[:len(seq)-1] // whitespace before an explicit combinator is decoration
			}
			seq = append(seq, Token{Kind: combinatorKind(c)})
			sc.pos++
			sc.skipSpace()
		case isSpace(c):
			sc.skipSpace()
			if sc.eof() || sc.peek() == ',' {
				continue
			}
			seq = append(seq, Token{Kind: Descendant})
		default:
			tok, err := sc.parseSimple()
			if err != nil {
				return nil, err
			}
			seq = append(seq, tok)
		}
	}
	return sc.finishSequence(seq)
}

func (sc *scanner) finishSequence(seq Sequence) (Sequence, error) {
	if len(seq) > 0 && seq[len(seq)-1].Kind == Descendant {
		seq = seq[:len(seq)-1]
	}
	if len(seq) > 0 && seq[len(seq)-1].IsCombinator() {
		return nil, fmt.Errorf("%w: selector ends with a combinator", ErrSyntax)
	}
	return seq, nil
}

func combinatorKind(c byte) Kind {
	switch c {
	case '>':
		return Child
	case '+':
		return Adjacent
	default:
		return Sibling
	}
}

func (sc *scanner) parseSimple() (Token, error) {
	switch c := sc.peek(); c {
	case '*':
		sc.pos++
		return Token{Kind: Universal}, nil
	case '.':
		sc.pos++
		name, err := sc.scanIdent()
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: Attribute, Name: "class", Action: Element, Value: name}, nil
	case '#':
		sc.pos++
		name, err := sc.scanIdent()
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: Attribute, Name: "id", Action: Equals, Value: name}, nil
	case '[':
		return sc.parseAttribute()
	case ':':
		return sc.parsePseudo()
	default:
		name, err := sc.scanIdent()
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: Tag, Name: name}, nil
	}
}

func (sc *scanner) parseAttribute() (Token, error) {
	sc.pos++ // '['
	sc.skipSpace()
	name, err := sc.scanIdent()
	if err != nil {
		return Token{}, err
	}
	tok := Token{Kind: Attribute, Name: name, Action: Exists}
	sc.skipSpace()
	if sc.eof() {
		return Token{}, fmt.Errorf("%w: unterminated attribute selector", ErrSyntax)
	}
	if sc.peek() != ']' {
		tok.Action, err = sc.scanAttrAction()
		if err != nil {
			return Token{}, err
		}
		sc.skipSpace()
		tok.Value, err = sc.scanValue()
		if err != nil {
			return Token{}, err
		}
		sc.skipSpace()
		if !sc.eof() && (sc.peek() == 'i' || sc.peek() == 'I') {
			tok.IgnoreCase = true
			sc.pos++
			sc.skipSpace()
		}
	}
	if sc.eof() || sc.peek() != ']' {
		return Token{}, fmt.Errorf("%w: expected ']' in attribute selector", ErrSyntax)
	}
	sc.pos++
	return tok, nil
}

func (sc *scanner) scanAttrAction() (AttrAction, error) {
	c := sc.peek()
	if c == '=' {
		sc.pos++
		return Equals, nil
	}
	var action AttrAction
	switch c {
	case '^':
		action = Start
	case '$':
		action = End
	case '*':
		action = Any
	case '~':
		action = Element
	case '|':
		action = Hyphen
	case '!':
		action = Not
	default:
		return 0, fmt.Errorf("%w: unexpected %q in attribute selector", ErrSyntax, string(c))
	}
	sc.pos++
	if sc.eof() || sc.peek() != '=' {
		return 0, fmt.Errorf("%w: expected '=' after %q", ErrSyntax, string(c))
	}
	sc.pos++
	return action, nil
}

func (sc *scanner) scanValue() (string, error) {
	if sc.eof() {
		return "", fmt.Errorf("%w: missing attribute value", ErrSyntax)
	}
	if q := sc.peek(); q == '\'' || q == '"' {
		return sc.scanQuoted(q)
	}
	return sc.scanIdent()
}

func (sc *scanner) scanQuoted(q byte) (string, error) {
	sc.pos++ // opening quote
	var b strings.Builder
	for !sc.eof() {
		c := sc.peek()
		switch c {
		case q:
			sc.pos++
			return b.String(), nil
		case '\\':
			sc.pos++
			if sc.eof() {
				return "", fmt.Errorf("%w: dangling escape", ErrSyntax)
			}
			b.WriteByte(sc.peek())
			sc.pos++
		default:
			b.WriteByte(c)
			sc.pos++
		}
	}
	return "", fmt.Errorf("%w: unterminated string", ErrSyntax)
}

func (sc *scanner) parsePseudo() (Token, error) {
	sc.pos++ // ':'
	kind := Pseudo
	if !sc.eof() && sc.peek() == ':' {
		kind = PseudoElement
		sc.pos++
	}
	name, err := sc.scanIdent()
	if err != nil {
		return Token{}, err
	}
	tok := Token{Kind: kind, Name: strings.ToLower(name)}
	if sc.eof() || sc.peek() != '(' {
		return tok, nil
	}
	arg, err := sc.scanParenArg()
	if err != nil {
		return Token{}, err
	}
	if kind == Pseudo && subselectPseudos[tok.Name] {
		sub, err := Parse(arg)
		if err != nil {
			return Token{}, fmt.Errorf("in :%s(%s): %w", tok.Name, arg, err)
		}
		tok.Subselect = sub
		return tok, nil
	}
	tok.Data = unquote(arg)
	return tok, nil
}

// scanParenArg consumes a balanced parenthesized argument, respecting
// nested parentheses, quoted strings, and escapes. The surrounding
// parentheses and whitespace are stripped.
func (sc *scanner) scanParenArg() (string, error) {
	depth := 0
	start := sc.pos + 1
	for i := sc.pos; i < len(sc.src); i++ {
		switch sc.src[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				arg := strings.TrimSpace(sc.src[start:i])
				sc.pos = i + 1
				return arg, nil
			}
		case '\'', '"':
			q := sc.src[i]
			for i++; i < len(sc.src) && sc.src[i] != q; i++ {
				if sc.src[i] == '\\' {
					i++
				}
			}
			if i >= len(sc.src) {
				return "", fmt.Errorf("%w: unterminated string", ErrSyntax)
			}
		case '\\':
			i++
		}
	}
	return "", fmt.Errorf("%w: unterminated '('", ErrSyntax)
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func (sc *scanner) scanIdent() (string, error) {
	var b strings.Builder
	for !sc.eof() {
		c := sc.peek()
		switch {
		case c == '\\':
			sc.pos++
			if sc.eof() {
				return "", fmt.Errorf("%w: dangling escape", ErrSyntax)
			}
			b.WriteByte(sc.peek())
			sc.pos++
		case isIdentByte(c):
			b.WriteByte(c)
			sc.pos++
		default:
			if b.Len() == 0 {
				return "", fmt.Errorf("%w: unexpected %q at offset %d", ErrSyntax, string(c), sc.pos)
			}
			return b.String(), nil
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: unexpected end of selector", ErrSyntax)
	}
	return b.String(), nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isIdentByte(c byte) bool {
	return c == '-' || c == '_' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') || c >= 0x80
}
