package compiler

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/jdmiranda/cheerio-select/dom"
	"github.com/jdmiranda/cheerio-select/internal/parser"
)

// positionalPseudos depend on candidate-set rank and are resolved by the
// engine, never by a compiled predicate.
var positionalPseudos = map[string]bool{
	"first": true,
	"last":  true,
	"lt":    true,
	"gt":    true,
	"nth":   true,
	"eq":    true,
	"even":  true,
	"odd":   true,
}

func pseudoMatcher(tok parser.Token, o Options) (Matcher, error) {
	a := o.adapter()
	switch tok.Name {
	case "scope":
		return scopeMatcher(o), nil

	case "root":
		return func(n *html.Node) bool {
			p := a.Parent(n)
			return p == nil || (!a.IsTag(p) && a.Parent(p) == nil)
		}, nil

	case "empty":
		return func(n *html.Node) bool {
			for _, c := range a.Children(n) {
				if a.IsTag(c) || strings.TrimSpace(a.Text(c)) != "" {
					return false
				}
			}
			return true
		}, nil

	case "first-child":
		return func(n *html.Node) bool {
			return a.PrevElementSibling(n) == nil
		}, nil

	case "last-child":
		return func(n *html.Node) bool {
			return len(a.NextElementSiblings(n)) == 0
		}, nil

	case "only-child":
		return func(n *html.Node) bool {
			return a.PrevElementSibling(n) == nil && len(a.NextElementSiblings(n)) == 0
		}, nil

	case "nth-child":
		return nthMatcher(tok, func(n *html.Node) int {
			return elementIndex(n, a)
		})

	case "nth-last-child":
		return nthMatcher(tok, func(n *html.Node) int {
			return len(a.NextElementSiblings(n)) + 1
		})

	case "first-of-type":
		return func(n *html.Node) bool {
			return typeIndex(n, a) == 1
		}, nil

	case "last-of-type":
		return func(n *html.Node) bool {
			return typeIndexFromEnd(n, a) == 1
		}, nil

	case "only-of-type":
		return func(n *html.Node) bool {
			return typeIndex(n, a) == 1 && typeIndexFromEnd(n, a) == 1
		}, nil

	case "nth-of-type":
		return nthMatcher(tok, func(n *html.Node) int {
			return typeIndex(n, a)
		})

	case "nth-last-of-type":
		return nthMatcher(tok, func(n *html.Node) int {
			return typeIndexFromEnd(n, a)
		})

	case "contains":
		text := tok.Data
		return func(n *html.Node) bool {
			return strings.Contains(a.Text(n), text)
		}, nil

	case "icontains":
		text := strings.ToLower(tok.Data)
		return func(n *html.Node) bool {
			return strings.Contains(strings.ToLower(a.Text(n)), text)
		}, nil

	case "not":
		q, err := Compile(tok.Subselect, nestedOptions(o))
		if err != nil {
			return nil, err
		}
		return func(n *html.Node) bool {
			return !q.Match(n)
		}, nil

	case "is", "matches", "where":
		q, err := Compile(tok.Subselect, nestedOptions(o))
		if err != nil {
			return nil, err
		}
		return q.Match, nil

	case "has":
		return hasMatcher(tok, o)

	default:
		if positionalPseudos[tok.Name] {
			return nil, fmt.Errorf("%w: positional pseudo-class :%s needs a candidate set", ErrUnsupported, tok.Name)
		}
		if f, ok := o.Pseudos[tok.Name]; ok {
			data := tok.Data
			return func(n *html.Node) bool {
				return f(n, data)
			}, nil
		}
		return nil, fmt.Errorf("%w: unknown pseudo-class :%s", ErrUnsupported, tok.Name)
	}
}

// nestedOptions strips the per-call anchoring from options before compiling
// a nested selector list: a root-membership predicate constrains the outer
// chain, not sub-expressions.
func nestedOptions(o Options) Options {
	o.RootFunc = nil
	o.Relative = false
	return o
}

func scopeMatcher(o Options) Matcher {
	a := o.adapter()
	if len(o.Context) > 0 {
		ctx := o.Context
		// read through the slice on every call: :has installs a
		// single-entry context it rewrites per candidate
		return func(n *html.Node) bool {
			for _, c := range ctx {
				if c == n {
					return true
				}
			}
			return false
		}
	}
	return func(n *html.Node) bool {
		return a.Parent(n) == nil
	}
}

// hasMatcher compiles the nested list once against a placeholder scope and
// rebinds the placeholder to each candidate at match time.
func hasMatcher(tok parser.Token, o Options) (Matcher, error) {
	a := o.adapter()
	scope := []*html.Node{nil}
	nested := nestedOptions(o)
	nested.Context = scope
	nested.Relative = true
	q, err := Compile(tok.Subselect, nested)
	if err != nil {
		return nil, err
	}
	return func(n *html.Node) bool {
		scope[0] = n
		defer func() { scope[0] = nil }()
		roots := a.Children(n)
		if q.ShouldTestNextSiblings {
			roots = append(roots, a.NextElementSiblings(n)...)
		}
		found := dom.Find(func(c *html.Node) bool {
			return a.IsTag(c) && q.Match(c)
		}, roots, a, 1)
		return len(found) > 0
	}, nil
}

func nthMatcher(tok parser.Token, position func(*html.Node) int) (Matcher, error) {
	step, offset, err := parseNth(tok.Data)
	if err != nil {
		return nil, fmt.Errorf(":%s(%s): %w", tok.Name, tok.Data, err)
	}
	return func(n *html.Node) bool {
		return nthMatch(step, offset, position(n))
	}, nil
}

// elementIndex is the 1-based position of n among its element siblings.
func elementIndex(n *html.Node, a dom.Adapter) int {
	pos := 1
	for s := a.PrevElementSibling(n); s != nil; s = a.PrevElementSibling(s) {
		pos++
	}
	return pos
}

func typeIndex(n *html.Node, a dom.Adapter) int {
	pos := 1
	for s := a.PrevElementSibling(n); s != nil; s = a.PrevElementSibling(s) {
		if s.Data == n.Data {
			pos++
		}
	}
	return pos
}

func typeIndexFromEnd(n *html.Node, a dom.Adapter) int {
	pos := 1
	for _, s := range a.NextElementSiblings(n) {
		if s.Data == n.Data {
			pos++
		}
	}
	return pos
}
