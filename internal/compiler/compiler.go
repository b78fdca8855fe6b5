// Package compiler turns plain (non-positional) selector sequences into
// boolean predicates over nodes.
//
// Sequences compile left to right. Simple selectors conjoin a check on the
// current node; combinators re-anchor the accumulated predicate onto the
// related node (parent, ancestors, previous sibling, preceding siblings).
// The initial accumulated predicate is Options.RootFunc when set, which is
// how callers constrain the far end of a traversal chain to a node set.
package compiler

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/jdmiranda/cheerio-select/dom"
	"github.com/jdmiranda/cheerio-select/internal/parser"
)

// ErrUnsupported is wrapped by errors for selector features the compiler
// cannot express as a per-node predicate.
var ErrUnsupported = errors.New("unsupported selector")

// Matcher tests a single node.
type Matcher func(*html.Node) bool

// Options carry the matching-relevant configuration. Context and RootFunc
// vary per call site and are deliberately not part of any cache key.
type Options struct {
	// XMLMode makes tag and attribute names case-sensitive.
	XMLMode bool
	// Relative absolutizes sequences to ":scope <seq>" when a Context is set.
	Relative bool
	// Adapter overrides node access; nil means dom.Default.
	Adapter dom.Adapter
	// Pseudos are caller-registered pseudo-classes, keyed by name.
	Pseudos map[string]func(n *html.Node, data string) bool
	// Context is the node set :scope resolves to.
	Context []*html.Node
	// RootFunc anchors the leftmost end of every sequence when non-nil.
	RootFunc func(*html.Node) bool
}

func (o Options) adapter() dom.Adapter {
	if o.Adapter != nil {
		return o.Adapter
	}
	return dom.Default
}

// Query is a compiled selector group.
type Query struct {
	// Match reports whether an element satisfies the group.
	Match Matcher
	// ShouldTestNextSiblings is set when an alternative leads with a
	// sibling combinator, so matches may sit after the search roots
	// rather than below them.
	ShouldTestNextSiblings bool
}

// Compile compiles a selector group into a single Query matching any of
// its alternatives.
func Compile(sel []parser.Sequence, o Options) (*Query, error) {
	matchers := make([]Matcher, 0, len(sel))
	shouldTestNextSiblings := false
	for _, seq := range sel {
		if len(seq) > 0 && (seq[0].Kind == parser.Sibling || seq[0].Kind == parser.Adjacent) {
			shouldTestNextSiblings = true
		}
		m, err := compileSequence(seq, o)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, m)
	}
	switch len(matchers) {
	case 0:
		return &Query{Match: func(*html.Node) bool { return false }}, nil
	case 1:
		return &Query{Match: matchers[0], ShouldTestNextSiblings: shouldTestNextSiblings}, nil
	}
	match := func(n *html.Node) bool {
		for _, m := range matchers {
			if m(n) {
				return true
			}
		}
		return false
	}
	return &Query{Match: match, ShouldTestNextSiblings: shouldTestNextSiblings}, nil
}

func trueFunc(*html.Node) bool { return true }

var scopeToken = parser.Token{Kind: parser.Pseudo, Name: "scope"}

// absolutize anchors a sequence to the scope: combinator-leading sequences
// always get a :scope prefix, even when they carry a scope marker of their
// own further along; relative sequences become ":scope <seq>" unless they
// already reference the scope. The caller's sequence is never modified.
func absolutize(seq parser.Sequence, o Options) parser.Sequence {
	if len(seq) > 0 && seq[0].IsCombinator() {
		return append(parser.Sequence{scopeToken}, seq...)
	}
	if o.Relative && len(o.Context) > 0 && !containsScope(seq) {
		return append(parser.Sequence{scopeToken, {Kind: parser.Descendant}}, seq...)
	}
	return seq
}

func containsScope(seq parser.Sequence) bool {
	for _, t := range seq {
		if t.Kind == parser.Pseudo && t.Name == "scope" {
			return true
		}
	}
	return false
}

func compileSequence(seq parser.Sequence, o Options) (Matcher, error) {
	seq = absolutize(seq, o)
	a := o.adapter()
	prev := o.RootFunc
	if prev == nil {
		prev = trueFunc
	}
	for _, tok := range seq {
		inner := prev
		switch tok.Kind {
		case parser.Descendant:
			prev = func(n *html.Node) bool {
				for p := a.Parent(n); p != nil; p = a.Parent(p) {
					if inner(p) {
						return true
					}
				}
				return false
			}
		case parser.Child:
			prev = func(n *html.Node) bool {
				p := a.Parent(n)
				return p != nil && inner(p)
			}
		case parser.Adjacent:
			prev = func(n *html.Node) bool {
				p := a.PrevElementSibling(n)
				return p != nil && inner(p)
			}
		case parser.Sibling:
			prev = func(n *html.Node) bool {
				for s := a.PrevElementSibling(n); s != nil; s = a.PrevElementSibling(s) {
					if inner(s) {
						return true
					}
				}
				return false
			}
		case parser.Universal:
			prev = func(n *html.Node) bool {
				return a.IsTag(n) && inner(n)
			}
		case parser.Tag:
			check := tagMatcher(tok.Name, o)
			prev = func(n *html.Node) bool {
				return check(n) && inner(n)
			}
		case parser.Attribute:
			check := attrMatcher(tok, o)
			prev = func(n *html.Node) bool {
				return check(n) && inner(n)
			}
		case parser.Pseudo:
			check, err := pseudoMatcher(tok, o)
			if err != nil {
				return nil, err
			}
			prev = func(n *html.Node) bool {
				return check(n) && inner(n)
			}
		default:
			return nil, fmt.Errorf("%w: pseudo-elements cannot be matched", ErrUnsupported)
		}
	}
	return prev, nil
}

func tagMatcher(name string, o Options) Matcher {
	a := o.adapter()
	if o.XMLMode {
		return func(n *html.Node) bool {
			return a.IsTag(n) && n.Data == name
		}
	}
	lower := strings.ToLower(name)
	return func(n *html.Node) bool {
		// net/html lower-cases element names while parsing HTML
		return a.IsTag(n) && n.Data == lower
	}
}

func attrMatcher(tok parser.Token, o Options) Matcher {
	a := o.adapter()
	name := tok.Name
	if !o.XMLMode {
		name = strings.ToLower(name)
	}
	if tok.Action == parser.Exists {
		return func(n *html.Node) bool {
			_, ok := a.Attr(n, name)
			return ok
		}
	}
	want := tok.Value
	fold := tok.IgnoreCase
	if fold {
		want = strings.ToLower(want)
	}
	norm := func(v string) string {
		if fold {
			return strings.ToLower(v)
		}
		return v
	}
	switch tok.Action {
	case parser.Equals:
		return func(n *html.Node) bool {
			v, ok := a.Attr(n, name)
			return ok && norm(v) == want
		}
	case parser.Element:
		return func(n *html.Node) bool {
			v, ok := a.Attr(n, name)
			if !ok {
				return false
			}
			for _, field := range strings.Fields(norm(v)) {
				if field == want {
					return true
				}
			}
			return false
		}
	case parser.Start:
		return func(n *html.Node) bool {
			v, ok := a.Attr(n, name)
			return ok && want != "" && strings.HasPrefix(norm(v), want)
		}
	case parser.End:
		return func(n *html.Node) bool {
			v, ok := a.Attr(n, name)
			return ok && want != "" && strings.HasSuffix(norm(v), want)
		}
	case parser.Any:
		return func(n *html.Node) bool {
			v, ok := a.Attr(n, name)
			return ok && want != "" && strings.Contains(norm(v), want)
		}
	case parser.Not:
		return func(n *html.Node) bool {
			v, ok := a.Attr(n, name)
			return !ok || norm(v) != want
		}
	default: // parser.Hyphen
		return func(n *html.Node) bool {
			v, ok := a.Attr(n, name)
			if !ok {
				return false
			}
			nv := norm(v)
			return nv == want || strings.HasPrefix(nv, want+"-")
		}
	}
}
