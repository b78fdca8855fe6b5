package cheerioselect

import (
	"slices"

	"golang.org/x/net/html"

	"github.com/jdmiranda/cheerio-select/internal/parser"
)

// Filter returns the subset of nodes matching the selector, in input order.
// Non-element nodes never match. Alternatives that traverse (leading
// combinators, positional stages with combinator suffixes) are anchored at
// the document root with the candidate set as :scope, so traversal can pass
// through nodes outside the candidates while the result stays within them.
func (e *Engine) Filter(selector string, nodes []*html.Node, o *Options) ([]*html.Node, error) {
	ps, err := Parse(selector)
	if err != nil {
		return nil, err
	}
	return e.filterParsed(ps, nodes, options(o))
}

func (e *Engine) filterParsed(ps *ParsedSelector, elements []*html.Node, o Options) ([]*html.Node, error) {
	if len(elements) == 0 {
		return nil, nil
	}
	plain, filtered := ps.group()

	// Plain alternatives without a leading combinator reduce to one compiled
	// predicate over the candidates. The rest need per-alternative resolution.
	var flat, perAlternative []parser.Sequence
	for _, seq := range plain {
		if len(seq) > 0 && seq[0].IsCombinator() {
			perAlternative = append(perAlternative, seq)
		} else {
			flat = append(flat, seq)
		}
	}
	perAlternative = append(perAlternative, filtered...)

	var found map[*html.Node]struct{}
	if len(flat) > 0 {
		matched, err := e.filterElements(elements, flat, o)
		if err != nil {
			return nil, err
		}
		if len(perAlternative) == 0 {
			return matched, nil
		}
		if len(matched) > 0 {
			found = nodeSet(matched)
		}
	}

	for _, seq := range perAlternative {
		if found != nil && len(found) == len(elements) {
			break
		}
		matched, err := e.filterBySelector(seq, elements, o)
		if err != nil {
			return nil, err
		}
		if len(matched) == 0 {
			continue
		}
		if found == nil {
			found = nodeSet(matched)
			continue
		}
		for _, el := range matched {
			found[el] = struct{}{}
		}
	}

	if found == nil {
		return nil, nil
	}
	// traversing alternatives report matches in document order; the
	// contract is input order
	out := make([]*html.Node, 0, len(found))
	for _, el := range elements {
		if _, ok := found[el]; ok {
			out = append(out, el)
		}
	}
	return out, nil
}

// filterBySelector resolves one alternative against the candidate set.
func (e *Engine) filterBySelector(seq parser.Sequence, elements []*html.Node, o Options) ([]*html.Node, error) {
	if hasCombinator(seq) {
		return e.scopedFilter(seq, elements, o)
	}
	return e.findFilterElements(listRoot(elements), seq, o, false, len(elements))
}

// scopedFilter runs a traversing alternative from the document root with the
// candidates installed as :scope. Appending an explicit :scope to the
// alternative pins the final match inside the candidate set.
func (e *Engine) scopedFilter(seq parser.Sequence, elements []*html.Node, o Options) ([]*html.Node, error) {
	root := o.Root
	if root == nil {
		root = e.roots.documentRoot(elements[0])
	}
	o.Context = elements
	o.Relative = false
	scoped := append(slices.Clone(seq), parser.Token{Kind: parser.Pseudo, Name: "scope"})
	if sequenceHasFilter(scoped) {
		return e.findFilterElements(singleRoot(root), scoped, o, true, len(elements))
	}
	return e.findElements(nil, singleRoot(root), []parser.Sequence{scoped}, o, len(elements))
}

func nodeSet(nodes []*html.Node) map[*html.Node]struct{} {
	set := make(map[*html.Node]struct{}, len(nodes))
	for _, n := range nodes {
		set[n] = struct{}{}
	}
	return set
}
