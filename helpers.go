package cheerioselect

import (
	"math"

	"golang.org/x/net/html"

	"github.com/jdmiranda/cheerio-select/dom"
	"github.com/jdmiranda/cheerio-select/internal/parser"
)

// unlimited stands in for an absent result limit.
const unlimited = math.MaxInt

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return unlimited
	}
	return limit
}

func truncate(nodes []*html.Node, limit int) []*html.Node {
	if limit < len(nodes) {
		return nodes[:limit]
	}
	return nodes
}

// queryRoot is a search origin: a single node or a node list. The two are
// not interchangeable — an empty-prefix positional stage draws candidates
// from a single root's children but from a list as-is.
type queryRoot struct {
	single *html.Node
	list   []*html.Node
	isList bool
}

func singleRoot(n *html.Node) queryRoot {
	return queryRoot{single: n}
}

func listRoot(nodes []*html.Node) queryRoot {
	return queryRoot{list: nodes, isList: true}
}

func (r queryRoot) nodes() []*html.Node {
	if r.isList {
		return r.list
	}
	return []*html.Node{r.single}
}

func hasCombinator(seq parser.Sequence) bool {
	for _, t := range seq {
		if t.IsCombinator() {
			return true
		}
	}
	return false
}

func filterTags(nodes []*html.Node, a dom.Adapter) []*html.Node {
	out := make([]*html.Node, 0, len(nodes))
	for _, n := range nodes {
		if a.IsTag(n) {
			out = append(out, n)
		}
	}
	return out
}

// findElements runs a compiled search for a plain selector list under the
// given roots. key, when non-nil, enables compiled-query caching.
func (e *Engine) findElements(key *ParsedSelector, root queryRoot, sel []parser.Sequence, o Options, limit int) ([]*html.Node, error) {
	if limit == 0 {
		return nil, nil
	}
	if fp, ok := fastPathFor(root, sel, o); ok {
		return e.fastFind(fp, root.single, o, limit), nil
	}
	q, err := e.compile(key, sel, o)
	if err != nil {
		return nil, err
	}
	a := o.adapter()
	roots := root.nodes()
	if q.ShouldTestNextSiblings {
		roots = dom.AppendSiblings(roots, a)
	}
	return dom.Find(func(n *html.Node) bool {
		return a.IsTag(n) && q.Match(n)
	}, roots, a, limit), nil
}

// filterElements tests a candidate list against a compiled predicate with
// no traversal at all.
func (e *Engine) filterElements(elements []*html.Node, sel []parser.Sequence, o Options) ([]*html.Node, error) {
	a := o.adapter()
	els := filterTags(elements, a)
	if len(els) == 0 {
		return nil, nil
	}
	q, err := e.compile(nil, sel, o)
	if err != nil {
		return nil, err
	}
	var out []*html.Node
	for _, el := range els {
		if q.Match(el) {
			out = append(out, el)
		}
	}
	return out, nil
}
