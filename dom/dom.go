// Package dom provides the tree utilities the selector engine builds on:
// an Adapter abstracting node access, pre-order search, and document-order
// sorting for *html.Node trees.
package dom

import (
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// Adapter abstracts read access to a node tree. The engine only ever reads
// through an Adapter; nodes are owned by the caller and never mutated.
type Adapter interface {
	// IsTag reports whether n is an element node.
	IsTag(n *html.Node) bool
	// Children returns the direct children of n, elements and non-elements alike.
	Children(n *html.Node) []*html.Node
	// Parent returns the parent of n, or nil.
	Parent(n *html.Node) *html.Node
	// PrevElementSibling returns the closest preceding sibling element, or nil.
	PrevElementSibling(n *html.Node) *html.Node
	// NextElementSiblings returns all following sibling elements in order.
	NextElementSiblings(n *html.Node) []*html.Node
	// Attr returns the value of the named attribute and whether it is present.
	Attr(n *html.Node, name string) (string, bool)
	// Text returns the concatenated text content of n.
	Text(n *html.Node) string
}

// HTMLAdapter is the default Adapter over golang.org/x/net/html trees.
type HTMLAdapter struct{}

// Default is the adapter used when none is configured.
var Default Adapter = HTMLAdapter{}

func (HTMLAdapter) IsTag(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

func (HTMLAdapter) Children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

func (HTMLAdapter) Parent(n *html.Node) *html.Node {
	return n.Parent
}

func (HTMLAdapter) PrevElementSibling(n *html.Node) *html.Node {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

func (HTMLAdapter) NextElementSiblings(n *html.Node) []*html.Node {
	var out []*html.Node
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			out = append(out, s)
		}
	}
	return out
}

func (HTMLAdapter) Attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func (HTMLAdapter) Text(n *html.Node) string {
	var b strings.Builder
	appendText(&b, n)
	return b.String()
}

func appendText(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		appendText(b, c)
	}
}

// Find collects up to limit element nodes satisfying test, walking each root
// and its descendants in pre-order. The roots themselves are tested too.
// A limit <= 0 is treated as unbounded.
func Find(test func(*html.Node) bool, roots []*html.Node, a Adapter, limit int) []*html.Node {
	if limit <= 0 {
		limit = int(^uint(0) >> 1)
	}
	var out []*html.Node
	for _, root := range roots {
		out = findInto(test, root, a, limit, out)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func findInto(test func(*html.Node) bool, n *html.Node, a Adapter, limit int, acc []*html.Node) []*html.Node {
	if test(n) {
		acc = append(acc, n)
		if len(acc) >= limit {
			return acc
		}
	}
	for _, c := range a.Children(n) {
		acc = findInto(test, c, a, limit, acc)
		if len(acc) >= limit {
			return acc
		}
	}
	return acc
}

// DocumentRoot walks up to the topmost ancestor of n.
func DocumentRoot(n *html.Node) *html.Node {
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}

// rootPath returns the child-index path from the document root down to n.
// Paths compare lexicographically in document (pre-order) order.
func rootPath(n *html.Node) []int {
	var path []int
	for n.Parent != nil {
		idx := 0
		for s := n.PrevSibling; s != nil; s = s.PrevSibling {
			idx++
		}
		path = append(path, idx)
		n = n.Parent
	}
	slices.Reverse(path)
	return path
}

// CompareOrder orders two nodes by document position. It returns a negative
// value when a precedes b, zero when a == b, and a positive value otherwise.
// Nodes from different trees have no defined relative order.
func CompareOrder(a, b *html.Node) int {
	if a == b {
		return 0
	}
	return slices.Compare(rootPath(a), rootPath(b))
}

// UniqueSort removes duplicate node references and sorts the remainder into
// document order. The input slice is not modified.
func UniqueSort(nodes []*html.Node) []*html.Node {
	if len(nodes) < 2 {
		return slices.Clone(nodes)
	}
	seen := make(map[*html.Node]struct{}, len(nodes))
	out := make([]*html.Node, 0, len(nodes))
	for _, n := range nodes {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	paths := make(map[*html.Node][]int, len(out))
	for _, n := range out {
		paths[n] = rootPath(n)
	}
	slices.SortFunc(out, func(a, b *html.Node) int {
		return slices.Compare(paths[a], paths[b])
	})
	return out
}

// AppendSiblings extends elems with the following sibling elements of every
// entry, deduplicated and in document order. Sibling combinators look forward
// from each matched node, so traversal roots must include that context.
func AppendSiblings(elems []*html.Node, a Adapter) []*html.Node {
	out := slices.Clone(elems)
	for _, el := range elems {
		out = append(out, a.NextElementSiblings(el)...)
	}
	return UniqueSort(out)
}
