package cheerioselect

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/jdmiranda/cheerio-select/internal/parser"
	"github.com/jdmiranda/cheerio-select/internal/stack"
)

type fastPathKind uint8

const (
	fastID fastPathKind = iota
	fastClass
	fastTag
)

// fastPath is a recognized single-token selector that a direct traversal
// answers without compiling a predicate.
type fastPath struct {
	kind  fastPathKind
	value string
}

// fastPathFor recognizes #id, .class, and bare-tag selectors under a single
// search root with default tree access. Anything anchored (context, bounded
// roots) or adapter-mediated takes the compiled route.
func fastPathFor(root queryRoot, sel []parser.Sequence, o Options) (fastPath, bool) {
	if root.isList || o.Adapter != nil || o.rootFunc != nil || len(o.Context) > 0 {
		return fastPath{}, false
	}
	if len(sel) != 1 || len(sel[0]) != 1 {
		return fastPath{}, false
	}
	switch t := sel[0][0]; {
	case t.Kind == parser.Attribute && t.Name == "id" && t.Action == parser.Equals && !t.IgnoreCase:
		return fastPath{kind: fastID, value: t.Value}, true
	case t.Kind == parser.Attribute && t.Name == "class" && t.Action == parser.Element && !t.IgnoreCase:
		return fastPath{kind: fastClass, value: t.Value}, true
	case t.Kind == parser.Tag:
		name := t.Name
		if !o.XMLMode {
			name = strings.ToLower(name)
		}
		return fastPath{kind: fastTag, value: name}, true
	}
	return fastPath{}, false
}

// fastFind walks the tree pre-order with an explicit stack, collecting
// elements that satisfy the fast path until the limit is reached.
func (e *Engine) fastFind(fp fastPath, root *html.Node, o Options, limit int) []*html.Node {
	var out []*html.Node
	st := stack.NewWithCapacity[*html.Node](32)
	st.Push(root)
	for !st.IsEmpty() {
		n, _ := st.Pop()
		if n.Type == html.ElementNode && e.fastMatch(fp, n) {
			out = append(out, n)
			if len(out) == limit {
				return out
			}
			if fp.kind == fastID {
				// ids are unique per document
				return out
			}
		}
		// push in reverse so the first child is popped next
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			st.Push(c)
		}
	}
	return out
}

func (e *Engine) fastMatch(fp fastPath, n *html.Node) bool {
	switch fp.kind {
	case fastTag:
		return n.Data == fp.value
	case fastID:
		v, ok := attrValue(n, "id")
		return ok && v == fp.value
	default:
		v, ok := attrValue(n, "class")
		if !ok {
			return false
		}
		for _, f := range strings.Fields(v) {
			if f == fp.value {
				return true
			}
		}
		return false
	}
}

func attrValue(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}
