package compiler

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/jdmiranda/cheerio-select/dom"
	"github.com/jdmiranda/cheerio-select/internal/parser"
)

const sampleHTML = `<html><head></head><body>
<div id="a" class="item first" data-kind="x-ray"><span id="a1" class="tag">alpha</span><span id="a2">beta</span></div>
<div id="b" class="item" data-kind="X-Ray">gamma</div>
<p id="c"><em id="c1">delta</em></p>
<section id="empty"> </section>
</body></html>`

func parseSample(t *testing.T) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(sampleHTML))
	if err != nil {
		t.Fatalf("parse sample: %v", err)
	}
	return doc
}

func nodeByID(t *testing.T, root *html.Node, id string) *html.Node {
	t.Helper()
	found := dom.Find(func(n *html.Node) bool {
		v, ok := dom.Default.Attr(n, "id")
		return dom.Default.IsTag(n) && ok && v == id
	}, []*html.Node{root}, dom.Default, 1)
	if len(found) != 1 {
		t.Fatalf("node %q not found", id)
	}
	return found[0]
}

func mustCompile(t *testing.T, selector string, o Options) *Query {
	t.Helper()
	sel, err := parser.Parse(selector)
	if err != nil {
		t.Fatalf("parse %q: %v", selector, err)
	}
	q, err := Compile(sel, o)
	if err != nil {
		t.Fatalf("compile %q: %v", selector, err)
	}
	return q
}

func TestMatching(t *testing.T) {
	doc := parseSample(t)

	tests := []struct {
		name     string
		selector string
		matches  []string
		misses   []string
	}{
		{name: "tag", selector: "div", matches: []string{"a", "b"}, misses: []string{"c", "a1"}},
		{name: "tag_case_folds", selector: "DIV", matches: []string{"a"}},
		{name: "class", selector: ".item", matches: []string{"a", "b"}, misses: []string{"a1"}},
		{name: "class_second_token", selector: ".first", matches: []string{"a"}, misses: []string{"b"}},
		{name: "id", selector: "#a1", matches: []string{"a1"}, misses: []string{"a"}},
		{name: "universal", selector: "*", matches: []string{"a", "a1", "c1"}},
		{name: "compound", selector: "div.item#b", matches: []string{"b"}, misses: []string{"a"}},
		{name: "attr_exists", selector: "[data-kind]", matches: []string{"a", "b"}, misses: []string{"c"}},
		{name: "attr_equals", selector: "[data-kind=x-ray]", matches: []string{"a"}, misses: []string{"b"}},
		{name: "attr_equals_fold", selector: "[data-kind=x-ray i]", matches: []string{"a", "b"}},
		{name: "attr_prefix", selector: "[data-kind^=x-]", matches: []string{"a"}, misses: []string{"b"}},
		{name: "attr_suffix", selector: "[data-kind$=ray]", matches: []string{"a"}},
		{name: "attr_contains", selector: "[data-kind*=ra]", matches: []string{"a"}},
		{name: "attr_not", selector: "div[data-kind!=x-ray]", matches: []string{"b"}, misses: []string{"a"}},
		{name: "attr_hyphen", selector: "[data-kind|=x]", matches: []string{"a"}, misses: []string{"b"}},
		{name: "descendant", selector: "div span", matches: []string{"a1", "a2"}, misses: []string{"c1"}},
		{name: "deep_descendant", selector: "body em", matches: []string{"c1"}},
		{name: "child", selector: "body > div", matches: []string{"a", "b"}, misses: []string{"a1"}},
		{name: "adjacent", selector: "div + p", matches: []string{"c"}, misses: []string{"b"}},
		{name: "sibling", selector: "div ~ p", matches: []string{"c"}, misses: []string{"a"}},
		{name: "sibling_span", selector: "span ~ span", matches: []string{"a2"}, misses: []string{"a1"}},
		{name: "first_child", selector: "span:first-child", matches: []string{"a1"}, misses: []string{"a2"}},
		{name: "last_child", selector: "span:last-child", matches: []string{"a2"}, misses: []string{"a1"}},
		{name: "only_child", selector: ":only-child", matches: []string{"c1"}, misses: []string{"a1"}},
		{name: "nth_child", selector: "div:nth-child(2)", matches: []string{"b"}, misses: []string{"a"}},
		{name: "nth_child_an_b", selector: "body :nth-child(2n+1)", matches: []string{"a", "c"}, misses: []string{"b"}},
		{name: "nth_last_child", selector: "div:nth-last-child(3)", matches: []string{"b"}, misses: []string{"a"}},
		{name: "first_of_type", selector: "p:first-of-type", matches: []string{"c"}},
		{name: "only_of_type", selector: "p:only-of-type", matches: []string{"c"}},
		{name: "empty", selector: "section:empty", matches: []string{"empty"}},
		{name: "contains", selector: "span:contains(alp)", matches: []string{"a1"}, misses: []string{"a2"}},
		{name: "icontains", selector: "span:icontains(ALPHA)", matches: []string{"a1"}},
		{name: "not", selector: "div:not(.first)", matches: []string{"b"}, misses: []string{"a"}},
		{name: "not_list", selector: "div:not(#a, #b)", misses: []string{"a", "b"}},
		{name: "is", selector: ":is(p, section)", matches: []string{"c", "empty"}, misses: []string{"a"}},
		{name: "where", selector: ":where(span)", matches: []string{"a1"}},
		{name: "has", selector: "div:has(span)", matches: []string{"a"}, misses: []string{"b"}},
		{name: "has_child", selector: "body:has(> p)", matches: []string{"body"}},
		{name: "has_sibling", selector: "div:has(~ p)", matches: []string{"a", "b"}, misses: []string{"c"}},
		{name: "has_not_matching", selector: "p:has(span)", misses: []string{"c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := mustCompile(t, tt.selector, Options{})
			for _, id := range tt.matches {
				var n *html.Node
				if id == "body" {
					n = dom.Find(func(n *html.Node) bool {
						return dom.Default.IsTag(n) && n.Data == "body"
					}, []*html.Node{doc}, dom.Default, 1)[0]
				} else {
					n = nodeByID(t, doc, id)
				}
				if !q.Match(n) {
					t.Errorf("%q should match #%s", tt.selector, id)
				}
			}
			for _, id := range tt.misses {
				if q.Match(nodeByID(t, doc, id)) {
					t.Errorf("%q should not match #%s", tt.selector, id)
				}
			}
		})
	}
}

func TestScope(t *testing.T) {
	doc := parseSample(t)
	a := nodeByID(t, doc, "a")
	a1 := nodeByID(t, doc, "a1")
	c1 := nodeByID(t, doc, "c1")

	t.Run("context", func(t *testing.T) {
		q := mustCompile(t, ":scope span", Options{Context: []*html.Node{a}})
		if !q.Match(a1) {
			t.Error("span inside the scope should match")
		}
		if q.Match(c1) {
			t.Error("em outside the scope should not match")
		}
	})

	t.Run("relative", func(t *testing.T) {
		q := mustCompile(t, "span", Options{Relative: true, Context: []*html.Node{a}})
		if !q.Match(a1) {
			t.Error("relative selector should anchor at the context")
		}
		if q.Match(a) {
			t.Error("the context element itself is not a descendant")
		}
	})

	t.Run("leading_combinator_anchors_despite_scope_marker", func(t *testing.T) {
		a2 := nodeByID(t, doc, "a2")

		// a trailing scope marker must not defeat the leading anchor
		q := mustCompile(t, "> span:scope", Options{Context: []*html.Node{a, a1}})
		if !q.Match(a1) {
			t.Error("span child of a scoped element should match")
		}

		q = mustCompile(t, "> span:scope", Options{Context: []*html.Node{a1, a2}})
		if q.Match(a1) || q.Match(a2) {
			t.Error("spans whose parent is outside the scope must not match")
		}
	})

	t.Run("no_context_means_root", func(t *testing.T) {
		q := mustCompile(t, ":scope", Options{})
		if !q.Match(doc) {
			t.Error("without a context, :scope is the tree root")
		}
		if q.Match(a) {
			t.Error("an inner element is not the tree root")
		}
	})
}

func TestRootFunc(t *testing.T) {
	doc := parseSample(t)
	a := nodeByID(t, doc, "a")
	a1 := nodeByID(t, doc, "a1")
	c1 := nodeByID(t, doc, "c1")

	inBounds := map[*html.Node]bool{a: true}
	q := mustCompile(t, "* span", Options{RootFunc: func(n *html.Node) bool { return inBounds[n] }})
	if !q.Match(a1) {
		t.Error("span under the bounded root should match")
	}
	if q.Match(c1) {
		t.Error("traversal must not escape the bounded root set")
	}
}

func TestCustomPseudos(t *testing.T) {
	doc := parseSample(t)
	b := nodeByID(t, doc, "b")

	o := Options{Pseudos: map[string]func(*html.Node, string) bool{
		"kind": func(n *html.Node, data string) bool {
			v, _ := dom.Default.Attr(n, "data-kind")
			return v == data
		},
	}}
	q := mustCompile(t, "div:kind(X-Ray)", o)
	if !q.Match(b) {
		t.Error("custom pseudo should consult the registered function")
	}
	if q.Match(nodeByID(t, doc, "a")) {
		t.Error("custom pseudo data payload should be forwarded verbatim")
	}
}

func TestShouldTestNextSiblings(t *testing.T) {
	for _, tt := range []struct {
		selector string
		want     bool
	}{
		{selector: "~ div", want: true},
		{selector: "+ div", want: true},
		{selector: "> div", want: false},
		{selector: "div ~ p", want: false},
		{selector: "div, + p", want: true},
	} {
		q := mustCompile(t, tt.selector, Options{})
		if q.ShouldTestNextSiblings != tt.want {
			t.Errorf("%q: ShouldTestNextSiblings = %v, want %v", tt.selector, q.ShouldTestNextSiblings, tt.want)
		}
	}
}

func TestCompileErrors(t *testing.T) {
	for _, selector := range []string{
		"div:first",
		"div:eq(0)",
		"span:odd",
		"div:unknown-pseudo",
		"::before",
	} {
		sel, err := parser.Parse(selector)
		if err != nil {
			t.Fatalf("parse %q: %v", selector, err)
		}
		if _, err := Compile(sel, Options{}); !errors.Is(err, ErrUnsupported) {
			t.Errorf("Compile(%q): error %v, want ErrUnsupported", selector, err)
		}
	}
}

func TestParseNth(t *testing.T) {
	tests := []struct {
		expr         string
		step, offset int
		wantErr      bool
	}{
		{expr: "even", step: 2, offset: 0},
		{expr: "odd", step: 2, offset: 1},
		{expr: "3", step: 0, offset: 3},
		{expr: "2n", step: 2, offset: 0},
		{expr: "2n+1", step: 2, offset: 1},
		{expr: "-n+3", step: -1, offset: 3},
		{expr: "n", step: 1, offset: 0},
		{expr: "+n+2", step: 1, offset: 2},
		{expr: "10n-1", step: 10, offset: -1},
		{expr: " 2N + 1 ", step: 2, offset: 1},
		{expr: "", wantErr: true},
		{expr: "n+", wantErr: true},
		{expr: "2n*1", wantErr: true},
		{expr: "banana", wantErr: true},
	}
	for _, tt := range tests {
		step, offset, err := parseNth(tt.expr)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseNth(%q): expected error", tt.expr)
			} else if !errors.Is(err, parser.ErrSyntax) {
				t.Errorf("parseNth(%q): error %v does not wrap ErrSyntax", tt.expr, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseNth(%q): %v", tt.expr, err)
			continue
		}
		if step != tt.step || offset != tt.offset {
			t.Errorf("parseNth(%q) = (%d, %d), want (%d, %d)", tt.expr, step, offset, tt.step, tt.offset)
		}
	}
}

func TestNthMatch(t *testing.T) {
	// -n+3 selects the first three positions
	for pos := 1; pos <= 5; pos++ {
		want := pos <= 3
		if got := nthMatch(-1, 3, pos); got != want {
			t.Errorf("nthMatch(-1, 3, %d) = %v, want %v", pos, got, want)
		}
	}
	// 2n+1 selects odd positions
	for pos := 1; pos <= 5; pos++ {
		want := pos%2 == 1
		if got := nthMatch(2, 1, pos); got != want {
			t.Errorf("nthMatch(2, 1, %d) = %v, want %v", pos, got, want)
		}
	}
}
