package cheerioselect

import (
	"slices"
	"testing"

	"golang.org/x/net/html"
)

func filterIDs(t *testing.T, selector string, nodes []*html.Node, o *Options) []string {
	t.Helper()
	got, err := Filter(selector, nodes, o)
	if err != nil {
		t.Fatalf("Filter(%q): %v", selector, err)
	}
	return ids(got)
}

func TestFilter(t *testing.T) {
	doc := parsePage(t)
	d1 := byID(t, doc, "d1")
	d2 := byID(t, doc, "d2")
	d3 := byID(t, doc, "d3")
	s1 := byID(t, doc, "s1")
	s2 := byID(t, doc, "s2")
	p1 := byID(t, doc, "p1")

	t.Run("flat", func(t *testing.T) {
		got := filterIDs(t, "div", []*html.Node{d1, p1, d3}, nil)
		if !slices.Equal(got, []string{"d1", "d3"}) {
			t.Errorf("got %v, want [d1 d3]", got)
		}
	})

	t.Run("preserves_input_order", func(t *testing.T) {
		got := filterIDs(t, ".item", []*html.Node{d3, d1, d2}, nil)
		if !slices.Equal(got, []string{"d3", "d1", "d2"}) {
			t.Errorf("got %v, want input order [d3 d1 d2]", got)
		}
	})

	t.Run("positional", func(t *testing.T) {
		got := filterIDs(t, ".item:even", []*html.Node{d1, d2, d3}, nil)
		if !slices.Equal(got, []string{"d1", "d3"}) {
			t.Errorf("got %v, want [d1 d3]", got)
		}
	})

	t.Run("union_in_input_order", func(t *testing.T) {
		got := filterIDs(t, "span, div:last", []*html.Node{d1, d2, d3, s1}, nil)
		if !slices.Equal(got, []string{"d3", "s1"}) {
			t.Errorf("got %v, want [d3 s1]", got)
		}
	})

	t.Run("leading_combinator_scopes_to_candidates", func(t *testing.T) {
		// "> span" keeps candidates that are a span child of another candidate
		got := filterIDs(t, "> span", []*html.Node{d1, s1, s2}, nil)
		if !slices.Equal(got, []string{"s1"}) {
			t.Errorf("got %v, want [s1]", got)
		}
	})

	t.Run("traversal_preserves_input_order", func(t *testing.T) {
		// a sole traversing alternative resolves in document order; the
		// result must still come back in input order
		got := filterIDs(t, "> span", []*html.Node{s2, s1, d1, d2}, nil)
		if !slices.Equal(got, []string{"s2", "s1"}) {
			t.Errorf("got %v, want input order [s2 s1]", got)
		}
	})

	t.Run("interior_combinator", func(t *testing.T) {
		got := filterIDs(t, "div span", []*html.Node{d1, s1, s2, p1}, nil)
		if !slices.Equal(got, []string{"s1", "s2"}) {
			t.Errorf("got %v, want [s1 s2]", got)
		}
	})

	t.Run("empty_input", func(t *testing.T) {
		got, err := Filter("div", nil, nil)
		if err != nil {
			t.Fatalf("Filter: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("got %v, want empty", ids(got))
		}
	})

	t.Run("no_match", func(t *testing.T) {
		got := filterIDs(t, "table", []*html.Node{d1, d2}, nil)
		if len(got) != 0 {
			t.Errorf("got %v, want empty", got)
		}
	})

	t.Run("syntax_error", func(t *testing.T) {
		if _, err := Filter("div >", []*html.Node{d1}, nil); err == nil {
			t.Error("expected a syntax error")
		}
	})
}

func TestFilterSubsequenceProperty(t *testing.T) {
	doc := parsePage(t)
	input := []*html.Node{
		byID(t, doc, "s2"), byID(t, doc, "d1"), byID(t, doc, "p1"),
		byID(t, doc, "d3"), byID(t, doc, "s1"), byID(t, doc, "d2"),
	}

	for _, selector := range []string{"*", "div", ".item:odd", "span, p", "> span", "div ~ p", ":not(span)"} {
		got, err := Filter(selector, input, nil)
		if err != nil {
			t.Fatalf("Filter(%q): %v", selector, err)
		}
		idx := 0
		for _, n := range got {
			rest := input[idx:]
			pos := slices.Index(rest, n)
			if pos < 0 {
				t.Errorf("Filter(%q): %v is not a subsequence of the input", selector, ids(got))
				break
			}
			idx += pos + 1
		}
	}
}
