// Package cheerioselect resolves CSS selector groups against HTML/XML node
// trees.
//
// Selector text is parsed into a group of alternatives. Alternatives free of
// positional filters ("plain") compile, via a cached step, into a single
// predicate and are found with one traversal; alternatives carrying a
// positional filter (:first, :last, :eq, :nth, :lt, :gt, :even, :odd, and
// :not over positionals) are resolved stage by stage against materialized
// candidate lists, since their outcome depends on candidate rank rather than
// any single node's shape. Results from multiple alternatives are merged,
// deduplicated, and returned in document order.
package cheerioselect

import (
	"golang.org/x/net/html"

	"github.com/jdmiranda/cheerio-select/dom"
	"github.com/jdmiranda/cheerio-select/internal/compiler"
	"github.com/jdmiranda/cheerio-select/internal/parser"
)

// Selector is a query input: selector text, a pre-parsed group, or a direct
// predicate. The set of implementations is closed.
type Selector interface {
	sealedSelector()
}

// TextSelector is raw selector text, parsed on use.
type TextSelector string

func (TextSelector) sealedSelector() {}

// MatcherSelector is a direct predicate. It bypasses parsing, compilation,
// and all caches; candidates are simply tested one by one.
type MatcherSelector func(*html.Node) bool

func (MatcherSelector) sealedSelector() {}

// ParsedSelector is a parsed selector group. Reusing one across queries
// keys the compiled-query cache, so repeated queries skip recompilation.
type ParsedSelector struct {
	alternatives []parser.Sequence

	grouped  bool
	plain    []parser.Sequence
	filtered []parser.Sequence
}

func (*ParsedSelector) sealedSelector() {}

// Parse parses selector text into a reusable selector group.
func Parse(selector string) (*ParsedSelector, error) {
	alternatives, err := parser.Parse(selector)
	if err != nil {
		return nil, err
	}
	return &ParsedSelector{alternatives: alternatives}, nil
}

// group partitions the alternatives into plain and filtered, preserving
// relative order within each. The classification is computed once and is
// stable for the lifetime of the object.
func (ps *ParsedSelector) group() (plain, filtered []parser.Sequence) {
	if !ps.grouped {
		for _, seq := range ps.alternatives {
			if sequenceHasFilter(seq) {
				ps.filtered = append(ps.filtered, seq)
			} else {
				ps.plain = append(ps.plain, seq)
			}
		}
		ps.grouped = true
	}
	return ps.plain, ps.filtered
}

// Engine resolves queries. All caches live on the engine; the zero-cost way
// to share them process-wide is the package-level functions, which use a
// single default engine.
type Engine struct {
	queries queryCache
	matches matchCache
	roots   rootCache
}

// New returns an engine with empty caches.
func New() *Engine {
	return &Engine{
		matches: matchCache{capacity: matchCacheCapacity},
	}
}

var defaultEngine = New()

// Select resolves a selector against a single root and returns the matches
// in document order, deduplicated. A limit <= 0 means unbounded.
func (e *Engine) Select(sel Selector, root *html.Node, o *Options, limit int) ([]*html.Node, error) {
	if root == nil {
		return nil, nil
	}
	return e.selectRoot(sel, singleRoot(root), options(o), limit)
}

// SelectAll is Select over a list of search roots.
func (e *Engine) SelectAll(sel Selector, roots []*html.Node, o *Options, limit int) ([]*html.Node, error) {
	return e.selectRoot(sel, listRoot(roots), options(o), limit)
}

func (e *Engine) selectRoot(sel Selector, root queryRoot, o Options, limit int) ([]*html.Node, error) {
	limit = normalizeLimit(limit)
	switch s := sel.(type) {
	case MatcherSelector:
		a := o.adapter()
		return dom.Find(func(n *html.Node) bool {
			return a.IsTag(n) && s(n)
		}, root.nodes(), a, limit), nil
	case TextSelector:
		ps, err := Parse(string(s))
		if err != nil {
			return nil, err
		}
		return e.selectParsed(ps, root, o, limit)
	case *ParsedSelector:
		return e.selectParsed(s, root, o, limit)
	default:
		return nil, nil
	}
}

// selectParsed dispatches plain alternatives to one compiled search and each
// filtered alternative through positional resolution, then combines.
func (e *Engine) selectParsed(ps *ParsedSelector, root queryRoot, o Options, limit int) ([]*html.Node, error) {
	plain, filtered := ps.group()
	results := make([][]*html.Node, 0, len(filtered)+1)
	for _, seq := range filtered {
		r, err := e.findFilterElements(root, seq, o, true, limit)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if len(plain) > 0 {
		r, err := e.findElements(ps, root, plain, o, limit)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		// single alternative list, already in order and deduplicated
		return truncate(results[0], limit), nil
	}
	var merged []*html.Node
	for _, r := range results {
		merged = append(merged, r...)
	}
	return truncate(dom.UniqueSort(merged), limit), nil
}

// Is reports whether the element matches the selector. Textual selectors
// consult the bounded match cache.
func (e *Engine) Is(el *html.Node, sel Selector, o *Options) (bool, error) {
	opts := options(o)
	switch s := sel.(type) {
	case MatcherSelector:
		return s(el), nil
	case TextSelector:
		key := matchKey{selector: string(s), fingerprint: opts.fingerprint(), node: el}
		if v, ok := e.matches.get(key); ok {
			return v, nil
		}
		ps, err := Parse(string(s))
		if err != nil {
			return false, err
		}
		v, err := e.someParsed([]*html.Node{el}, ps, opts)
		if err != nil {
			return false, err
		}
		e.matches.put(key, v)
		return v, nil
	case *ParsedSelector:
		return e.someParsed([]*html.Node{el}, s, opts)
	default:
		return false, nil
	}
}

// Some reports whether any of the elements matches the selector.
func (e *Engine) Some(elements []*html.Node, sel Selector, o *Options) (bool, error) {
	switch s := sel.(type) {
	case MatcherSelector:
		for _, el := range elements {
			if s(el) {
				return true, nil
			}
		}
		return false, nil
	case TextSelector:
		ps, err := Parse(string(s))
		if err != nil {
			return false, err
		}
		return e.someParsed(elements, ps, options(o))
	case *ParsedSelector:
		return e.someParsed(elements, s, options(o))
	default:
		return false, nil
	}
}

func (e *Engine) someParsed(elements []*html.Node, ps *ParsedSelector, o Options) (bool, error) {
	plain, filtered := ps.group()
	if len(plain) > 0 {
		q, err := e.compile(ps, plain, o)
		if err != nil {
			return false, err
		}
		a := o.adapter()
		for _, el := range elements {
			if a.IsTag(el) && q.Match(el) {
				return true, nil
			}
		}
	}
	for _, seq := range filtered {
		r, err := e.findFilterElements(listRoot(elements), seq, o, false, len(elements))
		if err != nil {
			return false, err
		}
		if len(r) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// ClearCaches empties the bounded match side cache. The weakly-scoped
// compiled-query and relationship caches drain themselves once their keying
// objects become unreachable and are left untouched.
func (e *Engine) ClearCaches() {
	e.matches.clear()
}

// compile produces the predicate for a plain selector list, memoized per
// (selector-group identity, option fingerprint) when no per-call anchoring
// is installed. Caching never changes results, only skips recompilation.
func (e *Engine) compile(key *ParsedSelector, sel []parser.Sequence, o Options) (*compiler.Query, error) {
	cacheable := key != nil && len(o.Context) == 0 && o.rootFunc == nil
	var fingerprint string
	if cacheable {
		fingerprint = o.fingerprint()
		if q, ok := e.queries.get(key, fingerprint); ok {
			return q, nil
		}
	}
	q, err := compiler.Compile(sel, o.compilerOptions())
	if err != nil {
		return nil, err
	}
	if cacheable {
		e.queries.put(key, fingerprint, q)
	}
	return q, nil
}

// Select resolves a selector against root using the default engine.
func Select(sel Selector, root *html.Node, o *Options, limit int) ([]*html.Node, error) {
	return defaultEngine.Select(sel, root, o, limit)
}

// SelectAll resolves a selector against a list of roots using the default
// engine.
func SelectAll(sel Selector, roots []*html.Node, o *Options, limit int) ([]*html.Node, error) {
	return defaultEngine.SelectAll(sel, roots, o, limit)
}

// Is reports whether el matches sel, using the default engine.
func Is(el *html.Node, sel Selector, o *Options) (bool, error) {
	return defaultEngine.Is(el, sel, o)
}

// Some reports whether any element matches sel, using the default engine.
func Some(elements []*html.Node, sel Selector, o *Options) (bool, error) {
	return defaultEngine.Some(elements, sel, o)
}

// Filter returns the sublist of nodes matching the selector, preserving the
// input order, using the default engine.
func Filter(selector string, nodes []*html.Node, o *Options) ([]*html.Node, error) {
	return defaultEngine.Filter(selector, nodes, o)
}

// ClearCaches empties the default engine's bounded side cache.
func ClearCaches() {
	defaultEngine.ClearCaches()
}
