package cheerioselect

import (
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/jdmiranda/cheerio-select/dom"
	"github.com/jdmiranda/cheerio-select/internal/parser"
)

// filterKind enumerates the positional filters. Their outcome depends on a
// candidate's rank within a materialized set, which is why none of them can
// be folded into a compiled per-node predicate.
type filterKind uint8

const (
	filterFirst filterKind = iota
	filterLast
	filterLT
	filterGT
	filterNth
	filterEq
	filterEven
	filterOdd
	filterNot
)

var filterKindNames = map[string]filterKind{
	"first": filterFirst,
	"last":  filterLast,
	"lt":    filterLT,
	"gt":    filterGT,
	"nth":   filterNth,
	"eq":    filterEq,
	"even":  filterEven,
	"odd":   filterOdd,
}

// filterTokenKind classifies a token as positional. A :not() counts only
// when its nested list itself contains a positional at some depth; a plain
// :not() stays a compiled predicate.
func filterTokenKind(t parser.Token) (filterKind, bool) {
	if t.Kind != parser.Pseudo {
		return 0, false
	}
	if k, ok := filterKindNames[t.Name]; ok {
		return k, true
	}
	if t.Name == "not" {
		for _, seq := range t.Subselect {
			if sequenceHasFilter(seq) {
				return filterNot, true
			}
		}
	}
	return 0, false
}

func isFilterToken(t parser.Token) bool {
	_, ok := filterTokenKind(t)
	return ok
}

func sequenceHasFilter(seq parser.Sequence) bool {
	return slices.IndexFunc(seq, isFilterToken) >= 0
}

// parseFilterIndex parses the integer payload of nth/eq/lt/gt. A missing or
// malformed payload makes the filter match nothing, never error.
func parseFilterIndex(data string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(data))
	return n, err == nil
}

// stageLimit derives how many prefix candidates a filter needs before it can
// be applied. :first and a non-negative :lt/:eq/:nth bound the stage; most
// filters need the full candidate set.
func stageLimit(kind filterKind, data string, partLimit int) int {
	num, hasNum := parseFilterIndex(data)
	switch kind {
	case filterFirst:
		return 1
	case filterNth, filterEq:
		switch {
		case !hasNum:
			return 0
		case num >= 0:
			return num + 1
		default:
			return unlimited
		}
	case filterLT:
		switch {
		case !hasNum:
			return 0
		case num >= 0:
			return min(num, partLimit)
		default:
			return unlimited
		}
	case filterGT:
		if !hasNum {
			return 0
		}
		return unlimited
	case filterEven:
		// even positions 0,2,…: partLimit results span 2·partLimit-1 candidates
		if partLimit <= 0 {
			return 0
		}
		if partLimit > unlimited/2 {
			return unlimited
		}
		return 2*partLimit - 1
	case filterOdd:
		if partLimit <= 0 {
			return 0
		}
		if partLimit > unlimited/2 {
			return unlimited
		}
		return 2 * partLimit
	default: // filterLast, filterNot
		return unlimited
	}
}

// applyPositionalFilter reduces a candidate list according to the filter's
// rank semantics. Out-of-range indices yield an empty result, never an error.
func (e *Engine) applyPositionalFilter(kind filterKind, tok parser.Token, elems []*html.Node, o Options) ([]*html.Node, error) {
	switch kind {
	case filterFirst, filterLT:
		// stageLimit already bounded the candidate list
		return elems, nil
	case filterLast:
		if len(elems) == 0 {
			return nil, nil
		}
		return elems[len(elems)-1:], nil
	case filterNth, filterEq:
		num, ok := parseFilterIndex(tok.Data)
		if !ok {
			return nil, nil
		}
		idx := num
		if idx < 0 {
			idx += len(elems)
		}
		if idx < 0 || idx >= len(elems) {
			return nil, nil
		}
		return elems[idx : idx+1], nil
	case filterGT:
		num, ok := parseFilterIndex(tok.Data)
		if !ok {
			return nil, nil
		}
		return sliceAfter(elems, num), nil
	case filterEven:
		return everyOther(elems, 0), nil
	case filterOdd:
		return everyOther(elems, 1), nil
	default: // filterNot: candidates minus the nested resolution over them
		nested := &ParsedSelector{alternatives: tok.Subselect}
		// the outer stage's anchoring constrains the traversal chain, not
		// sub-expressions over concrete candidates
		o.rootFunc = nil
		o.Relative = false
		excluded, err := e.filterParsed(nested, elems, o)
		if err != nil {
			return nil, err
		}
		drop := make(map[*html.Node]struct{}, len(excluded))
		for _, el := range excluded {
			drop[el] = struct{}{}
		}
		var out []*html.Node
		for _, el := range elems {
			if _, skip := drop[el]; !skip {
				out = append(out, el)
			}
		}
		return out, nil
	}
}

// sliceAfter returns the candidates strictly after index num, counting from
// the end when num is negative.
func sliceAfter(elems []*html.Node, num int) []*html.Node {
	start := num + 1
	if start < 0 {
		start += len(elems)
		if start < 0 {
			start = 0
		}
	}
	if start >= len(elems) {
		return nil
	}
	return elems[start:]
}

func everyOther(elems []*html.Node, parity int) []*html.Node {
	var out []*html.Node
	for i := parity; i < len(elems); i += 2 {
		out = append(out, elems[i])
	}
	return out
}

// findFilterElements resolves one filtered alternative: locate the first
// positional filter, resolve the prefix into a bounded candidate list,
// apply the filter, then hand the suffix to the appropriate resolution mode
// (recursive positional, compiled sub-search, or flat filter).
//
// queryForSelector forces prefix resolution through a full sub-search even
// without combinators; it is set when the roots are abstract search origins
// rather than concrete candidates.
func (e *Engine) findFilterElements(root queryRoot, sel parser.Sequence, o Options, queryForSelector bool, totalLimit int) ([]*html.Node, error) {
	filterIndex := slices.IndexFunc(sel, isFilterToken)
	prefix, filterToken := sel[:filterIndex], sel[filterIndex]
	kind, _ := filterTokenKind(filterToken)

	// Only the last stage is bounded by the caller's limit: earlier stages
	// must hand the full candidate set to whatever follows them.
	partLimit := unlimited
	if filterIndex == len(sel)-1 {
		partLimit = totalLimit
	}
	limit := stageLimit(kind, filterToken.Data, partLimit)
	if limit <= 0 {
		return nil, nil
	}

	a := o.adapter()
	var candidates []*html.Node
	var err error
	switch {
	case len(prefix) == 0 && !root.isList:
		candidates = filterTags(a.Children(root.single), a)
	case len(prefix) == 0:
		candidates = filterTags(root.list, a)
	case queryForSelector || hasCombinator(prefix):
		candidates, err = e.findElements(nil, root, []parser.Sequence{prefix}, o, limit)
	default:
		candidates, err = e.filterElements(root.nodes(), []parser.Sequence{prefix}, o)
	}
	if err != nil {
		return nil, err
	}
	candidates = truncate(candidates, limit)

	result, err := e.applyPositionalFilter(kind, filterToken, candidates, o)
	if err != nil || len(result) == 0 || filterIndex == len(sel)-1 {
		return result, err
	}

	suffix := slices.Clone(sel[filterIndex+1:])
	suffixHasTraversal := hasCombinator(suffix)
	if suffixHasTraversal {
		if suffix[0].IsCombinator() {
			if suffix[0].Kind == parser.Sibling || suffix[0].Kind == parser.Adjacent {
				// sibling combinators look forward from each match
				result = dom.AppendSiblings(result, a)
			}
			// a combinator-leading sequence is malformed; anchor it
			suffix = append(parser.Sequence{{Kind: parser.Universal}}, suffix...)
		}
		inBounds := make(map[*html.Node]struct{}, len(result))
		for _, el := range result {
			inBounds[el] = struct{}{}
		}
		o.Relative = false
		o.rootFunc = func(n *html.Node) bool {
			_, ok := inBounds[n]
			return ok
		}
	} else if o.rootFunc != nil {
		// no further traversal, nothing can escape the candidate set
		o.rootFunc = nil
	}

	switch {
	case sequenceHasFilter(suffix):
		return e.findFilterElements(listRoot(result), suffix, o, false, totalLimit)
	case suffixHasTraversal:
		return e.findElements(nil, listRoot(result), []parser.Sequence{suffix}, o, totalLimit)
	default:
		return e.filterElements(result, []parser.Sequence{suffix}, o)
	}
}
