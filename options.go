package cheerioselect

import (
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/jdmiranda/cheerio-select/dom"
	"github.com/jdmiranda/cheerio-select/internal/compiler"
)

// Options configure a query. The zero value (and a nil *Options) selects
// HTML-mode matching against the whole tree.
type Options struct {
	// XMLMode makes tag and attribute matching case-sensitive.
	XMLMode bool
	// Relative interprets selectors relative to the Context scope.
	Relative bool
	// Pseudos registers custom pseudo-class implementations by name.
	Pseudos map[string]func(n *html.Node, data string) bool
	// Adapter overrides tree access; nil means dom.Default.
	Adapter dom.Adapter
	// Root is an explicit document-root hint, saving an ancestor walk.
	Root *html.Node
	// Context is the scope element set for relative selectors and :scope.
	Context []*html.Node

	// rootFunc bounds traversal during positional resolution. It is
	// installed by the engine itself, never by callers.
	rootFunc func(*html.Node) bool
}

// options dereferences a caller-supplied pointer; internally Options travel
// by value so recursive stages can rewrite their own copy freely.
func options(o *Options) Options {
	if o == nil {
		return Options{}
	}
	return *o
}

func (o Options) adapter() dom.Adapter {
	if o.Adapter != nil {
		return o.Adapter
	}
	return dom.Default
}

func (o Options) compilerOptions() compiler.Options {
	return compiler.Options{
		XMLMode:  o.XMLMode,
		Relative: o.Relative,
		Adapter:  o.Adapter,
		Pseudos:  o.Pseudos,
		Context:  o.Context,
		RootFunc: o.rootFunc,
	}
}

// fingerprint reduces the options to their matching-relevant subset: the
// XML flag, relativity, the set of registered pseudo names, and whether a
// custom adapter is present. Root, context, and the adapter identity vary
// per call without changing compiled semantics and are deliberately absent.
func (o Options) fingerprint() string {
	var b strings.Builder
	b.WriteString("xml=")
	b.WriteString(strconv.FormatBool(o.XMLMode))
	b.WriteString(";rel=")
	b.WriteString(strconv.FormatBool(o.Relative))
	b.WriteString(";adapter=")
	b.WriteString(strconv.FormatBool(o.Adapter != nil))
	b.WriteString(";pseudos=")
	names := make([]string, 0, len(o.Pseudos))
	for name := range o.Pseudos {
		names = append(names, name)
	}
	slices.Sort(names)
	b.WriteString(strings.Join(names, ","))
	return b.String()
}
