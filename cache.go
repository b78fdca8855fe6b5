package cheerioselect

import (
	"runtime"
	"sync"
	"weak"

	"golang.org/x/net/html"

	"github.com/jdmiranda/cheerio-select/dom"
	"github.com/jdmiranda/cheerio-select/internal/compiler"
)

// matchCacheCapacity bounds the match side cache. On overflow the oldest
// half of the entries by insertion order is dropped; see matchCache.put.
const matchCacheCapacity = 4096

// queryCache memoizes compiled queries, keyed by selector-group identity
// and then by option fingerprint. The first-level key is weak: an entry
// never keeps its ParsedSelector alive and vanishes once the group becomes
// unreachable. The mutex is for the cleanup callbacks, which the runtime
// runs on its own goroutines.
type queryCache struct {
	mu      sync.Mutex
	entries map[weak.Pointer[ParsedSelector]]map[string]*compiler.Query
}

func (c *queryCache) get(ps *ParsedSelector, fingerprint string) (*compiler.Query, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.entries[weak.Make(ps)][fingerprint]
	return q, ok
}

func (c *queryCache) put(ps *ParsedSelector, fingerprint string, q *compiler.Query) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[weak.Pointer[ParsedSelector]]map[string]*compiler.Query)
	}
	key := weak.Make(ps)
	sub, ok := c.entries[key]
	if !ok {
		sub = make(map[string]*compiler.Query, 1)
		c.entries[key] = sub
		runtime.AddCleanup(ps, func(k weak.Pointer[ParsedSelector]) {
			c.mu.Lock()
			delete(c.entries, k)
			c.mu.Unlock()
		}, key)
	}
	sub[fingerprint] = q
}

// matchKey identifies one cached match verdict.
type matchKey struct {
	selector    string
	fingerprint string
	node        *html.Node
}

// matchCache is the bounded side cache for repeated match tests. Eviction
// drops the oldest half of the entries by insertion order when the capacity
// is hit; there is no recency tracking.
type matchCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[matchKey]bool
	order    []matchKey
}

func (c *matchCache) get(k matchKey) (value, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok = c.entries[k]
	return value, ok
}

func (c *matchCache) put(k matchKey, v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[matchKey]bool, c.capacity)
	}
	if _, exists := c.entries[k]; exists {
		c.entries[k] = v
		return
	}
	if len(c.entries) >= c.capacity {
		half := len(c.order) / 2
		for _, old := range c.order[:half] {
			delete(c.entries, old)
		}
		c.order = append(c.order[:0:0], c.order[half:]...)
	}
	c.entries[k] = v
	c.order = append(c.order, k)
}

func (c *matchCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	c.order = nil
}

// rootCache memoizes node → document root lookups. Both sides of an entry
// are weak: the cache keeps neither the node nor its tree alive.
type rootCache struct {
	mu      sync.Mutex
	entries map[weak.Pointer[html.Node]]weak.Pointer[html.Node]
}

func (c *rootCache) documentRoot(n *html.Node) *html.Node {
	key := weak.Make(n)
	c.mu.Lock()
	if wr, ok := c.entries[key]; ok {
		c.mu.Unlock()
		if root := wr.Value(); root != nil {
			return root
		}
	} else {
		c.mu.Unlock()
	}
	root := dom.DocumentRoot(n)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[weak.Pointer[html.Node]]weak.Pointer[html.Node])
	}
	if _, exists := c.entries[key]; !exists {
		runtime.AddCleanup(n, func(k weak.Pointer[html.Node]) {
			c.mu.Lock()
			delete(c.entries, k)
			c.mu.Unlock()
		}, key)
	}
	c.entries[key] = weak.Make(root)
	return root
}
