// Package derivedcache memoizes revision-scoped derived views of the
// scene graph: the indexed listing, the snapshot payload, and the
// inferred schema (spec.md §4.2).
package derivedcache

import (
	"sync"

	"github.com/uxplima/uxragent/internal/model"
)

// InstanceView is the agent-visible projection of an Instance
// (spec.md §4.2): {id, className, name, path, pathString, parentId,
// childIds, properties}.
type InstanceView struct {
	ID         string                   `json:"id"`
	ClassName  string                   `json:"className"`
	Name       string                   `json:"name"`
	Path       []string                 `json:"path"`
	PathString string                   `json:"pathString"`
	ParentID   string                   `json:"parentId,omitempty"`
	ChildIDs   []string                 `json:"childIds"`
	Properties map[string]model.Value   `json:"properties"`
}

// key identifies one cached product for one revision.
type key struct {
	revision   uint64
	classFilter string
	product    string // "listing" | "snapshot" | "schema"
}

// Cache memoizes derived products, at-most-once per (revision,
// classFilter, product) — spec.md §4.2: "the cache guarantees
// at-most-one computation per revision per product."
type Cache struct {
	mu      sync.Mutex
	entries map[key]*entry
}

type entry struct {
	once  sync.Once
	value interface{}
	err   error
}

// New creates an empty derived cache.
func New() *Cache {
	return &Cache{entries: make(map[key]*entry)}
}

// Invalidate drops every entry not belonging to rev, since no entry
// for an old revision is ever useful again. The editor sync handlers
// call it after each push; revisions produced by agent commands do not
// call it, so their entries stay until the next Invalidate.
func (c *Cache) Invalidate(rev uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.revision != rev {
			delete(c.entries, k)
		}
	}
}

// getOrCompute returns the memoized value for k, computing it via fn
// at most once.
func (c *Cache) getOrCompute(k key, fn func() (interface{}, error)) (interface{}, error) {
	c.mu.Lock()
	e, ok := c.entries[k]
	if !ok {
		e = &entry{}
		c.entries[k] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.value, e.err = fn()
	})
	return e.value, e.err
}
