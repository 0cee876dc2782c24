// Package wfcontext implements the shared, dotted-path keyed data map
// that flows through a single execution: the data/variables layers,
// deep-merge, and template substitution over arbitrary config trees.
package wfcontext

import (
	"strings"

	"github.com/flowforge/dagflow/internal/template"
)

// Context is the executor-owned shared state for a single run. It is
// not safe for concurrent read/write; the executor is the single
// writer and hands out snapshots (via Snapshot) to node invocations.
type Context struct {
	data      map[string]interface{}
	variables map[string]interface{}
}

// New builds a Context seeded from an initial data map. A nil map
// yields an empty, non-nil data layer.
func New(initial map[string]interface{}) *Context {
	if initial == nil {
		initial = map[string]interface{}{}
	}
	return &Context{data: initial, variables: map[string]interface{}{}}
}

// Get resolves a dotted path against data, falling back to variables
// when the path is not found in data.
func (c *Context) Get(path string) (interface{}, bool) {
	if v, ok := lookupPath(c.data, path); ok {
		return v, true
	}
	return lookupPath(c.variables, path)
}

// Has reports whether Get would succeed for path.
func (c *Context) Has(path string) bool {
	_, ok := c.Get(path)
	return ok
}

// Set writes value at the dotted path within data, creating
// intermediate maps as needed.
func (c *Context) Set(path string, value interface{}) {
	setPath(c.data, path, value)
}

// SetVariable writes value at the dotted path within variables.
func (c *Context) SetVariable(path string, value interface{}) {
	setPath(c.variables, path, value)
}

// Remove deletes the dotted path from data if present.
func (c *Context) Remove(path string) {
	removePath(c.data, path)
}

// Merge deep-merges m into data: for keys present in both where both
// values are maps, the merge recurses; otherwise m's value replaces
// data's. Sequences (slices) are never concatenated, always replaced.
func (c *Context) Merge(m map[string]interface{}) {
	c.data = deepMerge(c.data, m)
}

// Data returns the current data layer. Callers in this codebase treat
// the result as read-only.
func (c *Context) Data() map[string]interface{} {
	return c.data
}

// Snapshot returns an immutable-by-convention deep copy of data ∪
// variables, data taking priority on key collisions (matching Get's
// lookup order). Node implementations must not mutate the returned map.
func (c *Context) Snapshot() map[string]interface{} {
	merged := deepMerge(c.variables, c.data)
	return deepCopy(merged).(map[string]interface{})
}

// ProcessTemplate substitutes {{dotted.key}} tokens in s by looking the
// key up across data ∪ variables.
func (c *Context) ProcessTemplate(s string) interface{} {
	return template.Render(s, c.lookup)
}

// ProcessTemplates deep-walks tree (maps/slices/strings) substituting
// every string leaf via ProcessTemplate.
func (c *Context) ProcessTemplates(tree interface{}) interface{} {
	return template.RenderAny(tree, c.lookup)
}

func (c *Context) lookup(path string) (interface{}, bool) {
	return c.Get(path)
}

func lookupPath(m map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var cur interface{} = m
	for _, p := range parts {
		asMap, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := asMap[p]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func setPath(m map[string]interface{}, path string, value interface{}) {
	parts := strings.Split(path, ".")
	cur := m
	for i, p := range parts {
		if i == len(parts)-1 {
			cur[p] = value
			return
		}
		next, ok := cur[p].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			cur[p] = next
		}
		cur = next
	}
}

func removePath(m map[string]interface{}, path string) {
	parts := strings.Split(path, ".")
	cur := m
	for i, p := range parts {
		if i == len(parts)-1 {
			delete(cur, p)
			return
		}
		next, ok := cur[p].(map[string]interface{})
		if !ok {
			return
		}
		cur = next
	}
}

// deepMerge returns a new map: dst's keys overlaid with src's,
// recursing when both sides hold a map for the same key.
func deepMerge(dst, src map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		if existing, ok := out[k]; ok {
			em, eok := existing.(map[string]interface{})
			vm, vok := v.(map[string]interface{})
			if eok && vok {
				out[k] = deepMerge(em, vm)
				continue
			}
		}
		out[k] = v
	}
	return out
}

func deepCopy(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}
