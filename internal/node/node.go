// Package node defines the Node capability contract executed by the
// engine, and an in-process Registry mapping type names (and aliases)
// to Node factories.
package node

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/flowforge/dagflow/pkg/types"
)

// Describe is the static metadata a Node exposes about itself.
type Describe struct {
	Description string                 `json:"description"`
	Category    string                 `json:"category"`
	Icon        string                 `json:"icon,omitempty"`
	InputSchema map[string]interface{} `json:"inputSchema,omitempty"`
	OutputSchema map[string]interface{} `json:"outputSchema,omitempty"`
}

// Node is the capability contract every registered node kind must
// satisfy. Execute is handed an immutable context snapshot and the
// assembled input for this invocation; it must not retain ctx beyond
// the call and must not mutate the snapshot map.
type Node interface {
	Execute(ctx context.Context, contextSnapshot map[string]interface{}, input map[string]interface{}) types.NodeResult
	Validate() bool
	Describe() Describe
}

// Factory constructs a Node from a NodeSpec whose id, name and canonical
// type Registry.Create has already filled in. The spec's Config is the
// caller's map as given: the registry holds no per-type default config
// and merges nothing into it.
type Factory func(spec *types.NodeSpec) (Node, error)

// entry pairs a factory with the canonical type name it was registered
// under, so Create can fill NodeSpec.Type consistently regardless of
// which alias resolved the lookup.
type entry struct {
	canonical string
	factory   Factory
}

// Registry resolves type strings (and declared aliases) to factories.
// Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry // lookup key (lowercased) -> entry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// ErrAlreadyRegistered is returned by Register in strict mode when
// typeName or one of its aliases collides with an existing entry.
type ErrAlreadyRegistered struct {
	Type string
}

func (e *ErrAlreadyRegistered) Error() string {
	return fmt.Sprintf("node type %q already registered", e.Type)
}

// Register adds typeName (and any aliases) to the registry, pointing
// them all at factory. By default a collision overwrites the existing
// mapping, preserving the teacher's fluent re-registration API; pass
// strict=true to instead fail with ErrAlreadyRegistered on any
// collision.
func (r *Registry) Register(typeName string, factory Factory, strict bool, aliases ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := append([]string{typeName}, aliases...)
	if strict {
		for _, n := range names {
			if _, exists := r.entries[strings.ToLower(n)]; exists {
				return &ErrAlreadyRegistered{Type: n}
			}
		}
	}

	e := entry{canonical: typeName, factory: factory}
	for _, n := range names {
		r.entries[strings.ToLower(n)] = e
	}
	return nil
}

// Find resolves typeName to a factory using exact, then
// case-insensitive exact, then substring match, in that priority
// order. Substring matching scans registered keys in sorted order so
// ties resolve deterministically.
func (r *Registry) Find(typeName string) (Factory, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.entries[typeName]; ok {
		return e.factory, e.canonical, true
	}

	lower := strings.ToLower(typeName)
	if e, ok := r.entries[lower]; ok {
		return e.factory, e.canonical, true
	}

	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(k, lower) {
			e := r.entries[k]
			return e.factory, e.canonical, true
		}
	}

	return nil, "", false
}

// Create resolves spec.Type, fills in defaults for a blank id/name,
// constructs the Node via the resolved factory, and validates it.
func (r *Registry) Create(spec *types.NodeSpec) (Node, error) {
	factory, canonical, ok := r.Find(spec.Type)
	if !ok {
		return nil, fmt.Errorf("no node type registered for %q", spec.Type)
	}

	resolved := *spec
	resolved.Type = canonical
	if resolved.ID == "" {
		resolved.ID = generateID()
	}
	if resolved.Name == "" {
		resolved.Name = canonical + " Node"
	}

	n, err := factory(&resolved)
	if err != nil {
		return nil, fmt.Errorf("create node %s: %w", resolved.ID, err)
	}
	if !n.Validate() {
		return nil, fmt.Errorf("node %s (%s): validation failed", resolved.ID, canonical)
	}
	return n, nil
}

func generateID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "node-fallback"
	}
	return "node-" + hex.EncodeToString(b)
}
