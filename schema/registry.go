package schema

import (
	"sort"
	"sync"
)

// Registry holds the table metadata for every registered entity kind. It is
// safe for concurrent use; registration normally happens once at startup and
// lookups dominate afterwards.
//
// A registry is plain state with no global instance. Construct one, register
// kinds, and hand it to core.Open.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]*Table)}
}

// Register stores the metadata under its kind. Registering the same kind
// again replaces the previous entry.
func (r *Registry) Register(t *Table) {
	if t == nil || t.Kind == "" {
		return
	}
	r.mu.Lock()
	r.tables[t.Kind] = t
	r.mu.Unlock()
}

// Lookup returns the metadata registered for kind.
func (r *Registry) Lookup(kind string) (*Table, bool) {
	r.mu.RLock()
	t, ok := r.tables[kind]
	r.mu.RUnlock()
	return t, ok
}

// All returns a snapshot of every registered table, sorted by kind so
// callers iterate deterministically.
func (r *Registry) All() []*Table {
	r.mu.RLock()
	out := make([]*Table, 0, len(r.tables))
	for _, t := range r.tables {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Clear removes every registration.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.tables = make(map[string]*Table)
	r.mu.Unlock()
}
