// Package actions holds the in-process actions plans can name.
package actions

import (
	"sort"
	"sync"

	"github.com/doeshing/orca-go/internal/ports"
)

// Registry maps action names to handlers.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]ports.ActionFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]ports.ActionFunc)}
}

// Register adds or replaces an action.
func (r *Registry) Register(name string, fn ports.ActionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = fn
}

// Lookup implements ports.ActionRegistry.
func (r *Registry) Lookup(name string) (ports.ActionFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.actions[name]
	return fn, ok
}

// Names lists registered actions, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var _ ports.ActionRegistry = (*Registry)(nil)
