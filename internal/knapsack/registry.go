package knapsack

import (
	"fmt"
	"strings"
	"sync"
)

// Registry keeps the selectable algorithms in registration order.
type Registry struct {
	mu         sync.RWMutex
	algorithms []Algorithm
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry returns a registry holding the built-in solvers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(NewGreedy())
	_ = r.Register(NewDynamicProgramming())
	return r
}

// Register appends an algorithm. Display names are unique, ignoring case.
func (r *Registry) Register(alg Algorithm) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.algorithms {
		if strings.EqualFold(existing.DisplayName(), alg.DisplayName()) {
			return fmt.Errorf("%q: %w", alg.DisplayName(), ErrDuplicateAlgorithm)
		}
	}
	r.algorithms = append(r.algorithms, alg)
	return nil
}

// Lookup finds an algorithm by display name, ignoring case and surrounding spaces.
func (r *Registry) Lookup(name string) (Algorithm, bool) {
	name = strings.TrimSpace(name)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, alg := range r.algorithms {
		if strings.EqualFold(alg.DisplayName(), name) {
			return alg, true
		}
	}
	return nil, false
}

// All returns the registered algorithms in registration order.
func (r *Registry) All() []Algorithm {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Algorithm, len(r.algorithms))
	copy(out, r.algorithms)
	return out
}

// Names returns the display names in registration order.
func (r *Registry) Names() []string {
	algs := r.All()
	names := make([]string, len(algs))
	for i, alg := range algs {
		names[i] = alg.DisplayName()
	}
	return names
}
