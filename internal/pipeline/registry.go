package pipeline

import (
	"fmt"
)

// Registry holds the registered stages. Registration order is remembered
// and used as the deterministic tie-break for the execution plan.
type Registry struct {
	stages map[StageName]Stage
	order  []StageName
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stages: make(map[StageName]Stage)}
}

// Register adds a stage. Registering the same name twice is a programming
// error.
func (r *Registry) Register(s Stage) error {
	if _, exists := r.stages[s.Name()]; exists {
		return fmt.Errorf("stage %s already registered", s.Name())
	}
	r.stages[s.Name()] = s
	r.order = append(r.order, s.Name())
	return nil
}

// MustRegister registers a stage and panics on conflict.
func (r *Registry) MustRegister(s Stage) {
	if err := r.Register(s); err != nil {
		panic(err)
	}
}

// Get returns the stage with the given name.
func (r *Registry) Get(name StageName) (Stage, bool) {
	s, ok := r.stages[name]
	return s, ok
}

// List returns all registered stage names in registration order.
func (r *Registry) List() []StageName {
	out := make([]StageName, len(r.order))
	copy(out, r.order)
	return out
}

// index returns the registration index of a stage (used for deterministic
// plan ordering).
func (r *Registry) index(name StageName) int {
	for i, n := range r.order {
		if n == name {
			return i
		}
	}
	return len(r.order)
}
