package eval

import (
	"fmt"
	"slices"
)

// Registry maps node kind names to definitions.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds a definition. Kinds must be unique.
func (r *Registry) Register(def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if _, exists := r.defs[def.Kind]; exists {
		return fmt.Errorf("node kind %q already registered", def.Kind)
	}
	r.defs[def.Kind] = def
	return nil
}

// MustRegister registers defs and panics on the first error. Use for
// built-in kinds declared in code.
func (r *Registry) MustRegister(defs ...Definition) *Registry {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

// Lookup returns the definition for kind.
func (r *Registry) Lookup(kind string) (Definition, bool) {
	def, ok := r.defs[kind]
	return def, ok
}

// Kinds returns every registered kind in sorted order.
func (r *Registry) Kinds() []string {
	out := make([]string, 0, len(r.defs))
	for k := range r.defs {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
