// Package registry maintains the session-scoped index of resolved node
// types. It supports runtime registration and unregistration for custom
// node authoring; the session layer migrates live instances whenever a
// type is re-registered with a new shape.
package registry

import (
	"github.com/mlenz/nodeforge/pkg/errors"
	"github.com/mlenz/nodeforge/pkg/spec"
)

// Registry indexes concrete node-type definitions by name. It operates
// directly on a resolved specification's catalog, so every graph bound
// to the same resolved specification observes registrations immediately.
//
// The zero value is not usable; call New.
type Registry struct {
	resolved *spec.Resolved
}

// New creates a registry over the given resolved specification. A nil
// resolved specification gets an empty catalog.
func New(resolved *spec.Resolved) *Registry {
	if resolved == nil {
		resolved = &spec.Resolved{Types: make(map[string]*spec.NodeTypeDefinition)}
	}
	if resolved.Types == nil {
		resolved.Types = make(map[string]*spec.NodeTypeDefinition)
	}
	return &Registry{resolved: resolved}
}

// Register adds a node-type definition to the catalog. Registering a
// name that already exists is a contract violation: replacing a type is
// only valid as an explicit Unregister/Register pair, never an implicit
// overwrite.
func (r *Registry) Register(def *spec.NodeTypeDefinition) error {
	if def == nil || def.Name == "" {
		return errors.New(errors.ErrCodeInvalidInput, "node type needs a name")
	}
	if len(def.Extends) > 0 {
		return errors.New(errors.ErrCodeRegistry,
			"type %q still carries extends; only resolved definitions can be registered", def.Name)
	}
	if _, exists := r.resolved.Types[def.Name]; exists {
		return errors.New(errors.ErrCodeRegistry,
			"type %q is already registered; unregister it first", def.Name)
	}
	r.resolved.Types[def.Name] = def
	return nil
}

// Unregister removes the named type from the catalog. Live instances of
// the type are not touched here: the graph model migrates them when a
// replacement shape is registered.
func (r *Registry) Unregister(name string) error {
	if _, exists := r.resolved.Types[name]; !exists {
		return errors.New(errors.ErrCodeRegistry, "type %q is not registered", name)
	}
	delete(r.resolved.Types, name)
	return nil
}

// Get returns the definition for name and whether it exists.
func (r *Registry) Get(name string) (*spec.NodeTypeDefinition, bool) {
	def, ok := r.resolved.Types[name]
	return def, ok
}

// Names returns the registered type names in unspecified order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.resolved.Types))
	for name := range r.resolved.Types {
		names = append(names, name)
	}
	return names
}

// Len returns the number of registered types.
func (r *Registry) Len() int { return len(r.resolved.Types) }

// Resolved returns the catalog the registry operates on.
func (r *Registry) Resolved() *spec.Resolved { return r.resolved }
