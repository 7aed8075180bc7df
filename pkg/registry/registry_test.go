package registry

import (
	"testing"

	"github.com/mlenz/nodeforge/pkg/errors"
	"github.com/mlenz/nodeforge/pkg/graph"
	"github.com/mlenz/nodeforge/pkg/spec"
)

func TestRegister(t *testing.T) {
	r := New(nil)
	def := &spec.NodeTypeDefinition{Name: "Osc"}

	if err := r.Register(def); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, ok := r.Get("Osc")
	if !ok || got != def {
		t.Error("registered definition not retrievable")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}

	// Replacing is an explicit Unregister/Register pair, never an
	// implicit overwrite.
	if err := r.Register(&spec.NodeTypeDefinition{Name: "Osc"}); !errors.Is(err, errors.ErrCodeRegistry) {
		t.Errorf("duplicate name error = %v, want REGISTRY_ERROR", err)
	}
	if err := r.Register(nil); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("nil definition error = %v, want INVALID_INPUT", err)
	}
	if err := r.Register(&spec.NodeTypeDefinition{}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("unnamed definition error = %v, want INVALID_INPUT", err)
	}
	if err := r.Register(&spec.NodeTypeDefinition{Name: "Child", Extends: []string{"Osc"}}); !errors.Is(err, errors.ErrCodeRegistry) {
		t.Errorf("unresolved definition error = %v, want REGISTRY_ERROR", err)
	}
}

func TestUnregister(t *testing.T) {
	r := New(nil)
	r.Register(&spec.NodeTypeDefinition{Name: "Osc"})

	if err := r.Unregister("Osc"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if _, ok := r.Get("Osc"); ok {
		t.Error("definition still retrievable after Unregister")
	}
	if err := r.Unregister("Osc"); !errors.Is(err, errors.ErrCodeRegistry) {
		t.Errorf("missing type error = %v, want REGISTRY_ERROR", err)
	}
}

func TestRegistrationVisibleToBoundGraphs(t *testing.T) {
	// The registry writes through to the resolved catalog, so a graph
	// created before the registration can instantiate the new type.
	resolved := &spec.Resolved{Types: map[string]*spec.NodeTypeDefinition{}}
	g := graph.New("g1", resolved)
	r := New(resolved)

	if _, err := g.AddNode("Custom"); err == nil {
		t.Fatal("type should not exist yet")
	}
	if err := r.Register(&spec.NodeTypeDefinition{Name: "Custom"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := g.AddNode("Custom"); err != nil {
		t.Errorf("registered type not visible to bound graph: %v", err)
	}
}
