package exposure

import (
	"testing"

	"github.com/mlenz/nodeforge/pkg/errors"
)

func TestRegister(t *testing.T) {
	r := New()
	st := &State{Types: []string{"signal"}, MaxConnections: 1}

	if err := r.Register("i1", st); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !r.IsRegistered("i1") {
		t.Error("registration not recorded")
	}
	e, ok := r.Get("i1")
	if !ok || e.State != st {
		t.Error("Get should return the registered record")
	}

	// Re-exposing without privatizing first is a defect.
	if err := r.Register("i1", st); !errors.Is(err, errors.ErrCodeRegistry) {
		t.Errorf("duplicate registration error = %v, want REGISTRY_ERROR", err)
	}
	if err := r.Register("", st); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("empty id error = %v, want INVALID_INPUT", err)
	}
	if err := r.Register("i2", nil); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("nil state error = %v, want INVALID_INPUT", err)
	}
}

func TestPushGraph(t *testing.T) {
	r := New()
	r.Register("i1", &State{})

	if err := r.PushGraph("i1", "inner"); err != nil {
		t.Fatalf("PushGraph: %v", err)
	}
	if err := r.PushGraph("i1", "outer"); err != nil {
		t.Fatalf("PushGraph: %v", err)
	}
	// Chain order is oldest first.
	e, _ := r.Get("i1")
	if len(e.Graphs) != 2 || e.Graphs[0] != "inner" || e.Graphs[1] != "outer" {
		t.Errorf("chain = %v, want [inner outer]", e.Graphs)
	}

	if err := r.PushGraph("i1", "inner"); !errors.Is(err, errors.ErrCodeRegistry) {
		t.Errorf("cyclic chain error = %v, want REGISTRY_ERROR", err)
	}
	if err := r.PushGraph("ghost", "g"); !errors.Is(err, errors.ErrCodeRegistry) {
		t.Errorf("unregistered id error = %v, want REGISTRY_ERROR", err)
	}
}

func TestSharedStateVisibility(t *testing.T) {
	r := New()
	st := &State{Types: []string{"signal"}, MaxConnections: 2}
	r.Register("i1", st)

	// A write through any handle is a write through all of them: the
	// registry hands out the same record, never a copy.
	e, _ := r.Get("i1")
	e.State.Count++
	e.State.MaxConnections = 4
	if st.Count != 1 || st.MaxConnections != 4 {
		t.Error("mutation through the entry not visible through the original record")
	}
}

func TestDelete(t *testing.T) {
	r := New()
	r.Register("i1", &State{})
	r.PushGraph("i1", "inner")
	r.PushGraph("i1", "outer")

	e, err := r.Delete("i1")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// The caller still needs the chain to tear down the proxies.
	if len(e.Graphs) != 2 {
		t.Errorf("returned chain has %d graphs, want 2", len(e.Graphs))
	}
	if r.IsRegistered("i1") {
		t.Error("registration should be gone")
	}
	if _, err := r.Delete("i1"); !errors.Is(err, errors.ErrCodeRegistry) {
		t.Errorf("double delete error = %v, want REGISTRY_ERROR", err)
	}
}

func TestClear(t *testing.T) {
	r := New()
	r.Register("i1", &State{})
	r.Register("i2", &State{})
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}
	r.Clear()
	if r.Len() != 0 || r.IsRegistered("i1") {
		t.Error("Clear should drop every registration")
	}
}
