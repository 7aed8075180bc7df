package schema

import (
	"strings"
	"testing"

	"github.com/mlenz/nodeforge/pkg/errors"
)

// hasMessage reports whether any error diagnostic contains the fragment.
func hasMessage(t *testing.T, diags errors.Diagnostics, fragment string) bool {
	t.Helper()
	for _, e := range diags.Errors {
		if strings.Contains(e.Message, fragment) {
			return true
		}
	}
	return false
}

func TestCheckSpecification(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		doc := `{
			"nodes": [
				{
					"name": "Osc",
					"properties": [{"name": "freq", "kind": "number", "default": 440}],
					"interfaces": [{"name": "out", "direction": "output", "type": "signal"}]
				}
			]
		}`
		if diags := CheckSpecification([]byte(doc)); diags.HasErrors() {
			t.Errorf("unexpected diagnostics: %v", diags.Err())
		}
	})

	t.Run("missing nodes", func(t *testing.T) {
		diags := CheckSpecification([]byte(`{}`))
		if !hasMessage(t, diags, "nodes: required") {
			t.Errorf("diagnostics = %v, want missing nodes", diags.Err())
		}
	})

	t.Run("field defects carry a path", func(t *testing.T) {
		doc := `{
			"nodes": [
				{
					"properties": [{"name": "p", "kind": "color"}],
					"interfaces": [{"name": "out", "direction": "sideways"}]
				}
			]
		}`
		diags := CheckSpecification([]byte(doc))
		if !hasMessage(t, diags, "nodes[0].name") {
			t.Error("missing name not located")
		}
		if !hasMessage(t, diags, `nodes[0].properties[0].kind: unknown kind "color"`) {
			t.Error("unknown property kind not located")
		}
		if !hasMessage(t, diags, "nodes[0].interfaces[0].direction") {
			t.Error("bad direction not located")
		}
	})

	t.Run("category without name", func(t *testing.T) {
		doc := `{"nodes": [{"isCategory": true, "category": "filters"}]}`
		if diags := CheckSpecification([]byte(doc)); diags.HasErrors() {
			t.Errorf("category with a path should pass: %v", diags.Err())
		}
		doc = `{"nodes": [{"isCategory": true}]}`
		if diags := CheckSpecification([]byte(doc)); !diags.HasErrors() {
			t.Error("category without name or path should fail")
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		diags := CheckSpecification([]byte(`{"nodes": [`))
		if len(diags.Errors) != 1 || diags.Errors[0].Code != errors.ErrCodeSchema {
			t.Errorf("diagnostics = %v, want one SCHEMA_ERROR", diags.Err())
		}
	})

	t.Run("wrong field type", func(t *testing.T) {
		diags := CheckSpecification([]byte(`{"nodes": "Osc"}`))
		if !diags.HasErrors() {
			t.Error("expected a diagnostic")
		}
	})
}

func TestCheckGraph(t *testing.T) {
	doc := `{
		"id": "main",
		"nodes": [
			{
				"name": "Osc", "id": "n1",
				"interfaces": [{"id": "i1", "name": "out", "direction": "output"}]
			}
		],
		"connections": [{"id": "c1", "from": "i1", "to": "i2"}]
	}`
	if diags := CheckGraph([]byte(doc)); diags.HasErrors() {
		t.Errorf("unexpected diagnostics: %v", diags.Err())
	}

	bad := `{
		"nodes": [{"name": "Osc", "interfaces": [{"name": "out"}]}],
		"connections": [{"from": "i1"}]
	}`
	diags := CheckGraph([]byte(bad))
	for _, fragment := range []string{
		"id: required",
		"nodes[0].id",
		"nodes[0].interfaces[0].id",
		"nodes[0].interfaces[0].direction",
		"connections[0].id",
		"connections[0].to",
	} {
		if !hasMessage(t, diags, fragment) {
			t.Errorf("missing diagnostic for %q in %v", fragment, diags.Err())
		}
	}
}

func TestCheckDataflow(t *testing.T) {
	doc := `{
		"entryGraph": "main",
		"graphs": [
			{"id": "main", "nodes": [], "connections": []},
			{"entryGraph": "main"}
		]
	}`
	if diags := CheckDataflow([]byte(doc)); diags.HasErrors() {
		t.Errorf("unexpected diagnostics: %v", diags.Err())
	}

	diags := CheckDataflow([]byte(`{}`))
	if !hasMessage(t, diags, "graphs: required") {
		t.Error("missing graphs not reported")
	}
	if !hasMessage(t, diags, "entryGraph: required") {
		t.Error("missing entryGraph not reported")
	}

	// Stub references carry only an entry id; they are not flagged for
	// the missing fields of a full graph document.
	diags = CheckDataflow([]byte(`{"entryGraph": "main", "graphs": [{"entryGraph": "main"}]}`))
	if diags.HasErrors() {
		t.Errorf("stub graph should pass: %v", diags.Err())
	}
}
