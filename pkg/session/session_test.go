package session

import (
	"testing"

	"github.com/mlenz/nodeforge/pkg/dataflow"
	"github.com/mlenz/nodeforge/pkg/errors"
	"github.com/mlenz/nodeforge/pkg/graph"
	"github.com/mlenz/nodeforge/pkg/spec"
)

// fxTemplate is a subgraph with one boundary input, an internal source,
// and a sink that already carries one internal connection.
const fxTemplate = `{
	"id": "fx",
	"nodes": [
		{
			"name": "subgraph in", "id": "tin", "title": "wet in",
			"interfaces": [{"id": "tp1", "name": "wet in", "direction": "output"}]
		},
		{
			"name": "Osc", "id": "tosc",
			"interfaces": [{"id": "tout", "name": "out", "direction": "output"}]
		},
		{
			"name": "Out", "id": "tsink",
			"interfaces": [{"id": "tin2", "name": "in", "direction": "input"}]
		}
	],
	"connections": [{"id": "tc1", "from": "tout", "to": "tin2"}]
}`

// rackTemplate nests an fx subgraph one level deeper.
const rackTemplate = `{
	"id": "rack",
	"nodes": [
		{"name": "FX", "id": "rfx", "subgraph": "FX", "interfaces": []}
	]
}`

func testSpec(t *testing.T) *spec.Resolved {
	t.Helper()
	s := spec.Specification{
		Nodes: []spec.NodeTypeDefinition{
			{
				Name: "Osc",
				Properties: []spec.PropertyDefinition{
					{Name: "freq", Kind: "number", Default: 440.0},
				},
				Interfaces: []spec.InterfaceDefinition{
					{Name: "out", Direction: "output", Type: spec.TypeList{"signal"}},
				},
			},
			{
				Name: "Out",
				Interfaces: []spec.InterfaceDefinition{
					{Name: "in", Direction: "input", Type: spec.TypeList{"signal"}, MaxConnectionsCount: 2},
				},
			},
		},
		IncludeGraphs: []spec.GraphInclude{
			{URL: "fx.json", Name: "FX"},
			{URL: "rack.json", Name: "Rack"},
		},
	}
	loader := spec.MapLoader{
		"fx.json":   []byte(fxTemplate),
		"rack.json": []byte(rackTemplate),
	}
	resolved, diags := spec.Resolve(s, spec.ResolveOptions{Loader: loader})
	if diags.HasErrors() {
		t.Fatalf("test spec did not resolve: %v", diags.Err())
	}
	return resolved
}

// newTestSession builds a session with one empty entry graph.
func newTestSession(t *testing.T) *Session {
	t.Helper()
	s := New(testSpec(t))
	s.Graphs["main"] = graph.New("main", s.Spec)
	s.EntryGraph = "main"
	return s
}

func TestLoad(t *testing.T) {
	doc := dataflow.Dataflow{
		EntryGraph: "main",
		Graphs: []dataflow.Graph{
			{
				ID: "main",
				Nodes: []dataflow.Node{
					{
						Name: "Osc", ID: "n1",
						Interfaces: []dataflow.Interface{
							{ID: "i1", Name: "out", Direction: "output"},
						},
					},
				},
			},
			{EntryGraph: "main"}, // stub, skipped
		},
	}
	s, diags := Load(doc, testSpec(t))
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Err())
	}
	if len(s.Graphs) != 1 {
		t.Errorf("loaded %d graphs, want 1", len(s.Graphs))
	}
	if s.Entry() == nil || s.Entry().ID != "main" {
		t.Error("entry graph not resolved")
	}
}

func TestLoadEntryFallback(t *testing.T) {
	doc := dataflow.Dataflow{
		Graphs: []dataflow.Graph{{ID: "only"}},
	}
	s, _ := Load(doc, testSpec(t))
	if s.EntryGraph != "only" {
		t.Errorf("EntryGraph = %q, want fallback to the first graph", s.EntryGraph)
	}
}

func TestEnterSubgraph(t *testing.T) {
	s := newTestSession(t)
	main := s.Entry()
	fxNode, err := main.AddNode("FX")
	if err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if fxNode.Subgraph != "FX" {
		t.Fatalf("subgraph reference = %q, want FX", fxNode.Subgraph)
	}

	sub, err := s.EnterSubgraph("main", fxNode.ID)
	if err != nil {
		t.Fatalf("EnterSubgraph: %v", err)
	}
	// The reference is rebound from the template name to the instance.
	if fxNode.Subgraph != sub.ID {
		t.Error("subgraph reference not rebound to the instance")
	}
	if sub.NodeCount() != 3 || sub.ConnectionCount() != 1 {
		t.Errorf("instance has %d nodes, %d connections; want 3, 1", sub.NodeCount(), sub.ConnectionCount())
	}
	// Instances get fresh ids; template ids never leak.
	if _, ok := sub.Node("tsink"); ok {
		t.Error("instance reuses template node ids")
	}

	// Entering again returns the same instance.
	again, err := s.EnterSubgraph("main", fxNode.ID)
	if err != nil || again != sub {
		t.Error("second entry should return the existing instance")
	}

	// A second node of the same type gets its own instance.
	fxNode2, _ := main.AddNode("FX")
	sub2, err := s.EnterSubgraph("main", fxNode2.ID)
	if err != nil {
		t.Fatalf("EnterSubgraph: %v", err)
	}
	if sub2 == sub || sub2.ID == sub.ID {
		t.Error("two subgraph nodes must not share an instance")
	}
}

func TestEnterSubgraphErrors(t *testing.T) {
	s := newTestSession(t)
	main := s.Entry()
	osc, _ := main.AddNode("Osc")

	if _, err := s.EnterSubgraph("ghost", "n"); !errors.Is(err, errors.ErrCodeReference) {
		t.Errorf("unknown graph error = %v, want REFERENCE_ERROR", err)
	}
	if _, err := s.EnterSubgraph("main", "ghost"); !errors.Is(err, errors.ErrCodeReference) {
		t.Errorf("unknown node error = %v, want REFERENCE_ERROR", err)
	}
	if _, err := s.EnterSubgraph("main", osc.ID); !errors.Is(err, errors.ErrCodeReference) {
		t.Errorf("non-subgraph node error = %v, want REFERENCE_ERROR", err)
	}
}

// sinkInterface finds the Out node's input inside a subgraph instance.
func sinkInterface(t *testing.T, g *graph.Graph) *graph.InterfaceInstance {
	t.Helper()
	for _, n := range g.Nodes {
		if n.TypeName == "Out" {
			return n.InterfaceByName("in")
		}
	}
	t.Fatal("no Out node in subgraph instance")
	return nil
}

func TestExposeInterface(t *testing.T) {
	s := newTestSession(t)
	main := s.Entry()
	fxNode, _ := main.AddNode("FX")
	sub, err := s.EnterSubgraph("main", fxNode.ID)
	if err != nil {
		t.Fatalf("EnterSubgraph: %v", err)
	}
	inner := sinkInterface(t, sub)

	proxy, err := s.ExposeInterface(sub.ID, inner.ID)
	if err != nil {
		t.Fatalf("ExposeInterface: %v", err)
	}
	// The proxy keeps the inner id and appears on the subgraph node.
	if proxy.ID != inner.ID {
		t.Error("proxy should keep the inner interface id")
	}
	if fxNode.Interface(inner.ID) != proxy {
		t.Error("proxy not attached to the enclosing subgraph node")
	}
	if !s.Exposure.IsRegistered(inner.ID) {
		t.Error("exposure not registered")
	}

	// Both handles read the same record: the template's internal
	// connection is already counted through the proxy.
	if proxy.ConnectionCount() != 1 || inner.ConnectionCount() != 1 {
		t.Errorf("counts = %d/%d, want 1/1", proxy.ConnectionCount(), inner.ConnectionCount())
	}
	if proxy.MaxConnections() != 2 {
		t.Errorf("proxy ceiling = %d, want 2", proxy.MaxConnections())
	}

	// A connection to the proxy in the outer graph consumes shared
	// capacity visible from inside.
	osc, _ := main.AddNode("Osc")
	if _, err := main.AddConnection(osc.InterfaceByName("out").ID, proxy.ID); err != nil {
		t.Fatalf("AddConnection to proxy: %v", err)
	}
	if inner.ConnectionCount() != 2 {
		t.Errorf("inner count = %d, want 2", inner.ConnectionCount())
	}

	// The shared ceiling is now exhausted for the inner handle too.
	osc2, err := sub.AddNode("Osc")
	if err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if _, err := sub.AddConnection(osc2.InterfaceByName("out").ID, inner.ID); !errors.Is(err, errors.ErrCodeConnection) {
		t.Errorf("over-ceiling error = %v, want CONNECTION_ERROR", err)
	}

	// Raising the ceiling through the outer handle is visible inside and
	// frees the capacity the inner connection was just refused.
	proxy.SetMaxConnections(3)
	if inner.MaxConnections() != 3 {
		t.Errorf("inner ceiling = %d, want 3 after write through the proxy", inner.MaxConnections())
	}
	if _, err := sub.AddConnection(osc2.InterfaceByName("out").ID, inner.ID); err != nil {
		t.Errorf("connection under the raised ceiling rejected: %v", err)
	}
}

func TestExposeInterfaceErrors(t *testing.T) {
	s := newTestSession(t)
	main := s.Entry()
	osc, _ := main.AddNode("Osc")

	// The entry graph has no enclosing subgraph node.
	if _, err := s.ExposeInterface("main", osc.InterfaceByName("out").ID); !errors.Is(err, errors.ErrCodeReference) {
		t.Errorf("no-parent error = %v, want REFERENCE_ERROR", err)
	}
	if _, err := s.ExposeInterface("ghost", "i"); !errors.Is(err, errors.ErrCodeReference) {
		t.Errorf("unknown graph error = %v, want REFERENCE_ERROR", err)
	}
	if _, err := s.ExposeInterface("main", "ghost"); !errors.Is(err, errors.ErrCodeReference) {
		t.Errorf("unknown interface error = %v, want REFERENCE_ERROR", err)
	}
}

func TestExposeInterfaceNested(t *testing.T) {
	s := newTestSession(t)
	main := s.Entry()
	rackNode, _ := main.AddNode("Rack")
	rack, err := s.EnterSubgraph("main", rackNode.ID)
	if err != nil {
		t.Fatalf("enter rack: %v", err)
	}
	var fxNode *graph.NodeInstance
	for _, n := range rack.Nodes {
		if n.TypeName == "FX" {
			fxNode = n
		}
	}
	if fxNode == nil {
		t.Fatal("rack instance has no FX node")
	}
	fx, err := s.EnterSubgraph(rack.ID, fxNode.ID)
	if err != nil {
		t.Fatalf("enter fx: %v", err)
	}
	inner := sinkInterface(t, fx)

	// First hop: inner interface onto the FX node in the rack.
	if _, err := s.ExposeInterface(fx.ID, inner.ID); err != nil {
		t.Fatalf("expose onto rack: %v", err)
	}
	// Second hop: the rack proxy onto the Rack node in the entry graph,
	// threading the same shared record.
	outer, err := s.ExposeInterface(rack.ID, inner.ID)
	if err != nil {
		t.Fatalf("expose onto main: %v", err)
	}
	if outer.ID != inner.ID {
		t.Error("outer proxy should keep the inner interface id")
	}
	if rackNode.Interface(inner.ID) == nil {
		t.Error("outer proxy not attached to the rack node")
	}

	entry, ok := s.Exposure.Get(inner.ID)
	if !ok {
		t.Fatal("exposure not registered")
	}
	if len(entry.Graphs) != 3 || entry.Graphs[0] != fx.ID || entry.Graphs[2] != "main" {
		t.Errorf("exposure chain = %v, want [%s %s main]", entry.Graphs, fx.ID, rack.ID)
	}

	// A connection at the outermost level counts through every handle.
	osc, _ := main.AddNode("Osc")
	if _, err := main.AddConnection(osc.InterfaceByName("out").ID, outer.ID); err != nil {
		t.Fatalf("AddConnection: %v", err)
	}
	if inner.ConnectionCount() != 2 {
		t.Errorf("inner count = %d, want 2", inner.ConnectionCount())
	}
}

func TestDocumentRestoresExposure(t *testing.T) {
	s := newTestSession(t)
	main := s.Entry()
	fxNode, _ := main.AddNode("FX")
	sub, err := s.EnterSubgraph("main", fxNode.ID)
	if err != nil {
		t.Fatalf("EnterSubgraph: %v", err)
	}
	inner := sinkInterface(t, sub)
	proxy, err := s.ExposeInterface(sub.ID, inner.ID)
	if err != nil {
		t.Fatalf("ExposeInterface: %v", err)
	}
	osc, _ := main.AddNode("Osc")
	if _, err := main.AddConnection(osc.InterfaceByName("out").ID, proxy.ID); err != nil {
		t.Fatalf("AddConnection: %v", err)
	}

	reloaded, diags := Load(s.Document(), s.Spec)
	if diags.HasErrors() {
		t.Fatalf("reload reported errors: %v", diags.Err())
	}
	if !reloaded.Exposure.IsRegistered(inner.ID) {
		t.Fatal("exposure registration lost across the round trip")
	}
	entry, _ := reloaded.Exposure.Get(inner.ID)
	if len(entry.Graphs) != 2 || entry.Graphs[0] != sub.ID || entry.Graphs[1] != "main" {
		t.Errorf("exposure chain = %v, want [%s main]", entry.Graphs, sub.ID)
	}

	rInner, ok := reloaded.Graphs[sub.ID].Interface(inner.ID)
	if !ok {
		t.Fatal("inner interface missing after reload")
	}
	rProxy, ok := reloaded.Graphs["main"].Interface(inner.ID)
	if !ok {
		t.Fatal("proxy missing from the entry graph after reload")
	}

	// One canonical record again: the internal connection and the outer
	// one both count, and the type-derived ceiling reads through the
	// proxy.
	if rInner.ConnectionCount() != 2 || rProxy.ConnectionCount() != 2 {
		t.Errorf("counts = %d/%d, want 2/2", rInner.ConnectionCount(), rProxy.ConnectionCount())
	}
	if rProxy.MaxConnections() != 2 {
		t.Errorf("proxy ceiling = %d, want 2", rProxy.MaxConnections())
	}
	rProxy.SetMaxConnections(3)
	if rInner.MaxConnections() != 3 {
		t.Errorf("inner ceiling = %d, want 3 after write through the proxy", rInner.MaxConnections())
	}
}

func TestPrivatizeInterface(t *testing.T) {
	s := newTestSession(t)
	main := s.Entry()
	fxNode, _ := main.AddNode("FX")
	sub, _ := s.EnterSubgraph("main", fxNode.ID)
	inner := sinkInterface(t, sub)

	proxy, err := s.ExposeInterface(sub.ID, inner.ID)
	if err != nil {
		t.Fatalf("ExposeInterface: %v", err)
	}
	osc, _ := main.AddNode("Osc")
	main.AddConnection(osc.InterfaceByName("out").ID, proxy.ID)

	if err := s.PrivatizeInterface(inner.ID); err != nil {
		t.Fatalf("PrivatizeInterface: %v", err)
	}
	if s.Exposure.IsRegistered(inner.ID) {
		t.Error("registration should be withdrawn")
	}
	if fxNode.Interface(inner.ID) != nil {
		t.Error("outer proxy should be removed")
	}
	if main.ConnectionCount() != 0 {
		t.Error("connections on the proxy should be dropped")
	}

	// The inner interface is private again, its internal connection
	// intact and the shared record's final values carried forward.
	if inner.SharedState() != nil {
		t.Error("inner interface still shared")
	}
	if sub.ConnectionCount() != 1 || inner.ConnectionCount() != 1 {
		t.Error("inner connection should survive privatization")
	}
	if inner.MaxConnections() != 2 {
		t.Errorf("ceiling = %d, want 2", inner.MaxConnections())
	}

	if err := s.PrivatizeInterface(inner.ID); !errors.Is(err, errors.ErrCodeRegistry) {
		t.Errorf("double privatize error = %v, want REGISTRY_ERROR", err)
	}
}

func TestRegisterType(t *testing.T) {
	s := newTestSession(t)
	main := s.Entry()
	main.AddNode("Osc")
	main.AddNode("Osc")

	// Replacing a type is an explicit unregister/register pair; live
	// instances migrate to the new shape.
	if _, err := s.RegisterType(&spec.NodeTypeDefinition{Name: "Osc"}); !errors.Is(err, errors.ErrCodeRegistry) {
		t.Errorf("overwrite error = %v, want REGISTRY_ERROR", err)
	}
	if err := s.UnregisterType("Osc"); err != nil {
		t.Fatalf("UnregisterType: %v", err)
	}
	migrated, err := s.RegisterType(&spec.NodeTypeDefinition{
		Name: "Osc",
		Properties: []spec.PropertyDefinition{
			{Name: "detune", Kind: "number", Default: 0.0},
		},
		Interfaces: []spec.InterfaceDefinition{
			{Name: "out", Direction: "output", Type: spec.TypeList{"signal"}},
		},
	})
	if err != nil {
		t.Fatalf("RegisterType: %v", err)
	}
	if migrated != 2 {
		t.Errorf("migrated %d instances, want 2", migrated)
	}
	for _, n := range main.Nodes {
		if _, ok := n.Properties["freq"]; ok {
			t.Error("dropped property survived migration")
		}
		if n.Properties["detune"] != 0.0 {
			t.Error("new property missing its default")
		}
	}

	// A new type is instantly instantiable in every session graph.
	if _, err := s.RegisterType(&spec.NodeTypeDefinition{Name: "Custom"}); err != nil {
		t.Fatalf("RegisterType: %v", err)
	}
	if _, err := main.AddNode("Custom"); err != nil {
		t.Errorf("registered type not visible: %v", err)
	}
}

func TestDocument(t *testing.T) {
	s := newTestSession(t)
	main := s.Entry()
	fxNode, _ := main.AddNode("FX")
	s.EnterSubgraph("main", fxNode.ID)

	doc := s.Document()
	if doc.EntryGraph != "main" {
		t.Errorf("EntryGraph = %q, want main", doc.EntryGraph)
	}
	if len(doc.Graphs) != 2 {
		t.Fatalf("document has %d graphs, want 2", len(doc.Graphs))
	}
	// The entry graph is serialized first.
	if doc.Graphs[0].ID != "main" {
		t.Errorf("first graph = %q, want main", doc.Graphs[0].ID)
	}
}

func TestReset(t *testing.T) {
	s := newTestSession(t)
	main := s.Entry()
	fxNode, _ := main.AddNode("FX")
	sub, _ := s.EnterSubgraph("main", fxNode.ID)
	inner := sinkInterface(t, sub)
	s.ExposeInterface(sub.ID, inner.ID)

	s.Reset()
	if len(s.Graphs) != 0 || s.EntryGraph != "" {
		t.Error("Reset should drop every graph")
	}
	if s.Exposure.Len() != 0 {
		t.Error("Reset should clear the exposure registry")
	}
	// The type catalog survives a reset.
	if _, ok := s.Types.Get("Osc"); !ok {
		t.Error("Reset should keep the type catalog")
	}
}
