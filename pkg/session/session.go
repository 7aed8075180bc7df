// Package session ties one editing session together: the resolved
// specification, the node-type registry over it, the set of live graphs,
// and the interface exposure registry shared by those graphs.
//
// # Architecture
//
// A Session is the unit of isolation. Every collaborator is carried
// explicitly on the struct, nothing here is process-global, so two
// sessions can edit two dataflows side by side without sharing type
// catalogs or exposure state.
//
// Operations that span more than one graph live here rather than on the
// graph model:
//   - ExposeInterface / PrivatizeInterface thread a shared exposure
//     record from an inner subgraph interface through the proxies on the
//     enclosing graphs.
//   - RegisterType / UnregisterType change the type catalog and migrate
//     live node instances in every graph of the session.
//   - EnterSubgraph instantiates a nested graph lazily from its resolved
//     template on first entry.
//
// # Usage
//
//	resolved, diags := spec.Resolve(doc, spec.ResolveOptions{})
//	if diags.HasErrors() {
//	    return diags.Err()
//	}
//	sess, diags := session.Load(flow, resolved)
//	defer sess.Close()
package session

import (
	"github.com/google/uuid"

	"github.com/mlenz/nodeforge/pkg/dataflow"
	"github.com/mlenz/nodeforge/pkg/errors"
	"github.com/mlenz/nodeforge/pkg/graph"
	"github.com/mlenz/nodeforge/pkg/graph/exposure"
	"github.com/mlenz/nodeforge/pkg/registry"
	"github.com/mlenz/nodeforge/pkg/spec"
)

// Session is one editing session over a dataflow document.
//
// A Session is driven by a single logical actor and is not safe for
// concurrent use without external synchronization.
type Session struct {
	Spec     *spec.Resolved
	Types    *registry.Registry
	Graphs   map[string]*graph.Graph
	Exposure *exposure.Registry

	// EntryGraph is the id of the top-level graph.
	EntryGraph string
}

// New creates an empty session bound to a resolved specification.
func New(resolved *spec.Resolved) *Session {
	return &Session{
		Spec:     resolved,
		Types:    registry.New(resolved),
		Graphs:   make(map[string]*graph.Graph),
		Exposure: exposure.New(),
	}
}

// Load creates a session from a dataflow document. Every non-stub graph
// is loaded; diagnostics from all graphs are merged. Graphs whose load
// fails fatally are absent from the session, their errors preserved.
func Load(doc dataflow.Dataflow, resolved *spec.Resolved) (*Session, errors.Diagnostics) {
	s := New(resolved)
	var diags errors.Diagnostics
	for _, gd := range doc.Graphs {
		if gd.IsStub() {
			continue
		}
		g, gdiags := graph.Load(gd, resolved)
		diags.Merge(gdiags)
		if g == nil {
			continue
		}
		if _, dup := s.Graphs[g.ID]; dup {
			diags.Errorf(errors.ErrCodeReference, "graph id %q used more than once", g.ID)
			continue
		}
		s.Graphs[g.ID] = g
	}
	s.EntryGraph = doc.EntryGraph
	if s.EntryGraph == "" && len(doc.Graphs) > 0 {
		s.EntryGraph = doc.Graphs[0].ID
	}
	s.rebindExposures(&diags)
	return s, diags
}

// exposureHandle pairs a live interface instance with the graph that
// holds it.
type exposureHandle struct {
	g    *graph.Graph
	intf *graph.InterfaceInstance
}

// rebindExposures reconstructs interface exposure sharing after a
// document load. A serialized proxy carries the inner node's id in its
// subgraphNodeId back-reference, and every graph the exposure was
// threaded through holds an instance under the same interface id; the
// shared record and the registry chain are rebuilt from those.
func (s *Session) rebindExposures(diags *errors.Diagnostics) {
	for _, g := range s.Graphs {
		for _, n := range g.Nodes {
			if n.Subgraph == "" {
				continue
			}
			for _, intf := range n.Interfaces {
				if intf.SubgraphNodeID == "" || s.Exposure.IsRegistered(intf.ID) {
					continue
				}
				s.rebindExposure(intf.ID, diags)
			}
		}
	}
}

// rebindExposure rebuilds one shared exposure record and re-registers
// its graph chain, innermost first.
func (s *Session) rebindExposure(intfID string, diags *errors.Diagnostics) {
	var inner exposureHandle
	proxies := make(map[string]exposureHandle) // keyed by the graph id the proxy fronts
	for _, g := range s.Graphs {
		intf, ok := g.Interface(intfID)
		if !ok {
			continue
		}
		if intf.SubgraphNodeID != "" {
			if n, ok := g.Node(intf.NodeID); ok && n.Subgraph != "" {
				proxies[n.Subgraph] = exposureHandle{g: g, intf: intf}
				continue
			}
		}
		inner = exposureHandle{g: g, intf: intf}
	}
	if inner.intf == nil {
		diags.Warnf(errors.ErrCodeReference,
			"exposed interface %q has no inner interface in the session; left unshared", intfID)
		return
	}

	chain := []exposureHandle{inner}
	for {
		next, ok := proxies[chain[len(chain)-1].g.ID]
		if !ok {
			break
		}
		chain = append(chain, next)
	}
	if len(chain) == 1 {
		return
	}

	st := &exposure.State{
		Types:          []string(inner.intf.Types()),
		MaxConnections: inner.intf.MaxConnections(),
	}
	// Every handle counted its own connections locally during load; the
	// shared record carries their total.
	for _, h := range chain {
		st.Count += h.intf.ConnectionCount()
	}
	if err := s.Exposure.Register(intfID, st); err != nil {
		return
	}
	for _, h := range chain {
		s.Exposure.PushGraph(intfID, h.g.ID)
		h.intf.Share(st)
	}
}

// Graph returns the live graph with the given id and whether it exists.
func (s *Session) Graph(id string) (*graph.Graph, bool) {
	g, ok := s.Graphs[id]
	return g, ok
}

// Entry returns the session's entry graph, or nil if it was not loaded.
func (s *Session) Entry() *graph.Graph {
	return s.Graphs[s.EntryGraph]
}

// EnterSubgraph returns the nested graph behind a subgraph node,
// instantiating it from its resolved template on first entry.
//
// Instantiation clones the template with fresh node, interface, and
// connection ids, so two instances of the same subgraph type never alias
// each other's elements. The node's subgraph reference is rebound to the
// new instance.
func (s *Session) EnterSubgraph(graphID, nodeID string) (*graph.Graph, error) {
	g, ok := s.Graphs[graphID]
	if !ok {
		return nil, errors.New(errors.ErrCodeReference, "unknown graph %q", graphID)
	}
	n, ok := g.Node(nodeID)
	if !ok {
		return nil, errors.New(errors.ErrCodeReference, "unknown node %q in graph %q", nodeID, graphID)
	}
	if n.Subgraph == "" {
		return nil, errors.New(errors.ErrCodeReference, "node %q has no subgraph", nodeID)
	}
	if sub, loaded := s.Graphs[n.Subgraph]; loaded {
		return sub, nil
	}

	tmpl, ok := s.Spec.Graphs[n.Subgraph]
	if !ok {
		return nil, errors.New(errors.ErrCodeReference,
			"node %q references unknown subgraph template %q", nodeID, n.Subgraph)
	}
	doc := instantiateTemplate(tmpl)
	sub, diags := graph.Load(doc, s.Spec)
	if sub == nil {
		return nil, errors.Wrap(errors.ErrCodeReference, diags.Err(),
			"subgraph template %q failed to load", n.Subgraph)
	}
	n.Subgraph = sub.ID
	s.Graphs[sub.ID] = sub
	return sub, nil
}

// instantiateTemplate deep-copies a graph template with fresh ids. Every
// node, interface, and connection id is remapped consistently.
func instantiateTemplate(tmpl dataflow.Graph) dataflow.Graph {
	remap := make(map[string]string)
	fresh := func(old string) string {
		if old == "" {
			return uuid.NewString()
		}
		if id, ok := remap[old]; ok {
			return id
		}
		id := uuid.NewString()
		remap[old] = id
		return id
	}

	doc := tmpl
	doc.ID = uuid.NewString()
	doc.Nodes = make([]dataflow.Node, len(tmpl.Nodes))
	for i, nd := range tmpl.Nodes {
		cp := nd
		cp.ID = fresh(nd.ID)
		cp.Interfaces = make([]dataflow.Interface, len(nd.Interfaces))
		for j, intf := range nd.Interfaces {
			ic := intf
			ic.ID = fresh(intf.ID)
			if ic.SubgraphNodeID != "" {
				ic.SubgraphNodeID = fresh(ic.SubgraphNodeID)
			}
			cp.Interfaces[j] = ic
		}
		cp.Properties = append([]dataflow.Property(nil), nd.Properties...)
		doc.Nodes[i] = cp
	}
	doc.Connections = make([]dataflow.Connection, len(tmpl.Connections))
	for i, cd := range tmpl.Connections {
		cc := cd
		cc.ID = uuid.NewString()
		cc.From = fresh(cd.From)
		cc.To = fresh(cd.To)
		doc.Connections[i] = cc
	}
	return doc
}

// ExposeInterface makes an interface of a subgraph available on the
// boundary of the enclosing graph.
//
// The inner interface and the new outer proxy share one canonical
// exposure record from then on: type tags, the connection ceiling, and
// the live connection count read identically through both handles, and a
// write through either is visible through the other. The proxy keeps the
// inner interface's id, so exposing the proxy one level further threads
// the same record up the nesting chain.
//
// The parent node is the node in an enclosing session graph whose
// subgraph reference points at graphID. The operation is atomic: on
// error neither the registry nor any graph is modified.
func (s *Session) ExposeInterface(graphID, intfID string) (*graph.InterfaceInstance, error) {
	g, ok := s.Graphs[graphID]
	if !ok {
		return nil, errors.New(errors.ErrCodeReference, "unknown graph %q", graphID)
	}
	inner, ok := g.Interface(intfID)
	if !ok {
		return nil, errors.New(errors.ErrCodeReference, "unknown interface %q in graph %q", intfID, graphID)
	}
	parentGraph, parentNode := s.findParent(graphID)
	if parentNode == nil {
		return nil, errors.New(errors.ErrCodeReference,
			"graph %q has no enclosing subgraph node to expose onto", graphID)
	}

	st := inner.SharedState()
	registered := st != nil && s.Exposure.IsRegistered(intfID)
	if !registered {
		st = &exposure.State{
			Types:          []string(inner.Types()),
			MaxConnections: inner.MaxConnections(),
			Count:          inner.ConnectionCount(),
		}
		if err := s.Exposure.Register(intfID, st); err != nil {
			return nil, err
		}
		if err := s.Exposure.PushGraph(intfID, graphID); err != nil {
			s.Exposure.Delete(intfID)
			return nil, err
		}
	}

	proxy := &graph.InterfaceInstance{
		ID:             intfID,
		Name:           inner.Name,
		Direction:      inner.Direction,
		Side:           inner.Side,
		SubgraphNodeID: inner.NodeID,
	}
	proxy.Share(st)
	if err := parentGraph.AttachProxyInterface(parentNode.ID, proxy); err != nil {
		if !registered {
			s.Exposure.Delete(intfID)
		}
		return nil, err
	}
	if err := s.Exposure.PushGraph(intfID, parentGraph.ID); err != nil {
		parentGraph.RemoveInterface(intfID)
		if !registered {
			s.Exposure.Delete(intfID)
		}
		return nil, err
	}
	if !registered {
		inner.Share(st)
	}
	return proxy, nil
}

// PrivatizeInterface withdraws an exposed interface from every boundary
// it was threaded through. The proxies on the outer graphs are removed
// together with their connections; the inner interface keeps its
// connections and carries the shared record's final values forward as
// local state.
func (s *Session) PrivatizeInterface(intfID string) error {
	entry, err := s.Exposure.Delete(intfID)
	if err != nil {
		return err
	}
	// Tear down outside-in: removing an outer proxy drops its connections
	// against the still-shared record, so the inner interface detaches
	// last with only its own connections counted.
	for i := len(entry.Graphs) - 1; i > 0; i-- {
		if g, ok := s.Graphs[entry.Graphs[i]]; ok {
			g.RemoveInterface(intfID)
		}
	}
	if len(entry.Graphs) > 0 {
		if g, ok := s.Graphs[entry.Graphs[0]]; ok {
			if inner, ok := g.Interface(intfID); ok {
				inner.Unshare()
			}
		}
	}
	return nil
}

// findParent locates the node whose subgraph reference points at
// graphID, searching every graph of the session.
func (s *Session) findParent(graphID string) (*graph.Graph, *graph.NodeInstance) {
	for _, g := range s.Graphs {
		for _, n := range g.Nodes {
			if n.Subgraph == graphID {
				return g, n
			}
		}
	}
	return nil, nil
}

// RegisterType adds a resolved node-type definition to the session's
// catalog and migrates live instances of that type in every graph to the
// new shape. It returns the number of instances migrated.
//
// Registering over an existing name is rejected; replacing a type is an
// explicit Unregister followed by RegisterType, during which instances
// of the departing type stay in their graphs untouched.
func (s *Session) RegisterType(def *spec.NodeTypeDefinition) (int, error) {
	if err := s.Types.Register(def); err != nil {
		return 0, err
	}
	migrated := 0
	for _, g := range s.Graphs {
		migrated += g.MigrateType(def)
	}
	return migrated, nil
}

// UnregisterType removes a node type from the session's catalog. Live
// instances are not removed; they migrate when a replacement shape is
// registered.
func (s *Session) UnregisterType(name string) error {
	return s.Types.Unregister(name)
}

// Document serializes the session back into a dataflow document. The
// entry graph comes first; the remaining graphs follow in unspecified
// order.
func (s *Session) Document() dataflow.Dataflow {
	doc := dataflow.Dataflow{EntryGraph: s.EntryGraph}
	if entry := s.Entry(); entry != nil {
		doc.Graphs = append(doc.Graphs, entry.ToDocument())
	}
	for id, g := range s.Graphs {
		if id == s.EntryGraph {
			continue
		}
		doc.Graphs = append(doc.Graphs, g.ToDocument())
	}
	return doc
}

// Reset drops every graph and clears the exposure registry, keeping the
// resolved specification and type catalog.
func (s *Session) Reset() {
	s.Graphs = make(map[string]*graph.Graph)
	s.EntryGraph = ""
	s.Exposure.Clear()
}

// Close ends the session. The exposure registry is cleared so interface
// ids never alias into a later session.
func (s *Session) Close() {
	s.Exposure.Clear()
}
