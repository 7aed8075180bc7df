package graph

import (
	"github.com/mlenz/nodeforge/pkg/dataflow"
	"github.com/mlenz/nodeforge/pkg/errors"
	"github.com/mlenz/nodeforge/pkg/spec"
)

// Load builds an in-memory graph from a graph document, validated
// against the resolved specification.
//
// Loading is two-pass: every node and its interfaces are instantiated
// first so forward references resolve, then connections are linked.
// Referencing an unknown node type is fatal for the load: a nil graph
// is returned with the complete diagnostic list. The reserved
// subgraph-boundary pseudo-types are exempt, as they never carry a
// catalog entry. Lesser defects (unknown properties, invalid values,
// incompatible connections) are accumulated as diagnostics and the
// offending element is skipped, so a best-effort graph is still
// produced.
func Load(doc dataflow.Graph, resolved *spec.Resolved) (*Graph, errors.Diagnostics) {
	var diags errors.Diagnostics
	if doc.IsStub() {
		diags.Errorf(errors.ErrCodeReference, "graph is a stub reference to %q and cannot be loaded directly", doc.EntryGraph)
		return nil, diags
	}

	g := New(doc.ID, resolved)
	g.Panning = doc.Panning
	g.Scaling = doc.Scaling

	fatal := false
	for _, nd := range doc.Nodes {
		if _, dup := g.nodesByID[nd.ID]; dup {
			diags.Errorf(errors.ErrCodeReference, "node id %q used more than once", nd.ID)
			continue
		}
		n, ok := g.loadNode(nd, &diags)
		if !ok {
			fatal = true
			continue
		}
		g.commitNode(n)
	}
	if fatal {
		return nil, diags
	}

	for _, cd := range doc.Connections {
		g.loadConnection(cd, &diags)
	}
	return g, diags
}

// loadNode instantiates one document node. The boolean is false only for
// fatal defects (unknown or non-instantiable type).
func (g *Graph) loadNode(nd dataflow.Node, diags *errors.Diagnostics) (*NodeInstance, bool) {
	var def *spec.NodeTypeDefinition
	if !dataflow.IsSubgraphIO(nd.Name) {
		d, ok := g.spec.Type(nd.Name)
		if !ok {
			diags.Errorf(errors.ErrCodeReference, "node %q references unknown type %q", nd.ID, nd.Name)
			return nil, false
		}
		if d.IsCategory || d.Abstract {
			diags.Errorf(errors.ErrCodeReference, "node %q instantiates non-concrete type %q", nd.ID, nd.Name)
			return nil, false
		}
		def = d
	}

	n := &NodeInstance{
		ID:            nd.ID,
		TypeName:      nd.Name,
		Title:         nd.Title,
		Properties:    make(map[string]any),
		EnabledGroups: nd.EnabledInterfaceGroups,
		Position:      nd.Position,
		Width:         nd.Width,
		TwoColumn:     nd.TwoColumn,
		Subgraph:      nd.Subgraph,
	}
	if n.Title == "" {
		n.Title = nd.Name
	}
	if def != nil {
		n.Properties = defaultProperties(def)
	}

	for _, pd := range nd.Properties {
		if def == nil {
			diags.Errorf(errors.ErrCodeReference, "node %q: pseudo-node carries property %q", nd.ID, pd.Name)
			continue
		}
		p := def.Property(pd.Name)
		if p == nil {
			diags.Errorf(errors.ErrCodeReference, "node %q: type %q has no property %q", nd.ID, nd.Name, pd.Name)
			continue
		}
		if err := spec.CheckPropertyValue(p, pd.Value); err != nil {
			diags.AddError(errors.Wrap(errors.ErrCodeReference, err, "node %q", nd.ID))
			continue
		}
		n.Properties[pd.Name] = pd.Value
	}

	for _, id := range nd.Interfaces {
		if _, dup := g.intfsByID[id.ID]; dup || n.Interface(id.ID) != nil {
			diags.Errorf(errors.ErrCodeReference, "interface id %q used more than once", id.ID)
			continue
		}
		intf := g.loadInterface(n, def, id, diags)
		n.Interfaces = append(n.Interfaces, intf)
	}
	return n, true
}

// loadInterface builds one interface instance from its document entry,
// picking up type tags and arity from the matching definition. A
// declared interface with no matching definition is reported and created
// untyped so the rest of the document still links.
func (g *Graph) loadInterface(n *NodeInstance, def *spec.NodeTypeDefinition, id dataflow.Interface, diags *errors.Diagnostics) *InterfaceInstance {
	intf := &InterfaceInstance{
		ID:             id.ID,
		Name:           id.Name,
		Direction:      id.Direction,
		Side:           id.Side,
		SidePosition:   id.SidePosition,
		SubgraphNodeID: id.SubgraphNodeID,
		NodeID:         n.ID,
	}
	if def == nil {
		return intf // subgraph pseudo-node: untyped, unlimited
	}
	if id.SubgraphNodeID != "" {
		// Exposure proxy: not declared by the node type. The session
		// layer rebinds it to its shared record once all graphs are
		// loaded.
		return intf
	}

	d := matchInterfaceDef(n, def, id.Name, id.Direction)
	if d == nil {
		diags.Errorf(errors.ErrCodeReference,
			"node %q: type %q declares no interface %q", n.ID, n.TypeName, id.Name)
		return intf
	}
	if d.Direction != id.Direction {
		diags.Errorf(errors.ErrCodeReference,
			"node %q: interface %q has direction %q, definition says %q", n.ID, id.Name, id.Direction, d.Direction)
	}
	intf.types = d.Type
	intf.maxConnections = d.MaxConnectionsCount
	return intf
}

// matchInterfaceDef finds the definition behind a declared interface
// name: a direct declaration, an expansion slot of a dynamic
// declaration, or a member of an enabled interface group. When several
// declarations carry the name, the one matching the declared direction
// wins; otherwise the first name match is returned so the direction
// mismatch is reported against a concrete definition.
func matchInterfaceDef(n *NodeInstance, def *spec.NodeTypeDefinition, name, direction string) *spec.InterfaceDefinition {
	var fallback *spec.InterfaceDefinition
	for _, d := range nameMatches(n, def, name) {
		if d.Direction == direction {
			return d
		}
		if fallback == nil {
			fallback = d
		}
	}
	return fallback
}

func nameMatches(n *NodeInstance, def *spec.NodeTypeDefinition, name string) []*spec.InterfaceDefinition {
	out := matchInSet(nil, def.Interfaces, name)
	for gi := range def.InterfaceGroups {
		group := &def.InterfaceGroups[gi]
		if !n.GroupEnabled(group.Name, group.Direction) {
			continue
		}
		out = matchInSet(out, group.Interfaces, name)
	}
	return out
}

func matchInSet(out []*spec.InterfaceDefinition, defs []spec.InterfaceDefinition, name string) []*spec.InterfaceDefinition {
	for i := range defs {
		d := &defs[i]
		if d.Dynamic == nil {
			if d.Name == name {
				out = append(out, d)
			}
			continue
		}
		if idx, ok := expansionIndex(d.Name, name); ok && idx < d.Dynamic.Max {
			out = append(out, d)
		}
	}
	return out
}

func (g *Graph) loadConnection(cd dataflow.Connection, diags *errors.Diagnostics) {
	if g.ConnectionByID(cd.ID) != nil {
		diags.Errorf(errors.ErrCodeReference, "connection id %q used more than once", cd.ID)
		return
	}
	from, ok := g.intfsByID[cd.From]
	if !ok {
		diags.Errorf(errors.ErrCodeReference, "connection %q references unknown interface %q", cd.ID, cd.From)
		return
	}
	to, ok := g.intfsByID[cd.To]
	if !ok {
		diags.Errorf(errors.ErrCodeReference, "connection %q references unknown interface %q", cd.ID, cd.To)
		return
	}
	if err := checkConnectable(from, to); err != nil {
		diags.AddError(errors.Wrap(errors.ErrCodeConnection, err, "connection %q", cd.ID))
		return
	}
	g.Connections = append(g.Connections, &Connection{
		ID:       cd.ID,
		From:     cd.From,
		To:       cd.To,
		Anchors:  cd.Anchors,
		Loopback: from.NodeID == to.NodeID,
	})
	from.addConnection()
	to.addConnection()
}
