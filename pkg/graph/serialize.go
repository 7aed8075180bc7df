package graph

import (
	"sort"

	"github.com/mlenz/nodeforge/pkg/dataflow"
)

// ToDocument converts the in-memory graph back to its serialization
// format. Node, interface, and connection order is preserved; property
// order is sorted by name for deterministic output.
func (g *Graph) ToDocument() dataflow.Graph {
	doc := dataflow.Graph{
		ID:      g.ID,
		Panning: g.Panning,
		Scaling: g.Scaling,
	}
	for _, n := range g.Nodes {
		doc.Nodes = append(doc.Nodes, nodeToDocument(n))
	}
	for _, c := range g.Connections {
		doc.Connections = append(doc.Connections, dataflow.Connection{
			ID:      c.ID,
			From:    c.From,
			To:      c.To,
			Anchors: c.Anchors,
		})
	}
	return doc
}

func nodeToDocument(n *NodeInstance) dataflow.Node {
	nd := dataflow.Node{
		Name:                   n.TypeName,
		ID:                     n.ID,
		Title:                  n.Title,
		EnabledInterfaceGroups: n.EnabledGroups,
		Position:               n.Position,
		Width:                  n.Width,
		TwoColumn:              n.TwoColumn,
		Subgraph:               n.Subgraph,
	}
	if nd.Title == n.TypeName {
		nd.Title = "" // default title, omit for round-trip stability
	}
	for _, intf := range n.Interfaces {
		nd.Interfaces = append(nd.Interfaces, dataflow.Interface{
			ID:             intf.ID,
			Name:           intf.Name,
			Direction:      intf.Direction,
			Side:           intf.Side,
			SidePosition:   intf.SidePosition,
			SubgraphNodeID: intf.SubgraphNodeID,
		})
	}
	names := make([]string, 0, len(n.Properties))
	for name := range n.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		nd.Properties = append(nd.Properties, dataflow.Property{
			Name:  name,
			Value: n.Properties[name],
		})
	}
	return nd
}
