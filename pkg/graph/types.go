// Package graph holds the in-memory model of an interactively edited
// dataflow graph: node instances, their interface instances, and the
// connections between them, kept structurally and semantically consistent
// with a resolved node-type specification.
//
// Graphs are loaded from dataflow documents in two passes (nodes and
// interfaces first, then connections, so forward references resolve) and
// mutated through atomic operations: AddNode, RemoveNode, AddConnection,
// RemoveConnection, and SetProperty each either commit the full change,
// including any dependent interface or connection adjustments, or leave
// the graph exactly as it was.
//
// A Graph is driven by a single logical actor and is not safe for
// concurrent use without external synchronization.
package graph

import (
	"github.com/mlenz/nodeforge/pkg/dataflow"
	"github.com/mlenz/nodeforge/pkg/graph/exposure"
	"github.com/mlenz/nodeforge/pkg/spec"
)

// InterfaceInstance is one live connection point on a node instance.
//
// Type tags, the connection ceiling, and the live connection count are
// read through accessor methods: for an exposed interface those values
// live in a shared exposure record referenced by the inner interface and
// every outer proxy, so all handles observe identical values.
type InterfaceInstance struct {
	ID             string
	Name           string
	Direction      string
	Side           string
	SidePosition   *int
	SubgraphNodeID string // inner node backing an outer proxy, if any
	NodeID         string // owning node instance

	types          spec.TypeList
	maxConnections int
	count          int
	shared         *exposure.State
}

// Types returns the interface's type tags.
func (i *InterfaceInstance) Types() spec.TypeList {
	if i.shared != nil {
		return spec.TypeList(i.shared.Types)
	}
	return i.types
}

// MaxConnections returns the connection ceiling; 0 means unlimited.
func (i *InterfaceInstance) MaxConnections() int {
	if i.shared != nil {
		return i.shared.MaxConnections
	}
	return i.maxConnections
}

// SetMaxConnections updates the connection ceiling. For an exposed
// interface the write goes to the shared record and is observable through
// every other handle.
func (i *InterfaceInstance) SetMaxConnections(n int) {
	if i.shared != nil {
		i.shared.MaxConnections = n
		return
	}
	i.maxConnections = n
}

// ConnectionCount returns the live connection count.
func (i *InterfaceInstance) ConnectionCount() int {
	if i.shared != nil {
		return i.shared.Count
	}
	return i.count
}

// HasCapacity reports whether another connection fits under the ceiling.
func (i *InterfaceInstance) HasCapacity() bool {
	max := i.MaxConnections()
	return max == 0 || i.ConnectionCount() < max
}

// Share switches the interface onto a shared exposure record. The
// record's values replace the local ones from now on.
func (i *InterfaceInstance) Share(st *exposure.State) { i.shared = st }

// Unshare detaches the interface from its shared record, copying the
// record's current values back into local state.
func (i *InterfaceInstance) Unshare() {
	if i.shared == nil {
		return
	}
	i.types = spec.TypeList(i.shared.Types)
	i.maxConnections = i.shared.MaxConnections
	i.count = i.shared.Count
	i.shared = nil
}

// SharedState returns the shared exposure record, or nil if the
// interface is not exposed.
func (i *InterfaceInstance) SharedState() *exposure.State { return i.shared }

func (i *InterfaceInstance) addConnection() {
	if i.shared != nil {
		i.shared.Count++
		return
	}
	i.count++
}

func (i *InterfaceInstance) removeConnection() {
	if i.shared != nil {
		if i.shared.Count > 0 {
			i.shared.Count--
		}
		return
	}
	if i.count > 0 {
		i.count--
	}
}

// NodeInstance is one live node in a graph.
type NodeInstance struct {
	ID            string
	TypeName      string
	Title         string
	Properties    map[string]any
	Interfaces    []*InterfaceInstance
	EnabledGroups []dataflow.EnabledGroup
	Position      *dataflow.Position
	Width         *float64
	TwoColumn     bool
	Subgraph      string // id of the nested subgraph, if any
}

// IsSubgraphIO reports whether the instance is a reserved
// subgraph-boundary pseudo-node.
func (n *NodeInstance) IsSubgraphIO() bool { return dataflow.IsSubgraphIO(n.TypeName) }

// Interface returns the interface instance with the given id, or nil.
func (n *NodeInstance) Interface(id string) *InterfaceInstance {
	for _, intf := range n.Interfaces {
		if intf.ID == id {
			return intf
		}
	}
	return nil
}

// InterfaceByName returns the interface instance with the given name, or nil.
func (n *NodeInstance) InterfaceByName(name string) *InterfaceInstance {
	for _, intf := range n.Interfaces {
		if intf.Name == name {
			return intf
		}
	}
	return nil
}

// GroupEnabled reports whether the named interface group is toggled on.
func (n *NodeInstance) GroupEnabled(name, direction string) bool {
	for _, g := range n.EnabledGroups {
		if g.Name == name && (g.Direction == "" || direction == "" || g.Direction == direction) {
			return true
		}
	}
	return false
}

// Connection is a live connection between two interface instances.
type Connection struct {
	ID      string
	From    string // source interface id
	To      string // target interface id
	Anchors []dataflow.Position

	// Loopback marks a connection with both ends on the same node. It is
	// a hint for the rendering layer and does not affect validity.
	Loopback bool
}

// Graph is the in-memory model of one graph document.
type Graph struct {
	ID          string
	Nodes       []*NodeInstance
	Connections []*Connection
	Panning     *dataflow.Position
	Scaling     *float64

	spec       *spec.Resolved
	nodesByID  map[string]*NodeInstance
	intfsByID  map[string]*InterfaceInstance
}

// New creates an empty graph bound to a resolved specification.
func New(id string, resolved *spec.Resolved) *Graph {
	return &Graph{
		ID:        id,
		spec:      resolved,
		nodesByID: make(map[string]*NodeInstance),
		intfsByID: make(map[string]*InterfaceInstance),
	}
}

// Spec returns the resolved specification the graph validates against.
func (g *Graph) Spec() *spec.Resolved { return g.spec }

// Node returns the node instance with the given id and whether it exists.
func (g *Graph) Node(id string) (*NodeInstance, bool) {
	n, ok := g.nodesByID[id]
	return n, ok
}

// Interface returns the interface instance with the given id and whether
// it exists anywhere in the graph.
func (g *Graph) Interface(id string) (*InterfaceInstance, bool) {
	intf, ok := g.intfsByID[id]
	return intf, ok
}

// ConnectionByID returns the connection with the given id, or nil.
func (g *Graph) ConnectionByID(id string) *Connection {
	for _, c := range g.Connections {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// ConnectionsAt returns every connection with an end on the given
// interface id.
func (g *Graph) ConnectionsAt(intfID string) []*Connection {
	var out []*Connection
	for _, c := range g.Connections {
		if c.From == intfID || c.To == intfID {
			out = append(out, c)
		}
	}
	return out
}

// NodeCount returns the number of node instances.
func (g *Graph) NodeCount() int { return len(g.Nodes) }

// ConnectionCount returns the number of connections.
func (g *Graph) ConnectionCount() int { return len(g.Connections) }
