// Package dataflow defines the serialization format for dataflow documents:
// the graphs a user assembles from the node types of a resolved
// specification. A dataflow bundles one or more graph documents (the
// top-level graph plus nested subgraphs) and names the entry graph.
//
// The format is human-readable and designed for round-trip fidelity:
// import → edit → export → re-import produces identical results.
package dataflow

import (
	"encoding/json"
	"fmt"
)

// Interface directions. Connections may only run from an output or inout
// interface into an input or inout interface.
const (
	DirectionInput  = "input"
	DirectionOutput = "output"
	DirectionInout  = "inout"
)

// Interface sides for rendering hints.
const (
	SideLeft  = "left"
	SideRight = "right"
)

// Reserved pseudo-type names for subgraph boundary nodes. Instances of
// these types do not resolve against the node-type catalog; they mark
// where a subgraph exposes an interface to its parent graph.
const (
	SubgraphInput  = "subgraph in"
	SubgraphOutput = "subgraph out"
	SubgraphInout  = "subgraph inout"
)

// IsSubgraphIO reports whether typeName is one of the reserved
// subgraph-boundary pseudo-types.
func IsSubgraphIO(typeName string) bool {
	return typeName == SubgraphInput || typeName == SubgraphOutput || typeName == SubgraphInout
}

// Dataflow is the top-level document: every graph in the session plus the
// id of the graph the editor opens first.
type Dataflow struct {
	Version    string         `json:"version,omitempty" bson:"version,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Graphs     []Graph        `json:"graphs" bson:"graphs"`
	EntryGraph string         `json:"entryGraph" bson:"entry_graph"`
}

// Graph is one graph document: nodes, connections, and view state.
// A graph with only EntryGraph set is a stub reference to another graph.
type Graph struct {
	ID          string       `json:"id,omitempty" bson:"id,omitempty"`
	EntryGraph  string       `json:"entryGraph,omitempty" bson:"entry_graph,omitempty"`
	Nodes       []Node       `json:"nodes,omitempty" bson:"nodes,omitempty"`
	Connections []Connection `json:"connections,omitempty" bson:"connections,omitempty"`
	Panning     *Position    `json:"panning,omitempty" bson:"panning,omitempty"`
	Scaling     *float64     `json:"scaling,omitempty" bson:"scaling,omitempty"`
}

// IsStub reports whether the graph is only a reference to an entry graph.
func (g *Graph) IsStub() bool {
	return g.EntryGraph != "" && g.ID == "" && len(g.Nodes) == 0
}

// Node is a serialized node instance. Name is the node-type name in the
// resolved specification (or a reserved subgraph pseudo-type).
type Node struct {
	Name                   string         `json:"name" bson:"name"`
	ID                     string         `json:"id" bson:"id"`
	Title                  string         `json:"title,omitempty" bson:"title,omitempty"`
	Interfaces             []Interface    `json:"interfaces" bson:"interfaces"`
	Properties             []Property     `json:"properties,omitempty" bson:"properties,omitempty"`
	EnabledInterfaceGroups []EnabledGroup `json:"enabledInterfaceGroups,omitempty" bson:"enabled_interface_groups,omitempty"`
	Position               *Position      `json:"position,omitempty" bson:"position,omitempty"`
	Width                  *float64       `json:"width,omitempty" bson:"width,omitempty"`
	TwoColumn              bool           `json:"twoColumn,omitempty" bson:"two_column,omitempty"`
	Subgraph               string         `json:"subgraph,omitempty" bson:"subgraph,omitempty"`
}

// Interface is a serialized interface instance on a node.
type Interface struct {
	ID             string `json:"id" bson:"id"`
	Name           string `json:"name" bson:"name"`
	Direction      string `json:"direction" bson:"direction"`
	Side           string `json:"side,omitempty" bson:"side,omitempty"`
	SidePosition   *int   `json:"sidePosition,omitempty" bson:"side_position,omitempty"`
	SubgraphNodeID string `json:"subgraphNodeId,omitempty" bson:"subgraph_node_id,omitempty"`
}

// Property is a serialized property value on a node.
type Property struct {
	ID    string `json:"id,omitempty" bson:"id,omitempty"`
	Name  string `json:"name" bson:"name"`
	Value any    `json:"value" bson:"value"`
}

// EnabledGroup names an interface group the instance has toggled on.
type EnabledGroup struct {
	Name      string `json:"name" bson:"name"`
	Direction string `json:"direction,omitempty" bson:"direction,omitempty"`
}

// Connection links two interface instances by id.
type Connection struct {
	ID      string     `json:"id" bson:"id"`
	From    string     `json:"from" bson:"from"`
	To      string     `json:"to" bson:"to"`
	Anchors []Position `json:"anchors,omitempty" bson:"anchors,omitempty"`
}

// Position is a 2D point used for node placement, panning, and anchors.
type Position struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

// GraphByID returns the graph with the given id and true, or a zero graph
// and false if no graph matches.
func (d *Dataflow) GraphByID(id string) (Graph, bool) {
	for _, g := range d.Graphs {
		if g.ID == id {
			return g, true
		}
	}
	return Graph{}, false
}

// Entry returns the entry graph document. It follows one level of stub
// indirection and returns an error if the entry id resolves to nothing.
func (d *Dataflow) Entry() (Graph, error) {
	g, ok := d.GraphByID(d.EntryGraph)
	if !ok {
		return Graph{}, fmt.Errorf("entry graph %q not found", d.EntryGraph)
	}
	return g, nil
}

// UnmarshalDataflow decodes JSON bytes into a Dataflow.
func UnmarshalDataflow(data []byte) (Dataflow, error) {
	var d Dataflow
	if err := json.Unmarshal(data, &d); err != nil {
		return Dataflow{}, err
	}
	return d, nil
}

// UnmarshalGraph decodes JSON bytes into a single Graph document.
func UnmarshalGraph(data []byte) (Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return Graph{}, err
	}
	return g, nil
}
