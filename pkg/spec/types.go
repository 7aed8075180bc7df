// Package spec defines the node-type specification format and its
// resolution into a flat catalog of concrete node-type definitions.
//
// A specification is a modular, inheritance-based catalog: node types may
// extend other node types (including category pseudo-nodes and multiple
// parents), pull in further specification fragments via include
// directives, and declare dynamic interface sets whose size is fixed or
// bound to a property value. Resolution flattens all of that into a map
// from type name to a self-contained NodeTypeDefinition that the graph
// model and validators consume.
package spec

import (
	"encoding/json"
	"fmt"

	"github.com/mlenz/nodeforge/pkg/dataflow"
)

// Property kinds. Defaults are type-checked against the kind during
// resolution.
const (
	PropText      = "text"
	PropMultiline = "multiline"
	PropNumber    = "number"
	PropInteger   = "integer"
	PropBool      = "bool"
	PropSelect    = "select"
	PropSlider    = "slider"
	PropList      = "list"
	PropConstant  = "constant"
	PropHex       = "hex"
)

// PropertyKinds lists every valid property kind.
var PropertyKinds = []string{
	PropText, PropMultiline, PropNumber, PropInteger, PropBool,
	PropSelect, PropSlider, PropList, PropConstant, PropHex,
}

// ValidPropertyKind reports whether kind names a known property kind.
func ValidPropertyKind(kind string) bool {
	for _, k := range PropertyKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// TypeList is a set of type tags that decodes from either a JSON string
// or an array of strings. Interface compatibility requires the two ends
// of a connection to share at least one tag; an empty list is a wildcard.
type TypeList []string

// UnmarshalJSON accepts "tag" and ["tag1", "tag2"] forms.
func (t *TypeList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = TypeList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("type must be a string or an array of strings")
	}
	*t = TypeList(many)
	return nil
}

// MarshalJSON emits the single-string form for one tag, the array form
// otherwise, preserving round-trip fidelity with hand-written documents.
func (t TypeList) MarshalJSON() ([]byte, error) {
	if len(t) == 1 {
		return json.Marshal(t[0])
	}
	return json.Marshal([]string(t))
}

// Overlaps reports whether the two tag sets are connection-compatible:
// either set empty (untyped), or a shared tag exists.
func (t TypeList) Overlaps(other TypeList) bool {
	if len(t) == 0 || len(other) == 0 {
		return true
	}
	for _, a := range t {
		for _, b := range other {
			if a == b {
				return true
			}
		}
	}
	return false
}

// PropertyDefinition declares one configurable value on a node type.
type PropertyDefinition struct {
	Name     string    `json:"name" bson:"name"`
	Kind     string    `json:"kind" bson:"kind"`
	Default  any       `json:"default,omitempty" bson:"default,omitempty"`
	Min      *float64  `json:"min,omitempty" bson:"min,omitempty"`
	Max      *float64  `json:"max,omitempty" bson:"max,omitempty"`
	Step     *float64  `json:"step,omitempty" bson:"step,omitempty"`
	Values   []any     `json:"values,omitempty" bson:"values,omitempty"`
	Dtype    string    `json:"dtype,omitempty" bson:"dtype,omitempty"`
	Override bool      `json:"override,omitempty" bson:"override,omitempty"`
}

// DynamicCount declares a dynamic/array interface expansion: the
// declaration expands into Count concretely indexed interfaces. The count
// is either fixed or read from a property value at instance time, clamped
// to [Min, Max].
type DynamicCount struct {
	Fixed    *int   `json:"fixed,omitempty" bson:"fixed,omitempty"`
	Property string `json:"property,omitempty" bson:"property,omitempty"`
	Min      int    `json:"min" bson:"min"`
	Max      int    `json:"max" bson:"max"`
}

// InterfaceDefinition declares one connection point on a node type.
// MaxConnectionsCount of 0 means unlimited.
type InterfaceDefinition struct {
	Name                string        `json:"name" bson:"name"`
	Type                TypeList      `json:"type,omitempty" bson:"type,omitempty"`
	Direction           string        `json:"direction" bson:"direction"`
	Side                string        `json:"side,omitempty" bson:"side,omitempty"`
	SidePosition        *int          `json:"sidePosition,omitempty" bson:"side_position,omitempty"`
	MaxConnectionsCount int           `json:"maxConnectionsCount,omitempty" bson:"max_connections_count,omitempty"`
	Override            bool          `json:"override,omitempty" bson:"override,omitempty"`
	Dynamic             *DynamicCount `json:"dynamic,omitempty" bson:"dynamic,omitempty"`
}

// InterfaceGroupDefinition is a named, directional bundle of concrete
// interfaces that an instance can toggle on or off as a unit.
type InterfaceGroupDefinition struct {
	Name       string                `json:"name" bson:"name"`
	Direction  string                `json:"direction" bson:"direction"`
	Interfaces []InterfaceDefinition `json:"interfaces" bson:"interfaces"`
}

// NodeTypeDefinition declares one node type. Before resolution it may
// extend other types; after resolution Extends is empty and the
// definition is self-contained.
type NodeTypeDefinition struct {
	Name            string                     `json:"name" bson:"name"`
	Category        string                     `json:"category,omitempty" bson:"category,omitempty"`
	Layer           string                     `json:"layer,omitempty" bson:"layer,omitempty"`
	IsCategory      bool                       `json:"isCategory,omitempty" bson:"is_category,omitempty"`
	Abstract        bool                       `json:"abstract,omitempty" bson:"abstract,omitempty"`
	Extends         []string                   `json:"extends,omitempty" bson:"extends,omitempty"`
	Properties      []PropertyDefinition       `json:"properties,omitempty" bson:"properties,omitempty"`
	Interfaces      []InterfaceDefinition      `json:"interfaces,omitempty" bson:"interfaces,omitempty"`
	InterfaceGroups []InterfaceGroupDefinition `json:"interfaceGroups,omitempty" bson:"interface_groups,omitempty"`
	Description     string                     `json:"description,omitempty" bson:"description,omitempty"`
	Icon            string                     `json:"icon,omitempty" bson:"icon,omitempty"`
	Style           TypeList                   `json:"style,omitempty" bson:"style,omitempty"`
}

// EffectiveName returns the name the type is registered under. Category
// pseudo-nodes without an explicit name are addressed by the last segment
// of their category path.
func (d *NodeTypeDefinition) EffectiveName() string {
	if d.Name != "" {
		return d.Name
	}
	if d.IsCategory {
		return lastPathSegment(d.Category)
	}
	return ""
}

func lastPathSegment(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

// Property returns the property definition with the given name, or nil.
func (d *NodeTypeDefinition) Property(name string) *PropertyDefinition {
	for i := range d.Properties {
		if d.Properties[i].Name == name {
			return &d.Properties[i]
		}
	}
	return nil
}

// Interface returns the interface definition with the given name, or nil.
func (d *NodeTypeDefinition) Interface(name string) *InterfaceDefinition {
	for i := range d.Interfaces {
		if d.Interfaces[i].Name == name {
			return &d.Interfaces[i]
		}
	}
	return nil
}

// Group returns the interface group with the given name, or nil.
func (d *NodeTypeDefinition) Group(name string) *InterfaceGroupDefinition {
	for i := range d.InterfaceGroups {
		if d.InterfaceGroups[i].Name == name {
			return &d.InterfaceGroups[i]
		}
	}
	return nil
}

// Include references another specification fragment. It decodes from
// either a plain string (the path/url) or an object with url and style.
type Include struct {
	URL   string `json:"url" bson:"url"`
	Style string `json:"style,omitempty" bson:"style,omitempty"`
}

// UnmarshalJSON accepts "path/to/spec.json" and {"url": ..., "style": ...}.
func (inc *Include) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		inc.URL = s
		inc.Style = ""
		return nil
	}
	type alias Include
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("include must be a string or an object with a url")
	}
	*inc = Include(a)
	return nil
}

// GraphInclude references an external graph to register as a subgraph
// node type under the given category and name.
type GraphInclude struct {
	URL      string `json:"url" bson:"url"`
	Category string `json:"category,omitempty" bson:"category,omitempty"`
	Name     string `json:"name,omitempty" bson:"name,omitempty"`
}

// Specification is the unresolved specification document.
type Specification struct {
	Version       string               `json:"version,omitempty" bson:"version,omitempty"`
	Metadata      map[string]any       `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Include       []Include            `json:"include,omitempty" bson:"include,omitempty"`
	IncludeGraphs []GraphInclude       `json:"includeGraphs,omitempty" bson:"include_graphs,omitempty"`
	Nodes         []NodeTypeDefinition `json:"nodes" bson:"nodes"`
	Graphs        []dataflow.Graph     `json:"graphs,omitempty" bson:"graphs,omitempty"`
}

// Parse decodes an unresolved specification from JSON bytes.
func Parse(data []byte) (Specification, error) {
	var s Specification
	if err := json.Unmarshal(data, &s); err != nil {
		return Specification{}, fmt.Errorf("decode specification: %w", err)
	}
	return s, nil
}

// Resolved is the flat catalog produced by resolution: every concrete
// node type keyed by name, plus the named graphs registered through
// includeGraphs or the specification's own graphs section.
type Resolved struct {
	Version  string
	Metadata map[string]any
	Types    map[string]*NodeTypeDefinition
	Graphs   map[string]dataflow.Graph
}

// Type returns the resolved definition for name and whether it exists.
func (r *Resolved) Type(name string) (*NodeTypeDefinition, bool) {
	t, ok := r.Types[name]
	return t, ok
}

// TypeNames returns the resolved type names in unspecified order.
func (r *Resolved) TypeNames() []string {
	names := make([]string, 0, len(r.Types))
	for name := range r.Types {
		names = append(names, name)
	}
	return names
}
