// Package schema performs structural JSON-shape checks for the three
// document kinds the engine consumes: unresolved specifications, single
// graph documents, and dataflow documents.
//
// Schema checking is purely structural: required fields present, fields
// of the right JSON type, enum fields holding known values. Semantic
// checks (type names resolve, connections are compatible) belong to the
// specification resolver and the dataflow validator and only run after
// the schema check passes; a schema error is fatal and nothing further
// runs on the document.
//
// Error messages carry a field path (e.g. "graphs[0].nodes[3].id") so
// defects in large documents can be located directly.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/mlenz/nodeforge/pkg/dataflow"
	"github.com/mlenz/nodeforge/pkg/errors"
	"github.com/mlenz/nodeforge/pkg/spec"
)

// CheckSpecification verifies the structural shape of an unresolved
// specification document.
func CheckSpecification(data []byte) errors.Diagnostics {
	var diags errors.Diagnostics
	var s spec.Specification
	if !decode(data, &s, &diags) {
		return diags
	}
	if s.Nodes == nil {
		diags.Errorf(errors.ErrCodeSchema, "nodes: required field is missing")
	}
	for i, def := range s.Nodes {
		checkNodeType(fmt.Sprintf("nodes[%d]", i), def, &diags)
	}
	for i, inc := range s.Include {
		if inc.URL == "" {
			diags.Errorf(errors.ErrCodeSchema, "include[%d].url: required field is missing", i)
		}
	}
	for i, inc := range s.IncludeGraphs {
		if inc.URL == "" {
			diags.Errorf(errors.ErrCodeSchema, "includeGraphs[%d].url: required field is missing", i)
		}
	}
	for i, g := range s.Graphs {
		checkGraphDoc(fmt.Sprintf("graphs[%d]", i), g, &diags)
	}
	return diags
}

// CheckGraph verifies the structural shape of a single graph document.
func CheckGraph(data []byte) errors.Diagnostics {
	var diags errors.Diagnostics
	var g dataflow.Graph
	if !decode(data, &g, &diags) {
		return diags
	}
	checkGraphDoc("", g, &diags)
	return diags
}

// CheckDataflow verifies the structural shape of a dataflow document.
func CheckDataflow(data []byte) errors.Diagnostics {
	var diags errors.Diagnostics
	var d dataflow.Dataflow
	if !decode(data, &d, &diags) {
		return diags
	}
	if d.Graphs == nil {
		diags.Errorf(errors.ErrCodeSchema, "graphs: required field is missing")
	}
	if d.EntryGraph == "" {
		diags.Errorf(errors.ErrCodeSchema, "entryGraph: required field is missing")
	}
	for i, g := range d.Graphs {
		checkGraphDoc(fmt.Sprintf("graphs[%d]", i), g, &diags)
	}
	return diags
}

// decode unmarshals data into v, converting decoding failures into
// schema diagnostics with field context. Returns false when decoding
// failed and nothing further should run.
func decode(data []byte, v any, diags *errors.Diagnostics) bool {
	if err := json.Unmarshal(data, v); err != nil {
		switch e := err.(type) {
		case *json.UnmarshalTypeError:
			diags.Errorf(errors.ErrCodeSchema, "%s: expected %s, got %s", e.Field, e.Type, e.Value)
		case *json.SyntaxError:
			diags.Errorf(errors.ErrCodeSchema, "malformed JSON at offset %d: %v", e.Offset, err)
		default:
			diags.AddError(errors.Wrap(errors.ErrCodeSchema, err, "decode document"))
		}
		return false
	}
	return true
}

func checkNodeType(path string, def spec.NodeTypeDefinition, diags *errors.Diagnostics) {
	if def.Name == "" && !def.IsCategory {
		diags.Errorf(errors.ErrCodeSchema, "%s.name: required field is missing", path)
	}
	if def.IsCategory && def.Name == "" && def.Category == "" {
		diags.Errorf(errors.ErrCodeSchema, "%s: category node needs a name or a category path", path)
	}
	for i, p := range def.Properties {
		if p.Name == "" {
			diags.Errorf(errors.ErrCodeSchema, "%s.properties[%d].name: required field is missing", path, i)
		}
		if p.Kind == "" {
			diags.Errorf(errors.ErrCodeSchema, "%s.properties[%d].kind: required field is missing", path, i)
		} else if !spec.ValidPropertyKind(p.Kind) {
			diags.Errorf(errors.ErrCodeSchema, "%s.properties[%d].kind: unknown kind %q", path, i, p.Kind)
		}
	}
	for i, intf := range def.Interfaces {
		checkInterfaceDef(fmt.Sprintf("%s.interfaces[%d]", path, i), intf, diags)
	}
	for i, g := range def.InterfaceGroups {
		gpath := fmt.Sprintf("%s.interfaceGroups[%d]", path, i)
		if g.Name == "" {
			diags.Errorf(errors.ErrCodeSchema, "%s.name: required field is missing", gpath)
		}
		for j, intf := range g.Interfaces {
			checkInterfaceDef(fmt.Sprintf("%s.interfaces[%d]", gpath, j), intf, diags)
		}
	}
}

func checkInterfaceDef(path string, intf spec.InterfaceDefinition, diags *errors.Diagnostics) {
	if intf.Name == "" {
		diags.Errorf(errors.ErrCodeSchema, "%s.name: required field is missing", path)
	}
	switch intf.Direction {
	case dataflow.DirectionInput, dataflow.DirectionOutput, dataflow.DirectionInout:
	case "":
		diags.Errorf(errors.ErrCodeSchema, "%s.direction: required field is missing", path)
	default:
		diags.Errorf(errors.ErrCodeSchema, "%s.direction: must be input, output, or inout, got %q", path, intf.Direction)
	}
	if intf.Side != "" && intf.Side != dataflow.SideLeft && intf.Side != dataflow.SideRight {
		diags.Errorf(errors.ErrCodeSchema, "%s.side: must be left or right, got %q", path, intf.Side)
	}
}

func checkGraphDoc(path string, g dataflow.Graph, diags *errors.Diagnostics) {
	prefix := path
	if prefix != "" {
		prefix += "."
	}
	if g.IsStub() {
		return // {entryGraph} stub reference form
	}
	if g.ID == "" {
		diags.Errorf(errors.ErrCodeSchema, "%sid: required field is missing", prefix)
	}
	for i, n := range g.Nodes {
		npath := fmt.Sprintf("%snodes[%d]", prefix, i)
		if n.Name == "" {
			diags.Errorf(errors.ErrCodeSchema, "%s.name: required field is missing", npath)
		}
		if n.ID == "" {
			diags.Errorf(errors.ErrCodeSchema, "%s.id: required field is missing", npath)
		}
		for j, intf := range n.Interfaces {
			ipath := fmt.Sprintf("%s.interfaces[%d]", npath, j)
			if intf.ID == "" {
				diags.Errorf(errors.ErrCodeSchema, "%s.id: required field is missing", ipath)
			}
			if intf.Name == "" {
				diags.Errorf(errors.ErrCodeSchema, "%s.name: required field is missing", ipath)
			}
			switch intf.Direction {
			case dataflow.DirectionInput, dataflow.DirectionOutput, dataflow.DirectionInout:
			case "":
				diags.Errorf(errors.ErrCodeSchema, "%s.direction: required field is missing", ipath)
			default:
				diags.Errorf(errors.ErrCodeSchema, "%s.direction: must be input, output, or inout, got %q", ipath, intf.Direction)
			}
		}
		for j, p := range n.Properties {
			if p.Name == "" {
				diags.Errorf(errors.ErrCodeSchema, "%s.properties[%d].name: required field is missing", npath, j)
			}
		}
	}
	for i, c := range g.Connections {
		cpath := fmt.Sprintf("%sconnections[%d]", prefix, i)
		if c.ID == "" {
			diags.Errorf(errors.ErrCodeSchema, "%s.id: required field is missing", cpath)
		}
		if c.From == "" {
			diags.Errorf(errors.ErrCodeSchema, "%s.from: required field is missing", cpath)
		}
		if c.To == "" {
			diags.Errorf(errors.ErrCodeSchema, "%s.to: required field is missing", cpath)
		}
	}
}
