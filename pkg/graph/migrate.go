package graph

import (
	"github.com/mlenz/nodeforge/pkg/spec"
)

// MigrateType reconciles every instance of the given type with a new
// definition. This runs when a node type is re-registered at runtime
// (custom node authoring): existing instances are migrated to the new
// shape rather than deleted or silently replaced.
//
// Migration preserves unrelated instance state (position, title, values
// of surviving properties, connections on surviving interfaces) and
// reconciles the rest:
//
//   - properties missing from the new definition are dropped; new
//     properties appear at their defaults; surviving properties whose
//     stored value no longer type-checks reset to the new default.
//   - interface instances whose name and direction still match a
//     declaration of the new definition are kept, ids and connections
//     intact; the rest are removed together with their connections, and
//     newly declared interfaces are created empty.
//
// Returns the number of instances migrated.
func (g *Graph) MigrateType(def *spec.NodeTypeDefinition) int {
	migrated := 0
	for _, n := range g.Nodes {
		if n.TypeName != def.Name {
			continue
		}
		g.migrateNode(n, def)
		migrated++
	}
	return migrated
}

func (g *Graph) migrateNode(n *NodeInstance, def *spec.NodeTypeDefinition) {
	// Properties: survivors keep their value when it still type-checks.
	old := n.Properties
	n.Properties = defaultProperties(def)
	for name, value := range old {
		p := def.Property(name)
		if p == nil {
			continue
		}
		if err := spec.CheckPropertyValue(p, value); err != nil {
			continue
		}
		n.Properties[name] = value
	}

	// Interfaces: drop instances the new shape no longer declares;
	// survivors pick up the new tags and ceiling (unless exposed, in
	// which case the shared record stays authoritative).
	for _, intf := range append([]*InterfaceInstance{}, n.Interfaces...) {
		d := matchInterfaceDef(n, def, intf.Name, intf.Direction)
		if d == nil || d.Direction != intf.Direction {
			g.removeInterface(n, intf)
			continue
		}
		if intf.shared == nil {
			intf.types = d.Type
			intf.maxConnections = d.MaxConnectionsCount
		}
	}

	// Create instances for newly declared interfaces.
	for _, d := range def.Interfaces {
		for _, expanded := range expandForInstance(def, d, n.Properties) {
			if n.InterfaceByName(expanded.Name) != nil {
				continue
			}
			intf := newInterface(n.ID, expanded, "")
			n.Interfaces = append(n.Interfaces, intf)
			g.intfsByID[intf.ID] = intf
		}
	}
	for gi := range def.InterfaceGroups {
		group := &def.InterfaceGroups[gi]
		if !n.GroupEnabled(group.Name, group.Direction) {
			continue
		}
		for _, d := range group.Interfaces {
			for _, expanded := range expandForInstance(def, d, n.Properties) {
				if n.InterfaceByName(expanded.Name) != nil {
					continue
				}
				intf := newInterface(n.ID, expanded, "")
				n.Interfaces = append(n.Interfaces, intf)
				g.intfsByID[intf.ID] = intf
			}
		}
	}
}
