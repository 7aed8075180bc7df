package graph

import (
	"strings"

	"github.com/google/uuid"

	"github.com/mlenz/nodeforge/pkg/dataflow"
	"github.com/mlenz/nodeforge/pkg/errors"
	"github.com/mlenz/nodeforge/pkg/spec"
)

// AddNode instantiates a node of the given resolved type and adds it to
// the graph. Properties start at their defaults; interfaces are created
// from the type's declarations, with property-bound dynamic declarations
// expanded for the default property values. Interface groups start
// disabled.
//
// Category and abstract types cannot be instantiated. The operation is
// atomic: on error the graph is unchanged.
func (g *Graph) AddNode(typeName string) (*NodeInstance, error) {
	def, ok := g.spec.Type(typeName)
	if !ok {
		return nil, errors.New(errors.ErrCodeReference, "unknown node type %q", typeName)
	}
	if def.IsCategory {
		return nil, errors.New(errors.ErrCodeReference, "type %q is a category and cannot be instantiated", typeName)
	}
	if def.Abstract {
		return nil, errors.New(errors.ErrCodeReference, "type %q is abstract and cannot be instantiated", typeName)
	}

	n := &NodeInstance{
		ID:         uuid.NewString(),
		TypeName:   typeName,
		Title:      typeName,
		Properties: defaultProperties(def),
	}
	if _, isGraph := g.spec.Graphs[typeName]; isGraph {
		n.Subgraph = typeName
	}
	for _, d := range def.Interfaces {
		for _, expanded := range expandForInstance(def, d, n.Properties) {
			n.Interfaces = append(n.Interfaces, newInterface(n.ID, expanded, ""))
		}
	}

	g.commitNode(n)
	return n, nil
}

// RemoveNode removes the node with the given id together with every
// connection touching one of its interfaces. The operation is atomic.
func (g *Graph) RemoveNode(id string) error {
	n, ok := g.nodesByID[id]
	if !ok {
		return errors.New(errors.ErrCodeReference, "unknown node %q", id)
	}
	for _, intf := range n.Interfaces {
		for _, c := range g.ConnectionsAt(intf.ID) {
			g.dropConnection(c)
		}
	}
	for _, intf := range n.Interfaces {
		delete(g.intfsByID, intf.ID)
	}
	delete(g.nodesByID, id)
	g.Nodes = deleteNode(g.Nodes, n)
	return nil
}

// AddConnection connects two interface instances. It rejects, without
// modifying the graph, connections whose source is not an output or
// inout, whose target is not an input or inout, whose type tags do not
// overlap, whose endpoints are already connected to each other, or that
// would push either end past its connection ceiling.
//
// A loopback (both ends on the same node) is permitted; the returned
// connection carries the Loopback flag for the rendering layer.
func (g *Graph) AddConnection(fromID, toID string) (*Connection, error) {
	from, ok := g.intfsByID[fromID]
	if !ok {
		return nil, errors.New(errors.ErrCodeReference, "unknown interface %q", fromID)
	}
	to, ok := g.intfsByID[toID]
	if !ok {
		return nil, errors.New(errors.ErrCodeReference, "unknown interface %q", toID)
	}
	if err := checkConnectable(from, to); err != nil {
		return nil, err
	}
	for _, c := range g.Connections {
		if c.From == fromID && c.To == toID {
			return nil, errors.New(errors.ErrCodeConnection,
				"interfaces %q and %q are already connected", fromID, toID)
		}
	}

	c := &Connection{
		ID:       uuid.NewString(),
		From:     fromID,
		To:       toID,
		Loopback: from.NodeID == to.NodeID,
	}
	g.Connections = append(g.Connections, c)
	from.addConnection()
	to.addConnection()
	return c, nil
}

// RemoveConnection removes the connection with the given id and releases
// the connection count on both ends.
func (g *Graph) RemoveConnection(id string) error {
	c := g.ConnectionByID(id)
	if c == nil {
		return errors.New(errors.ErrCodeReference, "unknown connection %q", id)
	}
	g.dropConnection(c)
	return nil
}

// SetProperty updates a property value on a node. The value is
// type-checked against the property's kind before anything changes.
//
// When the property drives a dynamic interface count, the node's
// expanded interfaces are reconciled in the same atomic commit: slots
// past the new count are removed together with their connections, and
// missing slots are created empty.
func (g *Graph) SetProperty(nodeID, name string, value any) error {
	n, ok := g.nodesByID[nodeID]
	if !ok {
		return errors.New(errors.ErrCodeReference, "unknown node %q", nodeID)
	}
	def, ok := g.spec.Type(n.TypeName)
	if !ok {
		return errors.New(errors.ErrCodeReference, "node %q has unresolved type %q", nodeID, n.TypeName)
	}
	p := def.Property(name)
	if p == nil {
		return errors.New(errors.ErrCodeReference, "type %q has no property %q", n.TypeName, name)
	}
	if err := spec.CheckPropertyValue(p, value); err != nil {
		return err
	}

	n.Properties[name] = value
	for i := range def.Interfaces {
		d := def.Interfaces[i]
		if d.Dynamic == nil || d.Dynamic.Property != name {
			continue
		}
		g.reconcileDynamic(n, def, d)
	}
	return nil
}

// EnableGroup toggles an interface group on for a node instance,
// creating the group's interface instances. Enabling an already-enabled
// group is an error.
func (g *Graph) EnableGroup(nodeID, groupName, direction string) error {
	n, ok := g.nodesByID[nodeID]
	if !ok {
		return errors.New(errors.ErrCodeReference, "unknown node %q", nodeID)
	}
	def, ok := g.spec.Type(n.TypeName)
	if !ok {
		return errors.New(errors.ErrCodeReference, "node %q has unresolved type %q", nodeID, n.TypeName)
	}
	group := def.Group(groupName)
	if group == nil {
		return errors.New(errors.ErrCodeReference, "type %q has no interface group %q", n.TypeName, groupName)
	}
	if n.GroupEnabled(groupName, direction) {
		return errors.New(errors.ErrCodeInvalidInput, "interface group %q is already enabled", groupName)
	}

	for _, d := range group.Interfaces {
		for _, expanded := range expandForInstance(def, d, n.Properties) {
			intf := newInterface(n.ID, expanded, "")
			n.Interfaces = append(n.Interfaces, intf)
			g.intfsByID[intf.ID] = intf
		}
	}
	n.EnabledGroups = append(n.EnabledGroups, dataflow.EnabledGroup{Name: groupName, Direction: direction})
	return nil
}

// DisableGroup toggles an interface group off, removing its interface
// instances and any connections on them in one atomic commit.
func (g *Graph) DisableGroup(nodeID, groupName, direction string) error {
	n, ok := g.nodesByID[nodeID]
	if !ok {
		return errors.New(errors.ErrCodeReference, "unknown node %q", nodeID)
	}
	def, ok := g.spec.Type(n.TypeName)
	if !ok {
		return errors.New(errors.ErrCodeReference, "node %q has unresolved type %q", nodeID, n.TypeName)
	}
	group := def.Group(groupName)
	if group == nil {
		return errors.New(errors.ErrCodeReference, "type %q has no interface group %q", n.TypeName, groupName)
	}
	if !n.GroupEnabled(groupName, direction) {
		return errors.New(errors.ErrCodeInvalidInput, "interface group %q is not enabled", groupName)
	}

	for _, d := range group.Interfaces {
		for _, intf := range groupInstances(n, def, d) {
			g.removeInterface(n, intf)
		}
	}
	kept := n.EnabledGroups[:0]
	for _, eg := range n.EnabledGroups {
		if eg.Name == groupName && (eg.Direction == "" || direction == "" || eg.Direction == direction) {
			continue
		}
		kept = append(kept, eg)
	}
	n.EnabledGroups = kept
	return nil
}

// RemoveInterface removes a single interface instance (typically an
// exposure proxy) and every connection on it. Used by the session layer
// when privatizing exposed interfaces.
func (g *Graph) RemoveInterface(intfID string) error {
	intf, ok := g.intfsByID[intfID]
	if !ok {
		return errors.New(errors.ErrCodeReference, "unknown interface %q", intfID)
	}
	n, ok := g.nodesByID[intf.NodeID]
	if !ok {
		return errors.New(errors.ErrCodeInternal, "interface %q has no owning node", intfID)
	}
	g.removeInterface(n, intf)
	return nil
}

// AttachProxyInterface appends an externally built interface instance
// (an exposure proxy) to the given node. The instance keeps its id; a
// duplicate id within the graph is rejected.
func (g *Graph) AttachProxyInterface(nodeID string, intf *InterfaceInstance) error {
	n, ok := g.nodesByID[nodeID]
	if !ok {
		return errors.New(errors.ErrCodeReference, "unknown node %q", nodeID)
	}
	if _, exists := g.intfsByID[intf.ID]; exists {
		return errors.New(errors.ErrCodeRegistry, "interface id %q already exists in graph %q", intf.ID, g.ID)
	}
	intf.NodeID = n.ID
	n.Interfaces = append(n.Interfaces, intf)
	g.intfsByID[intf.ID] = intf
	return nil
}

// checkConnectable enforces direction, type, and arity compatibility.
func checkConnectable(from, to *InterfaceInstance) error {
	if from.Direction != dataflow.DirectionOutput && from.Direction != dataflow.DirectionInout {
		return errors.New(errors.ErrCodeConnection,
			"interface %q has direction %q and cannot be a connection source", from.ID, from.Direction)
	}
	if to.Direction != dataflow.DirectionInput && to.Direction != dataflow.DirectionInout {
		return errors.New(errors.ErrCodeConnection,
			"interface %q has direction %q and cannot be a connection target", to.ID, to.Direction)
	}
	if !from.Types().Overlaps(to.Types()) {
		return errors.New(errors.ErrCodeConnection,
			"type mismatch: %v does not overlap %v", from.Types(), to.Types())
	}
	if !from.HasCapacity() {
		return errors.New(errors.ErrCodeConnection,
			"interface %q is at its connection limit (%d)", from.ID, from.MaxConnections())
	}
	if !to.HasCapacity() {
		return errors.New(errors.ErrCodeConnection,
			"interface %q is at its connection limit (%d)", to.ID, to.MaxConnections())
	}
	return nil
}

// reconcileDynamic aligns a node's expanded interface slots for one
// property-bound dynamic declaration with the current property value.
func (g *Graph) reconcileDynamic(n *NodeInstance, def *spec.NodeTypeDefinition, d spec.InterfaceDefinition) {
	want := spec.InstanceCount(def, &d, n.Properties)

	// Existing slots, by index.
	existing := make(map[int]*InterfaceInstance)
	maxIdx := -1
	for _, intf := range n.Interfaces {
		idx, ok := expansionIndex(d.Name, intf.Name)
		if !ok {
			continue
		}
		existing[idx] = intf
		if idx > maxIdx {
			maxIdx = idx
		}
	}

	for idx := want; idx <= maxIdx; idx++ {
		if intf, ok := existing[idx]; ok {
			g.removeInterface(n, intf)
		}
	}
	for _, expanded := range spec.ExpandInterface(d, want) {
		if _, ok := expansionIndexFor(existing, d.Name, expanded.Name); ok {
			continue
		}
		intf := newInterface(n.ID, expanded, "")
		n.Interfaces = append(n.Interfaces, intf)
		g.intfsByID[intf.ID] = intf
	}
}

func expansionIndexFor(existing map[int]*InterfaceInstance, base, name string) (*InterfaceInstance, bool) {
	idx, ok := expansionIndex(base, name)
	if !ok {
		return nil, false
	}
	intf, ok := existing[idx]
	return intf, ok
}

// expansionIndex extracts i from "base[i]", or reports false when name
// is not an expansion of base.
func expansionIndex(base, name string) (int, bool) {
	if !strings.HasPrefix(name, base+"[") || !strings.HasSuffix(name, "]") {
		return 0, false
	}
	digits := name[len(base)+1 : len(name)-1]
	if digits == "" {
		return 0, false
	}
	idx := 0
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
		idx = idx*10 + int(r-'0')
	}
	return idx, true
}

// groupInstances returns the live instances created from one group
// interface declaration, covering dynamic expansions. Instances are
// matched by name and direction, so a declaration never claims an
// instance of another declaration sharing its name.
func groupInstances(n *NodeInstance, def *spec.NodeTypeDefinition, d spec.InterfaceDefinition) []*InterfaceInstance {
	var out []*InterfaceInstance
	for _, intf := range n.Interfaces {
		if intf.Direction != d.Direction {
			continue
		}
		if intf.Name == d.Name {
			out = append(out, intf)
			continue
		}
		if d.Dynamic != nil {
			if _, ok := expansionIndex(d.Name, intf.Name); ok {
				out = append(out, intf)
			}
		}
	}
	return out
}

func (g *Graph) commitNode(n *NodeInstance) {
	g.Nodes = append(g.Nodes, n)
	g.nodesByID[n.ID] = n
	for _, intf := range n.Interfaces {
		g.intfsByID[intf.ID] = intf
	}
}

func (g *Graph) dropConnection(c *Connection) {
	if from, ok := g.intfsByID[c.From]; ok {
		from.removeConnection()
	}
	if to, ok := g.intfsByID[c.To]; ok {
		to.removeConnection()
	}
	kept := g.Connections[:0]
	for _, other := range g.Connections {
		if other.ID != c.ID {
			kept = append(kept, other)
		}
	}
	g.Connections = kept
}

func (g *Graph) removeInterface(n *NodeInstance, intf *InterfaceInstance) {
	for _, c := range g.ConnectionsAt(intf.ID) {
		g.dropConnection(c)
	}
	delete(g.intfsByID, intf.ID)
	kept := n.Interfaces[:0]
	for _, other := range n.Interfaces {
		if other.ID != intf.ID {
			kept = append(kept, other)
		}
	}
	n.Interfaces = kept
}

// newInterface builds an interface instance from a concrete (already
// expanded) interface definition. An empty id generates a fresh one.
func newInterface(nodeID string, d spec.InterfaceDefinition, id string) *InterfaceInstance {
	if id == "" {
		id = uuid.NewString()
	}
	return &InterfaceInstance{
		ID:             id,
		Name:           d.Name,
		Direction:      d.Direction,
		Side:           d.Side,
		SidePosition:   d.SidePosition,
		NodeID:         nodeID,
		types:          d.Type,
		maxConnections: d.MaxConnectionsCount,
	}
}

func defaultProperties(def *spec.NodeTypeDefinition) map[string]any {
	props := make(map[string]any, len(def.Properties))
	for _, p := range def.Properties {
		if p.Default != nil {
			props[p.Name] = p.Default
		}
	}
	return props
}

// expandForInstance expands one interface declaration for a concrete
// instance: plain declarations pass through, dynamic ones expand to the
// instance's current count.
func expandForInstance(def *spec.NodeTypeDefinition, d spec.InterfaceDefinition, values map[string]any) []spec.InterfaceDefinition {
	if d.Dynamic == nil {
		return []spec.InterfaceDefinition{d}
	}
	return spec.ExpandInterface(d, spec.InstanceCount(def, &d, values))
}

func deleteNode(nodes []*NodeInstance, target *NodeInstance) []*NodeInstance {
	kept := nodes[:0]
	for _, n := range nodes {
		if n.ID != target.ID {
			kept = append(kept, n)
		}
	}
	return kept
}
