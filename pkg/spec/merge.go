package spec

import (
	"fmt"
	"reflect"

	"github.com/mlenz/nodeforge/pkg/errors"
)

// mergeConflict describes a name collision discovered while merging a
// type's members. It becomes a RESOLUTION_CONFLICT diagnostic and fails
// the whole type: a type with any member conflict is absent from the
// resolved map.
type mergeConflict struct {
	kind   string // "property", "interface", or "interface group"
	member string
	detail string
}

func (c mergeConflict) diagnostic(typeName string) *errors.Error {
	return errors.New(errors.ErrCodeResolutionConflict,
		"type %q: %s %q: %s", typeName, c.kind, c.member, c.detail)
}

// mergedMembers accumulates the property/interface/group sets of a type
// during resolution: first the union of all parents, then the child's own
// declarations. Order is preserved (first declaration wins the slot).
type mergedMembers struct {
	properties []PropertyDefinition
	interfaces []InterfaceDefinition
	groups     []InterfaceGroupDefinition
	conflicts  []mergeConflict
	warnings   []string
}

// addParent merges one resolved parent's members into m.
//
// A collision between two parents is a diamond conflict unless the
// definitions are structurally identical (the classic diamond: both
// parents inherited the same member from a shared ancestor) or the later
// parent's member carries override:true.
func (m *mergedMembers) addParent(parent *NodeTypeDefinition) {
	for _, p := range parent.Properties {
		m.mergeProperty(p, true)
	}
	for _, intf := range parent.Interfaces {
		m.mergeInterface(intf, true)
	}
	for _, g := range parent.InterfaceGroups {
		m.mergeGroup(g, true)
	}
}

// addOwn applies the child's own declarations. A redeclared name requires
// override:true; without it the collision is a conflict.
func (m *mergedMembers) addOwn(def *NodeTypeDefinition) {
	for _, p := range def.Properties {
		m.mergeProperty(p, false)
	}
	for _, intf := range def.Interfaces {
		m.mergeInterface(intf, false)
	}
	for _, g := range def.InterfaceGroups {
		m.mergeGroup(g, false)
	}
}

func (m *mergedMembers) mergeProperty(p PropertyDefinition, fromParent bool) {
	for i := range m.properties {
		if m.properties[i].Name != p.Name {
			continue
		}
		if fromParent && reflect.DeepEqual(m.properties[i], p) {
			return
		}
		if p.Override {
			m.properties[i] = p
			return
		}
		m.conflicts = append(m.conflicts, mergeConflict{
			kind:   "property",
			member: p.Name,
			detail: collisionDetail(fromParent),
		})
		return
	}
	if !fromParent && p.Override {
		m.warnings = append(m.warnings, fmt.Sprintf("property %q has override:true but no inherited property to override", p.Name))
	}
	m.properties = append(m.properties, p)
}

func (m *mergedMembers) mergeInterface(intf InterfaceDefinition, fromParent bool) {
	for i := range m.interfaces {
		if m.interfaces[i].Name != intf.Name {
			continue
		}
		if fromParent && reflect.DeepEqual(m.interfaces[i], intf) {
			return
		}
		if intf.Override {
			m.interfaces[i] = intf
			return
		}
		m.conflicts = append(m.conflicts, mergeConflict{
			kind:   "interface",
			member: intf.Name,
			detail: collisionDetail(fromParent),
		})
		return
	}
	if !fromParent && intf.Override {
		m.warnings = append(m.warnings, fmt.Sprintf("interface %q has override:true but no inherited interface to override", intf.Name))
	}
	m.interfaces = append(m.interfaces, intf)
}

func (m *mergedMembers) mergeGroup(g InterfaceGroupDefinition, fromParent bool) {
	for i := range m.groups {
		if m.groups[i].Name != g.Name || m.groups[i].Direction != g.Direction {
			continue
		}
		if fromParent && reflect.DeepEqual(m.groups[i], g) {
			return
		}
		m.conflicts = append(m.conflicts, mergeConflict{
			kind:   "interface group",
			member: fmt.Sprintf("%s (%s)", g.Name, g.Direction),
			detail: collisionDetail(fromParent),
		})
		return
	}
	m.groups = append(m.groups, g)
}

func collisionDetail(fromParent bool) string {
	if fromParent {
		return "diamond conflict: inherited from two parents with differing definitions and no override"
	}
	return "redeclared without override:true"
}

// apply copies the merged members into def, clearing Extends so the
// result is self-contained.
func (m *mergedMembers) apply(def NodeTypeDefinition) NodeTypeDefinition {
	def.Extends = nil
	def.Properties = m.properties
	def.Interfaces = m.interfaces
	def.InterfaceGroups = m.groups
	return def
}
