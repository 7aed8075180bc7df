package spec

import (
	"fmt"

	"github.com/mlenz/nodeforge/pkg/errors"
)

// IndexedName returns the concrete name of the i-th expansion of a
// dynamic interface declaration, e.g. "in[3]" for ("in", 3).
func IndexedName(base string, i int) string {
	return fmt.Sprintf("%s[%d]", base, i)
}

// expandFixedInterfaces replaces every fixed-count dynamic interface
// declaration of def with its concretely indexed interfaces. A fixed
// count outside the declared [min, max] range is clamped and reported as
// a warning so the rest of the type keeps resolving. Property-bound
// declarations are left in place; the graph model expands those per
// instance because the count can change whenever the bound property
// changes.
func expandFixedInterfaces(def *NodeTypeDefinition, diags *errors.Diagnostics) {
	var out []InterfaceDefinition
	for _, intf := range def.Interfaces {
		if intf.Dynamic == nil || intf.Dynamic.Fixed == nil {
			out = append(out, intf)
			continue
		}
		count := clampCount(*intf.Dynamic.Fixed, intf.Dynamic, def.Name, intf.Name, diags)
		out = append(out, ExpandInterface(intf, count)...)
	}
	def.Interfaces = out
}

// ExpandInterface produces count concrete copies of a dynamic interface
// declaration, named base[0] through base[count-1]. SidePosition, when
// set, increments per copy so expanded ports keep a stable ordering.
func ExpandInterface(intf InterfaceDefinition, count int) []InterfaceDefinition {
	expanded := make([]InterfaceDefinition, 0, count)
	for i := 0; i < count; i++ {
		c := intf
		c.Name = IndexedName(intf.Name, i)
		c.Dynamic = nil
		if intf.SidePosition != nil {
			pos := *intf.SidePosition + i
			c.SidePosition = &pos
		}
		expanded = append(expanded, c)
	}
	return expanded
}

// InstanceCount computes the expansion count of a property-bound dynamic
// interface for a concrete instance, reading the bound property from
// values (falling back to the property's default). The result is clamped
// to the declared [min, max] range; a missing or non-numeric binding
// resolves to min.
func InstanceCount(def *NodeTypeDefinition, intf *InterfaceDefinition, values map[string]any) int {
	d := intf.Dynamic
	if d == nil {
		return 1
	}
	if d.Fixed != nil {
		return clamp(*d.Fixed, d.Min, d.Max)
	}
	raw, ok := values[d.Property]
	if !ok {
		if p := def.Property(d.Property); p != nil {
			raw = p.Default
		}
	}
	n, ok := numericValue(raw)
	if !ok {
		return d.Min
	}
	return clamp(int(n), d.Min, d.Max)
}

func clampCount(count int, d *DynamicCount, typeName, intfName string, diags *errors.Diagnostics) int {
	clamped := clamp(count, d.Min, d.Max)
	if clamped != count {
		diags.Warnf(errors.ErrCodeResolutionConflict,
			"type %q: interface %q: fixed count %d clamped to [%d, %d]", typeName, intfName, count, d.Min, d.Max)
	}
	return clamped
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
