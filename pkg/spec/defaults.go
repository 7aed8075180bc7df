package spec

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mlenz/nodeforge/pkg/errors"
)

// validateDefinition checks a resolved definition's members: property
// defaults against their kinds, interface directions, arity ceilings, and
// interface group contents. Defects are accumulated on diags; the
// definition stays in the resolved map so tooling can still inspect it.
func validateDefinition(def *NodeTypeDefinition, diags *errors.Diagnostics) {
	for i := range def.Properties {
		p := &def.Properties[i]
		if err := CheckPropertyDefinition(p); err != nil {
			diags.Errorf(errors.ErrCodeResolutionConflict, "type %q: property %q: %s",
				def.Name, p.Name, errors.UserMessage(err))
		}
	}
	for i := range def.Interfaces {
		checkInterfaceDefinition(def.Name, &def.Interfaces[i], diags)
	}
	for i := range def.InterfaceGroups {
		g := &def.InterfaceGroups[i]
		if !validDirection(g.Direction) {
			diags.Errorf(errors.ErrCodeResolutionConflict,
				"type %q: interface group %q: invalid direction %q", def.Name, g.Name, g.Direction)
		}
		if len(g.Interfaces) == 0 {
			diags.Warnf(errors.ErrCodeResolutionConflict,
				"type %q: interface group %q contains no interfaces", def.Name, g.Name)
		}
		for j := range g.Interfaces {
			checkInterfaceDefinition(def.Name, &g.Interfaces[j], diags)
		}
	}
	checkGroupCollisions(def, diags)
}

// checkGroupCollisions rejects group members whose name and direction
// collide with an interface declared outside the group. Teardown on
// group disable matches live instances by name and direction, so that
// pair must never be ambiguous between declarations.
func checkGroupCollisions(def *NodeTypeDefinition, diags *errors.Diagnostics) {
	claimed := make(map[string]string)
	for i := range def.Interfaces {
		d := &def.Interfaces[i]
		claimed[d.Name+"\x00"+d.Direction] = "an interface of the type itself"
	}
	for gi := range def.InterfaceGroups {
		g := &def.InterfaceGroups[gi]
		for j := range g.Interfaces {
			m := &g.Interfaces[j]
			key := m.Name + "\x00" + m.Direction
			if owner, dup := claimed[key]; dup {
				diags.Errorf(errors.ErrCodeResolutionConflict,
					"type %q: interface group %q: member %q (%s) collides with %s",
					def.Name, g.Name, m.Name, m.Direction, owner)
				continue
			}
			claimed[key] = fmt.Sprintf("a member of interface group %q", g.Name)
		}
	}
}

func checkInterfaceDefinition(typeName string, intf *InterfaceDefinition, diags *errors.Diagnostics) {
	if !validDirection(intf.Direction) {
		diags.Errorf(errors.ErrCodeResolutionConflict,
			"type %q: interface %q: invalid direction %q", typeName, intf.Name, intf.Direction)
	}
	if intf.MaxConnectionsCount < 0 {
		diags.Errorf(errors.ErrCodeResolutionConflict,
			"type %q: interface %q: maxConnectionsCount must not be negative", typeName, intf.Name)
	}
	if d := intf.Dynamic; d != nil {
		if d.Min < 0 || d.Max < d.Min {
			diags.Errorf(errors.ErrCodeResolutionConflict,
				"type %q: interface %q: invalid dynamic range [%d, %d]", typeName, intf.Name, d.Min, d.Max)
		}
		if d.Fixed == nil && d.Property == "" {
			diags.Errorf(errors.ErrCodeResolutionConflict,
				"type %q: interface %q: dynamic declaration needs a fixed count or a property binding", typeName, intf.Name)
		}
	}
}

func validDirection(dir string) bool {
	return dir == "input" || dir == "output" || dir == "inout"
}

// CheckPropertyDefinition verifies that a property definition is
// internally consistent: the kind is known and the default (when present)
// matches the kind. Sliders additionally require a numeric default within
// [min, max], selects a default among values, and hex a 0x-prefixed value
// within its declared range.
func CheckPropertyDefinition(p *PropertyDefinition) error {
	if !ValidPropertyKind(p.Kind) {
		return errors.New(errors.ErrCodeSchema, "unknown kind %q", p.Kind)
	}
	switch p.Kind {
	case PropText, PropMultiline, PropConstant:
		if p.Default != nil {
			if _, ok := p.Default.(string); !ok {
				return errors.New(errors.ErrCodeResolutionConflict, "default for kind %q must be a string", p.Kind)
			}
		}
	case PropNumber:
		if p.Default != nil {
			if _, ok := numericValue(p.Default); !ok {
				return errors.New(errors.ErrCodeResolutionConflict, "default for kind number must be numeric")
			}
		}
	case PropInteger:
		if p.Default != nil {
			v, ok := numericValue(p.Default)
			if !ok || v != math.Trunc(v) {
				return errors.New(errors.ErrCodeResolutionConflict, "default for kind integer must be an integer")
			}
		}
	case PropBool:
		if p.Default != nil {
			if _, ok := p.Default.(bool); !ok {
				return errors.New(errors.ErrCodeResolutionConflict, "default for kind bool must be true or false")
			}
		}
	case PropSelect:
		if len(p.Values) == 0 {
			return errors.New(errors.ErrCodeResolutionConflict, "select needs a non-empty values list")
		}
		if p.Default != nil && !containsValue(p.Values, p.Default) {
			return errors.New(errors.ErrCodeResolutionConflict, "default %v is not among values", p.Default)
		}
	case PropSlider:
		v, ok := numericValue(p.Default)
		if !ok {
			return errors.New(errors.ErrCodeResolutionConflict, "slider needs a numeric default")
		}
		if p.Min == nil || p.Max == nil {
			return errors.New(errors.ErrCodeResolutionConflict, "slider needs min and max")
		}
		if v < *p.Min || v > *p.Max {
			return errors.New(errors.ErrCodeResolutionConflict,
				"slider default %v outside [%v, %v]", v, *p.Min, *p.Max)
		}
	case PropList:
		if p.Default != nil {
			items, ok := p.Default.([]any)
			if !ok {
				return errors.New(errors.ErrCodeResolutionConflict, "default for kind list must be an array")
			}
			for i, item := range items {
				if !matchesDtype(item, p.Dtype) {
					return errors.New(errors.ErrCodeResolutionConflict,
						"list default element %d does not match dtype %q", i, p.Dtype)
				}
			}
		}
	case PropHex:
		if p.Default != nil {
			s, ok := p.Default.(string)
			if !ok {
				return errors.New(errors.ErrCodeResolutionConflict, "default for kind hex must be a string")
			}
			v, err := parseHex(s)
			if err != nil {
				return errors.Wrap(errors.ErrCodeResolutionConflict, err, "invalid hex default %q", s)
			}
			if p.Min != nil && float64(v) < *p.Min {
				return errors.New(errors.ErrCodeResolutionConflict, "hex default %s below min", s)
			}
			if p.Max != nil && float64(v) > *p.Max {
				return errors.New(errors.ErrCodeResolutionConflict, "hex default %s above max", s)
			}
		}
	}
	return nil
}

// CheckPropertyValue verifies a concrete instance value against the
// property's kind. The graph model calls this on SetProperty and during
// load.
func CheckPropertyValue(p *PropertyDefinition, value any) error {
	probe := *p
	probe.Default = value
	// Sliders/selects validate defaults strictly; reuse that path.
	if err := CheckPropertyDefinition(&probe); err != nil {
		return errors.New(errors.ErrCodeInvalidInput, "property %q: %s", p.Name, errors.UserMessage(err))
	}
	return nil
}

// numericValue extracts a float64 from the numeric types JSON decoding
// can produce.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func containsValue(values []any, v any) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
		// JSON numbers decode as float64; compare numerically when both
		// sides are numeric so 2 matches 2.0.
		cv, okC := numericValue(candidate)
		vv, okV := numericValue(v)
		if okC && okV && cv == vv {
			return true
		}
	}
	return false
}

// matchesDtype checks a list element against the declared element type.
// An empty dtype accepts anything.
func matchesDtype(v any, dtype string) bool {
	switch dtype {
	case "":
		return true
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		_, ok := numericValue(v)
		return ok
	case "integer":
		n, ok := numericValue(v)
		return ok && n == math.Trunc(n)
	case "boolean":
		_, ok := v.(bool)
		return ok
	}
	return false
}

func parseHex(s string) (uint64, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return 0, fmt.Errorf("missing 0x prefix")
	}
	v, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return 0, fmt.Errorf("not a hex number")
	}
	return v, nil
}
