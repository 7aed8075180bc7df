package spec

import (
	"fmt"
	"sort"

	"github.com/mlenz/nodeforge/pkg/dataflow"
	"github.com/mlenz/nodeforge/pkg/errors"
)

// ResolveOptions configures specification resolution.
type ResolveOptions struct {
	// Loader supplies include and includeGraphs content. May be nil when
	// the specification has no include directives.
	Loader Loader
}

// Resolve turns an unresolved specification into a flat catalog of
// concrete node-type definitions.
//
// Resolution proceeds in stages:
//
//  1. include directives are flattened recursively; a later include
//     redefining an already-defined type name is an error, never a
//     silent overwrite.
//  2. the extends dependency graph is built; a cycle aborts resolution
//     of the involved types only.
//  3. types are resolved in topological order: the union of all parents'
//     resolved members, then the child's own declarations. Collisions
//     follow the override rules (see mergedMembers).
//  4. category pseudo-nodes act as extendable parents but never appear
//     as concrete entries in the resolved map.
//  5. fixed-count dynamic interfaces are expanded into indexed
//     interfaces; property-bound counts are expanded per instance by the
//     graph model, not here.
//  6. every property default is type-checked against its kind.
//
// All defects are accumulated rather than thrown on first occurrence, and
// a best-effort resolved catalog is still returned so tooling can present
// partial results. Resolve is pure: it performs no I/O beyond the
// supplied Loader and never mutates its input.
func Resolve(s Specification, opts ResolveOptions) (*Resolved, errors.Diagnostics) {
	var diags errors.Diagnostics

	flat := flattenIncludes(s, opts.Loader, &diags)

	// Index definitions by effective name. First definition wins; later
	// redefinitions are conflicts.
	byName := make(map[string]*NodeTypeDefinition)
	var order []string
	for i := range flat.nodes {
		def := &flat.nodes[i]
		name := def.EffectiveName()
		if name == "" {
			diags.Errorf(errors.ErrCodeSchema, "node type without a name (category %q)", def.Category)
			continue
		}
		if _, exists := byName[name]; exists {
			diags.Errorf(errors.ErrCodeResolutionConflict, "type %q defined more than once", name)
			continue
		}
		byName[name] = def
		order = append(order, name)
	}

	failed := make(map[string]bool)
	markCycles(byName, order, failed, &diags)

	resolved := &Resolved{
		Version:  s.Version,
		Metadata: s.Metadata,
		Types:    make(map[string]*NodeTypeDefinition),
		Graphs:   make(map[string]dataflow.Graph),
	}

	// Resolve in topological order so parents are always finished before
	// their children.
	done := make(map[string]*NodeTypeDefinition)
	var resolveOne func(name string) *NodeTypeDefinition
	resolveOne = func(name string) *NodeTypeDefinition {
		if failed[name] {
			return nil
		}
		if r, ok := done[name]; ok {
			return r
		}
		def := byName[name]

		var members mergedMembers
		for _, parent := range def.Extends {
			pdef, ok := byName[parent]
			if !ok {
				diags.Errorf(errors.ErrCodeResolutionConflict, "type %q extends unknown type %q", name, parent)
				failed[name] = true
				return nil
			}
			pres := resolveOne(pdef.EffectiveName())
			if pres == nil {
				diags.Errorf(errors.ErrCodeResolutionConflict, "type %q: parent %q failed to resolve", name, parent)
				failed[name] = true
				return nil
			}
			members.addParent(pres)
		}
		members.addOwn(def)

		if len(members.conflicts) > 0 {
			for _, c := range members.conflicts {
				diags.Errors = append(diags.Errors, c.diagnostic(name))
			}
			failed[name] = true
			return nil
		}
		for _, w := range members.warnings {
			diags.Warnf(errors.ErrCodeResolutionConflict, "type %q: %s", name, w)
		}

		out := members.apply(*def)
		validateDefinition(&out, &diags)
		expandFixedInterfaces(&out, &diags)
		done[name] = &out
		return &out
	}

	for _, name := range order {
		r := resolveOne(name)
		if r == nil || r.IsCategory {
			continue
		}
		resolved.Types[name] = r
	}

	resolveGraphs(resolved, flat, opts.Loader, &diags)
	return resolved, diags
}

// markCycles finds extends cycles with depth-first search and marks every
// type on a cycle as failed. Types that merely depend on a cyclic type
// fail later when their parent fails; the cycle itself is reported once
// per participating type.
func markCycles(byName map[string]*NodeTypeDefinition, order []string, failed map[string]bool, diags *errors.Diagnostics) {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(byName))
	var stack []string

	var dfs func(name string)
	dfs = func(name string) {
		color[name] = gray
		stack = append(stack, name)
		def := byName[name]
		for _, parent := range def.Extends {
			pdef, ok := byName[parent]
			if !ok {
				continue // reported during resolution
			}
			pname := pdef.EffectiveName()
			switch color[pname] {
			case white:
				dfs(pname)
			case gray:
				// Everything from the first occurrence of pname on the
				// stack is part of the cycle.
				start := 0
				for i, s := range stack {
					if s == pname {
						start = i
						break
					}
				}
				cycle := append([]string{}, stack[start:]...)
				sort.Strings(cycle)
				for _, member := range cycle {
					if !failed[member] {
						failed[member] = true
						diags.Errorf(errors.ErrCodeResolutionConflict,
							"type %q: cyclic extends chain %v", member, cycle)
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
	}

	for _, name := range order {
		if color[name] == white {
			dfs(name)
		}
	}
}

// resolveGraphs registers the specification's own graphs and loads every
// includeGraphs reference. An included graph becomes both a named graph
// and a subgraph node type whose interfaces are derived from the graph's
// boundary nodes. A name collision between an included graph's node type
// and a resolved type is an explicit conflict: no priority order is
// inferred.
func resolveGraphs(resolved *Resolved, flat flattened, loader Loader, diags *errors.Diagnostics) {
	for _, g := range flat.graphs {
		if g.ID == "" {
			diags.Errorf(errors.ErrCodeSchema, "specification graph without an id")
			continue
		}
		if _, exists := resolved.Graphs[g.ID]; exists {
			diags.Errorf(errors.ErrCodeResolutionConflict, "graph %q defined more than once", g.ID)
			continue
		}
		resolved.Graphs[g.ID] = g
	}

	for _, inc := range flat.includeGraphs {
		if loader == nil {
			diags.Errorf(errors.ErrCodeInvalidInput, "includeGraphs %q: no loader configured", inc.URL)
			continue
		}
		data, err := loader.Load(inc.URL)
		if err != nil {
			diags.AddError(errors.Wrap(errors.ErrCodeNotFound, err, "includeGraphs %q", inc.URL))
			continue
		}
		g, err := dataflow.UnmarshalGraph(data)
		if err != nil {
			diags.AddError(errors.Wrap(errors.ErrCodeSchema, err, "includeGraphs %q", inc.URL))
			continue
		}

		name := inc.Name
		if name == "" {
			name = g.ID
		}
		if name == "" {
			diags.Errorf(errors.ErrCodeSchema, "includeGraphs %q: graph has no name or id", inc.URL)
			continue
		}
		if _, exists := resolved.Graphs[name]; exists {
			diags.Errorf(errors.ErrCodeResolutionConflict, "includeGraphs %q: graph %q already registered", inc.URL, name)
			continue
		}
		if _, exists := resolved.Types[name]; exists {
			diags.Errorf(errors.ErrCodeResolutionConflict,
				"includeGraphs %q: node type %q already defined by the specification", inc.URL, name)
			continue
		}
		resolved.Graphs[name] = g
		resolved.Types[name] = graphNodeType(name, inc.Category, g)
	}
}

// graphNodeType derives a subgraph node type from a graph's boundary
// nodes: each subgraph-IO pseudo-node exposes one interface on the
// generated type, with the direction implied by the pseudo-type.
func graphNodeType(name, category string, g dataflow.Graph) *NodeTypeDefinition {
	def := &NodeTypeDefinition{
		Name:     name,
		Category: category,
	}
	for _, n := range g.Nodes {
		if !dataflow.IsSubgraphIO(n.Name) {
			continue
		}
		direction := dataflow.DirectionInout
		switch n.Name {
		case dataflow.SubgraphInput:
			direction = dataflow.DirectionInput
		case dataflow.SubgraphOutput:
			direction = dataflow.DirectionOutput
		}
		intfName := n.Title
		if intfName == "" && len(n.Interfaces) > 0 {
			intfName = n.Interfaces[0].Name
		}
		if intfName == "" {
			intfName = fmt.Sprintf("port %d", len(def.Interfaces))
		}
		def.Interfaces = append(def.Interfaces, InterfaceDefinition{
			Name:      intfName,
			Direction: direction,
		})
	}
	return def
}
