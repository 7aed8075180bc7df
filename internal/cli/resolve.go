package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mlenz/nodeforge/pkg/dataflow"
	"github.com/mlenz/nodeforge/pkg/spec"
)

// resolvedDoc is the JSON shape emitted by the resolve command: the flat
// catalog with deterministic ordering so output
// diffs cleanly between runs.
type resolvedDoc struct {
	Version  string                     `json:"version,omitempty"`
	Metadata map[string]any             `json:"metadata,omitempty"`
	Nodes    []*spec.NodeTypeDefinition `json:"nodes"`
	Graphs   []dataflow.Graph           `json:"graphs,omitempty"`
}

// newResolveCmd creates the resolve command. It flattens a
// specification's includes and inheritance into a concrete node-type
// catalog and writes it as JSON.
func newResolveCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "resolve <spec-file>",
		Short: "Resolve a specification into a concrete node-type catalog",
		Long: `Resolve flattens a specification: includes are inlined, inheritance
chains are merged into concrete definitions, fixed-count dynamic
interfaces are expanded, and categories are dropped from the output.

Examples:
  nodeforge resolve spec.json
  nodeforge resolve spec.json -o resolved.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			prog := newProgress(loggerFromContext(ctx))

			resolved, err := loadResolved(ctx, args[0])
			if err != nil {
				return err
			}
			if err := writeResolved(resolved, output); err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Resolved %d node types", len(resolved.Types)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (stdout if empty)")
	return cmd
}

func writeResolved(resolved *spec.Resolved, output string) error {
	doc := resolvedDoc{
		Version:  resolved.Version,
		Metadata: resolved.Metadata,
	}
	for _, name := range resolved.TypeNames() {
		doc.Nodes = append(doc.Nodes, resolved.Types[name])
	}
	sort.Slice(doc.Nodes, func(i, j int) bool { return doc.Nodes[i].Name < doc.Nodes[j].Name })
	for _, g := range resolved.Graphs {
		doc.Graphs = append(doc.Graphs, g)
	}
	sort.Slice(doc.Graphs, func(i, j int) bool { return doc.Graphs[i].ID < doc.Graphs[j].ID })

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode resolved catalog: %w", err)
	}
	return nil
}
