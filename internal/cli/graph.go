package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mlenz/nodeforge/pkg/dataflow/validator"
)

// newGraphCmd creates the graph command group.
func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Operations on single graph documents",
	}
	cmd.AddCommand(newGraphCheckCmd())
	return cmd
}

// newGraphCheckCmd creates the graph check command: like validate, but
// for a single graph document instead of a whole dataflow.
func newGraphCheckCmd() *cobra.Command {
	var specPath string

	cmd := &cobra.Command{
		Use:   "check <graph-file>",
		Short: "Validate a single graph document against a specification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			resolved, err := loadResolved(ctx, specPath)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read graph: %w", err)
			}

			result := validator.ValidateGraph(ctx, data, resolved)
			return printResult(result)
		},
	}

	cmd.Flags().StringVarP(&specPath, "spec", "s", "", "specification file (required)")
	cmd.MarkFlagRequired("spec")
	return cmd
}
