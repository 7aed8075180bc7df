package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mlenz/nodeforge/pkg/dataflow/validator"
)

// newValidateCmd creates the validate command. It checks a dataflow
// document against a specification and prints the validation result as
// JSON; an invalid document exits non-zero.
func newValidateCmd() *cobra.Command {
	var specPath string

	cmd := &cobra.Command{
		Use:   "validate <dataflow-file>",
		Short: "Validate a dataflow document against a specification",
		Long: `Validate checks a dataflow document: the JSON shape first, then
every graph's node types, interfaces, properties, and connections
against the resolved specification. All distinct violations are
reported, not just the first.

Examples:
  nodeforge validate flow.json --spec spec.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			resolved, err := loadResolved(ctx, specPath)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read dataflow: %w", err)
			}

			result := validator.Validate(ctx, data, resolved)
			return printResult(result)
		},
	}

	cmd.Flags().StringVarP(&specPath, "spec", "s", "", "specification file (required)")
	cmd.MarkFlagRequired("spec")
	return cmd
}

// printResult writes the result as indented JSON to stdout and returns
// an error when the document is invalid so the process exits non-zero.
func printResult(result validator.Result) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if result.Status != validator.StatusValid {
		return fmt.Errorf("validation failed: %s", result.Summary())
	}
	return nil
}
