package cli

import (
	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-introspect/pkg/adapters/warehouse"
)

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List supported warehouse types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printOutput(cmd.OutOrStdout(), getOutputFormat(cmd), warehouse.RegisteredDialects())
		},
	}
}
