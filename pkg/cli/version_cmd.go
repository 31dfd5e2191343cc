package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if getOutputFormat(cmd) == "json" {
				return printOutput(cmd.OutOrStdout(), "json", map[string]string{"version": opts.version})
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "ekaya-introspect version %s\n", opts.version)
			return err
		},
	}
}
