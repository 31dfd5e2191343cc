package cli

import (
	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-introspect/pkg/adapters/warehouse"
)

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var target targetFlags

	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a query and print the result by column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := target.validate(); err != nil {
				return err
			}

			rt, err := newRuntime(opts)
			if err != nil {
				return err
			}
			defer rt.close()

			ctx := cmd.Context()
			var result map[string][]any
			err = rt.connections.WithSession(ctx, target.database, target.schema, func(s *warehouse.Session) error {
				var err error
				result, err = s.Execute(ctx, args[0])
				return err
			})
			if err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), getOutputFormat(cmd), result)
		},
	}

	target.register(cmd.Flags())
	return cmd
}
