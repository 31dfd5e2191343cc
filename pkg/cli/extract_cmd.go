package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ekaya-inc/ekaya-introspect/pkg/services"
)

// targetFlags select the database and schema a session is scoped to.
type targetFlags struct {
	database string
	schema   string
}

func (t *targetFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&t.database, "database", "d", "", "Database to connect to (required)")
	fs.StringVarP(&t.schema, "schema", "s", "", "Schema to restrict to")
}

func (t *targetFlags) validate() error {
	if t.database == "" {
		return fmt.Errorf("--database is required")
	}
	return nil
}

func newExtractCmd(opts *rootOptions) *cobra.Command {
	var (
		target         targetFlags
		tables         []string
		sampleSize     int
		maxConcurrency int
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract table metadata with sample values",
		Long: "Lists the live tables and views of a database (optionally one schema),\n" +
			"samples distinct values of every column and prints the ordered tables.\n" +
			"--tables applies only together with --schema.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := target.validate(); err != nil {
				return err
			}

			rt, err := newRuntime(opts)
			if err != nil {
				return err
			}
			defer rt.close()

			if !cmd.Flags().Changed("sample-size") {
				sampleSize = rt.cfg.Extraction.SampleSize
			}
			if !cmd.Flags().Changed("max-concurrency") {
				maxConcurrency = rt.cfg.Extraction.MaxConcurrency
			}

			svc := services.NewExtractionService(rt.connections, services.NewTableAssembler(rt.logger), rt.logger)
			extraction, err := svc.Extract(cmd.Context(), services.ExtractRequest{
				Database:       target.database,
				Schema:         target.schema,
				Tables:         tables,
				SampleSize:     sampleSize,
				MaxConcurrency: maxConcurrency,
			})
			if err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), getOutputFormat(cmd), extraction)
		},
	}

	target.register(cmd.Flags())
	cmd.Flags().StringSliceVarP(&tables, "tables", "t", nil, "Tables to extract (comma-separated, requires --schema)")
	cmd.Flags().IntVar(&sampleSize, "sample-size", 0, "Distinct values per column, 0 disables sampling (default from SAMPLE_SIZE)")
	cmd.Flags().IntVar(&maxConcurrency, "max-concurrency", 0, "Columns sampled at once per table (default from MAX_CONCURRENCY)")

	return cmd
}
