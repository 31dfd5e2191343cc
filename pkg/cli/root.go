package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-introspect/pkg/adapters/warehouse"
	"github.com/ekaya-inc/ekaya-introspect/pkg/config"
	"github.com/ekaya-inc/ekaya-introspect/pkg/logging"

	// Registered warehouse dialects.
	_ "github.com/ekaya-inc/ekaya-introspect/pkg/adapters/warehouse/mssql"
	_ "github.com/ekaya-inc/ekaya-introspect/pkg/adapters/warehouse/postgres"
	_ "github.com/ekaya-inc/ekaya-introspect/pkg/adapters/warehouse/snowflake"
)

// Execute runs the CLI and returns the process exit code.
func Execute(version string) int {
	rootCmd := newRootCmd(version)
	if err := rootCmd.Execute(); err != nil {
		if getOutputFormat(rootCmd) == "json" {
			_ = json.NewEncoder(os.Stdout).Encode(map[string]string{"error": err.Error()})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	version    string
	configPath string
	output     string
	warehouse  string
	account    string
	logLevel   string
}

func newRootCmd(version string) *cobra.Command {
	opts := &rootOptions{version: version}

	rootCmd := &cobra.Command{
		Use:   "ekaya-introspect",
		Short: "Warehouse metadata introspection",
		Long: "Introspects warehouse schemas, tables, views and columns with sample values\n" +
			"and prints an ordered representation for semantic-model generation.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOutputFormat(opts.output)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML config file (environment variables apply when empty)")
	flags.StringVarP(&opts.output, "output", "o", "yaml", "Output format (yaml, json)")
	flags.StringVarP(&opts.warehouse, "warehouse", "w", "", "Warehouse type, overrides WAREHOUSE_TYPE")
	flags.StringVar(&opts.account, "account", "", "Account identifier, overrides the configured account or host")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level, overrides LOG_LEVEL")

	rootCmd.AddCommand(newExtractCmd(opts))
	rootCmd.AddCommand(newQueryCmd(opts))
	rootCmd.AddCommand(newTypesCmd())
	rootCmd.AddCommand(newVersionCmd(opts))

	return rootCmd
}

// runtime is what a warehouse command needs once configuration is resolved.
type runtime struct {
	cfg         *config.Config
	logger      *zap.Logger
	connections *warehouse.ConnectionManager
}

// newRuntime loads configuration, builds the logger and opens a connection
// manager for the selected dialect. The caller must call close.
func newRuntime(opts *rootOptions) (*runtime, error) {
	cfg, err := config.Load(opts.version, opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.warehouse != "" {
		cfg.Warehouse.Type = opts.warehouse
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	dialect, err := warehouse.NewDialect(cfg.Warehouse.Type, opts.account, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	settings := warehouse.SessionSettings{
		QueryTag:         warehouse.QueryTag,
		StatementTimeout: time.Duration(cfg.Extraction.SessionTimeoutSec) * time.Second,
		MaxOpenConns:     cfg.Extraction.MaxConcurrency,
	}

	logger.Debug("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("warehouse", dialect.Type()),
		zap.String("account", dialect.Account()),
		zap.Int("sample_size", cfg.Extraction.SampleSize),
		zap.Int("max_concurrency", cfg.Extraction.MaxConcurrency),
	)

	return &runtime{
		cfg:         cfg,
		logger:      logger,
		connections: warehouse.NewConnectionManager(dialect, settings, logger),
	}, nil
}

func (r *runtime) close() {
	if err := r.connections.Close(); err != nil {
		r.logger.Warn("failed to close connections", zap.String("error", logging.SanitizeError(err)))
	}
	_ = r.logger.Sync()
}
