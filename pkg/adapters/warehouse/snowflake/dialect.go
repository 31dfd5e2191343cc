package snowflake

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"

	sf "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-introspect/pkg/adapters/warehouse"
	"github.com/ekaya-inc/ekaya-introspect/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-introspect/pkg/config"
)

// ApplicationName is reported to Snowflake as the client application.
const ApplicationName = "ekaya-introspect"

// Dialect introspects a Snowflake account.
type Dialect struct {
	account string
	config  config.SnowflakeConfig
	logger  *zap.Logger
}

var _ warehouse.Dialect = (*Dialect)(nil)

// New resolves the Snowflake credentials and returns a dialect for account.
// An empty account falls back to the configured one. Missing credentials are
// reported as *apperrors.ConfigurationError naming the environment variable.
func New(account string, cfg config.SnowflakeConfig, logger *zap.Logger) (*Dialect, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if account == "" {
		account = cfg.Account
	}
	if strings.TrimSpace(account) == "" {
		return nil, apperrors.NewConfigurationError("SNOWFLAKE_ACCOUNT", "snowflake account")
	}

	if cfg.Host == "" {
		logger.Info("No host set. Attempting to connect without. To set export SNOWFLAKE_HOST=<snowflake-host-name>")
	}

	return &Dialect{
		account: account,
		config:  cfg,
		logger:  logger.Named("snowflake"),
	}, nil
}

func (d *Dialect) Type() string {
	return "snowflake"
}

func (d *Dialect) Account() string {
	return d.account
}

// Connector returns a gosnowflake connector. Database and schema are not part
// of the login; they are selected by the session statements so that a missing
// object is reported with its own error.
func (d *Dialect) Connector(ctx context.Context, target warehouse.Target) (driver.Connector, error) {
	cfg := sf.Config{
		Account:     d.account,
		User:        d.config.User,
		Password:    d.config.Password,
		Role:        d.config.Role,
		Warehouse:   d.config.Warehouse,
		Host:        d.config.Host,
		Port:        d.config.Port,
		Application: ApplicationName,
	}
	return sf.NewConnector(sf.SnowflakeDriver{}, cfg), nil
}

// SessionStatements selects the database and schema, tags the session and
// sets the statement timeout. Database and schema names are used verbatim so
// that Snowflake applies its usual identifier case rules.
func (d *Dialect) SessionStatements(target warehouse.Target, settings warehouse.SessionSettings) []warehouse.SessionStatement {
	var stmts []warehouse.SessionStatement
	if target.Database != "" {
		stmts = append(stmts, warehouse.SessionStatement{
			SQL: "USE DATABASE " + target.Database,
			Fail: func(err error) error {
				return apperrors.NewDatabaseError(target.Database, d.account, err)
			},
		})
	}
	if target.Schema != "" {
		stmts = append(stmts, warehouse.SessionStatement{
			SQL: "USE SCHEMA " + target.Schema,
			Fail: func(err error) error {
				return apperrors.NewSchemaError(target.Schema, target.Database, err)
			},
		})
	}
	if settings.QueryTag != "" {
		stmts = append(stmts, warehouse.SessionStatement{
			SQL: fmt.Sprintf("ALTER SESSION SET QUERY_TAG = %s", quoteLiteral(settings.QueryTag)),
		})
	}
	if seconds := int(settings.StatementTimeout.Seconds()); seconds > 0 {
		stmts = append(stmts, warehouse.SessionStatement{
			SQL: fmt.Sprintf("ALTER SESSION SET STATEMENT_TIMEOUT_IN_SECONDS = %d", seconds),
		})
	}
	return stmts
}

func (d *Dialect) ColumnsQuery(schema string, tables []string) (string, []any) {
	var (
		where []string
		args  []any
	)
	if schema != "" {
		where = append(where, "t.table_schema ILIKE ?")
		args = append(args, schema)
		if len(tables) > 0 {
			where = append(where, "LOWER(t.table_name) IN ("+placeholders(len(tables))+")")
			for _, table := range tables {
				args = append(args, table)
			}
		}
	}

	var sb strings.Builder
	sb.WriteString(`SELECT t.table_schema AS TABLE_SCHEMA, t.table_name AS TABLE_NAME,
       c.column_name AS COLUMN_NAME, c.data_type AS DATA_TYPE,
       c.comment AS COLUMN_COMMENT, c.ordinal_position AS ORDINAL_POSITION
FROM information_schema.tables AS t
JOIN information_schema.columns AS c
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name`)
	if len(where) > 0 {
		sb.WriteString("\nWHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString("\nORDER BY 1, 2, c.ordinal_position")
	return sb.String(), args
}

func (d *Dialect) LiveObjectQueries() []string {
	return []string{"SHOW TABLES IN DATABASE", "SHOW VIEWS IN DATABASE"}
}

func (d *Dialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *Dialect) SampleQuery(schema, table, column string, limit int) string {
	return fmt.Sprintf("SELECT DISTINCT %s FROM %s.%s LIMIT %d",
		d.QuoteIdentifier(column), d.QuoteIdentifier(schema), d.QuoteIdentifier(table), limit)
}

func (d *Dialect) CurrentComputeQuery() string {
	return "SELECT CURRENT_WAREHOUSE()"
}

// UseComputeStatement attaches the configured warehouse. Hyphens are not
// valid in unquoted identifiers and are replaced by underscores.
func (d *Dialect) UseComputeStatement() string {
	return "USE WAREHOUSE " + strings.ReplaceAll(d.config.Warehouse, "-", "_")
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
