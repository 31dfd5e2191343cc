package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-introspect/pkg/adapters/warehouse"
	"github.com/ekaya-inc/ekaya-introspect/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-introspect/pkg/config"
)

const (
	// SQLSTATE for a database that does not exist.
	invalidCatalogName = "3D000"
	// SQLSTATE for a schema that does not exist.
	invalidSchemaName = "3F000"
)

// systemSchemas are never introspected.
const systemSchemaFilter = `n.nspname NOT IN ('pg_catalog', 'information_schema') AND n.nspname NOT LIKE 'pg_toast%'`

// Dialect introspects a PostgreSQL database.
type Dialect struct {
	config config.PostgresConfig
	logger *zap.Logger
}

var _ warehouse.Dialect = (*Dialect)(nil)

// New validates the PostgreSQL settings and returns a dialect.
func New(cfg config.PostgresConfig, logger *zap.Logger) (*Dialect, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "require"
	}
	return &Dialect{config: cfg, logger: logger.Named("postgres")}, nil
}

func (d *Dialect) Type() string {
	return "postgres"
}

// Account is the server address.
func (d *Dialect) Account() string {
	return fmt.Sprintf("%s:%d", d.config.Host, d.config.Port)
}

// buildConnectionString builds a PostgreSQL URL with proper escaping.
// When running in Docker, localhost is resolved to host.docker.internal.
func (d *Dialect) buildConnectionString(database string) string {
	host := config.ResolveLocalHost(d.config.Host)

	return fmt.Sprintf(
		"postgresql://%s:%s@%s/%s?sslmode=%s",
		url.QueryEscape(d.config.User),
		url.QueryEscape(d.config.Password),
		hostPort(host, d.config.Port),
		url.PathEscape(database),
		url.QueryEscape(d.config.SSLMode),
	)
}

func hostPort(host string, port int) string {
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return host + ":" + strconv.Itoa(port)
}

// Connector returns a pgx connector. PostgreSQL binds a connection to one
// database at login, so the target database is part of the connection string
// and a missing database is reported when the connection is opened.
func (d *Dialect) Connector(ctx context.Context, target warehouse.Target) (driver.Connector, error) {
	database := target.Database
	if database == "" {
		database = d.config.Database
	}

	connConfig, err := pgx.ParseConfig(d.buildConnectionString(database))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	return &connector{
		Connector: stdlib.GetConnector(*connConfig),
		database:  database,
		account:   d.Account(),
	}, nil
}

// connector maps a missing database to *apperrors.ConnectionError.
type connector struct {
	driver.Connector
	database string
	account  string
}

func (c *connector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.Connector.Connect(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == invalidCatalogName {
			return nil, apperrors.NewDatabaseError(c.database, c.account, err)
		}
		return nil, err
	}
	return conn, nil
}

// SessionStatements checks the schema exists and puts it on the search path,
// then tags the session and sets the statement timeout.
func (d *Dialect) SessionStatements(target warehouse.Target, settings warehouse.SessionSettings) []warehouse.SessionStatement {
	var stmts []warehouse.SessionStatement
	if target.Schema != "" {
		stmts = append(stmts,
			warehouse.SessionStatement{
				SQL: fmt.Sprintf(`DO $$
BEGIN
    IF NOT EXISTS (SELECT 1 FROM pg_catalog.pg_namespace WHERE nspname = %s) THEN
        RAISE EXCEPTION 'schema %% does not exist', %s USING ERRCODE = '%s';
    END IF;
END
$$`, quoteLiteral(target.Schema), quoteLiteral(target.Schema), invalidSchemaName),
				Fail: func(err error) error {
					return apperrors.NewSchemaError(target.Schema, target.Database, err)
				},
			},
			warehouse.SessionStatement{
				SQL: "SET search_path TO " + d.QuoteIdentifier(target.Schema),
			},
		)
	}
	if settings.QueryTag != "" {
		stmts = append(stmts, warehouse.SessionStatement{
			SQL: "SET application_name = " + quoteLiteral(settings.QueryTag),
		})
	}
	if ms := settings.StatementTimeout.Milliseconds(); ms > 0 {
		stmts = append(stmts, warehouse.SessionStatement{
			SQL: fmt.Sprintf("SET statement_timeout = %d", ms),
		})
	}
	return stmts
}

func (d *Dialect) ColumnsQuery(schema string, tables []string) (string, []any) {
	where := []string{systemSchemaFilter}
	var args []any
	if schema != "" {
		args = append(args, schema)
		where = append(where, fmt.Sprintf("c.table_schema ILIKE $%d", len(args)))
		if len(tables) > 0 {
			marks := make([]string, len(tables))
			for i, table := range tables {
				args = append(args, table)
				marks[i] = fmt.Sprintf("$%d", len(args))
			}
			where = append(where, "LOWER(c.table_name) IN ("+strings.Join(marks, ", ")+")")
		}
	}

	query := `SELECT c.table_schema::text AS "TABLE_SCHEMA",
       c.table_name::text AS "TABLE_NAME",
       c.column_name::text AS "COLUMN_NAME",
       c.data_type::text AS "DATA_TYPE",
       COALESCE(col_description(a.attrelid, a.attnum), '') AS "COLUMN_COMMENT",
       c.ordinal_position::int AS "ORDINAL_POSITION"
FROM information_schema.tables t
JOIN information_schema.columns c
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
JOIN pg_catalog.pg_namespace n ON n.nspname = c.table_schema
LEFT JOIN pg_catalog.pg_class cl ON cl.relnamespace = n.oid AND cl.relname = c.table_name
LEFT JOIN pg_catalog.pg_attribute a ON a.attrelid = cl.oid AND a.attname = c.column_name
WHERE ` + strings.Join(where, " AND ") + `
ORDER BY 1, 2, c.ordinal_position`
	return query, args
}

func (d *Dialect) LiveObjectQueries() []string {
	const listing = `SELECT cl.relname::text AS name,
       n.nspname::text AS schema_name,
       COALESCE(obj_description(cl.oid, 'pg_class'), '') AS comment
FROM pg_catalog.pg_class cl
JOIN pg_catalog.pg_namespace n ON n.oid = cl.relnamespace
WHERE cl.relkind IN ({kinds}) AND ` + systemSchemaFilter
	return []string{
		strings.Replace(listing, "{kinds}", "'r', 'p'", 1), // tables, partitioned tables
		strings.Replace(listing, "{kinds}", "'v', 'm'", 1), // views, materialized views
	}
}

func (d *Dialect) QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (d *Dialect) SampleQuery(schema, table, column string, limit int) string {
	return fmt.Sprintf("SELECT DISTINCT %s FROM %s LIMIT %d",
		d.QuoteIdentifier(column), pgx.Identifier{schema, table}.Sanitize(), limit)
}

// PostgreSQL has no separately attached compute.
func (d *Dialect) CurrentComputeQuery() string { return "" }
func (d *Dialect) UseComputeStatement() string { return "" }

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
