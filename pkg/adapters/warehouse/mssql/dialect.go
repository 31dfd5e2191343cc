package mssql

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net/url"
	"strings"

	mssqldb "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-introspect/pkg/adapters/warehouse"
	"github.com/ekaya-inc/ekaya-introspect/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-introspect/pkg/config"
)

const (
	// ApplicationName is reported to SQL Server as the client application.
	ApplicationName = "ekaya-introspect"

	// errCannotOpenDatabase is raised at login for a database that does not
	// exist or is not accessible.
	errCannotOpenDatabase = 4060
)

const descriptionJoin = `LEFT JOIN sys.extended_properties ep
  ON ep.class = 1 AND ep.name = N'MS_Description'`

// Dialect introspects a SQL Server database (SQL authentication).
type Dialect struct {
	config config.SQLServerConfig
	logger *zap.Logger
}

var _ warehouse.Dialect = (*Dialect)(nil)

// New validates the SQL Server settings and returns a dialect.
func New(cfg config.SQLServerConfig, logger *zap.Logger) (*Dialect, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Dialect{config: cfg, logger: logger.Named("sqlserver")}, nil
}

func (d *Dialect) Type() string {
	return "sqlserver"
}

// Account is the server address.
func (d *Dialect) Account() string {
	return fmt.Sprintf("%s:%d", d.config.Host, d.config.Port)
}

func (d *Dialect) buildConnectionString(database string) string {
	query := url.Values{}
	query.Add("database", database)
	query.Add("app name", ApplicationName)

	if d.config.Encrypt {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "false")
	}

	if d.config.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}

	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(d.config.User),
		url.QueryEscape(d.config.Password),
		config.ResolveLocalHost(d.config.Host),
		d.config.Port,
		query.Encode(),
	)
}

// Connector returns a go-mssqldb connector logging in to the target database.
// The pool resets a connection before reusing it, which clears the session
// context; SessionInitSQL restores the query tag after every reset.
func (d *Dialect) Connector(ctx context.Context, target warehouse.Target) (driver.Connector, error) {
	database := target.Database
	if database == "" {
		database = d.config.Database
	}

	c, err := mssqldb.NewConnector(d.buildConnectionString(database))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	c.SessionInitSQL = tagStatement(warehouse.QueryTag)

	return &connector{
		Connector: c,
		database:  database,
		account:   d.Account(),
	}, nil
}

// connector maps a database that cannot be opened to *apperrors.ConnectionError.
type connector struct {
	driver.Connector
	database string
	account  string
}

func (c *connector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.Connector.Connect(ctx)
	if err != nil {
		var msErr mssqldb.Error
		if errors.As(err, &msErr) && msErr.Number == errCannotOpenDatabase {
			return nil, apperrors.NewDatabaseError(c.database, c.account, err)
		}
		return nil, err
	}
	return conn, nil
}

// SessionStatements checks the schema exists and tags the session. SQL Server
// has no per-session default schema and no server-side statement timeout;
// queries are schema-qualified and bounded by the caller's context instead.
func (d *Dialect) SessionStatements(target warehouse.Target, settings warehouse.SessionSettings) []warehouse.SessionStatement {
	var stmts []warehouse.SessionStatement
	if target.Schema != "" {
		stmts = append(stmts, warehouse.SessionStatement{
			SQL: fmt.Sprintf("IF SCHEMA_ID(%s) IS NULL THROW 50000, %s, 1;",
				quoteLiteral(target.Schema), quoteLiteral("schema "+target.Schema+" does not exist")),
			Fail: func(err error) error {
				return apperrors.NewSchemaError(target.Schema, target.Database, err)
			},
		})
	}
	if settings.QueryTag != "" {
		stmts = append(stmts, warehouse.SessionStatement{SQL: tagStatement(settings.QueryTag)})
	}
	if settings.StatementTimeout > 0 {
		d.logger.Debug("statement timeout is not supported by SQL Server sessions, skipping",
			zap.Duration("timeout", settings.StatementTimeout))
	}
	return stmts
}

func tagStatement(tag string) string {
	return "EXEC sp_set_session_context @key = N'query_tag', @value = " + quoteLiteral(tag)
}

func (d *Dialect) ColumnsQuery(schema string, tables []string) (string, []any) {
	var (
		where []string
		args  []any
	)
	if schema != "" {
		args = append(args, strings.ToLower(schema))
		where = append(where, fmt.Sprintf("LOWER(t.TABLE_SCHEMA) LIKE @p%d", len(args)))
		if len(tables) > 0 {
			marks := make([]string, len(tables))
			for i, table := range tables {
				args = append(args, table)
				marks[i] = fmt.Sprintf("@p%d", len(args))
			}
			where = append(where, "LOWER(t.TABLE_NAME) IN ("+strings.Join(marks, ", ")+")")
		}
	}

	var sb strings.Builder
	sb.WriteString(`SELECT c.TABLE_SCHEMA AS TABLE_SCHEMA, c.TABLE_NAME AS TABLE_NAME,
       c.COLUMN_NAME AS COLUMN_NAME, c.DATA_TYPE AS DATA_TYPE,
       CAST(ISNULL(ep.value, N'') AS nvarchar(4000)) AS COLUMN_COMMENT,
       c.ORDINAL_POSITION AS ORDINAL_POSITION
FROM INFORMATION_SCHEMA.TABLES t
JOIN INFORMATION_SCHEMA.COLUMNS c
  ON t.TABLE_SCHEMA = c.TABLE_SCHEMA AND t.TABLE_NAME = c.TABLE_NAME
`)
	sb.WriteString(descriptionJoin)
	sb.WriteString(`
 AND ep.major_id = OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + N'.' + QUOTENAME(c.TABLE_NAME))
 AND ep.minor_id = COLUMNPROPERTY(ep.major_id, c.COLUMN_NAME, 'ColumnId')`)
	if len(where) > 0 {
		sb.WriteString("\nWHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString("\nORDER BY 1, 2, c.ORDINAL_POSITION")
	return sb.String(), args
}

func (d *Dialect) LiveObjectQueries() []string {
	listing := func(objectType string) string {
		return `SELECT o.name AS name, s.name AS schema_name,
       CAST(ISNULL(ep.value, N'') AS nvarchar(4000)) AS comment
FROM sys.objects o
JOIN sys.schemas s ON s.schema_id = o.schema_id
` + descriptionJoin + ` AND ep.major_id = o.object_id AND ep.minor_id = 0
WHERE o.type = '` + objectType + `' AND o.is_ms_shipped = 0`
	}
	return []string{listing("U"), listing("V")}
}

func (d *Dialect) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d *Dialect) SampleQuery(schema, table, column string, limit int) string {
	return fmt.Sprintf("SELECT DISTINCT TOP (%d) %s FROM %s.%s",
		limit, d.QuoteIdentifier(column), d.QuoteIdentifier(schema), d.QuoteIdentifier(table))
}

// SQL Server has no separately attached compute.
func (d *Dialect) CurrentComputeQuery() string { return "" }
func (d *Dialect) UseComputeStatement() string { return "" }

func quoteLiteral(s string) string {
	return "N'" + strings.ReplaceAll(s, "'", "''") + "'"
}
