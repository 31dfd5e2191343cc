package warehouse

import (
	"context"
	"database/sql/driver"
	"time"
)

// QueryTag identifies sessions opened by this tool in warehouse query history.
const QueryTag = "SEMANTIC_MODEL_GENERATOR"

// Target is the database and optional schema a session is scoped to.
type Target struct {
	Database string
	Schema   string
}

// SessionSettings configures every physical connection of a session.
type SessionSettings struct {
	QueryTag         string        // Fixed session tag; empty disables tagging
	StatementTimeout time.Duration // Server-side statement timeout; zero disables it
	MaxOpenConns     int           // Physical connections per session (values below 1 mean 1)
}

// SessionStatement is one statement issued on every new physical connection.
// Fail maps a failure to the error surfaced to the caller; nil wraps it as-is.
type SessionStatement struct {
	SQL  string
	Fail func(err error) error
}

// Dialect is the warehouse-specific part of introspection: how to reach the
// warehouse and which SQL to issue. Implementations register a factory in
// their init() function, see Register.
type Dialect interface {
	// Type is the registered dialect name ("snowflake", "postgres", "sqlserver").
	Type() string

	// Account identifies the warehouse endpoint in error messages.
	Account() string

	// Connector returns a driver connector for the target. Session
	// configuration is applied on top of it by the ConnectionManager.
	Connector(ctx context.Context, target Target) (driver.Connector, error)

	// SessionStatements returns the statements issued, in order, on every
	// new physical connection.
	SessionStatements(target Target, settings SessionSettings) []SessionStatement

	// ColumnsQuery returns the catalog join of tables and columns with its
	// bind arguments. Result columns: TABLE_SCHEMA, TABLE_NAME, COLUMN_NAME,
	// DATA_TYPE, COLUMN_COMMENT, ORDINAL_POSITION. The table filter is only
	// passed together with a schema.
	ColumnsQuery(schema string, tables []string) (string, []any)

	// LiveObjectQueries list the tables and views that actually exist.
	// Result columns: name, schema_name, comment.
	LiveObjectQueries() []string

	// QuoteIdentifier quotes a single identifier, preserving case.
	QuoteIdentifier(name string) string

	// SampleQuery selects up to limit distinct values of one column.
	SampleQuery(schema, table, column string, limit int) string

	// CurrentComputeQuery reports the compute resource attached to the
	// connection. Empty when the warehouse has no such concept.
	CurrentComputeQuery() string

	// UseComputeStatement attaches the configured default compute resource.
	UseComputeStatement() string
}
