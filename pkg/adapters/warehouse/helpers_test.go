package warehouse_test

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-introspect/pkg/adapters/warehouse"
	"github.com/ekaya-inc/ekaya-introspect/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-introspect/pkg/testhelpers"
)

// scriptedDialect speaks a Snowflake-like SQL against a FakeWarehouse.
type scriptedDialect struct {
	fw      *testhelpers.FakeWarehouse
	compute bool
}

func (d *scriptedDialect) Type() string    { return "scripted" }
func (d *scriptedDialect) Account() string { return "acme-test" }

func (d *scriptedDialect) Connector(ctx context.Context, target warehouse.Target) (driver.Connector, error) {
	return d.fw.Connector(), nil
}

func (d *scriptedDialect) SessionStatements(target warehouse.Target, settings warehouse.SessionSettings) []warehouse.SessionStatement {
	var stmts []warehouse.SessionStatement
	if target.Database != "" {
		stmts = append(stmts, warehouse.SessionStatement{
			SQL: "USE DATABASE " + target.Database,
			Fail: func(err error) error {
				return apperrors.NewDatabaseError(target.Database, d.Account(), err)
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
			SQL: fmt.Sprintf("ALTER SESSION SET QUERY_TAG = '%s'", settings.QueryTag),
		})
	}
	if settings.StatementTimeout > 0 {
		stmts = append(stmts, warehouse.SessionStatement{
			SQL: fmt.Sprintf("ALTER SESSION SET STATEMENT_TIMEOUT_IN_SECONDS = %d", int(settings.StatementTimeout.Seconds())),
		})
	}
	return stmts
}

func (d *scriptedDialect) ColumnsQuery(schema string, tables []string) (string, []any) {
	query := "SELECT COLUMNS"
	var args []any
	if schema != "" {
		query += " WHERE SCHEMA ILIKE ?"
		args = append(args, schema)
		if len(tables) > 0 {
			query += " AND TABLES IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(tables)), ", ") + ")"
			for _, t := range tables {
				args = append(args, t)
			}
		}
	}
	return query, args
}

func (d *scriptedDialect) LiveObjectQueries() []string {
	return []string{"SHOW TABLES IN DATABASE", "SHOW VIEWS IN DATABASE"}
}

func (d *scriptedDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *scriptedDialect) SampleQuery(schema, table, column string, limit int) string {
	return fmt.Sprintf("SELECT DISTINCT %s FROM %s.%s LIMIT %d",
		d.QuoteIdentifier(column), d.QuoteIdentifier(schema), d.QuoteIdentifier(table), limit)
}

func (d *scriptedDialect) CurrentComputeQuery() string {
	if !d.compute {
		return ""
	}
	return "SELECT CURRENT_WAREHOUSE()"
}

func (d *scriptedDialect) UseComputeStatement() string {
	return "USE WAREHOUSE COMPUTE_WH"
}

var columnsHeader = []string{"TABLE_SCHEMA", "TABLE_NAME", "COLUMN_NAME", "DATA_TYPE", "COLUMN_COMMENT", "ORDINAL_POSITION"}

// Snowflake SHOW output is lower-case and carries more columns than we read.
var showHeader = []string{"created_on", "name", "database_name", "schema_name", "kind", "comment"}

func newTestManager(t *testing.T, fw *testhelpers.FakeWarehouse, settings warehouse.SessionSettings) *warehouse.ConnectionManager {
	t.Helper()
	return newTestManagerWithLogger(t, fw, settings, zaptest.NewLogger(t))
}

func newTestManagerWithLogger(t *testing.T, fw *testhelpers.FakeWarehouse, settings warehouse.SessionSettings, logger *zap.Logger) *warehouse.ConnectionManager {
	t.Helper()
	cm := warehouse.NewConnectionManager(&scriptedDialect{fw: fw, compute: true}, settings, logger)
	t.Cleanup(func() { _ = cm.Close() })
	return cm
}

func openTestSession(t *testing.T, cm *warehouse.ConnectionManager) *warehouse.Session {
	t.Helper()
	session, err := cm.Connect(context.Background(), "ANALYTICS", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

var defaultSettings = warehouse.SessionSettings{
	QueryTag:         warehouse.QueryTag,
	StatementTimeout: 120 * time.Second,
	MaxOpenConns:     4,
}
