package mssql

import (
	"context"
	"database/sql/driver"
	"errors"
	"net/url"
	"testing"
	"time"

	mssqldb "github.com/microsoft/go-mssqldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-introspect/pkg/adapters/warehouse"
	"github.com/ekaya-inc/ekaya-introspect/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-introspect/pkg/config"
)

func validConfig() config.SQLServerConfig {
	return config.SQLServerConfig{
		Host:     "sql.example.com",
		Port:     1433,
		User:     "sa",
		Password: "p@ss;word",
		Database: "master",
		Encrypt:  true,
	}
}

func newTestDialect(t *testing.T) *Dialect {
	t.Helper()
	d, err := New(validConfig(), zap.NewNop())
	require.NoError(t, err)
	return d
}

func TestNew_Validation(t *testing.T) {
	cfg := validConfig()
	cfg.Password = ""

	_, err := New(cfg, nil)
	var cfgErr *apperrors.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "MSSQL_PASSWORD", cfgErr.Variable)
}

func TestDialect_ConnectionString(t *testing.T) {
	d := newTestDialect(t)

	u, err := url.Parse(d.buildConnectionString("Sales DB"))
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", u.Scheme)
	assert.Equal(t, "sql.example.com:1433", u.Host)
	assert.Equal(t, "sa", u.User.Username())
	password, _ := u.User.Password()
	assert.Equal(t, "p@ss;word", password)
	assert.Equal(t, "Sales DB", u.Query().Get("database"))
	assert.Equal(t, "true", u.Query().Get("encrypt"))
	assert.Equal(t, ApplicationName, u.Query().Get("app name"))
	assert.Empty(t, u.Query().Get("TrustServerCertificate"))
}

func TestDialect_ConnectorSetsSessionInit(t *testing.T) {
	d := newTestDialect(t)

	c, err := d.Connector(context.Background(), warehouse.Target{Database: "sales"})
	require.NoError(t, err)

	wrapped := c.(*connector)
	assert.Equal(t, "sales", wrapped.database)
	inner, ok := wrapped.Connector.(*mssqldb.Connector)
	require.True(t, ok)
	assert.Equal(t, "EXEC sp_set_session_context @key = N'query_tag', @value = N'SEMANTIC_MODEL_GENERATOR'", inner.SessionInitSQL)
}

type failingConnector struct {
	err error
}

func (f failingConnector) Connect(context.Context) (driver.Conn, error) { return nil, f.err }
func (f failingConnector) Driver() driver.Driver                        { return nil }

func TestConnector_MapsCannotOpenDatabase(t *testing.T) {
	c := &connector{
		Connector: failingConnector{err: mssqldb.Error{Number: 4060, Message: `Cannot open database "nope" requested by the login.`}},
		database:  "nope",
		account:   "sql.example.com:1433",
	}

	_, err := c.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConnection)
	assert.Contains(t, err.Error(), "Does the database exist in sql.example.com:1433?")

	c.Connector = failingConnector{err: mssqldb.Error{Number: 18456, Message: "Login failed for user 'sa'."}}
	_, err = c.Connect(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrConnection)
}

func TestDialect_SessionStatements(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	d, err := New(validConfig(), zap.New(core))
	require.NoError(t, err)

	settings := warehouse.SessionSettings{QueryTag: warehouse.QueryTag, StatementTimeout: time.Minute}
	stmts := d.SessionStatements(warehouse.Target{Database: "sales", Schema: "dbo"}, settings)
	require.Len(t, stmts, 2)

	assert.Equal(t, "IF SCHEMA_ID(N'dbo') IS NULL THROW 50000, N'schema dbo does not exist', 1;", stmts[0].SQL)
	schemaErr := stmts[0].Fail(errors.New("schema dbo does not exist"))
	assert.Contains(t, schemaErr.Error(), "Does the schema exist in the sales database?")

	assert.Equal(t, "EXEC sp_set_session_context @key = N'query_tag', @value = N'SEMANTIC_MODEL_GENERATOR'", stmts[1].SQL)
	assert.Equal(t, 1, logs.FilterMessageSnippet("statement timeout is not supported").Len())
}

func TestDialect_ColumnsQuery(t *testing.T) {
	d := newTestDialect(t)

	query, args := d.ColumnsQuery("", nil)
	assert.NotContains(t, query, "WHERE")
	assert.Empty(t, args)
	assert.Contains(t, query, "MS_Description")

	query, args = d.ColumnsQuery("Sales", []string{"orders", "customers"})
	assert.Contains(t, query, "LOWER(t.TABLE_SCHEMA) LIKE @p1")
	assert.Contains(t, query, "LOWER(t.TABLE_NAME) IN (@p2, @p3)")
	assert.Equal(t, []any{"sales", "orders", "customers"}, args)
}

func TestDialect_LiveObjectQueries(t *testing.T) {
	d := newTestDialect(t)

	queries := d.LiveObjectQueries()
	require.Len(t, queries, 2)
	assert.Contains(t, queries[0], "o.type = 'U'")
	assert.Contains(t, queries[1], "o.type = 'V'")
}

func TestDialect_SampleQuery(t *testing.T) {
	d := newTestDialect(t)

	assert.Equal(t, "SELECT DISTINCT TOP (3) [Status] FROM [dbo].[Orders]", d.SampleQuery("dbo", "Orders", "Status", 3))
	assert.Equal(t, "[we]]ird]", d.QuoteIdentifier("we]ird"))
	assert.Empty(t, d.CurrentComputeQuery())
}

func TestRegistered(t *testing.T) {
	assert.True(t, warehouse.IsRegistered("sqlserver"))

	cfg := &config.Config{SQLServer: validConfig()}
	d, err := warehouse.NewDialect("sqlserver", "", cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", d.Type())
}
