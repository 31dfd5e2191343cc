package testhelpers

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// FakeWarehouse is a scripted database/sql driver for unit tests. Queries are
// answered by the most recently registered rule whose pattern is a substring
// of the query. Statements without a matching rule succeed; queries without
// one fail. Every statement is recorded, and physical connections are counted,
// so tests can assert on session setup and pool usage.
type FakeWarehouse struct {
	mu         sync.Mutex
	rules      []*fakeRule
	executed   []ExecutedStatement
	connectErr error
	open       int
	peak       int
	opened     int
}

// ExecutedStatement is one statement the fake received.
type ExecutedStatement struct {
	SQL  string
	Args []any
}

type fakeRule struct {
	contains string
	columns  []string
	rows     [][]driver.Value
	err      error
	delay    time.Duration
}

// NewFakeWarehouse creates a fake with no rules.
func NewFakeWarehouse() *FakeWarehouse {
	return &FakeWarehouse{}
}

// OnQuery answers statements containing contains with the given result.
func (f *FakeWarehouse) OnQuery(contains string, columns []string, rows ...[]any) *FakeWarehouse {
	values := make([][]driver.Value, len(rows))
	for i, row := range rows {
		values[i] = make([]driver.Value, len(row))
		for j, v := range row {
			values[i][j] = v
		}
	}
	return f.addRule(&fakeRule{contains: contains, columns: columns, rows: values})
}

// OnError fails statements containing contains with err.
func (f *FakeWarehouse) OnError(contains string, err error) *FakeWarehouse {
	return f.addRule(&fakeRule{contains: contains, err: err})
}

// Delay makes the most recent rule for contains wait d before answering.
func (f *FakeWarehouse) Delay(contains string, d time.Duration) *FakeWarehouse {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.rules) - 1; i >= 0; i-- {
		if f.rules[i].contains == contains {
			f.rules[i].delay = d
			break
		}
	}
	return f
}

// FailConnect makes every new physical connection fail with err.
func (f *FakeWarehouse) FailConnect(err error) *FakeWarehouse {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErr = err
	return f
}

func (f *FakeWarehouse) addRule(rule *fakeRule) *FakeWarehouse {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule)
	return f
}

// Executed returns every statement received, in arrival order.
func (f *FakeWarehouse) Executed() []ExecutedStatement {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ExecutedStatement(nil), f.executed...)
}

// Statements returns the SQL of every statement containing contains.
// An empty contains returns all of them.
func (f *FakeWarehouse) Statements(contains string) []string {
	var out []string
	for _, stmt := range f.Executed() {
		if strings.Contains(stmt.SQL, contains) {
			out = append(out, stmt.SQL)
		}
	}
	return out
}

// OpenConnections returns the number of physical connections currently open.
func (f *FakeWarehouse) OpenConnections() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// PeakConnections returns the highest number of simultaneously open connections.
func (f *FakeWarehouse) PeakConnections() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

// OpenedConnections returns how many physical connections were ever opened.
func (f *FakeWarehouse) OpenedConnections() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

// Connector returns a connector opening connections to the fake.
func (f *FakeWarehouse) Connector() driver.Connector {
	return &fakeConnector{fw: f}
}

func (f *FakeWarehouse) record(query string, args []driver.NamedValue) *fakeRule {
	f.mu.Lock()
	defer f.mu.Unlock()

	stmt := ExecutedStatement{SQL: query}
	for _, a := range args {
		stmt.Args = append(stmt.Args, a.Value)
	}
	f.executed = append(f.executed, stmt)

	for i := len(f.rules) - 1; i >= 0; i-- {
		if strings.Contains(query, f.rules[i].contains) {
			return f.rules[i]
		}
	}
	return nil
}

func (f *FakeWarehouse) answer(ctx context.Context, query string, args []driver.NamedValue) (*fakeRule, error) {
	rule := f.record(query, args)
	if rule == nil {
		return nil, nil
	}
	if rule.delay > 0 {
		select {
		case <-time.After(rule.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if rule.err != nil {
		return nil, rule.err
	}
	return rule, nil
}

type fakeConnector struct {
	fw *FakeWarehouse
}

func (c *fakeConnector) Connect(ctx context.Context) (driver.Conn, error) {
	c.fw.mu.Lock()
	defer c.fw.mu.Unlock()

	if c.fw.connectErr != nil {
		return nil, c.fw.connectErr
	}
	c.fw.open++
	c.fw.opened++
	if c.fw.open > c.fw.peak {
		c.fw.peak = c.fw.open
	}
	return &fakeConn{fw: c.fw}, nil
}

func (c *fakeConnector) Driver() driver.Driver {
	return fakeDriver{fw: c.fw}
}

type fakeDriver struct {
	fw *FakeWarehouse
}

func (d fakeDriver) Open(string) (driver.Conn, error) {
	return (&fakeConnector{fw: d.fw}).Connect(context.Background())
}

type fakeConn struct {
	fw     *FakeWarehouse
	closed bool
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("fakewarehouse: prepared statements are not supported")
}

func (c *fakeConn) Begin() (driver.Tx, error) {
	return nil, errors.New("fakewarehouse: transactions are not supported")
}

func (c *fakeConn) Close() error {
	c.fw.mu.Lock()
	defer c.fw.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.fw.open--
	}
	return nil
}

func (c *fakeConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if _, err := c.fw.answer(ctx, query, args); err != nil {
		return nil, err
	}
	return driver.RowsAffected(0), nil
}

func (c *fakeConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	rule, err := c.fw.answer(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, fmt.Errorf("fakewarehouse: no rule matches query %q", query)
	}
	return &fakeRows{columns: rule.columns, rows: rule.rows}, nil
}

type fakeRows struct {
	columns []string
	rows    [][]driver.Value
	next    int
}

func (r *fakeRows) Columns() []string {
	return r.columns
}

func (r *fakeRows) Close() error {
	return nil
}

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.next >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.next])
	r.next++
	return nil
}
