// Package testhelpers provides utilities for testing ekaya-introspect components.
package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (fixture loading)
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresTestImage is the stock PostgreSQL image used for integration tests.
const PostgresTestImage = "postgres:16-alpine"

// Credentials of the test container.
const (
	TestDBName     = "warehouse_test"
	TestDBUser     = "ekaya"
	TestDBPassword = "test_password"
	TestDBSchema   = "sales"
)

// fixtureSQL creates a small commented schema with two tables and a view.
const fixtureSQL = `
CREATE SCHEMA sales;
COMMENT ON SCHEMA sales IS 'order data';

CREATE TABLE sales.customers (
    customer_id integer PRIMARY KEY,
    name        text NOT NULL,
    signup_date date
);
COMMENT ON TABLE sales.customers IS 'registered customers';
COMMENT ON COLUMN sales.customers.name IS 'display name';

CREATE TABLE sales.orders (
    order_id    integer PRIMARY KEY,
    customer_id integer REFERENCES sales.customers (customer_id),
    amount      numeric(10,2),
    ordered_at  timestamp
);

CREATE VIEW sales.big_orders AS SELECT order_id, amount FROM sales.orders WHERE amount > 100;
COMMENT ON VIEW sales.big_orders IS 'orders above 100';

INSERT INTO sales.customers VALUES
    (1, 'Ada', '2024-01-02'),
    (2, 'Grace', '2024-02-03'),
    (3, 'Linus', NULL);
INSERT INTO sales.orders VALUES
    (10, 1, 250.00, '2024-03-01 10:00:00'),
    (11, 2, 40.50, '2024-03-02 11:30:00');
`

// TestDB holds a shared PostgreSQL container loaded with the fixture schema.
type TestDB struct {
	Container testcontainers.Container
	DB        *sql.DB
	Host      string
	Port      int
	ConnStr   string
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresTestImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       TestDBName,
			"POSTGRES_USER":     TestDBUser,
			"POSTGRES_PASSWORD": TestDBPassword,
		},
		// The entrypoint restarts the server once after initdb.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		TestDBUser, TestDBPassword, host, port.Port(), TestDBName)

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	// Verify connection with retry
	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("test database not reachable: %w", err)
	}

	if _, err := db.ExecContext(ctx, fixtureSQL); err != nil {
		return nil, fmt.Errorf("failed to load fixture schema: %w", err)
	}

	return &TestDB{
		Container: container,
		DB:        db,
		Host:      host,
		Port:      port.Int(),
		ConnStr:   connStr,
	}, nil
}
