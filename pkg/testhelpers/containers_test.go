//go:build integration

package testhelpers

import (
	"context"
	"testing"
)

func TestTestDB_FixtureLoaded(t *testing.T) {
	testDB := GetTestDB(t)

	ctx := context.Background()

	var tableCount int
	err := testDB.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = $1", TestDBSchema).
		Scan(&tableCount)
	if err != nil {
		t.Fatalf("failed to count tables: %v", err)
	}

	// Two tables and one view
	if tableCount != 3 {
		t.Errorf("expected 3 relations in fixture schema, got %d", tableCount)
	}
}

func TestTestDB_FixtureData(t *testing.T) {
	testDB := GetTestDB(t)

	ctx := context.Background()

	tests := []struct {
		table    string
		expected int
	}{
		{"sales.customers", 3},
		{"sales.orders", 2},
		{"sales.big_orders", 1},
	}

	for _, tt := range tests {
		var count int
		err := testDB.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+tt.table).Scan(&count)
		if err != nil {
			t.Errorf("failed to count %s: %v", tt.table, err)
			continue
		}
		if count != tt.expected {
			t.Errorf("expected %d rows in %s, got %d", tt.expected, tt.table, count)
		}
	}
}
