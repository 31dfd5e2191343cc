package models

import (
	"time"

	"github.com/google/uuid"
)

// Column is the representation of one warehouse column handed to the
// semantic-model builder. Immutable once its Table is assembled.
type Column struct {
	ID       int    `json:"id" yaml:"id"`               // Ordinal index within the table (0-based)
	Name     string `json:"name" yaml:"name"`           // Column name as stored in the catalog
	Comment  string `json:"comment" yaml:"comment"`     // Free-text column comment, empty if none
	DataType string `json:"data_type" yaml:"data_type"` // Raw datatype string from the catalog

	// Values holds distinct sample values rendered as strings.
	// Nil when sampling is disabled or failed for this column.
	Values []string `json:"values,omitempty" yaml:"values,omitempty"`
}

// Category classifies the column datatype.
func (c Column) Category() DatatypeCategory {
	return CategorizeDatatype(c.DataType)
}

// Table is the ordered representation of one table or view.
// Columns are in catalog ordinal order regardless of how sampling was scheduled.
type Table struct {
	ID      int      `json:"id" yaml:"id"` // Ordinal index within the extraction batch
	Name    string   `json:"name" yaml:"name"`
	Comment string   `json:"comment" yaml:"comment"`
	Columns []Column `json:"columns" yaml:"columns"`
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Extraction is the result envelope of one introspection run.
type Extraction struct {
	RunID       uuid.UUID `json:"run_id" yaml:"run_id"`
	Warehouse   string    `json:"warehouse" yaml:"warehouse"` // Dialect type, e.g. "snowflake"
	Database    string    `json:"database" yaml:"database"`
	Schema      string    `json:"schema,omitempty" yaml:"schema,omitempty"`
	SampleSize  int       `json:"sample_size" yaml:"sample_size"`
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	Tables      []Table   `json:"tables" yaml:"tables"`
}
