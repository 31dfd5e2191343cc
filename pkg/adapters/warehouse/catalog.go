package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-introspect/pkg/logging"
)

// MetadataRow describes one column of a table or view that exists in the
// live catalog listing.
type MetadataRow struct {
	Schema          string `json:"table_schema"`
	Table           string `json:"table_name"`
	TableComment    string `json:"table_comment"`
	Column          string `json:"column_name"`
	ColumnComment   string `json:"column_comment"`
	DataType        string `json:"data_type"`
	OrdinalPosition int    `json:"ordinal_position"`
}

type objectKey struct {
	schema string
	table  string
}

// ListColumns returns every column of every table and view visible in the
// session's database, optionally restricted to schema and, only together
// with a schema, to the named tables. Both filters are case-insensitive.
//
// Table names without a schema cannot be scoped safely; the table filter is
// then ignored with a warning.
//
// Entries of the information schema that are missing from the live object
// listing (stale or inaccessible objects) are dropped. Rows are sorted by
// schema, table and ordinal position.
func (s *Session) ListColumns(ctx context.Context, schema string, tables []string) ([]MetadataRow, error) {
	if len(tables) > 0 && schema == "" {
		s.logger.Warn("table names given without a schema, cannot filter to the specific tables",
			zap.Strings("tables", tables),
		)
		tables = nil
	}

	query, args := s.dialect.ColumnsQuery(schema, lowerAll(tables))
	columns, err := s.queryRecords(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog columns: %w", err)
	}

	live, err := s.liveObjects(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]MetadataRow, 0, len(columns))
	dropped := 0
	for _, rec := range columns {
		key := objectKey{schema: rec.str("TABLE_SCHEMA"), table: rec.str("TABLE_NAME")}
		tableComment, ok := live[key]
		if !ok {
			dropped++
			continue
		}
		ordinal, err := cast.ToIntE(rec.get("ORDINAL_POSITION"))
		if err != nil {
			return nil, fmt.Errorf("invalid ordinal position for %s.%s.%s: %w",
				key.schema, key.table, rec.str("COLUMN_NAME"), err)
		}
		rows = append(rows, MetadataRow{
			Schema:          key.schema,
			Table:           key.table,
			TableComment:    tableComment,
			Column:          rec.str("COLUMN_NAME"),
			ColumnComment:   rec.str("COLUMN_COMMENT"),
			DataType:        rec.str("DATA_TYPE"),
			OrdinalPosition: ordinal,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Schema != b.Schema {
			return a.Schema < b.Schema
		}
		if a.Table != b.Table {
			return a.Table < b.Table
		}
		return a.OrdinalPosition < b.OrdinalPosition
	})

	s.logger.Debug("listed catalog columns",
		zap.String("schema", schema),
		zap.Int("rows", len(rows)),
		zap.Int("live_objects", len(live)),
		zap.Int("dropped_stale", dropped),
	)
	return rows, nil
}

// liveObjects lists the tables and views that exist, keyed by (schema, name),
// with the object comment as value.
func (s *Session) liveObjects(ctx context.Context) (map[objectKey]string, error) {
	live := make(map[objectKey]string)
	for _, query := range s.dialect.LiveObjectQueries() {
		records, err := s.queryRecords(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to list live objects: %w", err)
		}
		for _, rec := range records {
			live[objectKey{schema: rec.str("schema_name"), table: rec.str("name")}] = rec.str("comment")
		}
	}
	return live, nil
}

// GroupByTable splits a sorted row-set into one slice per (schema, table),
// keeping the row-set order.
func GroupByTable(rows []MetadataRow) [][]MetadataRow {
	var groups [][]MetadataRow
	for i, row := range rows {
		if i == 0 || row.Schema != rows[i-1].Schema || row.Table != rows[i-1].Table {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], row)
	}
	return groups
}

// record is one result row keyed by upper-cased column name.
type record map[string]any

func (r record) get(name string) any {
	return r[strings.ToUpper(name)]
}

func (r record) str(name string) string {
	switch v := r.get(name).(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	default:
		return cast.ToString(v)
	}
}

// queryRecords runs a catalog query and returns its rows as records.
func (s *Session) queryRecords(ctx context.Context, query string, args ...any) ([]record, error) {
	s.logger.Debug("running catalog query", zap.String("query", logging.SanitizeQuery(query)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, values, err := scanAll(rows)
	if err != nil {
		return nil, err
	}

	records := make([]record, len(values))
	for i, row := range values {
		rec := make(record, len(columns))
		for j, name := range columns {
			rec[strings.ToUpper(name)] = row[j]
		}
		records[i] = rec
	}
	return records, nil
}

// scanAll reads every row of rows as raw driver values.
func scanAll(rows *sql.Rows) ([]string, [][]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("get columns: %w", err)
	}

	var values [][]any
	for rows.Next() {
		row := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		values = append(values, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}
	return columns, values, nil
}

func lowerAll(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.ToLower(n)
	}
	return out
}
