package models

import "strings"

// DatatypeCategory is the coarse classification of a warehouse datatype used
// when deciding how a column participates in a semantic model.
type DatatypeCategory string

const (
	DatatypeTime      DatatypeCategory = "time"
	DatatypeDimension DatatypeCategory = "dimension"
	DatatypeMeasure   DatatypeCategory = "measure"
	DatatypeObject    DatatypeCategory = "object"
	DatatypeUnknown   DatatypeCategory = "unknown"
)

// Datatype names follow the Snowflake documentation:
// https://docs.snowflake.com/en/sql-reference/data-types-datetime
// https://docs.snowflake.com/en/sql-reference/data-types-text
// https://docs.snowflake.com/en/sql-reference/data-types-numeric
var (
	TimeDatatypes = []string{
		"DATE", "DATETIME", "TIMESTAMP_LTZ", "TIMESTAMP_NTZ", "TIMESTAMP_TZ", "TIMESTAMP", "TIME",
	}
	DimensionDatatypes = []string{
		"VARCHAR", "CHAR", "CHARACTER", "NCHAR", "STRING", "TEXT", "NVARCHAR", "NVARCHAR2",
		"CHAR VARYING", "NCHAR VARYING", "BINARY", "VARBINARY",
	}
	MeasureDatatypes = []string{
		"NUMBER", "DECIMAL", "DEC", "NUMERIC", "INT", "INTEGER", "BIGINT", "SMALLINT", "TINYINT",
		"BYTEINT", "FLOAT", "FLOAT4", "FLOAT8", "DOUBLE", "DOUBLE PRECISION", "REAL",
	}
	ObjectDatatypes = []string{"VARIANT", "ARRAY", "OBJECT", "GEOGRAPHY"}
)

var datatypeCategories = buildDatatypeIndex()

func buildDatatypeIndex() map[string]DatatypeCategory {
	index := make(map[string]DatatypeCategory)
	for _, group := range []struct {
		names    []string
		category DatatypeCategory
	}{
		{TimeDatatypes, DatatypeTime},
		{DimensionDatatypes, DatatypeDimension},
		{MeasureDatatypes, DatatypeMeasure},
		{ObjectDatatypes, DatatypeObject},
	} {
		for _, name := range group.names {
			index[name] = group.category
		}
	}
	return index
}

// NormalizeDatatype upper-cases a raw catalog datatype and strips any
// precision/length suffix: "number(38,0)" -> "NUMBER".
func NormalizeDatatype(raw string) string {
	name := raw
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	return strings.Join(strings.Fields(strings.ToUpper(name)), " ")
}

// CategorizeDatatype maps a raw catalog datatype to its category.
func CategorizeDatatype(raw string) DatatypeCategory {
	if category, ok := datatypeCategories[NormalizeDatatype(raw)]; ok {
		return category
	}
	return DatatypeUnknown
}
