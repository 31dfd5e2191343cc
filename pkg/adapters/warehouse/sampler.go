package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-introspect/pkg/logging"
	"github.com/ekaya-inc/ekaya-introspect/pkg/models"
)

// NullValue is how a NULL sample is rendered.
const NullValue = "NULL"

// samplingError is logged and never returned: a column that cannot be
// sampled simply has no samples.
type samplingError struct {
	schema, table, column string
	err                   error
}

func (e *samplingError) Error() string {
	return fmt.Sprintf("unable to get values for %s.%s.%s: %v", e.schema, e.table, e.column, e.err)
}

func (e *samplingError) Unwrap() error {
	return e.err
}

// SampleColumn fetches up to sampleSize distinct values of one column,
// rendered as strings. It returns nil without querying when sampleSize <= 0,
// and nil when sampling fails for any reason. datatype selects how date and
// time values are rendered.
func (s *Session) SampleColumn(ctx context.Context, schema, table, column, datatype string, sampleSize int) []string {
	if sampleSize <= 0 {
		return nil
	}

	values, err := s.sample(ctx, schema, table, column, datatype, sampleSize)
	if err != nil {
		sErr := &samplingError{schema: schema, table: table, column: column, err: err}
		s.logger.Error("sampling failed, column will have no sample values",
			zap.String("error", logging.SanitizeError(sErr)),
		)
		return nil
	}
	return values
}

func (s *Session) sample(ctx context.Context, schema, table, column, datatype string, sampleSize int) ([]string, error) {
	query := s.dialect.SampleQuery(schema, table, column, sampleSize)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(columns) != 1 {
		return nil, fmt.Errorf("sample query returned %d columns, expected 1", len(columns))
	}

	category := models.CategorizeDatatype(datatype)
	normalized := models.NormalizeDatatype(datatype)

	var values []string
	for rows.Next() && len(values) < sampleSize {
		var raw any
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		values = append(values, renderValue(raw, category, normalized))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

// renderValue converts a raw driver value to its string form.
func renderValue(raw any, category models.DatatypeCategory, normalized string) string {
	switch v := raw.(type) {
	case nil:
		return NullValue
	case []byte:
		return string(v)
	case time.Time:
		return renderTime(v, category, normalized)
	}

	if str, err := cast.ToStringE(raw); err == nil {
		return str
	}
	return fmt.Sprint(raw)
}

func renderTime(t time.Time, category models.DatatypeCategory, normalized string) string {
	if category == models.DatatypeTime {
		switch normalized {
		case "DATE":
			return t.Format(time.DateOnly)
		case "TIME":
			return t.Format("15:04:05.999999999")
		}
	}
	return t.Format("2006-01-02 15:04:05.999999999 -0700")
}
