package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-introspect/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-introspect/pkg/logging"
	"github.com/ekaya-inc/ekaya-introspect/pkg/statement"
)

// Execute runs an arbitrary query and returns its result by column name,
// each column's values in row order. Before running the query it makes sure
// a compute resource is attached to the connection, attaching the configured
// default when none is.
//
// The query must be a single statement; a trailing semicolon is dropped.
// Driver failures and rejected input are returned as *apperrors.QueryError. A result whose rows
// cannot be keyed by column name (duplicate column names) fails with
// apperrors.ErrUnexpectedRowShape.
func (s *Session) Execute(ctx context.Context, query string) (map[string][]any, error) {
	query, err := statement.Normalize(query)
	if err != nil {
		return nil, &apperrors.QueryError{Err: err}
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, &apperrors.QueryError{Err: err}
	}
	defer conn.Close()

	if err := s.ensureCompute(ctx, conn); err != nil {
		return nil, &apperrors.QueryError{Err: err}
	}

	s.logger.Info("executing query", zap.String("query", logging.SanitizeQuery(query)))

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, &apperrors.QueryError{Err: err}
	}
	defer rows.Close()

	columns, values, err := scanAll(rows)
	if err != nil {
		return nil, &apperrors.QueryError{Err: err}
	}

	result := make(map[string][]any, len(columns))
	for _, name := range columns {
		if _, dup := result[name]; dup {
			return nil, fmt.Errorf("%w: column %q appears more than once, rows cannot be keyed by name",
				apperrors.ErrUnexpectedRowShape, name)
		}
		result[name] = make([]any, 0, len(values))
	}
	for _, row := range values {
		for i, name := range columns {
			result[name] = append(result[name], row[i])
		}
	}
	return result, nil
}

// ensureCompute attaches the default compute resource if the connection has none.
func (s *Session) ensureCompute(ctx context.Context, conn *sql.Conn) error {
	check := s.dialect.CurrentComputeQuery()
	if check == "" {
		return nil
	}

	var current sql.NullString
	if err := conn.QueryRowContext(ctx, check).Scan(&current); err != nil {
		return fmt.Errorf("failed to read current compute: %w", err)
	}
	if current.Valid && current.String != "" {
		return nil
	}

	use := s.dialect.UseComputeStatement()
	s.logger.Debug("no compute attached, using default", zap.String("statement", use))
	if _, err := conn.ExecContext(ctx, use); err != nil {
		return fmt.Errorf("failed to attach compute: %w", err)
	}
	return nil
}
