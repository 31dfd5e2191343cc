package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-introspect/pkg/adapters/warehouse"
	"github.com/ekaya-inc/ekaya-introspect/pkg/models"
	"github.com/ekaya-inc/ekaya-introspect/pkg/workerpool"
)

// ErrNoColumns is returned when a table is assembled from an empty row-set.
var ErrNoColumns = errors.New("table has no columns")

// ColumnSampler returns distinct sample values for one column.
// A failed sample is reported as nil, never as an error.
// *warehouse.Session satisfies it.
type ColumnSampler interface {
	SampleColumn(ctx context.Context, schema, table, column, datatype string, sampleSize int) []string
}

var _ ColumnSampler = (*warehouse.Session)(nil)

// TableAssembler builds one table representation from its metadata rows,
// sampling every column concurrently.
type TableAssembler interface {
	// AssembleTable samples each column of rows with at most maxConcurrency
	// samplers in flight and returns the table with columns in row order.
	// It blocks until every column has been sampled.
	AssembleTable(
		ctx context.Context,
		sampler ColumnSampler,
		schema, table string,
		tableIndex int,
		rows []warehouse.MetadataRow,
		sampleSize, maxConcurrency int,
	) (*models.Table, error)
}

type tableAssembler struct {
	logger *zap.Logger
}

// NewTableAssembler creates a table assembler.
func NewTableAssembler(logger *zap.Logger) TableAssembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &tableAssembler{logger: logger.Named("table-assembler")}
}

// sampledColumn is the outcome of one column task, keyed by its position
// in the input rows.
type sampledColumn struct {
	ordinal int
	values  []string
}

func (a *tableAssembler) AssembleTable(
	ctx context.Context,
	sampler ColumnSampler,
	schema, table string,
	tableIndex int,
	rows []warehouse.MetadataRow,
	sampleSize, maxConcurrency int,
) (*models.Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("assemble %s.%s: %w", schema, table, ErrNoColumns)
	}

	// One pool per table; it is discarded when the table is built.
	pool := workerpool.New(workerpool.Config{MaxConcurrent: maxConcurrency}, a.logger)

	items := make([]workerpool.WorkItem[sampledColumn], len(rows))
	for i, row := range rows {
		items[i] = workerpool.WorkItem[sampledColumn]{
			ID: row.Column,
			Execute: func(ctx context.Context) (sampledColumn, error) {
				values := sampler.SampleColumn(ctx, schema, table, row.Column, row.DataType, sampleSize)
				return sampledColumn{ordinal: i, values: values}, nil
			},
		}
	}

	results := workerpool.Process(ctx, pool, items, nil)

	// Results arrive in completion order.
	samples := make([][]string, len(rows))
	for _, r := range results {
		samples[r.Result.ordinal] = r.Result.values
	}

	columns := make([]models.Column, len(rows))
	for i, row := range rows {
		columns[i] = models.Column{
			ID:       i,
			Name:     row.Column,
			Comment:  row.ColumnComment,
			DataType: row.DataType,
			Values:   samples[i],
		}
	}

	a.logger.Debug("Assembled table",
		zap.String("schema", schema),
		zap.String("table", table),
		zap.Int("columns", len(columns)),
		zap.Int("concurrency", pool.MaxConcurrent()),
	)

	return &models.Table{
		ID:      tableIndex,
		Name:    table,
		Comment: rows[0].TableComment,
		Columns: columns,
	}, nil
}
