package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-introspect/pkg/adapters/warehouse"
	"github.com/ekaya-inc/ekaya-introspect/pkg/models"
)

// ExtractRequest selects what to introspect.
type ExtractRequest struct {
	Database string
	Schema   string
	// Tables narrows the extraction within Schema. Ignored without a schema.
	Tables         []string
	SampleSize     int
	MaxConcurrency int
}

// ExtractionService introspects a warehouse and assembles every table it finds.
type ExtractionService interface {
	// Extract opens a session for the request, lists the live columns and
	// assembles the tables in schema, table order. A table that fails to
	// assemble aborts the run.
	Extract(ctx context.Context, req ExtractRequest) (*models.Extraction, error)
}

type extractionService struct {
	connections *warehouse.ConnectionManager
	assembler   TableAssembler
	logger      *zap.Logger
}

// NewExtractionService creates an extraction service over the given
// connection manager.
func NewExtractionService(
	connections *warehouse.ConnectionManager,
	assembler TableAssembler,
	logger *zap.Logger,
) ExtractionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &extractionService{
		connections: connections,
		assembler:   assembler,
		logger:      logger.Named("extraction"),
	}
}

func (s *extractionService) Extract(ctx context.Context, req ExtractRequest) (*models.Extraction, error) {
	result := &models.Extraction{
		RunID:      uuid.New(),
		Warehouse:  s.connections.Dialect().Type(),
		Database:   req.Database,
		Schema:     req.Schema,
		SampleSize: req.SampleSize,
	}
	logger := s.logger.With(zap.String("run_id", result.RunID.String()))
	start := time.Now()

	err := s.connections.WithSession(ctx, req.Database, req.Schema, func(session *warehouse.Session) error {
		rows, err := session.ListColumns(ctx, req.Schema, req.Tables)
		if err != nil {
			return fmt.Errorf("failed to list columns: %w", err)
		}

		groups := warehouse.GroupByTable(rows)
		logger.Info("Extracting tables",
			zap.String("database", req.Database),
			zap.String("schema", req.Schema),
			zap.Int("tables", len(groups)),
			zap.Int("columns", len(rows)),
		)

		result.Tables = make([]models.Table, 0, len(groups))
		for i, group := range groups {
			schema, table := group[0].Schema, group[0].Table
			assembled, err := s.assembler.AssembleTable(ctx, session, schema, table, i, group, req.SampleSize, req.MaxConcurrency)
			if err != nil {
				return fmt.Errorf("failed to assemble %s.%s: %w", schema, table, err)
			}
			result.Tables = append(result.Tables, *assembled)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.GeneratedAt = time.Now().UTC()
	logger.Info("Extraction complete",
		zap.Int("tables", len(result.Tables)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}
