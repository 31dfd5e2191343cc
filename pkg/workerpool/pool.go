package workerpool

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config configures a worker pool.
type Config struct {
	MaxConcurrent int // Maximum tasks running at once (values below 1 mean 1)
}

// Pool runs independent tasks with bounded parallelism.
// A Pool is cheap; callers create one per fan-out rather than sharing a global one.
type Pool struct {
	config Config
	logger *zap.Logger
}

// New creates a worker pool. A nil logger is replaced by a no-op logger.
func New(config Config, logger *zap.Logger) *Pool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		config: config,
		logger: logger.Named("worker-pool"),
	}
}

// MaxConcurrent returns the effective concurrency bound.
func (p *Pool) MaxConcurrent() int {
	return p.config.MaxConcurrent
}

// WorkItem is a unit of work submitted to the pool.
type WorkItem[T any] struct {
	ID      string                               // For logging/tracking
	Execute func(ctx context.Context) (T, error) // The work to be executed
}

// WorkResult is the outcome of one work item. Index is the item's position
// in the submitted slice.
type WorkResult[T any] struct {
	Index  int
	ID     string
	Result T
	Err    error
}

// Process executes all work items with bounded parallelism and blocks until
// every item has finished. Results are returned in completion order.
// A failing item never stops the others. Items are not cancelled: each runs
// to completion against ctx, which is passed through unchanged.
func Process[T any](
	ctx context.Context,
	pool *Pool,
	items []WorkItem[T],
	onProgress func(completed, total int),
) []WorkResult[T] {
	if len(items) == 0 {
		return nil
	}

	resultsChan := make(chan WorkResult[T], len(items))

	var g errgroup.Group
	g.SetLimit(pool.config.MaxConcurrent)

	go func() {
		for i, item := range items {
			// Go blocks while MaxConcurrent items are running.
			g.Go(func() error {
				result, err := item.Execute(ctx)
				resultsChan <- WorkResult[T]{Index: i, ID: item.ID, Result: result, Err: err}
				return nil
			})
		}
		_ = g.Wait()
		close(resultsChan)
	}()

	results := make([]WorkResult[T], 0, len(items))
	for result := range resultsChan {
		results = append(results, result)
		if result.Err != nil {
			pool.logger.Debug("work item failed",
				zap.String("id", result.ID),
				zap.Error(result.Err),
			)
		}
		if onProgress != nil {
			onProgress(len(results), len(items))
		}
	}

	return results
}

// ProcessOrdered is Process with results restored to submission order.
func ProcessOrdered[T any](
	ctx context.Context,
	pool *Pool,
	items []WorkItem[T],
	onProgress func(completed, total int),
) []WorkResult[T] {
	results := Process(ctx, pool, items, onProgress)
	sort.Slice(results, func(a, b int) bool {
		return results[a].Index < results[b].Index
	})
	return results
}
