// Package workerpool runs independent units of work with bounded parallelism.
package workerpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config configures the pool.
type Config struct {
	MaxConcurrent int // Maximum items executing at once (default: 4)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 4,
	}
}

// Pool executes work items with bounded parallelism.
// It uses a semaphore to limit outstanding items and collects results
// as they complete, so a slow item never holds back a free slot.
type Pool struct {
	config Config
	logger *zap.Logger
}

// New creates a pool.
func New(config Config, logger *zap.Logger) *Pool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	return &Pool{
		config: config,
		logger: logger.Named("worker-pool"),
	}
}

// MaxConcurrent returns the configured parallelism.
func (p *Pool) MaxConcurrent() int { return p.config.MaxConcurrent }

// Item is a unit of work.
type Item[T any] struct {
	ID      string                               // For logging/tracking
	Execute func(ctx context.Context) (T, error) // The work to be executed
}

// Result is the outcome of one Item.
type Result[T any] struct {
	ID      string
	Value   T
	Err     error
	Elapsed time.Duration
}

// Process executes all items with bounded parallelism.
// Returns results in completion order (not submission order).
// Continues processing all items even if some fail; a panicking item is
// reported as a failed result.
func Process[T any](
	ctx context.Context,
	pool *Pool,
	items []Item[T],
	onProgress func(completed, total int),
) []Result[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]Result[T], 0, len(items))
	resultsChan := make(chan Result[T], len(items))
	sem := make(chan struct{}, pool.config.MaxConcurrent)

	var wg sync.WaitGroup

	for _, item := range items {
		wg.Add(1)
		go func(item Item[T]) {
			defer wg.Done()

			// Acquire semaphore slot (blocks if at max concurrency)
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				resultsChan <- Result[T]{ID: item.ID, Err: ctx.Err()}
				return
			}

			resultsChan <- execute(ctx, pool, item)
		}(item)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	completed := 0
	for result := range resultsChan {
		results = append(results, result)
		completed++
		if onProgress != nil {
			onProgress(completed, len(items))
		}
	}

	return results
}

func execute[T any](ctx context.Context, p *Pool, item Item[T]) (res Result[T]) {
	start := time.Now()
	res.ID = item.ID
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic in %s: %v", item.ID, r)
			p.logger.Error("Work item panicked",
				zap.String("id", item.ID),
				zap.Any("panic", r))
		}
		res.Elapsed = time.Since(start)
	}()

	res.Value, res.Err = item.Execute(ctx)
	if res.Err != nil {
		p.logger.Debug("Work item failed", zap.String("id", item.ID), zap.Error(res.Err))
	}
	return res
}
