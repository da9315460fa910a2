package jobs

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// DefaultBatchSize bounds concurrent work against rendering and storage backends.
const DefaultBatchSize = 3

// ItemFunc processes the item at index i.
type ItemFunc func(ctx context.Context, i int) error

// BatchConfig configures a Batcher.
type BatchConfig struct {
	Size   int
	Logger *zap.Logger
}

// Batcher runs items in consecutive fixed-size batches. Each batch runs
// concurrently and is awaited before the next one starts. Items are never retried.
type Batcher struct {
	name   string
	size   int
	logger *zap.Logger
}

// NewBatcher builds a batcher, defaulting the size to DefaultBatchSize.
func NewBatcher(name string, cfg BatchConfig) *Batcher {
	if cfg.Size <= 0 {
		cfg.Size = DefaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Batcher{name: name, size: cfg.Size, logger: cfg.Logger}
}

// Size returns the configured batch size.
func (b *Batcher) Size() int { return b.size }

// Run processes n items and returns one error slot per item, nil on success.
// A failing item does not affect its siblings or later batches. Once ctx is
// done, remaining items are marked with ctx.Err() without being started.
func (b *Batcher) Run(ctx context.Context, n int, fn ItemFunc) []error {
	errs := make([]error, n)
	for start := 0; start < n; start += b.size {
		end := start + b.size
		if end > n {
			end = n
		}

		if err := ctx.Err(); err != nil {
			for i := start; i < n; i++ {
				errs[i] = err
			}
			b.logger.Sugar().Warnw("batch run cancelled", "batcher", b.name, "remaining", n-start, "error", err)
			return errs
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = b.runItem(ctx, i, fn)
			}(i)
		}
		wg.Wait()

		b.logger.Sugar().Debugw("batch completed", "batcher", b.name, "from", start, "to", end)
	}
	return errs
}

func (b *Batcher) runItem(ctx context.Context, i int, fn ItemFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("item %d panicked: %v", i, r)
			b.logger.Sugar().Errorw("batch item panicked", "batcher", b.name, "index", i, "panic", r)
		}
	}()
	return fn(ctx, i)
}

// RunBatches is a convenience wrapper around a Batcher with no logger.
func RunBatches(ctx context.Context, n, size int, fn ItemFunc) []error {
	return NewBatcher("default", BatchConfig{Size: size}).Run(ctx, n, fn)
}
