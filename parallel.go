package knngraph

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// FillCacheParallel computes every uncached row using up to workers
// goroutines. Each worker handles a contiguous range of rows, so writes to
// the table never overlap. The wrapped finder must tolerate concurrent
// queries; BruteForce and KDTree do as long as nothing mutates them.
// workers <= 0 means runtime.NumCPU(); workers == 1 falls back to FillCache.
//
// Cancelling ctx stops the workers between rows; rows finished before the
// cancellation are not marked as cached.
func (c *CacheWrapper) FillCacheParallel(ctx context.Context, workers int) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	n := c.table.Len()
	if workers == 1 || n <= 1 {
		return c.FillCache()
	}

	g, ctx := errgroup.WithContext(ctx)
	rowsPerWorker := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * rowsPerWorker
		end := min(start+rowsPerWorker, n)
		if start >= n {
			break
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if c.filled.Test(uint(i)) {
					continue
				}
				hood, err := c.finder.Neighbors(i)
				if err != nil {
					return err
				}
				c.table.SetRow(i, hood)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// The bitset is shared word-wise, so it is only written once the
	// workers are done.
	for i := 0; i < n; i++ {
		c.filled.Set(uint(i))
	}
	c.logger.Debug("neighbor cache filled", "points", n, "k", c.table.K(), "workers", workers)
	return nil
}
