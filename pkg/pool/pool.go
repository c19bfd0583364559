package pool

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pool represents a fixed number of workers, used for parallelizing functions.
//
// Functions needing a *Pool will work with a nil receiver, doing the equivalent
// work with a single worker on the current goroutine instead.
type Pool struct {
	// This holds the number of workers we spin up for each operation
	workerCount int
}

// NewPool creates a new pool, with a certain number of workers.
//
// If count <= 0, this will use the number of available CPUs instead.
func NewPool(count int) *Pool {
	if count <= 0 {
		count = runtime.NumCPU()
	}
	return &Pool{workerCount: count}
}

// Workers returns the number of workers of the pool.
func (p *Pool) Workers() int {
	if p == nil {
		return 1
	}
	return p.workerCount
}

// Until calls step repeatedly on every worker, each worker stopping once step
// reports done.
//
// The context is checked before each call. The first error returned by a step,
// or the cancellation of ctx, stops all workers at their next call, and is
// returned once every worker has stopped.
func (p *Pool) Until(ctx context.Context, step func(ctx context.Context, worker int) (done bool, err error)) error {
	if p == nil {
		return loop(ctx, step, 0)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workerCount; i++ {
		worker := i
		g.Go(func() error {
			return loop(gctx, step, worker)
		})
	}
	return g.Wait()
}

func loop(ctx context.Context, step func(context.Context, int) (bool, error), worker int) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := step(ctx, worker)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// Parallelize calls f count times, passing in indices from 0..count-1, with at
// most Workers() calls running at once.
func (p *Pool) Parallelize(count int, f func(int)) {
	if p == nil || p.workerCount == 1 {
		for i := 0; i < count; i++ {
			f(i)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(p.workerCount)
	for i := 0; i < count; i++ {
		i := i
		g.Go(func() error {
			f(i)
			return nil
		})
	}
	_ = g.Wait()
}
