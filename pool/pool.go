// Package pool provides a bounded worker pool. The engine uses it to host
// wall-clock timeout enforcement for synchronous task attempts, so the
// resource is owned by the caller instead of living as hidden process-wide
// state.
package pool

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of functions running at the same time.
type Pool struct {
	sem  *semaphore.Weighted
	wg   sync.WaitGroup
	size int
}

// New creates a pool that runs at most size functions concurrently.
// A size below 1 is treated as 1.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// Size returns the concurrency bound of this pool.
func (p *Pool) Size() int { return p.size }

// Go runs fn on its own goroutine once a slot is available. It blocks until
// a slot frees up or the context is done, in which case the context error is
// returned and fn never runs.
func (p *Pool) Go(ctx context.Context, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.wg.Add(1)
	go func() {
		defer p.sem.Release(1)
		defer p.wg.Done()
		fn()
	}()
	return nil
}

// TryGo runs fn on its own goroutine when a slot is free, it reports false
// without running fn when the pool is saturated.
func (p *Pool) TryGo(fn func()) bool {
	if !p.sem.TryAcquire(1) {
		return false
	}
	p.wg.Add(1)
	go func() {
		defer p.sem.Release(1)
		defer p.wg.Done()
		fn()
	}()
	return true
}

// Wait blocks until all functions submitted so far have returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}
