// Package future provides a handle for a value that becomes available later.
// It is the pending half of the engine's dual synchronous/asynchronous
// execution model: an asynchronous executable hands back a Future instead of
// blocking the caller.
package future

import (
	"context"
	"sync"
)

type result[T any] struct {
	value T
	err   error
}

// Future represents a value of type T that will become available in the future.
type Future[T any] struct {
	c      chan result[T]
	cancel context.CancelFunc
	ctx    context.Context
	once   *sync.Once
	val    *result[T]
}

// Do creates a future that executes the function on its own goroutine.
// The context passed into the function provides the cancellation signal.
func Do[T any](fn func(context.Context) (T, error)) *Future[T] {
	return DoWithContext(context.Background(), fn)
}

// DoWithContext creates a future that executes the function on its own
// goroutine. The provided context is the parent of the future's context, so
// cancelling the parent also cancels the future.
func DoWithContext[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	inner, cancel := context.WithCancel(ctx)
	c := make(chan result[T], 1)
	go func() {
		defer close(c)
		v, err := fn(inner)
		c <- result[T]{value: v, err: err}
	}()

	return &Future[T]{
		c:      c,
		cancel: cancel,
		ctx:    inner,
		once:   new(sync.Once),
	}
}

// Resolved creates a future that is already complete. Get returns immediately.
func Resolved[T any](value T, err error) *Future[T] {
	c := make(chan result[T], 1)
	c <- result[T]{value: value, err: err}
	close(c)
	ctx, cancel := context.WithCancel(context.Background())
	return &Future[T]{
		c:      c,
		cancel: cancel,
		ctx:    ctx,
		once:   new(sync.Once),
	}
}

// Get blocks until the value is available or the future is cancelled.
// The result is memoized: subsequent calls return the same value.
func (f *Future[T]) Get() (T, error) {
	f.once.Do(func() {
		select {
		case val, ok := <-f.c:
			if ok {
				f.val = &val
				return
			}
			var zero T
			f.val = &result[T]{value: zero, err: f.ctx.Err()}
		case <-f.ctx.Done():
			var zero T
			f.val = &result[T]{value: zero, err: f.ctx.Err()}
		}
	})
	return f.val.value, f.val.err
}

// Cancel the computation backing this future. A cancelled future resolves
// with the context error, the function keeps running until it observes the
// cancellation.
func (f *Future[T]) Cancel() {
	f.cancel()
}

// Done is closed when the future was cancelled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.ctx.Done()
}

// Then chains a continuation onto a future. The continuation only runs when
// the first future resolved without error.
func Then[T, U any](f *Future[T], fn func(context.Context, T) (U, error)) *Future[U] {
	return DoWithContext(f.ctx, func(ctx context.Context) (U, error) {
		v, err := f.Get()
		if err != nil {
			var zero U
			return zero, err
		}
		select {
		case <-ctx.Done():
			var zero U
			return zero, ctx.Err()
		default:
			return fn(ctx, v)
		}
	})
}
