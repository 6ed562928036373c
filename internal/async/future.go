// Package async runs a function in the background and exposes its outcome as
// a Future that callers await.
package async

import (
	"context"
	"errors"
	"fmt"
)

var ErrPanicked = errors.New("async task panicked")

type Future[T any] struct {
	result T
	err    error
	done   chan struct{}
}

// Go runs fn on its own goroutine. A context that is already canceled
// completes the future without calling fn.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}

	go func() {
		defer close(f.done)
		defer func() {
			if rec := recover(); rec != nil {
				f.err = fmt.Errorf("%w: %v", ErrPanicked, rec)
			}
		}()

		if err := ctx.Err(); err != nil {
			f.err = err
			return
		}
		f.result, f.err = fn(ctx)
	}()

	return f
}

// Resolved returns an already completed future.
func Resolved[T any](result T, err error) *Future[T] {
	f := &Future[T]{result: result, err: err, done: make(chan struct{})}
	close(f.done)
	return f
}

func (f *Future[T]) Await() (T, error) {
	<-f.done
	return f.result, f.err
}

// AwaitContext stops waiting when ctx is done. The task itself keeps running.
func (f *Future[T]) AwaitContext(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed once the task has finished.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}
