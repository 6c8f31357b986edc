// SPDX-License-Identifier: Apache-2.0

package result

import (
	"context"
	"fmt"
	"runtime/debug"
)

// PanicError is the fault delivered when a function panics instead of
// returning.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("panic recovered: %v", p.Value)
}

// Unwrap returns the panic value if it is an error.
func (p *PanicError) Unwrap() error {
	err, _ := p.Value.(error)
	return err
}

// Future is a Result that becomes available later.
//
// A Future settles exactly once, either with a Result or with a fault. A
// fault is an error outside the Result's own failure channel: a panic, a
// cancelled context, or any other unexpected error from the producer.
type Future[A, E any] struct {
	done  chan struct{}
	res   Result[A, E]
	fault error
}

// Go starts fn on a new goroutine and returns a Future for its outcome.
//
// A panic inside fn is recovered and delivered as a [*PanicError] fault.
func Go[A, E any](
	ctx context.Context,
	fn func(context.Context) (Result[A, E], error),
) *Future[A, E] {
	f := &Future[A, E]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.fault = &PanicError{Value: r, Stack: debug.Stack()}
			}
		}()
		f.res, f.fault = fn(ctx)
	}()
	return f
}

// Resolved returns a Future that has already settled with r.
func Resolved[A, E any](r Result[A, E]) *Future[A, E] {
	f := &Future[A, E]{done: make(chan struct{}), res: r}
	close(f.done)
	return f
}

// Rejected returns a Future that has already settled with the given fault.
func Rejected[A, E any](fault error) *Future[A, E] {
	f := &Future[A, E]{done: make(chan struct{}), fault: fault}
	close(f.done)
	return f
}

// Done returns a channel that is closed once the Future has settled.
func (f *Future[A, E]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the Future settles or ctx is done.
//
// If ctx ends first, Await returns ctx.Err() as the fault; the producer keeps
// running and the Future may still be awaited later.
func (f *Future[A, E]) Await(ctx context.Context) (Result[A, E], error) {
	select {
	case <-f.done:
		return f.res, f.fault
	case <-ctx.Done():
		return Result[A, E]{}, ctx.Err()
	}
}
