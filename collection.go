// SPDX-License-Identifier: Apache-2.0

package resultflow

import (
	"context"
	"fmt"
)

// IndexedError wraps a fault with the index of the element whose flow
// produced it.
//
// Example:
//
//	_, err := resultflow.Traverse(ids, loadUser).Run(ctx, resultflow.WithEnv(deps))
//	if err != nil {
//	    var ie *resultflow.IndexedError
//	    if errors.As(err, &ie) {
//	        fmt.Printf("element %d: %v\n", ie.Index, ie.Err)
//	    }
//	}
type IndexedError struct {
	Index int
	Err   error
}

// Error implements the error interface.
func (e *IndexedError) Error() string {
	return fmt.Sprintf("element %d: %v", e.Index, e.Err)
}

// Unwrap returns the underlying error for error inspection via errors.Is and errors.As.
func (e *IndexedError) Unwrap() error {
	return e.Err
}

// Traverse builds one flow per element of items and evaluates them in order,
// collecting their values.
//
// The first failure stops the traversal. A fault is wrapped in an
// [*IndexedError] naming the element. Cancellation of ctx is checked before
// each element.
//
// Example:
//
//	users := resultflow.Traverse(ids, func(id int) resultflow.Flow[User, RepoError, Deps] {
//	    return findUser(id)
//	})
func Traverse[T, A, E, C any](items []T, fn func(T) Flow[A, E, C]) Flow[[]A, E, C] {
	return Of(func(ctx context.Context, s *Scope[E, C]) ([]A, error) {
		values := make([]A, 0, len(items))
		for i, item := range items {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			r, err := fn(item).run(ctx, s.Env())
			if err != nil {
				return nil, &IndexedError{Index: i, Err: err}
			}
			v, err := TryTo(ctx, s, r)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return values, nil
	})
}

// TraverseParallel is like [Traverse], but evaluates the element flows with
// [Parallel].
func TraverseParallel[T, A, E, C any](
	opts ParallelOptions,
	items []T,
	fn func(T) Flow[A, E, C],
) Flow[[]A, E, C] {
	flows := make([]Flow[A, E, C], len(items))
	for i, item := range items {
		flows[i] = indexed(i, fn(item))
	}
	return Parallel(opts, flows...)
}

// indexed wraps the faults of f in an [*IndexedError].
func indexed[A, E, C any](i int, f Flow[A, E, C]) Flow[A, E, C] {
	return Of(func(ctx context.Context, s *Scope[E, C]) (A, error) {
		r, err := f.run(ctx, s.Env())
		if err != nil {
			var zero A
			return zero, &IndexedError{Index: i, Err: err}
		}
		return TryTo(ctx, s, r)
	})
}
