// SPDX-License-Identifier: Apache-2.0

package resultflow

import (
	"context"

	"github.com/sam-fredrickson/resultflow/result"
)

// A Source is anything a step can be resolved from.
//
// [result.Result], [*result.Future], [Flow] and [SourceFunc] are all Sources,
// so a caller never needs to know which shape a step produces. Await returns
// the settled outcome; its error is a fault (cancellation, panic, or any
// other unexpected error), never a domain failure.
type Source[A, E any] interface {
	Await(ctx context.Context) (result.Result[A, E], error)
}

// SourceFunc adapts a function to a [Source].
type SourceFunc[A, E any] func(context.Context) (result.Result[A, E], error)

// Await calls f.
func (f SourceFunc[A, E]) Await(ctx context.Context) (result.Result[A, E], error) {
	return f(ctx)
}

// Lazy turns a function producing a Result into a [Source].
//
// The function is called each time the Source is awaited, not when Lazy is
// called.
//
// Example:
//
//	user := resultflow.Lazy(func(ctx context.Context) result.Result[User, RepoError] {
//	    return repo.FindByID(ctx, 1)
//	})
func Lazy[A, E any](fn func(context.Context) result.Result[A, E]) Source[A, E] {
	return SourceFunc[A, E](func(ctx context.Context) (result.Result[A, E], error) {
		return fn(ctx), nil
	})
}

// Defer turns a function producing any Source into a [Source].
//
// This is the thunk form: fn runs at evaluation time, and may return a
// Result, a Future or a Flow.
func Defer[A, E any](fn func(context.Context) Source[A, E]) Source[A, E] {
	return SourceFunc[A, E](func(ctx context.Context) (result.Result[A, E], error) {
		src := fn(ctx)
		if src == nil {
			return result.Result[A, E]{}, ErrNilSource
		}
		return src.Await(ctx)
	})
}

// Discard drops the success value of src, keeping only its outcome.
//
// It is useful for recovery actions, which only report whether they worked.
func Discard[A, E any](src Source[A, E]) Source[struct{}, E] {
	return SourceFunc[struct{}, E](func(ctx context.Context) (result.Result[struct{}, E], error) {
		r, err := src.Await(ctx)
		if err != nil {
			return result.Result[struct{}, E]{}, err
		}
		if r.IsFailure() {
			return result.Failure[struct{}](r.Err()), nil
		}
		return result.Success[struct{}, E](struct{}{}), nil
	})
}
