// SPDX-License-Identifier: Apache-2.0

package resultflow

import (
	"context"
)

// Map transforms the success value of a flow.
//
// A failure of f short-circuits: fn is not called and the same failure is
// propagated.
//
// Example:
//
//	names := resultflow.Map(findUser, func(u User) string { return u.Name })
func Map[A, B, E, C any](f Flow[A, E, C], fn func(A) B) Flow[B, E, C] {
	return Of(func(ctx context.Context, s *Scope[E, C]) (B, error) {
		a, err := TryTo(ctx, s, f.bind(s.Env()))
		if err != nil {
			var zero B
			return zero, err
		}
		return fn(a), nil
	})
}

// MapError transforms the failure of a flow. Success values pass through
// unchanged.
func MapError[A, E, F, C any](f Flow[A, E, C], fn func(E) F) Flow[A, F, C] {
	return Of(func(ctx context.Context, s *Scope[F, C]) (A, error) {
		return TryMapError(ctx, s, f.bind(s.Env()), fn)
	})
}

// Chain continues a flow with a step that depends on its value.
//
// fn may return any [Source]: a Result, a Future or another Flow. Its outcome
// becomes the outcome of the chained flow. If f fails, fn is never called.
//
// Both steps share the failure type E; use [MapError] first to bring
// differing failure types together.
//
// Example:
//
//	invoice := resultflow.Chain(findOrder, func(ctx context.Context, o Order) resultflow.Source[Invoice, BillingError] {
//	    return billing.Issue(ctx, o)
//	})
func Chain[A, B, E, C any](f Flow[A, E, C], fn func(context.Context, A) Source[B, E]) Flow[B, E, C] {
	return Of(func(ctx context.Context, s *Scope[E, C]) (B, error) {
		a, err := TryTo(ctx, s, f.bind(s.Env()))
		if err != nil {
			var zero B
			return zero, err
		}
		return TryTo(ctx, s, fn(ctx, a))
	})
}

// IfSuccess calls fn with the value of a successful flow, for its side
// effect only. The outcome of f is preserved unchanged.
func IfSuccess[A, E, C any](f Flow[A, E, C], fn func(context.Context, A)) Flow[A, E, C] {
	return Of(func(ctx context.Context, s *Scope[E, C]) (A, error) {
		a, err := TryTo(ctx, s, f.bind(s.Env()))
		if err != nil {
			return a, err
		}
		fn(ctx, a)
		return a, nil
	})
}

// IfFailure calls fn with the failure of a failed flow, for its side effect
// only. The flow remains failed with the same failure.
//
// Faults are not failures and do not reach fn.
func IfFailure[A, E, C any](f Flow[A, E, C], fn func(context.Context, E)) Flow[A, E, C] {
	return Of(func(ctx context.Context, s *Scope[E, C]) (A, error) {
		r, err := f.run(ctx, s.Env())
		if err != nil {
			var zero A
			return zero, err
		}
		if r.IsFailure() {
			fn(ctx, r.Err())
		}
		return TryTo(ctx, s, r)
	})
}

// OrElse replaces the failure of a flow with the outcome of an alternative.
//
// fn is called only when f fails, and may return any [Source]. The
// alternative's failure type becomes the failure type of the new flow. A
// successful f keeps its value and fn is never called.
//
// Example:
//
//	cfg := resultflow.OrElse(readPrimary, func(ctx context.Context, err DBError) resultflow.Source[Config, DBError] {
//	    if err.Transient {
//	        return readReplica
//	    }
//	    return result.Failure[Config](err)
//	})
func OrElse[A, E, F, C any](f Flow[A, E, C], fn func(context.Context, E) Source[A, F]) Flow[A, F, C] {
	return Of(func(ctx context.Context, s *Scope[F, C]) (A, error) {
		r, err := f.run(ctx, s.Env())
		if err != nil {
			var zero A
			return zero, err
		}
		if r.IsSuccess() {
			return r.Value(), nil
		}
		return TryTo(ctx, s, fn(ctx, r.Err()))
	})
}
