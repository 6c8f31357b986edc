// SPDX-License-Identifier: Apache-2.0

package resultflow

import (
	"context"
	"errors"
)

// A Condition decides whether a failure qualifies, for example whether it is
// worth retrying.
type Condition[E any] = func(E) bool

// Always returns a condition that accepts every failure.
func Always[E any]() Condition[E] {
	return func(E) bool { return true }
}

// Not negates a condition.
//
// Example:
//
//	resultflow.Not(isPermanent)
func Not[E any](cond Condition[E]) Condition[E] {
	return func(e E) bool {
		return !cond(e)
	}
}

// And combines conditions with logical AND, short-circuiting on the first
// rejection. With no conditions it accepts everything.
func And[E any](conds ...Condition[E]) Condition[E] {
	return func(e E) bool {
		for _, c := range conds {
			if !c(e) {
				return false
			}
		}
		return true
	}
}

// Or combines conditions with logical OR, short-circuiting on the first
// acceptance. With no conditions it rejects everything.
//
// Example:
//
//	resultflow.Or(isTimeout, isUnavailable)
func Or[E any](conds ...Condition[E]) Condition[E] {
	return func(e E) bool {
		for _, c := range conds {
			if c(e) {
				return true
			}
		}
		return false
	}
}

// ErrorIs returns a condition for flows whose failure type is error. It
// accepts a failure matching any of targets according to errors.Is.
func ErrorIs(targets ...error) Condition[error] {
	return func(err error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}
}

// When evaluates f only if pred accepts the environment. Otherwise it
// succeeds with the zero value of A without evaluating f.
//
// Example:
//
//	warm := resultflow.When(func(d Deps) bool { return d.CacheEnabled }, warmCache)
func When[A, E, C any](pred func(C) bool, f Flow[A, E, C]) Flow[A, E, C] {
	return Of(func(ctx context.Context, s *Scope[E, C]) (A, error) {
		if !pred(s.Env()) {
			var zero A
			return zero, nil
		}
		return TryTo(ctx, s, f.bind(s.Env()))
	})
}

// Unless evaluates f only if pred rejects the environment.
func Unless[A, E, C any](pred func(C) bool, f Flow[A, E, C]) Flow[A, E, C] {
	return When(func(c C) bool { return !pred(c) }, f)
}
