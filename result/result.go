// SPDX-License-Identifier: Apache-2.0

// Package result provides a two-outcome value, [Result], and its asynchronous
// counterpart, [Future].
//
// A Result is either a success carrying a value of type A, or a failure
// carrying a value of type E. Unlike a Go error, E may be any type: a struct
// describing a domain failure, an enum, or an error.
//
//	r := result.Success[int, string](42)
//	if r.IsSuccess() {
//	    fmt.Println(r.Value())
//	}
//
// Results are immutable once constructed.
package result

import (
	"context"
	"fmt"
)

// Result is either a success holding a value, or a failure holding an error
// value of type E.
//
// The zero Result is a failure whose error is the zero value of E.
type Result[A, E any] struct {
	value A
	err   E
	ok    bool
}

// Success returns a successful Result holding v.
func Success[A, E any](v A) Result[A, E] {
	return Result[A, E]{value: v, ok: true}
}

// Failure returns a failed Result holding e.
func Failure[A, E any](e E) Result[A, E] {
	return Result[A, E]{err: e}
}

// Of converts a conventional Go (value, error) pair into a Result.
//
// A nil error produces a success; anything else a failure.
func Of[A any](v A, err error) Result[A, error] {
	if err != nil {
		return Failure[A](err)
	}
	return Success[A, error](v)
}

// IsSuccess reports whether r holds a value.
func (r Result[A, E]) IsSuccess() bool {
	return r.ok
}

// IsFailure reports whether r holds an error value.
func (r Result[A, E]) IsFailure() bool {
	return !r.ok
}

// Value returns the success value, or the zero value of A for a failure.
func (r Result[A, E]) Value() A {
	return r.value
}

// Err returns the failure value, or the zero value of E for a success.
func (r Result[A, E]) Err() E {
	return r.err
}

// Get returns the value, the failure and whether r is a success.
func (r Result[A, E]) Get() (A, E, bool) {
	return r.value, r.err, r.ok
}

// Await returns r itself. It lets a settled Result stand wherever an
// asynchronous result is accepted.
func (r Result[A, E]) Await(context.Context) (Result[A, E], error) {
	return r, nil
}

// String formats r as "Success(v)" or "Failure(e)".
func (r Result[A, E]) String() string {
	if r.ok {
		return fmt.Sprintf("Success(%v)", r.value)
	}
	return fmt.Sprintf("Failure(%v)", r.err)
}
