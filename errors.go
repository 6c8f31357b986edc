// SPDX-License-Identifier: Apache-2.0

package resultflow

import (
	"context"
	"errors"
	"runtime/debug"

	"github.com/sam-fredrickson/resultflow/result"
)

// ErrZeroFlow is the fault reported when the zero Flow is run.
var ErrZeroFlow = errors.New("resultflow: run of zero Flow")

// ErrNilSource is the fault reported when a step resolves a nil Source.
var ErrNilSource = errors.New("resultflow: nil source")

// RecoverPanics wraps a flow so that a panic during its evaluation becomes a
// [*result.PanicError] fault instead of unwinding the caller.
//
// The panic is still a fault, not a domain failure: [OrElse], [IfFailure]
// and [Retry] do not see it. This is useful for periodic sessions, where an
// unrecovered panic would take down the whole process.
func RecoverPanics[A, E, C any](f Flow[A, E, C]) Flow[A, E, C] {
	return Of(func(ctx context.Context, s *Scope[E, C]) (a A, err error) {
		defer func() {
			if r := recover(); r != nil {
				var zero A
				a, err = zero, &result.PanicError{Value: r, Stack: debug.Stack()}
			}
		}()
		return TryTo(ctx, s, f.bind(s.Env()))
	})
}

// FallbackTo returns an [OrElse] handler that always answers with alt,
// regardless of the failure.
//
// Example:
//
//	flow := resultflow.OrElse(readPrimary, resultflow.FallbackTo[Config, DBError](readReplica))
func FallbackTo[A, E, F any](alt Source[A, F]) func(context.Context, E) Source[A, F] {
	return func(context.Context, E) Source[A, F] {
		return alt
	}
}
