// SPDX-License-Identifier: Apache-2.0

package resultflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sam-fredrickson/resultflow/result"
)

// A Scope is bound to a single evaluation of a flow and tracks whether a
// step has failed.
//
// Once a failure has been reported, the scope is interrupted: every further
// [TryTo] returns the same interruption without evaluating its source, and
// the evaluation ends as that failure even if the builder ignores the error.
type Scope[E, C any] struct {
	env C

	mu          sync.Mutex
	interrupted *interruption
	failure     E
}

// Env returns the environment of the evaluation.
func (s *Scope[E, C]) Env() C {
	return s.env
}

// Failed reports whether a step of this evaluation has failed.
func (s *Scope[E, C]) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interrupted != nil
}

// Fail reports failure as the outcome of the evaluation and returns the
// interruption the builder must return.
//
// Only the first failure of an evaluation is kept.
//
// Example:
//
//	if order.Total < 0 {
//	    return Order{}, s.Fail(ValidationError{Field: "total"})
//	}
func (s *Scope[E, C]) Fail(failure E) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interrupted == nil {
		s.failure = failure
		s.interrupted = &interruption{owner: s, failure: failure}
	}
	return s.interrupted
}

// pending returns the interruption of s, or nil.
func (s *Scope[E, C]) pending() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interrupted == nil {
		return nil
	}
	return s.interrupted
}

// TryTo resolves src and returns its value.
//
// If src fails, the scope records the failure and TryTo returns an
// interruption error; the builder should return it immediately. If src
// produces a fault, the fault is returned unchanged.
//
// Example:
//
//	user, err := resultflow.TryTo(ctx, s, repo.FindByID(ctx, id))
//	if err != nil {
//	    return Receipt{}, err
//	}
func TryTo[A, E, C any](ctx context.Context, s *Scope[E, C], src Source[A, E]) (A, error) {
	return TryMapError(ctx, s, src, func(e E) E { return e })
}

// TryMapError is like [TryTo] for a source whose failure type differs from
// the flow's; mapErr converts the failure before it is recorded.
//
// Example:
//
//	rate, err := resultflow.TryMapError(ctx, s, fx.Rate(ctx, "EUR"), func(e FXError) BillingError {
//	    return BillingError{Reason: "fx: " + e.Code}
//	})
func TryMapError[A, F, E, C any](
	ctx context.Context,
	s *Scope[E, C],
	src Source[A, F],
	mapErr func(F) E,
) (A, error) {
	var zero A
	if err := s.pending(); err != nil {
		return zero, err
	}
	if src == nil {
		return zero, ErrNilSource
	}
	r, err := src.Await(ctx)
	if err != nil {
		return zero, err
	}
	if r.IsSuccess() {
		return r.Value(), nil
	}
	return zero, s.Fail(mapErr(r.Err()))
}

// interruption is the error that unwinds a builder after a failed step. It
// is matched only by the scope that created it.
type interruption struct {
	owner   any
	failure any
}

func (i *interruption) Error() string {
	return fmt.Sprintf("flow step failed: %v", i.failure)
}

// settle converts the builder's return values into the outcome of Run.
func settle[A, E, C any](s *Scope[E, C], v A, err error) (result.Result[A, E], error) {
	if err != nil {
		var intr *interruption
		if !errors.As(err, &intr) || intr.owner != any(s) {
			return result.Result[A, E]{}, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interrupted != nil {
		return result.Failure[A](s.failure), nil
	}
	return result.Success[A, E](v), nil
}
