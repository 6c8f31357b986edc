// SPDX-License-Identifier: Apache-2.0

package resultflow

import (
	"context"

	"github.com/sam-fredrickson/resultflow/result"
)

// NoEnv is the environment type of flows that need none.
type NoEnv = struct{}

// A Builder defines the steps of a [Flow].
//
// It receives the evaluation context and a [Scope] bound to one evaluation.
// Steps are issued with [TryTo] and [Scope.Fail]; when either reports a
// failure, the builder returns the error it was given and Run turns it back
// into a failed Result.
//
// A, E and C are the success, failure and environment types of the flow.
type Builder[A, E, C any] = func(context.Context, *Scope[E, C]) (A, error)

// A Flow is a sequence of fallible steps that has not been executed yet.
//
// A Flow is immutable: every combinator returns a new Flow wrapping the
// original, which remains independently evaluable. Each call to [Flow.Run]
// re-executes the builder from scratch; nothing is cached between runs, so
// side effects inside steps repeat on every run.
//
// The zero Flow is not usable; Run reports [ErrZeroFlow].
type Flow[A, E, C any] struct {
	eval Builder[A, E, C]
}

// Of creates a Flow from a builder. The builder is not invoked until the
// flow is run.
//
// Example:
//
//	update := resultflow.Of(func(ctx context.Context, s *resultflow.Scope[RepoError, Deps]) (User, error) {
//	    user, err := resultflow.TryTo(ctx, s, s.Env().Repo.FindByID(ctx, 1))
//	    if err != nil {
//	        return User{}, err
//	    }
//	    if _, err := resultflow.TryTo(ctx, s, validate(user)); err != nil {
//	        return User{}, err
//	    }
//	    return resultflow.TryTo(ctx, s, s.Env().Repo.UpdateByID(ctx, user.ID, payload))
//	})
func Of[A, E, C any](build Builder[A, E, C]) Flow[A, E, C] {
	return Flow[A, E, C]{eval: build}
}

// From lifts a [Source] into a Flow whose environment type is C.
//
// The environment type is listed first so that it can be given explicitly
// while A and E are inferred:
//
//	found := resultflow.From[Deps](repo.FindByID(ctx, 1))
//
// To defer producing the source until evaluation, pass [Lazy] or [Defer], or
// use [FromFunc].
func From[C, A, E any](src Source[A, E]) Flow[A, E, C] {
	return Of(func(ctx context.Context, s *Scope[E, C]) (A, error) {
		return TryTo(ctx, s, src)
	})
}

// FromFunc creates a Flow from a function that produces its Source at
// evaluation time, given the flow's environment.
func FromFunc[A, E, C any](fn func(context.Context, C) Source[A, E]) Flow[A, E, C] {
	return Of(func(ctx context.Context, s *Scope[E, C]) (A, error) {
		return TryTo(ctx, s, Defer(func(ctx context.Context) Source[A, E] {
			return fn(ctx, s.Env())
		}))
	})
}

// Lift lifts a [Source] into a Flow that needs no environment.
func Lift[A, E any](src Source[A, E]) Flow[A, E, NoEnv] {
	return From[NoEnv](src)
}

// flowValue is implemented by every Flow instantiation.
type flowValue interface {
	isFlow()
}

func (Flow[A, E, C]) isFlow() {}

// IsFlow reports whether v is a Flow of any type.
func IsFlow(v any) bool {
	_, ok := v.(flowValue)
	return ok
}

// A RunOption configures a single evaluation.
type RunOption[C any] func(*runOptions[C])

type runOptions[C any] struct {
	env    C
	hasEnv bool
}

// WithEnv supplies the environment for an evaluation.
//
// Without it, Run uses the environment of the enclosing flow when its type
// matches, and the zero value of C otherwise.
func WithEnv[C any](env C) RunOption[C] {
	return func(o *runOptions[C]) {
		o.env = env
		o.hasEnv = true
	}
}

// Run evaluates the flow.
//
// It returns a successful Result if the builder completed, or a failed Result
// if a step reported a failure anywhere during evaluation. Any other error
// returned by the builder is a fault: it is returned as Run's error, and the
// Result is then meaningless. Callers can therefore tell an expected domain
// failure from an unexpected fault by which channel carries it.
//
// A fault leaves Run as the builder returned it, except that each enclosing
// [Named] flow wraps it in a [NamedError]; [errors.Is] and [errors.As] still
// reach the original error.
func (f Flow[A, E, C]) Run(ctx context.Context, opts ...RunOption[C]) (result.Result[A, E], error) {
	var o runOptions[C]
	for _, opt := range opts {
		opt(&o)
	}
	env := o.env
	if !o.hasEnv {
		env, _ = envFrom[C](ctx)
	}
	return f.run(ctx, env)
}

// Start evaluates the flow on a new goroutine and returns its [result.Future].
func (f Flow[A, E, C]) Start(ctx context.Context, opts ...RunOption[C]) *result.Future[A, E] {
	return result.Go(ctx, func(ctx context.Context) (result.Result[A, E], error) {
		return f.Run(ctx, opts...)
	})
}

// Await runs the flow, inheriting the environment from ctx. It makes every
// Flow a [Source].
func (f Flow[A, E, C]) Await(ctx context.Context) (result.Result[A, E], error) {
	return f.Run(ctx)
}

func (f Flow[A, E, C]) run(ctx context.Context, env C) (result.Result[A, E], error) {
	if f.eval == nil {
		return result.Result[A, E]{}, ErrZeroFlow
	}
	s := &Scope[E, C]{env: env}
	v, err := f.eval(withEnv(ctx, env), s)
	return settle(s, v, err)
}

// bind returns a Source that runs f with the given environment.
func (f Flow[A, E, C]) bind(env C) Source[A, E] {
	return SourceFunc[A, E](func(ctx context.Context) (result.Result[A, E], error) {
		return f.run(ctx, env)
	})
}
