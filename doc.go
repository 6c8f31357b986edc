// SPDX-License-Identifier: Apache-2.0

// Package resultflow composes operations that may fail into deferred,
// immutable flows, with retry policies and a periodic supervisor.
//
// # The Problem
//
// Code that calls repositories, validators and remote services spends most of
// its lines checking whether the last call failed. Expected failures ("user
// not found", "card declined") get mixed up with unexpected errors (a closed
// connection, a nil pointer), and retry loops and timers are rewritten for
// every call site.
//
// resultflow separates the two kinds of error and moves the branching into
// the library.
//
// # Core Concepts
//
// A [result.Result] holds either a success value A or a domain failure E. A
// [Flow] is a sequence of steps that, when run, produces one Result:
//
//	type Builder[A, E, C any] = func(context.Context, *Scope[E, C]) (A, error)
//
// Inside a builder each step is issued with [TryTo]. On success TryTo returns
// the value; on failure it records the failure in the [Scope] and returns an
// error, which the builder returns at once:
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
//
//	r, err := update.Run(ctx, resultflow.WithEnv(deps))
//
// Run reports a domain failure as a failed Result and a nil error. Any other
// error returned by the builder is a fault and comes back as Run's error, so
// callers tell the two apart by channel. Building a flow runs nothing, and
// every Run evaluates the builder again from scratch.
//
// A step can be anything that implements [Source]: a Result, a
// [result.Future], another Flow, or a function via [Lazy] and [Defer].
//
// # Environment
//
// The third type parameter C is the environment: dependencies such as
// repositories or clients that every step may need. It is supplied with
// [WithEnv] and read with [Scope.Env]. Nested flows with the same C inherit
// it. Flows that need none use [NoEnv].
//
// # Combinators
//
// [Map], [MapError], [Chain], [IfSuccess], [IfFailure] and [OrElse] derive
// new flows without changing the original. [Sequence], [Parallel] and
// [Traverse] combine several flows. [When], [WithTimeout] and
// [RecoverPanics] adapt a single one.
//
// # Retry
//
// [Retry] evaluates a flow again while it fails, as configured by a
// [RetryPolicy]: a [Condition] on the failure, a maximum number of retries, a
// [DelayStrategy] and a hook that runs before each retry.
//
//	flow := resultflow.Retry(fetchInvoice,
//	    resultflow.NewRetryPolicy[BillingError, Deps]().
//	        WithMaxRetries(3).
//	        WithDelay(resultflow.ExponentialBackoff(100*time.Millisecond)))
//
// # Periodic Execution
//
// [Flow.RunPeriodically] evaluates a flow on a fixed interval until it fails,
// optionally running a recovery action first, and returns a [Session] that
// can be interrupted.
//
// # Observability
//
// [Named] flows build a name path that appears in logs ([WithSlogging]),
// traces ([Traced]) and [Observer] callbacks. The otelflow package provides
// an OpenTelemetry Observer.
package resultflow
