// SPDX-License-Identifier: Apache-2.0

package resultflow

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/sam-fredrickson/resultflow/result"
)

// DefaultMaxRetries is the number of retries of a new [RetryPolicy].
const DefaultMaxRetries = 1

// BeforeRetryFunc is called before retry number attempt (1-based) with the
// failure of the previous attempt and the flow's environment.
type BeforeRetryFunc[E, C any] = func(ctx context.Context, failure E, attempt int, env C)

// A RetryPolicy describes when and how a failed flow is evaluated again.
//
// RetryPolicy is an immutable value: each With method returns a modified
// copy, so a policy can be shared and specialized freely.
//
// Example:
//
//	policy := resultflow.NewRetryPolicy[RepoError, Deps]().
//	    WithMaxRetries(3).
//	    WithCondition(func(e RepoError) bool { return e.Transient }).
//	    WithDelay(resultflow.ExponentialBackoff(100*time.Millisecond,
//	        resultflow.WithMaxDelay(2*time.Second)))
//
//	flow := resultflow.Retry(findUser, policy)
type RetryPolicy[E, C any] struct {
	condition   Condition[E]
	beforeRetry BeforeRetryFunc[E, C]
	maxRetries  int
	delay       DelayStrategy
	clock       clockwork.Clock
}

// NewRetryPolicy returns a policy that retries every failure once, without
// waiting.
func NewRetryPolicy[E, C any]() RetryPolicy[E, C] {
	return RetryPolicy[E, C]{
		condition:  Always[E](),
		maxRetries: DefaultMaxRetries,
		delay:      Immediate(),
	}
}

// WithCondition retries only failures accepted by cond. A nil cond accepts
// every failure.
func (p RetryPolicy[E, C]) WithCondition(cond Condition[E]) RetryPolicy[E, C] {
	if cond == nil {
		cond = Always[E]()
	}
	p.condition = cond
	return p
}

// WithBeforeRetry sets a hook that runs before each retry, before the wait.
func (p RetryPolicy[E, C]) WithBeforeRetry(fn BeforeRetryFunc[E, C]) RetryPolicy[E, C] {
	p.beforeRetry = fn
	return p
}

// WithMaxRetries sets the number of retries after the initial attempt. Zero
// or less disables retrying.
func (p RetryPolicy[E, C]) WithMaxRetries(n int) RetryPolicy[E, C] {
	p.maxRetries = n
	return p
}

// WithDelay sets how long to wait before each retry.
func (p RetryPolicy[E, C]) WithDelay(s DelayStrategy) RetryPolicy[E, C] {
	p.delay = s
	return p
}

// WithClock sets the clock used for waiting. Tests pass a
// [clockwork.FakeClock].
func (p RetryPolicy[E, C]) WithClock(clock clockwork.Clock) RetryPolicy[E, C] {
	p.clock = clock
	return p
}

// MaxRetries returns the configured number of retries.
func (p RetryPolicy[E, C]) MaxRetries() int {
	return p.maxRetries
}

// Delay returns the configured delay strategy.
func (p RetryPolicy[E, C]) Delay() DelayStrategy {
	return p.delay
}

// Retry evaluates f again while it fails, as described by p.
//
// Each attempt is a full evaluation of f. A failure is retried when the
// policy's condition accepts it and fewer than MaxRetries retries have been
// made; before each retry the BeforeRetry hook runs and the delay for that
// retry number elapses. f is therefore evaluated at most MaxRetries+1 times,
// and the outcome is that of the last attempt.
//
// Faults are never retried. If ctx is cancelled while waiting, the
// cancellation is returned as a fault.
//
// Combinators applied to the returned flow only see the final outcome.
func Retry[A, E, C any](f Flow[A, E, C], p RetryPolicy[E, C]) Flow[A, E, C] {
	if p.condition == nil {
		p.condition = Always[E]()
	}
	clock := p.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return Of(func(ctx context.Context, s *Scope[E, C]) (A, error) {
		var (
			r   result.Result[A, E]
			err error
		)
		for retries := 0; ; retries++ {
			r, err = f.run(ctx, s.Env())
			if err != nil {
				var zero A
				return zero, err
			}
			if r.IsSuccess() || !p.condition(r.Err()) || retries >= p.maxRetries {
				break
			}

			attempt := retries + 1
			if p.beforeRetry != nil {
				p.beforeRetry(ctx, r.Err(), attempt, s.Env())
			}

			wait := p.delay.wait(attempt)
			Slogger(ctx).DebugContext(ctx, "retrying flow",
				"names", Names(ctx),
				"attempt", attempt,
				"failure", r.Err(),
				"delay", wait,
			)
			observerFrom(ctx).OnRetry(ctx, Names(ctx), attempt, wait)

			if wait > 0 {
				if err := sleep(ctx, clock, wait); err != nil {
					var zero A
					return zero, err
				}
			}
		}
		return TryTo(ctx, s, r)
	})
}
