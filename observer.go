// SPDX-License-Identifier: Apache-2.0

package resultflow

import (
	"context"
	"fmt"
	"time"
)

// Outcome classifies how an evaluation ended.
type Outcome int

const (
	// OutcomeSuccess means the flow produced a value.
	OutcomeSuccess Outcome = iota + 1
	// OutcomeFailure means a step reported a domain failure.
	OutcomeFailure
	// OutcomeFault means the evaluation ended with an unhandled error.
	OutcomeFault
)

// String returns the lower-case name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeFault:
		return "fault"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// MarshalText implements encoding.TextMarshaler, so outcomes appear by name
// in JSON traces.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(b []byte) error {
	switch string(b) {
	case "success":
		*o = OutcomeSuccess
	case "failure":
		*o = OutcomeFailure
	case "fault":
		*o = OutcomeFault
	default:
		return fmt.Errorf("unknown outcome %q", b)
	}
	return nil
}

// outcomeOf classifies the return values of an evaluation.
func outcomeOf(failed bool, err error) Outcome {
	switch {
	case err != nil:
		return OutcomeFault
	case failed:
		return OutcomeFailure
	default:
		return OutcomeSuccess
	}
}

// An Observer receives lifecycle callbacks from named flows, retry loops and
// periodic sessions. It is the hook for metrics and distributed tracing.
//
// Implementations must be safe for concurrent use.
type Observer interface {
	// OnRunStart is called when a named flow starts. The returned context is
	// used for the evaluation, so observers may attach values such as spans.
	OnRunStart(ctx context.Context, names []string) context.Context

	// OnRunFinish is called with the context returned by OnRunStart when the
	// named flow ends.
	OnRunFinish(ctx context.Context, names []string, outcome Outcome, d time.Duration)

	// OnRetry is called before retry number attempt, after its wait has been
	// computed.
	OnRetry(ctx context.Context, names []string, attempt int, delay time.Duration)

	// OnSessionStop is called once when a periodic session ends.
	OnSessionStop(ctx context.Context, sessionID string, cause Cause, ticks int)
}

// NoopObserver ignores every callback. Embed it to implement only some of
// the [Observer] methods.
type NoopObserver struct{}

func (NoopObserver) OnRunStart(ctx context.Context, _ []string) context.Context { return ctx }

func (NoopObserver) OnRunFinish(context.Context, []string, Outcome, time.Duration) {}

func (NoopObserver) OnRetry(context.Context, []string, int, time.Duration) {}

func (NoopObserver) OnSessionStop(context.Context, string, Cause, int) {}

// CompositeObserver fans callbacks out to several observers in order.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an observer that notifies each of observers.
// Nil entries are skipped.
func NewCompositeObserver(observers ...Observer) *CompositeObserver {
	c := &CompositeObserver{}
	for _, o := range observers {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
	return c
}

func (c *CompositeObserver) OnRunStart(ctx context.Context, names []string) context.Context {
	for _, o := range c.observers {
		ctx = o.OnRunStart(ctx, names)
	}
	return ctx
}

func (c *CompositeObserver) OnRunFinish(ctx context.Context, names []string, outcome Outcome, d time.Duration) {
	for _, o := range c.observers {
		o.OnRunFinish(ctx, names, outcome, d)
	}
}

func (c *CompositeObserver) OnRetry(ctx context.Context, names []string, attempt int, delay time.Duration) {
	for _, o := range c.observers {
		o.OnRetry(ctx, names, attempt, delay)
	}
}

func (c *CompositeObserver) OnSessionStop(ctx context.Context, sessionID string, cause Cause, ticks int) {
	for _, o := range c.observers {
		o.OnSessionStop(ctx, sessionID, cause, ticks)
	}
}

// WithObserver evaluates f with obs receiving the lifecycle callbacks of f
// and of the flows nested in it.
//
// Example:
//
//	flow := resultflow.WithObserver(otelflow.New(tp, mp), checkout)
func WithObserver[A, E, C any](obs Observer, f Flow[A, E, C]) Flow[A, E, C] {
	if obs == nil {
		obs = NoopObserver{}
	}
	return Of(func(ctx context.Context, s *Scope[E, C]) (A, error) {
		fc := deriveFlowCtx(ctx)
		fc.observer = obs
		return TryTo(fc, s, f.bind(s.Env()))
	})
}

// observerFrom returns the observer carried by ctx.
func observerFrom(ctx context.Context) Observer {
	if fc := getFlowCtx(ctx); fc != nil && fc.observer != nil {
		return fc.observer
	}
	return NoopObserver{}
}
