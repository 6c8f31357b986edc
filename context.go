// SPDX-License-Identifier: Apache-2.0

package resultflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// flowCtxKey is the context key for retrieving the flowCtx.
type flowCtxKey struct{}

// flowCtx is an internal context type that consolidates all flow-specific
// context values into a single lookup.
//
// The flowCtx embeds the parent context.Context to properly delegate
// cancellation, deadlines, and non-flow context values.
type flowCtx struct {
	context.Context

	// env is the environment of the innermost running flow, stored untyped
	// so that nested flows with a matching env type can inherit it.
	env    any
	hasEnv bool

	// trace is the active execution trace, or nil.
	trace *trace

	// names is the flow name stack in hierarchical order (oldest first).
	names []string

	// slogger is the active structured logger.
	slogger *slog.Logger

	// observer receives lifecycle callbacks for named flows and retries.
	observer Observer
}

// Value implements context.Context.Value by intercepting flowCtxKey lookups
// and delegating all other keys to the embedded parent context.
func (f *flowCtx) Value(key any) any {
	_, ok := key.(flowCtxKey)
	if !ok {
		return f.Context.Value(key)
	}
	return f
}

// newFlowCtx creates a new flowCtx that wraps parent and inherits flow-specific
// state from origin. A nil origin yields the defaults: no env, no trace, no
// names, slog.Default() and a no-op observer.
func newFlowCtx(parent context.Context, origin *flowCtx) *flowCtx {
	if origin == nil {
		origin = &flowCtx{
			Context:  parent,
			slogger:  slog.Default(),
			observer: NoopObserver{},
		}
	}
	return &flowCtx{
		Context:  parent,
		env:      origin.env,
		hasEnv:   origin.hasEnv,
		trace:    origin.trace,
		names:    origin.names,
		slogger:  origin.slogger,
		observer: origin.observer,
	}
}

// getFlowCtx returns the flowCtx carried by ctx, or nil.
func getFlowCtx(ctx context.Context) *flowCtx {
	f, _ := ctx.Value(flowCtxKey{}).(*flowCtx)
	return f
}

// deriveFlowCtx returns a child flowCtx of ctx that can be modified freely.
func deriveFlowCtx(ctx context.Context) *flowCtx {
	return newFlowCtx(ctx, getFlowCtx(ctx))
}

// withEnv returns a context carrying env for nested flow evaluations.
func withEnv(ctx context.Context, env any) context.Context {
	f := deriveFlowCtx(ctx)
	f.env = env
	f.hasEnv = true
	return f
}

// envFrom returns the env carried by ctx if it has type C.
func envFrom[C any](ctx context.Context) (C, bool) {
	f := getFlowCtx(ctx)
	if f == nil || !f.hasEnv {
		var zero C
		return zero, false
	}
	c, ok := f.env.(C)
	return c, ok
}

// WithTimeout wraps a flow with a timeout.
//
// The flow is evaluated with a derived context that is cancelled after the
// given duration. Steps that observe the cancelled context surface
// [context.DeadlineExceeded] as a fault, not as a domain failure.
//
// Example:
//
//	flow := resultflow.WithTimeout(5*time.Second, fetchInvoice)
func WithTimeout[A, E, C any](timeout time.Duration, f Flow[A, E, C]) Flow[A, E, C] {
	return Of(func(ctx context.Context, s *Scope[E, C]) (A, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return TryTo(ctx, s, f.bind(s.Env()))
	})
}

// sleep pauses for d on the given clock, respecting ctx cancellation.
func sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
