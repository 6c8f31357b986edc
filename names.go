// SPDX-License-Identifier: Apache-2.0

package resultflow

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"
)

// NamedError wraps a fault with the name of the flow it escaped from.
//
// Only faults are wrapped; domain failures are values of E and pass through
// [Named] untouched. Use [errors.As] to inspect it.
type NamedError struct {
	// Name is the name of the flow that faulted.
	Name string
	// Err is the underlying fault.
	Err error
}

// Error returns the formatted error message.
func (e NamedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e NamedError) Unwrap() error {
	return e.Err
}

// Names returns a copy of the flow name stack of ctx, oldest first, or nil
// if ctx is not inside a named flow.
//
// This is useful for custom logging and observers.
func Names(ctx context.Context) []string {
	fc := getFlowCtx(ctx)
	if fc == nil || len(fc.names) == 0 {
		return nil
	}
	return slices.Clone(fc.names)
}

// Named gives a flow a name.
//
// The name is pushed onto the name stack of the context, so nested names
// form a path such as "checkout.charge.authorize". A named flow:
//   - records an event when it runs inside [Traced]
//   - reports start and finish to the active [Observer]
//   - wraps its faults in a [NamedError]
//
// Example:
//
//	checkout := resultflow.Named("checkout", resultflow.Chain(
//	    resultflow.Named("reserve", reserveStock),
//	    charge,
//	))
func Named[A, E, C any](name string, f Flow[A, E, C]) Flow[A, E, C] {
	return Of(func(ctx context.Context, s *Scope[E, C]) (A, error) {
		fc := deriveFlowCtx(ctx)
		fc.names = append(slices.Clip(fc.names), name)
		names := fc.names

		tr := fc.trace
		var idx eventIdx
		if tr != nil {
			idx = tr.newEvent(names)
		}

		runCtx := fc.observer.OnRunStart(fc, names)
		start := time.Now()
		r, err := f.run(runCtx, s.Env())
		elapsed := time.Since(start)

		outcome := outcomeOf(r.IsFailure(), err)
		if tr != nil {
			tr.recordFinish(idx, outcome, describe(r, err))
		}
		fc.observer.OnRunFinish(runCtx, names, outcome, elapsed)

		if err != nil {
			var zero A
			return zero, NamedError{Name: name, Err: err}
		}
		return TryTo(ctx, s, r)
	})
}

type autoNamedOptions struct {
	callerSkip int
}

// An AutoNamedOption is a function option for [AutoNamed].
type AutoNamedOption func(*autoNamedOptions)

// SkipCaller adds a delta to the number of skipped stack frames.
//
// This is useful when AutoNamed is called from a helper, so that the helper's
// caller gives the name instead.
//
// Example:
//
//	func ChargeCard() resultflow.Flow[Receipt, PaymentError, Deps] {
//	    return instrumented(charge)
//	}
//
//	func instrumented[A any](f resultflow.Flow[A, PaymentError, Deps]) resultflow.Flow[A, PaymentError, Deps] {
//	    // Skip instrumented so AutoNamed picks ChargeCard instead
//	    return resultflow.AutoNamed(f, resultflow.SkipCaller(1))
//	}
func SkipCaller(delta int) AutoNamedOption {
	return func(o *autoNamedOptions) {
		o.callerSkip += delta
	}
}

// AutoNamed is [Named] with the name of the calling function.
//
// Example:
//
//	func FindUser(id int) resultflow.Flow[User, RepoError, Deps] {
//	    return resultflow.AutoNamed(resultflow.FromFunc(...)) // named "FindUser"
//	}
//
// AutoNamed only works when called directly from a named function; from a
// closure it yields names such as "func1".
func AutoNamed[A, E, C any](f Flow[A, E, C], opts ...AutoNamedOption) Flow[A, E, C] {
	return autoNamed(f, Named[A, E, C], opts...)
}

func autoNamed[T any](thing T, namer func(string, T) T, opts ...AutoNamedOption) T {
	const minimumCallerSkip = 2
	config := autoNamedOptions{callerSkip: minimumCallerSkip}
	for _, opt := range opts {
		opt(&config)
	}

	pc, _, _, ok := runtime.Caller(config.callerSkip)
	if !ok {
		return thing
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return thing
	}
	return namer(extractFunctionName(fn.Name()), thing)
}

// extractFunctionName extracts the simple function name from a full Go function path.
//
// Examples:
//   - "github.com/sam-fredrickson/resultflow.FindUser" -> "FindUser"
//   - "main.(*Server).HandleRequest" -> "HandleRequest"
//   - "github.com/user/pkg.init.0" -> "0"
//   - "github.com/user/pkg.Load[...]" -> "Load"
func extractFunctionName(fullName string) string {
	name := fullName[strings.LastIndex(fullName, "/")+1:]
	name, _, _ = strings.Cut(name, "[")
	if idx := strings.LastIndex(name, "."); idx != -1 {
		name = name[idx+1:]
	}
	return name
}
