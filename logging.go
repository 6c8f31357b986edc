// SPDX-License-Identifier: Apache-2.0

package resultflow

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Slogger returns the [slog.Logger] from the context, or [slog.Default] if none is set.
//
// This is useful for custom logging decorators and for builders that want
// to log with the flow's logger.
//
// Example:
//
//	resultflow.Of(func(ctx context.Context, s *resultflow.Scope[RepoError, Deps]) (User, error) {
//	    resultflow.Slogger(ctx).Debug("loading user", "names", resultflow.Names(ctx))
//	    return resultflow.TryTo(ctx, s, s.Env().Repo.FindByID(ctx, 1))
//	})
func Slogger(ctx context.Context) *slog.Logger {
	if fc := getFlowCtx(ctx); fc != nil && fc.slogger != nil {
		return fc.slogger
	}
	return slog.Default()
}

// WithSlogger evaluates f with logger as its structured logger.
//
// The logger is used by [WithSlogging] and [Retry] in f and the flows nested
// in it. This is typically applied once at the root of a flow.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	flow := resultflow.WithSlogger(logger,
//	    resultflow.Named("checkout",
//	        resultflow.WithSlogging(slog.LevelInfo, checkout)))
func WithSlogger[A, E, C any](logger *slog.Logger, f Flow[A, E, C]) Flow[A, E, C] {
	return Of(func(ctx context.Context, s *Scope[E, C]) (A, error) {
		fc := deriveFlowCtx(ctx)
		fc.slogger = logger
		return TryTo(fc, s, f.bind(s.Env()))
	})
}

// WithSlogging logs when f starts and finishes.
//
// The records carry the dotted path of flow names as "name" ("<unknown>"
// outside named flows). The finish record adds "outcome" and "duration_ms";
// a failure is added as "failure" and a fault as "error".
//
// Example:
//
//	flow := resultflow.Named("sync",
//	    resultflow.WithSlogging(slog.LevelInfo,
//	        resultflow.Named("fetch",
//	            resultflow.WithSlogging(slog.LevelDebug, fetch))))
//
// This would emit records similar to:
//
//	{"level":"INFO","msg":"starting flow","name":"sync"}
//	{"level":"DEBUG","msg":"starting flow","name":"sync.fetch"}
//	{"level":"DEBUG","msg":"finished flow","name":"sync.fetch","outcome":"success","duration_ms":5}
//	{"level":"INFO","msg":"finished flow","name":"sync","outcome":"success","duration_ms":10}
func WithSlogging[A, E, C any](level slog.Level, f Flow[A, E, C]) Flow[A, E, C] {
	return Of(func(ctx context.Context, s *Scope[E, C]) (A, error) {
		fullName := "<unknown>"
		if names := Names(ctx); len(names) > 0 {
			fullName = strings.Join(names, ".")
		}
		logger := Slogger(ctx)

		logger.Log(ctx, level, "starting flow", "name", fullName)
		start := time.Now()
		r, err := f.run(ctx, s.Env())
		duration := time.Since(start)

		attrs := []any{
			"name", fullName,
			"outcome", outcomeOf(r.IsFailure(), err).String(),
			"duration_ms", duration.Milliseconds(),
		}
		switch {
		case err != nil:
			attrs = append(attrs, "error", err)
		case r.IsFailure():
			attrs = append(attrs, "failure", r.Err())
		}
		logger.Log(ctx, level, "finished flow", attrs...)

		if err != nil {
			var zero A
			return zero, err
		}
		return TryTo(ctx, s, r)
	})
}
