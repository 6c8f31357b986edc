// SPDX-License-Identifier: Apache-2.0

package resultflow

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// errParallelFailure cancels the sibling evaluations of a Parallel flow after
// one of them fails. It never leaves Parallel.
var errParallelFailure = errors.New("resultflow: parallel branch failed")

// Sequence evaluates flows in order, one at a time, and collects their values.
//
// The first failure stops the sequence; later flows are not evaluated.
//
// Example:
//
//	boot := resultflow.Sequence(
//	    validateConfig,
//	    openDatabase,
//	    startServer,
//	)
func Sequence[A, E, C any](flows ...Flow[A, E, C]) Flow[[]A, E, C] {
	return Of(func(ctx context.Context, s *Scope[E, C]) ([]A, error) {
		values := make([]A, 0, len(flows))
		for _, f := range flows {
			v, err := TryTo(ctx, s, f.bind(s.Env()))
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return values, nil
	})
}

// ParallelOptions specifies how flows are evaluated concurrently.
type ParallelOptions struct {
	// Limit controls how many goroutines may run.
	//
	// Numbers less than or equal to zero indicate no limit.
	Limit int
}

// Parallel evaluates flows concurrently, each on its own goroutine, and
// collects their values in argument order.
//
// Each flow is an independent evaluation sharing the environment. The first
// failure or fault cancels the context of the others. If any flow failed, the
// result is the failure of the flow with the lowest index; otherwise the
// first fault is returned.
//
// Example:
//
//	profiles := resultflow.Parallel(
//	    resultflow.ParallelOptions{Limit: 4},
//	    fetchProfile(1), fetchProfile(2), fetchProfile(3),
//	)
func Parallel[A, E, C any](opts ParallelOptions, flows ...Flow[A, E, C]) Flow[[]A, E, C] {
	return Of(func(ctx context.Context, s *Scope[E, C]) ([]A, error) {
		if err := s.pending(); err != nil {
			return nil, err
		}

		group, subCtx := errgroup.WithContext(ctx)
		if opts.Limit > 0 {
			group.SetLimit(opts.Limit)
		}

		values := make([]A, len(flows))
		failed := make([]bool, len(flows))
		failures := make([]E, len(flows))
		var mu sync.Mutex

		for i, f := range flows {
			group.Go(func() error {
				r, err := f.run(subCtx, s.Env())
				if err != nil {
					return err
				}
				if r.IsFailure() {
					mu.Lock()
					failed[i], failures[i] = true, r.Err()
					mu.Unlock()
					return errParallelFailure
				}
				values[i] = r.Value()
				return nil
			})
		}

		err := group.Wait()
		for i := range flows {
			if failed[i] {
				return nil, s.Fail(failures[i])
			}
		}
		if err != nil {
			return nil, err
		}
		return values, nil
	})
}
