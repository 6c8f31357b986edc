// SPDX-License-Identifier: Apache-2.0

package resultflow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sam-fredrickson/resultflow/result"
)

// ==== Test Helpers: Failures and Faults ====

// failure is the domain failure type used throughout the tests.
type failure struct {
	Reason string
}

var (
	notFound  = failure{Reason: "not-found"}
	invalid   = failure{Reason: "invalid"}
	transient = failure{Reason: "transient"}

	errFault  = errors.New("fault")
	errFault2 = errors.New("fault 2")
)

// ==== Test Helpers: Env ====

type env struct {
	Tenant string
}

// ==== Test Helpers: Counter ====

// counter counts how often a step is evaluated.
type counter struct {
	n atomic.Int64
}

func (c *counter) Load() int64 {
	return c.n.Load()
}

// succeed returns a flow that counts its evaluations and succeeds with v.
func succeed[A any](c *counter, v A) Flow[A, failure, env] {
	return FromFunc(func(context.Context, env) Source[A, failure] {
		c.n.Add(1)
		return result.Success[A, failure](v)
	})
}

// fail returns a flow that counts its evaluations and fails with f.
func fail[A any](c *counter, f failure) Flow[A, failure, env] {
	return FromFunc(func(context.Context, env) Source[A, failure] {
		c.n.Add(1)
		return result.Failure[A](f)
	})
}

// fault returns a flow that counts its evaluations and returns err as a fault.
func fault[A any](c *counter, err error) Flow[A, failure, env] {
	return Of(func(context.Context, *Scope[failure, env]) (A, error) {
		c.n.Add(1)
		var zero A
		return zero, err
	})
}

// failUntil returns a flow that fails with transient until its nth
// evaluation, which succeeds with n.
func failUntil(c *counter, n int64) Flow[int64, failure, env] {
	return FromFunc(func(context.Context, env) Source[int64, failure] {
		current := c.n.Add(1)
		if current < n {
			return result.Failure[int64](transient)
		}
		return result.Success[int64, failure](current)
	})
}

// ==== Test Helpers: Runners ====

func runOK[A any](t *testing.T, f Flow[A, failure, env]) result.Result[A, failure] {
	t.Helper()
	r, err := f.Run(t.Context(), WithEnv(env{Tenant: "acme"}))
	require.NoError(t, err)
	return r
}

func requireSuccess[A any](t *testing.T, f Flow[A, failure, env], want A) {
	t.Helper()
	r := runOK(t, f)
	require.True(t, r.IsSuccess(), "want success, got %v", r)
	require.Equal(t, want, r.Value())
}

func requireFailure[A any](t *testing.T, f Flow[A, failure, env], want failure) {
	t.Helper()
	r := runOK(t, f)
	require.True(t, r.IsFailure(), "want failure, got %v", r)
	require.Equal(t, want, r.Err())
}

func requireFault[A any](t *testing.T, f Flow[A, failure, env], want error) {
	t.Helper()
	_, err := f.Run(t.Context(), WithEnv(env{Tenant: "acme"}))
	require.ErrorIs(t, err, want)
}
