// SPDX-License-Identifier: Apache-2.0

package resultflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sam-fredrickson/resultflow/result"
)

func lookup(c *counter) func(int) Flow[string, failure, env] {
	names := map[int]string{1: "ada", 2: "grace", 3: "edsger"}
	return func(id int) Flow[string, failure, env] {
		return FromFunc(func(context.Context, env) Source[string, failure] {
			c.n.Add(1)
			if id < 0 {
				return SourceFunc[string, failure](func(context.Context) (result.Result[string, failure], error) {
					return result.Result[string, failure]{}, errFault
				})
			}
			name, ok := names[id]
			if !ok {
				return result.Failure[string](notFound)
			}
			return result.Success[string, failure](name)
		})
	}
}

func TestTraverse(t *testing.T) {
	t.Parallel()

	t.Run("Success", func(t *testing.T) {
		t.Parallel()
		var c counter
		requireSuccess(t, Traverse([]int{3, 1, 2}, lookup(&c)), []string{"edsger", "ada", "grace"})
	})

	t.Run("StopsAtFirstFailure", func(t *testing.T) {
		t.Parallel()
		var c counter
		requireFailure(t, Traverse([]int{1, 9, 2}, lookup(&c)), notFound)
		assert.Equal(t, int64(2), c.Load())
	})

	t.Run("FaultIsIndexed", func(t *testing.T) {
		t.Parallel()
		var c counter
		_, err := Traverse([]int{1, 2, -1}, lookup(&c)).Run(t.Context(), WithEnv(env{}))
		var ie *IndexedError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, 2, ie.Index)
		assert.True(t, errors.Is(err, errFault))
		assert.Equal(t, "element 2: fault", err.Error())
	})

	t.Run("Cancelled", func(t *testing.T) {
		t.Parallel()
		var c counter
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		_, err := Traverse([]int{1}, lookup(&c)).Run(ctx)
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, int64(0), c.Load())
	})

	t.Run("Empty", func(t *testing.T) {
		t.Parallel()
		var c counter
		requireSuccess(t, Traverse(nil, lookup(&c)), []string{})
	})
}

func TestTraverseParallel(t *testing.T) {
	t.Parallel()

	t.Run("Success", func(t *testing.T) {
		t.Parallel()
		var c counter
		f := TraverseParallel(ParallelOptions{Limit: 2}, []int{1, 2, 3}, lookup(&c))
		requireSuccess(t, f, []string{"ada", "grace", "edsger"})
		assert.Equal(t, int64(3), c.Load())
	})

	t.Run("Failure", func(t *testing.T) {
		t.Parallel()
		var c counter
		requireFailure(t, TraverseParallel(ParallelOptions{}, []int{1, 7}, lookup(&c)), notFound)
	})

	t.Run("FaultIsIndexed", func(t *testing.T) {
		t.Parallel()
		var c counter
		_, err := TraverseParallel(ParallelOptions{}, []int{-1}, lookup(&c)).Run(t.Context())
		var ie *IndexedError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, 0, ie.Index)
	})
}
