// SPDX-License-Identifier: Apache-2.0

package resultflow

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keep returns a Traced sink that stores the trace in *dst.
func keep(dst **Trace) func(*Trace) {
	return func(t *Trace) { *dst = t }
}

func checkoutFlow(c *counter) Flow[int, failure, env] {
	return Named("checkout", Chain(
		Named("reserve", succeed(c, 1)),
		func(_ context.Context, v int) Source[int, failure] {
			return Named("charge", fail[int](c, failure{Reason: "declined"}))
		},
	))
}

func TestTraced(t *testing.T) {
	t.Parallel()

	t.Run("RecordsNamedFlows", func(t *testing.T) {
		t.Parallel()
		var c counter
		var tr *Trace
		requireFailure(t, Traced(checkoutFlow(&c), keep(&tr)), failure{Reason: "declined"})

		require.NotNil(t, tr)
		require.Len(t, tr.Events, 3)
		assert.Equal(t, []string{"checkout"}, tr.Events[0].Names)
		assert.Equal(t, []string{"checkout", "reserve"}, tr.Events[1].Names)
		assert.Equal(t, []string{"checkout", "charge"}, tr.Events[2].Names)

		assert.Equal(t, OutcomeFailure, tr.Events[0].Outcome)
		assert.Equal(t, OutcomeSuccess, tr.Events[1].Outcome)
		assert.Equal(t, OutcomeFailure, tr.Events[2].Outcome)
		assert.Equal(t, "{declined}", tr.Events[2].Error)
		assert.Empty(t, tr.Events[1].Error)

		assert.Equal(t, 3, tr.TotalFlows)
		assert.Equal(t, 2, tr.TotalFailures)
		assert.Equal(t, 0, tr.TotalFaults)
		assert.False(t, tr.Start.IsZero())
	})

	t.Run("Fault", func(t *testing.T) {
		t.Parallel()
		var c counter
		var tr *Trace
		f := Traced(Named("outer", Named("inner", fault[int](&c, errFault))), keep(&tr))
		requireFault(t, f, errFault)

		require.Len(t, tr.Events, 2)
		assert.Equal(t, OutcomeFault, tr.Events[0].Outcome)
		// named wrappers are stripped, the path already carries them
		assert.Equal(t, "fault", tr.Events[0].Error)
		assert.Equal(t, "fault", tr.Events[1].Error)
		assert.Equal(t, 2, tr.TotalFaults)
	})

	t.Run("UnnamedFlowsNotRecorded", func(t *testing.T) {
		t.Parallel()
		var c counter
		var tr *Trace
		requireSuccess(t, Traced(succeed(&c, 1), keep(&tr)), 1)
		require.NotNil(t, tr)
		assert.Empty(t, tr.Events)
		assert.Equal(t, 0, tr.TotalFlows)
	})

	t.Run("NilSink", func(t *testing.T) {
		t.Parallel()
		var c counter
		requireSuccess(t, Traced(Named("a", succeed(&c, 1)), nil), 1)
	})

	t.Run("NoTraceOutsideTraced", func(t *testing.T) {
		t.Parallel()
		f := Named("a", Of(func(ctx context.Context, _ *Scope[failure, env]) (bool, error) {
			return getFlowCtx(ctx).trace == nil, nil
		}))
		requireSuccess(t, f, true)
	})

	t.Run("EachRunIsSeparate", func(t *testing.T) {
		t.Parallel()
		var c counter
		var traces []*Trace
		f := Traced(Named("a", succeed(&c, 1)), func(tr *Trace) { traces = append(traces, tr) })
		requireSuccess(t, f, 1)
		requireSuccess(t, f, 1)
		require.Len(t, traces, 2)
		assert.NotSame(t, traces[0], traces[1])
		assert.Len(t, traces[1].Events, 1)
	})
}

func TestTraceParallel(t *testing.T) {
	t.Parallel()
	var c counter
	var tr *Trace
	flows := make([]Flow[int, failure, env], 20)
	for i := range flows {
		flows[i] = Named("worker", succeed(&c, i))
	}
	f := Traced(Named("pool", Parallel(ParallelOptions{Limit: 4}, flows...)), keep(&tr))
	r := runOK(t, f)
	require.True(t, r.IsSuccess())

	assert.Equal(t, 21, tr.TotalFlows)
	assert.Len(t, tr.Filter(PathMatches("pool.worker")).Events, 20)
}

func TestTracedStreaming(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	var c counter
	var tr *Trace
	f := Traced(checkoutFlow(&c), keep(&tr), WithStreamTo(&buf))
	requireFailure(t, f, failure{Reason: "declined"})

	// events stream in finish order: reserve, charge, checkout
	var streamed []TraceEvent
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var e TraceEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		streamed = append(streamed, e)
	}
	require.Len(t, streamed, 3)
	assert.Equal(t, []string{"checkout", "reserve"}, streamed[0].Names)
	assert.Equal(t, []string{"checkout", "charge"}, streamed[1].Names)
	assert.Equal(t, []string{"checkout"}, streamed[2].Names)
	assert.Equal(t, OutcomeFailure, streamed[2].Outcome)

	assert.Len(t, tr.Events, 3)
}

type flushRecorder struct {
	bytes.Buffer
	mu      sync.Mutex
	flushed int
}

func (f *flushRecorder) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed++
	return nil
}

func TestTracedFlushesStream(t *testing.T) {
	t.Parallel()
	var w flushRecorder
	var c counter
	requireSuccess(t, Traced(Named("a", succeed(&c, 1)), nil, WithStreamTo(&w)), 1)
	assert.Equal(t, 1, w.flushed)
	assert.True(t, strings.HasPrefix(w.String(), `{"flow_names":["a"]`))
}

func TestTracedCancellation(t *testing.T) {
	t.Parallel()
	var tr *Trace
	slow := Named("slow", Of(func(ctx context.Context, _ *Scope[failure, env]) (int, error) {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Second):
			return 1, nil
		}
	}))
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	_, err := Traced(slow, keep(&tr)).Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, tr.Events, 1)
	assert.Equal(t, OutcomeFault, tr.Events[0].Outcome)
	assert.Equal(t, context.DeadlineExceeded.Error(), tr.Events[0].Error)
}
