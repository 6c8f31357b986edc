// SPDX-License-Identifier: Apache-2.0

package resultflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sam-fredrickson/resultflow/result"
)

// TraceEvent records one evaluation of a [Named] flow.
type TraceEvent struct {
	// Names is the full hierarchical path of flow names.
	// For example: ["checkout", "charge", "authorize"]
	Names []string `json:"flow_names"`

	// Start is when the evaluation began.
	Start time.Time `json:"start"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`

	// Outcome is how the evaluation ended. It is zero while the flow is
	// still running.
	Outcome Outcome `json:"outcome,omitzero"`

	// Error describes the failure or fault, empty on success.
	Error string `json:"error,omitempty"`
}

// TraceOption configures trace behavior.
type TraceOption func(*traceOptions)

type traceOptions struct {
	streamTo io.Writer
}

// WithStreamTo streams events as JSON Lines to w while the flow runs.
//
// Each event is written when its flow finishes, so a trace survives a crash
// of the process. All events are also kept in memory. This differs from
// [Trace.WriteTo], which writes one pretty-printed JSON array afterwards.
//
// Write errors are ignored: tracing never breaks the flow itself.
//
// Example:
//
//	f, _ := os.Create("trace.jsonl")
//	defer f.Close()
//	flow := resultflow.Traced(checkout, keep, resultflow.WithStreamTo(f))
//
//	// trace.jsonl contains one JSON object per line:
//	// {"flow_names":["checkout","reserve"],"start":"...","duration":45000000,"outcome":"success"}
func WithStreamTo(w io.Writer) TraceOption {
	return func(opts *traceOptions) {
		opts.streamTo = w
	}
}

// trace collects events during an evaluation.
type trace struct {
	mu      sync.Mutex
	encoder *json.Encoder
	result  *Trace
}

// Trace is the set of events recorded by [Traced].
type Trace struct {
	// Events is the list of all recorded events, in start order.
	Events []TraceEvent

	// Start is when the traced flow began.
	Start time.Time

	// Duration is the total evaluation time of the traced flow.
	// For filtered traces (from Filter), this is the sum of event durations.
	Duration time.Duration

	// TotalFlows is the number of named flows evaluated.
	TotalFlows int

	// TotalFailures is the number of named flows that ended in a failure.
	TotalFailures int

	// TotalFaults is the number of named flows that ended in a fault.
	TotalFaults int
}

type eventIdx int

// Traced records an event for every [Named] flow evaluated within f, and
// hands the finished trace to sink.
//
// The sink is called once per evaluation, after f ends, whatever its
// outcome. The outcome of f is passed through unchanged.
//
// Events are recorded in approximate start order; within [Parallel] flows
// the order may vary. Sort by Start for strict chronology.
//
// Example:
//
//	flow := resultflow.Traced(checkout, resultflow.WriteTextTo(os.Stderr))
//
// Tracing is opt-in; named flows outside Traced record nothing.
func Traced[A, E, C any](f Flow[A, E, C], sink func(*Trace), opts ...TraceOption) Flow[A, E, C] {
	var options traceOptions
	for _, opt := range opts {
		opt(&options)
	}

	return Of(func(ctx context.Context, s *Scope[E, C]) (A, error) {
		tr := &trace{
			result: &Trace{
				Start:  time.Now(),
				Events: make([]TraceEvent, 0),
			},
		}
		if options.streamTo != nil {
			tr.encoder = json.NewEncoder(options.streamTo)
		}

		fc := deriveFlowCtx(ctx)
		fc.trace = tr
		r, err := f.run(fc, s.Env())

		tr.mu.Lock()
		tr.result.Duration = time.Since(tr.result.Start)
		tr.mu.Unlock()
		if options.streamTo != nil {
			if flusher, ok := options.streamTo.(interface{ Flush() error }); ok {
				_ = flusher.Flush()
			}
		}
		if sink != nil {
			sink(tr.result)
		}

		if err != nil {
			var zero A
			return zero, err
		}
		return TryTo(ctx, s, r)
	})
}

// newEvent appends an event for a starting flow and returns its index.
func (t *trace) newEvent(names []string) eventIdx {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.result.Events = append(t.result.Events, TraceEvent{
		Names: names,
		Start: time.Now(),
	})
	t.result.TotalFlows++
	return eventIdx(len(t.result.Events) - 1)
}

// recordFinish completes an event and streams it if enabled.
func (t *trace) recordFinish(idx eventIdx, outcome Outcome, desc string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	event := &t.result.Events[idx]
	event.Duration = time.Since(event.Start)
	event.Outcome = outcome
	event.Error = desc
	switch outcome {
	case OutcomeFailure:
		t.result.TotalFailures++
	case OutcomeFault:
		t.result.TotalFaults++
	}

	if t.encoder != nil {
		_ = t.encoder.Encode(event)
	}
}

// describe renders the failure or fault of an evaluation for a trace event.
//
// Faults are unwrapped through NamedErrors only, since the event's Names
// already carry that context; wrappers from other packages are kept.
func describe[A, E any](r result.Result[A, E], err error) string {
	if err != nil {
		for {
			var named NamedError
			if !errors.As(err, &named) || named.Err == nil {
				break
			}
			err = named.Err
		}
		return err.Error()
	}
	if r.IsFailure() {
		return fmt.Sprint(r.Err())
	}
	return ""
}
