// SPDX-License-Identifier: Apache-2.0

package resultflow

import (
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// TraceFilter is a predicate for selecting trace events.
type TraceFilter func(TraceEvent) bool

func matchAll(e TraceEvent, filters []TraceFilter) bool {
	for _, filter := range filters {
		if !filter(e) {
			return false
		}
	}
	return true
}

// FindEvent returns the first event matching all filters, or nil.
//
// Example:
//
//	slow := trace.FindEvent(
//	    resultflow.PathMatches("checkout.*"),
//	    resultflow.MinDuration(time.Second),
//	)
func (t *Trace) FindEvent(filters ...TraceFilter) *TraceEvent {
	for i := range t.Events {
		if matchAll(t.Events[i], filters) {
			return &t.Events[i]
		}
	}
	return nil
}

// Filter returns a new Trace holding only the events matching all filters.
// The receiver is not modified.
//
// In the returned trace, TotalFlows, TotalFailures and TotalFaults count the
// selected events, Duration is the sum of their durations, and Start is the
// earliest of their starts (the original Start if none match).
func (t *Trace) Filter(filters ...TraceFilter) *Trace {
	out := &Trace{
		Events: make([]TraceEvent, 0, len(t.Events)),
		Start:  t.Start,
	}
	var earliest time.Time
	for _, e := range t.Events {
		if !matchAll(e, filters) {
			continue
		}
		out.Events = append(out.Events, e)
		out.Duration += e.Duration
		switch e.Outcome {
		case OutcomeFailure:
			out.TotalFailures++
		case OutcomeFault:
			out.TotalFaults++
		}
		if earliest.IsZero() || e.Start.Before(earliest) {
			earliest = e.Start
		}
	}
	out.TotalFlows = len(out.Events)
	if !earliest.IsZero() {
		out.Start = earliest
	}
	return out
}

// MinDuration matches events that took at least d.
func MinDuration(d time.Duration) TraceFilter {
	return func(e TraceEvent) bool {
		return e.Duration >= d
	}
}

// MaxDuration matches events that took at most d.
func MaxDuration(d time.Duration) TraceFilter {
	return func(e TraceEvent) bool {
		return e.Duration <= d
	}
}

// HasError matches events that ended in a failure or a fault.
func HasError() TraceFilter {
	return func(e TraceEvent) bool {
		return e.Outcome == OutcomeFailure || e.Outcome == OutcomeFault
	}
}

// OutcomeIs matches events with one of the given outcomes.
//
// Example:
//
//	faults := trace.Filter(resultflow.OutcomeIs(resultflow.OutcomeFault))
func OutcomeIs(outcomes ...Outcome) TraceFilter {
	return func(e TraceEvent) bool {
		return slices.Contains(outcomes, e.Outcome)
	}
}

// NameMatches matches events whose own name (the last element of Names)
// matches a filepath.Match glob. A malformed pattern matches nothing.
func NameMatches(pattern string) TraceFilter {
	return func(e TraceEvent) bool {
		if len(e.Names) == 0 {
			return false
		}
		ok, err := filepath.Match(pattern, e.Names[len(e.Names)-1])
		return err == nil && ok
	}
}

// PathMatches matches events whose dotted path (Names joined by ".")
// matches a filepath.Match glob. A malformed pattern matches nothing.
func PathMatches(pattern string) TraceFilter {
	return func(e TraceEvent) bool {
		if len(e.Names) == 0 {
			return false
		}
		ok, err := filepath.Match(pattern, strings.Join(e.Names, "."))
		return err == nil && ok
	}
}

// HasPathPrefix matches events nested under the given path.
//
// Example:
//
//	// everything under checkout > charge
//	filter := resultflow.HasPathPrefix([]string{"checkout", "charge"})
func HasPathPrefix(prefix []string) TraceFilter {
	return func(e TraceEvent) bool {
		return len(e.Names) >= len(prefix) && slices.Equal(e.Names[:len(prefix)], prefix)
	}
}

// DepthEquals matches events at the given depth, len(Names). Top-level
// named flows have depth 1.
func DepthEquals(depth int) TraceFilter {
	return func(e TraceEvent) bool {
		return len(e.Names) == depth
	}
}

// DepthAtMost matches events at depth 1 through depth.
func DepthAtMost(depth int) TraceFilter {
	return func(e TraceEvent) bool {
		return len(e.Names) <= depth
	}
}
