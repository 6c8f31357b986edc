// SPDX-License-Identifier: Apache-2.0

package resultflow

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// WriteTo writes the events as a pretty-printed JSON array, followed by a
// newline. It implements io.WriterTo.
func (t *Trace) WriteTo(w io.Writer) (int64, error) {
	data, err := json.MarshalIndent(t.Events, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to marshal trace: %w", err)
	}
	data = append(data, '\n')

	n, err := w.Write(data)
	if err != nil {
		return int64(n), fmt.Errorf("failed to write trace: %w", err)
	}
	return int64(n), nil
}

// WriteText writes a human-readable tree of the events.
//
// Indentation reflects nesting depth, and each line shows the last name of
// the path with its duration:
//
//	checkout (2.3s)
//	  reserve (45ms)
//	  charge (2.2s) [FAILURE: card declined]
//
// Within [Parallel] flows events interleave, so the tree shows start order
// rather than logical nesting; prefer [Trace.WriteFlatText] there.
func (t *Trace) WriteText(w io.Writer) (int64, error) {
	return t.writeLines(w, func(e TraceEvent) string {
		depth := max(len(e.Names)-1, 0)
		name := "<unknown>"
		if len(e.Names) > 0 {
			name = e.Names[len(e.Names)-1]
		}
		return strings.Repeat("  ", depth) + name
	})
}

// WriteFlatText writes one line per event with the full path:
//
//	checkout (2.3s)
//	checkout > reserve (45ms)
//	checkout > charge (2.2s) [FAILURE: card declined]
func (t *Trace) WriteFlatText(w io.Writer) (int64, error) {
	return t.writeLines(w, func(e TraceEvent) string {
		if len(e.Names) == 0 {
			return "<unknown>"
		}
		return strings.Join(e.Names, " > ")
	})
}

func (t *Trace) writeLines(w io.Writer, label func(TraceEvent) string) (int64, error) {
	var total int64
	for _, e := range t.Events {
		var b strings.Builder
		fmt.Fprintf(&b, "%s (%s)", label(e), e.Duration)
		switch e.Outcome {
		case OutcomeFailure:
			fmt.Fprintf(&b, " [FAILURE: %s]", e.Error)
		case OutcomeFault:
			fmt.Fprintf(&b, " [FAULT: %s]", e.Error)
		}
		b.WriteByte('\n')

		n, err := io.WriteString(w, b.String())
		total += int64(n)
		if err != nil {
			return total, fmt.Errorf("failed to write trace text: %w", err)
		}
	}
	return total, nil
}

// WriteJSONTo returns a [Traced] sink that writes the trace as JSON.
// Write errors are ignored.
func WriteJSONTo(w io.Writer) func(*Trace) {
	return func(t *Trace) {
		_, _ = t.WriteTo(w)
	}
}

// WriteTextTo returns a [Traced] sink that writes the trace as a text tree.
//
//	flow := resultflow.Traced(checkout, resultflow.WriteTextTo(os.Stderr))
func WriteTextTo(w io.Writer) func(*Trace) {
	return func(t *Trace) {
		_, _ = t.WriteText(w)
	}
}

// WriteFlatTextTo returns a [Traced] sink that writes the trace as flat text.
func WriteFlatTextTo(w io.Writer) func(*Trace) {
	return func(t *Trace) {
		_, _ = t.WriteFlatText(w)
	}
}
