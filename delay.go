// SPDX-License-Identifier: Apache-2.0

package resultflow

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

type delayKind int

const (
	delayImmediate delayKind = iota
	delayFixed
	delayExponential
)

// A DelayStrategy computes how long to wait before a retry.
//
// The zero DelayStrategy is [Immediate].
type DelayStrategy struct {
	kind       delayKind
	base       time.Duration
	max        time.Duration // 0 means no cap
	multiplier float64

	fullJitter    bool
	percentJitter float64
}

// BackoffOption configures a [DelayStrategy].
type BackoffOption func(*DelayStrategy)

// Immediate retries without waiting.
func Immediate() DelayStrategy {
	return DelayStrategy{kind: delayImmediate}
}

// FixedDelay waits the same duration before every retry.
//
// [WithMaxDelay] and the jitter options apply; [WithMultiplier] is ignored.
func FixedDelay(d time.Duration, opts ...BackoffOption) DelayStrategy {
	s := DelayStrategy{kind: delayFixed, base: max(d, 0), multiplier: 2}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// ExponentialBackoff waits base × 2^(attempt-1) before retry number attempt.
//
// With a base of 100ms:
//   - Attempt 1: 100ms
//   - Attempt 2: 200ms
//   - Attempt 3: 400ms
//
// Options:
//   - [WithMaxDelay] caps the delay
//   - [WithMultiplier] changes the growth rate (default 2.0)
//   - [WithFullJitter] and [WithPercentageJitter] randomize the wait
func ExponentialBackoff(base time.Duration, opts ...BackoffOption) DelayStrategy {
	s := DelayStrategy{kind: delayExponential, base: max(base, 0), multiplier: 2}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithMaxDelay caps the delay. A non-positive max means no cap.
//
// For example, WithMaxDelay(30*time.Second) ensures retries never wait longer
// than 30 seconds, even if the exponential calculation would produce a larger
// value. The cap also bounds jittered delays.
func WithMaxDelay(max time.Duration) BackoffOption {
	return func(s *DelayStrategy) {
		s.max = max
	}
}

// WithMultiplier sets the growth rate of [ExponentialBackoff].
//
// The default multiplier is 2.0. Values below 1 would make delays shrink and
// are replaced by the default.
func WithMultiplier(m float64) BackoffOption {
	return func(s *DelayStrategy) {
		if m < 1 || math.IsNaN(m) {
			m = 2
		}
		s.multiplier = m
	}
}

// WithFullJitter randomizes each wait between 0 and the computed delay.
//
// Jitter affects only the actual wait of a retry; [CalculateDelay] keeps
// returning the nominal delay. Cancels [WithPercentageJitter]; the last
// option wins.
func WithFullJitter() BackoffOption {
	return func(s *DelayStrategy) {
		s.fullJitter = true
		s.percentJitter = 0
	}
}

// WithPercentageJitter adds ±percent randomness to each wait.
//
// For example, WithPercentageJitter(0.2) waits between 80% and 120% of the
// computed delay. Cancels [WithFullJitter]; the last option wins.
func WithPercentageJitter(percent float64) BackoffOption {
	return func(s *DelayStrategy) {
		s.fullJitter = false
		s.percentJitter = max(percent, 0)
	}
}

// CalculateDelay returns the nominal delay of strategy s before retry number
// attempt (1-based). It is the same as s.Delay(attempt).
func CalculateDelay(s DelayStrategy, attempt int) time.Duration {
	return s.Delay(attempt)
}

// Delay returns the nominal delay before retry number attempt.
//
// Attempts below 1 are treated as 1. The result is never negative, never
// decreases as attempt grows, and saturates at the cap (or at the largest
// representable duration) instead of overflowing.
func (s DelayStrategy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var d time.Duration
	switch s.kind {
	case delayFixed:
		d = s.base
	case delayExponential:
		d = s.exponential(attempt)
	default:
		return 0
	}

	if s.max > 0 && d > s.max {
		d = s.max
	}
	return d
}

func (s DelayStrategy) exponential(attempt int) time.Duration {
	if s.base <= 0 {
		return 0
	}
	if s.multiplier == 2 {
		// #nosec G115 -- attempt >= 1, conversion is safe
		shift := uint(attempt - 1)
		if shift > 62 || s.base > math.MaxInt64>>shift {
			return math.MaxInt64
		}
		return s.base << shift
	}
	f := float64(s.base) * math.Pow(s.multiplier, float64(attempt-1))
	if f >= math.MaxInt64 || math.IsInf(f, 0) {
		return math.MaxInt64
	}
	return time.Duration(f)
}

// wait returns the actual wait before retry number attempt: the nominal
// delay with jitter applied, bounded by the cap.
//
// Uses math/rand/v2, which is sufficient for backoff jitter as it uses the
// ChaCha8 algorithm and is auto-seeded from OS entropy.
func (s DelayStrategy) wait(attempt int) time.Duration {
	d := s.Delay(attempt)
	if d <= 0 {
		return 0
	}
	switch {
	case s.fullJitter:
		// #nosec G404 -- see doc comment for rationale
		d = time.Duration(rand.Int64N(int64(d) + 1))
	case s.percentJitter > 0:
		spread := float64(d) * s.percentJitter
		// #nosec G404 -- see doc comment for rationale
		f := float64(d) + rand.Float64()*2*spread - spread
		switch {
		case f < 0:
			d = 0
		case f >= math.MaxInt64:
			d = math.MaxInt64
		default:
			d = time.Duration(f)
		}
	}
	if s.max > 0 && d > s.max {
		d = s.max
	}
	return d
}

// String describes the strategy, for logs and CLI output.
func (s DelayStrategy) String() string {
	var out string
	switch s.kind {
	case delayFixed:
		out = fmt.Sprintf("fixed(%s", s.base)
	case delayExponential:
		out = fmt.Sprintf("exponential(base=%s", s.base)
		if s.multiplier != 2 {
			out += fmt.Sprintf(", multiplier=%g", s.multiplier)
		}
	default:
		return "immediate"
	}
	if s.max > 0 {
		out += fmt.Sprintf(", max=%s", s.max)
	}
	switch {
	case s.fullJitter:
		out += ", jitter=full"
	case s.percentJitter > 0:
		out += fmt.Sprintf(", jitter=%g%%", s.percentJitter*100)
	}
	return out + ")"
}
