// SPDX-License-Identifier: Apache-2.0

package resultflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Cause tells why a periodic session ended.
type Cause int

const (
	// CauseFailure means an evaluation failed and was not recovered.
	CauseFailure Cause = iota + 1
	// CauseAborted means the session was interrupted or its context ended.
	CauseAborted
	// CauseFault means an evaluation or a recovery action returned a fault.
	CauseFault
)

// String returns the lower-case name of the cause.
func (c Cause) String() string {
	switch c {
	case CauseFailure:
		return "failure"
	case CauseAborted:
		return "aborted"
	case CauseFault:
		return "fault"
	default:
		return fmt.Sprintf("Cause(%d)", int(c))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Cause) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Interruption describes the end of a periodic session.
type Interruption[E any] struct {
	// SessionID identifies the session.
	SessionID string

	Cause Cause

	// Failure is the failure that stopped the session. Set for CauseFailure.
	Failure E

	// RecoveryFailure is the failure of the recovery action, if one ran and
	// failed.
	RecoveryFailure *E

	// RecoveriesExhausted is set when the session stopped because
	// MaxRecoveries consecutive recoveries had already been made.
	RecoveriesExhausted bool

	// Fault is the unhandled error that stopped the session. Set for
	// CauseFault.
	Fault error

	// Ticks is the number of evaluations started by the session.
	Ticks int
}

// RecoveryFunc tries to heal a periodic session after a failed evaluation.
//
// The returned source is awaited: success resumes the session, failure
// stops it. A nil source counts as success. Use [Discard] to adapt a source
// with a value.
type RecoveryFunc[E any] = func(ctx context.Context, failure E) Source[struct{}, E]

// PeriodicConfig configures [Flow.RunPeriodically].
type PeriodicConfig[E, C any] struct {
	// Interval is the time between the end of one evaluation and the start
	// of the next. The first evaluation happens one Interval after start.
	// It must be positive.
	Interval time.Duration

	// Env is the environment of every evaluation, captured at start.
	Env C

	// RecoveryAction, if set, runs after a failed evaluation.
	RecoveryAction RecoveryFunc[E]

	// MaxRecoveries bounds consecutive recoveries: once that many
	// failures in a row have been recovered, the next failure stops the
	// session. A successful evaluation resets the count. Zero means no
	// bound.
	MaxRecoveries int

	// OnInterruption is called exactly once, when the session ends. After
	// an Interrupt it runs before Interrupt returns; otherwise it runs once
	// the session's goroutine has finished, so it may call [Session.Wait].
	OnInterruption func(Interruption[E])

	// Clock schedules the ticks. Defaults to the real clock.
	Clock clockwork.Clock

	// Logger receives session lifecycle records. Defaults to slog.Default().
	Logger *slog.Logger

	// Observer, if set, is notified when the session stops and is installed
	// for the evaluations, as with [WithObserver].
	Observer Observer
}

// A Session is a running periodic evaluation started by
// [Flow.RunPeriodically].
type Session struct {
	id     string
	cancel context.CancelFunc
	abort  func()
	done   chan struct{}
	err    error

	mu      sync.Mutex
	stopped bool
	ticks   atomic.Int64
}

// ID returns the unique identifier of the session.
func (s *Session) ID() string {
	return s.id
}

// Interrupt stops the session.
//
// No evaluation starts after Interrupt returns; an evaluation already in
// progress runs to completion and its outcome is discarded. The
// OnInterruption callback runs with CauseAborted before Interrupt returns,
// unless the session had already ended. Interrupt is idempotent.
func (s *Session) Interrupt() {
	s.abort()
}

// Done returns a channel that is closed when the session's goroutine exits.
// An OnInterruption callback for a session that stopped on its own may still
// be running.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session ends and returns the fault that stopped it,
// if any.
func (s *Session) Wait() error {
	<-s.done
	return s.err
}

// Ticks returns the number of evaluations started so far.
func (s *Session) Ticks() int {
	return int(s.ticks.Load())
}

// markStopped reports whether the caller performed the terminal transition.
func (s *Session) markStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.stopped = true
	return true
}

// beginTick counts a new evaluation unless the session has stopped.
func (s *Session) beginTick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.ticks.Add(1)
	return true
}

// RunPeriodically evaluates f every cfg.Interval until an evaluation fails
// without being recovered, a fault occurs, ctx ends or the session is
// interrupted.
//
// It returns immediately, before the first evaluation. After a failure, the
// configured RecoveryAction decides whether the session continues. Each
// evaluation uses cfg.Env and a context derived from ctx.
//
// RunPeriodically panics if cfg.Interval is not positive.
//
// Example:
//
//	session := heartbeat.RunPeriodically(ctx, resultflow.PeriodicConfig[PingError, Deps]{
//	    Interval: 30 * time.Second,
//	    Env:      deps,
//	    RecoveryAction: func(ctx context.Context, _ PingError) resultflow.Source[struct{}, PingError] {
//	        return reconnect(ctx, deps)
//	    },
//	    MaxRecoveries: 3,
//	    OnInterruption: func(in resultflow.Interruption[PingError]) {
//	        log.Printf("heartbeat stopped: %s", in.Cause)
//	    },
//	})
//	defer session.Interrupt()
func (f Flow[A, E, C]) RunPeriodically(ctx context.Context, cfg PeriodicConfig[E, C]) *Session {
	if cfg.Interval <= 0 {
		panic("resultflow: non-positive interval for RunPeriodically")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Observer != nil {
		fc := deriveFlowCtx(ctx)
		fc.observer = cfg.Observer
		ctx = fc
	} else {
		cfg.Observer = NoopObserver{}
	}

	parent := context.WithoutCancel(ctx)
	ctx, cancel := context.WithCancel(ctx)
	sess := &Session{
		id:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	sup := &supervisor[A, E, C]{
		flow:   f,
		cfg:    cfg,
		sess:   sess,
		parent: parent,
		logger: cfg.Logger.With("session", sess.id),
	}
	sess.abort = func() {
		if stopped, ok := sup.stop(Interruption[E]{Cause: CauseAborted}); ok {
			sup.notify(stopped)
		}
	}

	timer := cfg.Clock.NewTimer(cfg.Interval)
	sup.logger.InfoContext(ctx, "periodic session started", "interval", cfg.Interval)
	go func() {
		sess.err = sup.loop(ctx, timer)
		timer.Stop()
		close(sess.done)
		if sup.pending != nil {
			sup.notify(*sup.pending)
		}
	}()
	return sess
}

type supervisor[A, E, C any] struct {
	flow   Flow[A, E, C]
	cfg    PeriodicConfig[E, C]
	sess   *Session
	parent context.Context
	logger *slog.Logger

	// consecutive counts recoveries since the last successful evaluation.
	consecutive int

	// pending is the interruption to report once the loop has returned.
	pending *Interruption[E]
}

func (sup *supervisor[A, E, C]) loop(ctx context.Context, timer clockwork.Timer) error {
	for {
		select {
		case <-ctx.Done():
			sup.halt(Interruption[E]{Cause: CauseAborted})
			return nil
		case <-timer.Chan():
		}

		if !sup.sess.beginTick() {
			return nil
		}
		r, err := sup.flow.run(ctx, sup.cfg.Env)
		if ctx.Err() != nil {
			// interrupted mid-tick: the outcome is discarded
			sup.halt(Interruption[E]{Cause: CauseAborted})
			return nil
		}
		if err != nil {
			return sup.fault(ctx, err)
		}
		if r.IsFailure() {
			resume, err := sup.tryRecover(ctx, r.Err())
			if !resume {
				return err
			}
		} else {
			sup.consecutive = 0
		}
		timer.Reset(sup.cfg.Interval)
	}
}

// tryRecover handles a failed evaluation and reports whether the session goes on.
func (sup *supervisor[A, E, C]) tryRecover(ctx context.Context, failure E) (bool, error) {
	if sup.cfg.RecoveryAction == nil {
		sup.halt(Interruption[E]{Cause: CauseFailure, Failure: failure})
		return false, nil
	}
	if sup.cfg.MaxRecoveries > 0 && sup.consecutive >= sup.cfg.MaxRecoveries {
		sup.halt(Interruption[E]{Cause: CauseFailure, Failure: failure, RecoveriesExhausted: true})
		return false, nil
	}
	sup.consecutive++

	envCtx := withEnv(ctx, sup.cfg.Env)
	if src := sup.cfg.RecoveryAction(envCtx, failure); src != nil {
		rr, err := src.Await(envCtx)
		if err != nil {
			return false, sup.fault(ctx, err)
		}
		if rr.IsFailure() {
			rf := rr.Err()
			sup.halt(Interruption[E]{Cause: CauseFailure, Failure: failure, RecoveryFailure: &rf})
			return false, nil
		}
	}

	sup.logger.InfoContext(ctx, "periodic session recovered",
		"failure", failure,
		"recoveries", sup.consecutive,
	)
	return true, nil
}

// fault stops the session after an unhandled error. Errors caused by the
// session's own cancellation count as an abort instead.
func (sup *supervisor[A, E, C]) fault(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		sup.halt(Interruption[E]{Cause: CauseAborted})
		return nil
	}
	sup.halt(Interruption[E]{Cause: CauseFault, Fault: err})
	return err
}

// halt stops the session from its own goroutine. OnInterruption is deferred
// until the loop has returned.
func (sup *supervisor[A, E, C]) halt(in Interruption[E]) {
	if stopped, ok := sup.stop(in); ok {
		sup.pending = &stopped
	}
}

// stop performs the terminal transition once, logs it and notifies the
// observer. It reports whether the caller made the transition.
func (sup *supervisor[A, E, C]) stop(in Interruption[E]) (Interruption[E], bool) {
	if !sup.sess.markStopped() {
		return in, false
	}
	sup.sess.cancel()

	in.SessionID = sup.sess.id
	in.Ticks = sup.sess.Ticks()

	attrs := []any{"cause", in.Cause.String(), "ticks", in.Ticks}
	level := slog.LevelInfo
	switch in.Cause {
	case CauseFailure:
		level = slog.LevelWarn
		attrs = append(attrs, "failure", in.Failure)
		if in.RecoveryFailure != nil {
			attrs = append(attrs, "recovery_failure", *in.RecoveryFailure)
		}
		if in.RecoveriesExhausted {
			attrs = append(attrs, "recoveries_exhausted", true)
		}
	case CauseFault:
		level = slog.LevelError
		attrs = append(attrs, "error", in.Fault)
	}
	sup.logger.Log(sup.parent, level, "periodic session stopped", attrs...)

	sup.cfg.Observer.OnSessionStop(sup.parent, in.SessionID, in.Cause, in.Ticks)
	return in, true
}

func (sup *supervisor[A, E, C]) notify(in Interruption[E]) {
	if sup.cfg.OnInterruption != nil {
		sup.cfg.OnInterruption(in)
	}
}
