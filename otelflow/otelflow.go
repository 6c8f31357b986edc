// SPDX-License-Identifier: Apache-2.0

// Package otelflow reports flow evaluations to OpenTelemetry.
//
// Every named flow becomes a span whose name is the dotted name path, nested
// under the span of the enclosing named flow. Retries are recorded as span
// events. Run counts, run durations, retries and stopped periodic sessions
// are recorded as metrics.
//
//	obs, err := otelflow.New()
//	if err != nil {
//	    return err
//	}
//	r, err := resultflow.WithObserver(obs, checkout).Run(ctx)
package otelflow

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/sam-fredrickson/resultflow"
)

// ScopeName is the instrumentation scope of the tracer and meter.
const ScopeName = "github.com/sam-fredrickson/resultflow/otelflow"

// Attribute keys.
const (
	FlowNameKey = attribute.Key("flow.name")
	OutcomeKey  = attribute.Key("flow.outcome")
	AttemptKey  = attribute.Key("flow.retry.attempt")
	DelayKey    = attribute.Key("flow.retry.delay_ms")
	SessionKey  = attribute.Key("flow.session.id")
	CauseKey    = attribute.Key("flow.session.cause")
	TicksKey    = attribute.Key("flow.session.ticks")
	NamePathKey = attribute.Key("flow.names")
)

type options struct {
	tp trace.TracerProvider
	mp metric.MeterProvider
}

// An Option configures [New].
type Option func(*options)

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tp = tp
	}
}

// WithMeterProvider sets the meter provider. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.mp = mp
	}
}

// Observer is a [resultflow.Observer] backed by OpenTelemetry.
type Observer struct {
	tracer trace.Tracer

	runs     metric.Int64Counter
	duration metric.Float64Histogram
	retries  metric.Int64Counter
	sessions metric.Int64Counter
}

var _ resultflow.Observer = (*Observer)(nil)

// New creates an observer and its instruments.
func New(opts ...Option) (*Observer, error) {
	o := options{
		tp: otel.GetTracerProvider(),
		mp: otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	meter := o.mp.Meter(ScopeName)
	obs := &Observer{tracer: o.tp.Tracer(ScopeName)}

	var err error
	if obs.runs, err = meter.Int64Counter("resultflow.runs",
		metric.WithDescription("Named flow evaluations by outcome."),
	); err != nil {
		return nil, err
	}
	if obs.duration, err = meter.Float64Histogram("resultflow.run.duration",
		metric.WithDescription("Duration of named flow evaluations."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if obs.retries, err = meter.Int64Counter("resultflow.retries",
		metric.WithDescription("Retries scheduled after a failure."),
	); err != nil {
		return nil, err
	}
	if obs.sessions, err = meter.Int64Counter("resultflow.sessions.stopped",
		metric.WithDescription("Periodic sessions stopped, by cause."),
	); err != nil {
		return nil, err
	}
	return obs, nil
}

func (o *Observer) OnRunStart(ctx context.Context, names []string) context.Context {
	ctx, _ = o.tracer.Start(ctx, strings.Join(names, "."),
		trace.WithAttributes(NamePathKey.StringSlice(names)),
	)
	return ctx
}

func (o *Observer) OnRunFinish(ctx context.Context, names []string, outcome resultflow.Outcome, d time.Duration) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(OutcomeKey.String(outcome.String()))
	if outcome == resultflow.OutcomeFault {
		span.SetStatus(codes.Error, "fault")
	}
	span.End()

	attrs := metric.WithAttributes(
		FlowNameKey.String(strings.Join(names, ".")),
		OutcomeKey.String(outcome.String()),
	)
	o.runs.Add(ctx, 1, attrs)
	o.duration.Record(ctx, d.Seconds(), attrs)
}

func (o *Observer) OnRetry(ctx context.Context, names []string, attempt int, delay time.Duration) {
	trace.SpanFromContext(ctx).AddEvent("retry", trace.WithAttributes(
		AttemptKey.Int(attempt),
		DelayKey.Int64(delay.Milliseconds()),
	))
	o.retries.Add(ctx, 1, metric.WithAttributes(FlowNameKey.String(strings.Join(names, "."))))
}

func (o *Observer) OnSessionStop(ctx context.Context, sessionID string, cause resultflow.Cause, ticks int) {
	trace.SpanFromContext(ctx).AddEvent("session stopped", trace.WithAttributes(
		SessionKey.String(sessionID),
		CauseKey.String(cause.String()),
		TicksKey.Int(ticks),
	))
	o.sessions.Add(ctx, 1, metric.WithAttributes(CauseKey.String(cause.String())))
}
