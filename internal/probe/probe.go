// SPDX-License-Identifier: Apache-2.0

// Package probe checks the health of an HTTP endpoint with flows.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"

	"github.com/sam-fredrickson/resultflow"
	"github.com/sam-fredrickson/resultflow/result"
)

// Failure is the domain failure of a probe.
type Failure struct {
	URL string

	// StatusCode is zero when the request did not get a response.
	StatusCode int
	Reason     string
}

func (f Failure) String() string {
	if f.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", f.URL, f.Reason)
	}
	return fmt.Sprintf("%s: %d %s", f.URL, f.StatusCode, f.Reason)
}

// Retryable reports whether the failure may go away on its own: transport
// errors, throttling and server errors. Other client errors point at the
// request itself.
func (f Failure) Retryable() bool {
	return f.StatusCode == 0 ||
		f.StatusCode == http.StatusTooManyRequests ||
		f.StatusCode >= http.StatusInternalServerError
}

// Status is the outcome of a successful check.
type Status struct {
	StatusCode int
	Latency    time.Duration
}

// Deps is the environment of the probe flows.
type Deps struct {
	Client *resty.Client
	URL    string
}

// NewClient returns an HTTP client for probing with the given per-request
// timeout. Retries are left to the flows.
func NewClient(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", "flowprobe").
		SetRetryCount(0)
}

// Check performs one GET of the target URL.
func Check() resultflow.Flow[Status, Failure, Deps] {
	return resultflow.Of(func(ctx context.Context, s *resultflow.Scope[Failure, Deps]) (Status, error) {
		d := s.Env()
		resp, err := d.Client.R().SetContext(ctx).Get(d.URL)
		if err != nil {
			if ctx.Err() != nil {
				return Status{}, ctx.Err()
			}
			return Status{}, s.Fail(Failure{URL: d.URL, Reason: err.Error()})
		}
		if resp.IsError() {
			return Status{}, s.Fail(Failure{
				URL:        d.URL,
				StatusCode: resp.StatusCode(),
				Reason:     http.StatusText(resp.StatusCode()),
			})
		}
		return Status{StatusCode: resp.StatusCode(), Latency: resp.Time()}, nil
	})
}

// Probe is Check retried under policy, for retryable failures only.
func Probe(policy resultflow.RetryPolicy[Failure, Deps]) resultflow.Flow[Status, Failure, Deps] {
	return resultflow.Named("probe", resultflow.Retry(
		resultflow.Named("check", Check()),
		policy.WithCondition(Failure.Retryable),
	))
}

// MonitorConfig configures [Monitor].
type MonitorConfig struct {
	Deps          Deps
	Retry         resultflow.RetryPolicy[Failure, Deps]
	Interval      time.Duration
	MaxRecoveries int

	Logger         *slog.Logger
	Clock          clockwork.Clock
	Observer       resultflow.Observer
	OnInterruption func(resultflow.Interruption[Failure])
}

// Monitor probes the target every interval until a probe fails in a way
// that recovery cannot absorb.
//
// A retryable failure that outlived the retry budget is logged and
// tolerated, up to MaxRecoveries times in a row. A non-retryable failure
// stops the session.
func Monitor(ctx context.Context, cfg MonitorConfig) *resultflow.Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	probe := resultflow.IfSuccess(
		resultflow.WithSlogger(logger, Probe(cfg.Retry)),
		func(ctx context.Context, st Status) {
			logger.InfoContext(ctx, "probe succeeded",
				"status", st.StatusCode,
				"latency_ms", st.Latency.Milliseconds(),
			)
		},
	)
	return probe.RunPeriodically(ctx, resultflow.PeriodicConfig[Failure, Deps]{
		Interval:      cfg.Interval,
		Env:           cfg.Deps,
		MaxRecoveries: cfg.MaxRecoveries,
		RecoveryAction: func(ctx context.Context, f Failure) resultflow.Source[struct{}, Failure] {
			if !f.Retryable() {
				return result.Failure[struct{}](f)
			}
			logger.WarnContext(ctx, "probe failed, waiting for next tick", "failure", f.String())
			return nil
		},
		OnInterruption: cfg.OnInterruption,
		Clock:          cfg.Clock,
		Logger:         logger,
		Observer:       cfg.Observer,
	})
}
