// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/sam-fredrickson/resultflow"
	"github.com/sam-fredrickson/resultflow/internal/probe"
	"github.com/sam-fredrickson/resultflow/otelflow"
	"github.com/sam-fredrickson/resultflow/policyfile"
)

var probeCommand = &cli.Command{
	Name:  "probe",
	Usage: "Probe an HTTP endpoint periodically until it fails",
	Description: `Each tick issues a GET, retried under the retry policy for server errors,
throttling and transport errors. A tick that still fails is tolerated while
the periodic policy's max_recoveries allows. A client error (4xx other than
429) stops the probe with a non-zero exit status. SIGINT stops it cleanly.`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "url",
			Usage:    "Endpoint to probe",
			Required: true,
		},
		policiesFlag,
		retryFlag,
		&cli.StringFlag{
			Name:  "periodic",
			Usage: "Name of the periodic policy in the policy file",
		},
		&cli.DurationFlag{
			Name:  "interval",
			Usage: "Time between probes (overrides the periodic policy)",
			Value: 30 * time.Second,
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Per-request timeout",
			Value: 5 * time.Second,
		},
	},
	Action: runProbe,
}

// probePolicies resolves the retry and periodic specs from flags and the
// optional policy file.
func probePolicies(c *cli.Context) (policyfile.RetrySpec, policyfile.PeriodicSpec, error) {
	var retry policyfile.RetrySpec
	periodic := policyfile.PeriodicSpec{Interval: c.Duration("interval")}

	path := c.String(policiesFlag.Name)
	if path == "" {
		return retry, periodic, nil
	}
	f, err := policyfile.Load(path)
	if err != nil {
		return retry, periodic, err
	}

	if name := c.String("periodic"); name != "" {
		if periodic, err = f.PeriodicPolicy(name); err != nil {
			return retry, periodic, err
		}
		if c.IsSet("interval") {
			periodic.Interval = c.Duration("interval")
		}
	}

	name := c.String(retryFlag.Name)
	explicit := c.IsSet(retryFlag.Name)
	if !explicit && periodic.Retry != "" {
		name, explicit = periodic.Retry, true
	}
	retry, err = f.RetryPolicy(name)
	if err != nil && !explicit {
		// no "default" policy in the file
		return policyfile.RetrySpec{}, periodic, nil
	}
	return retry, periodic, err
}

func runProbe(c *cli.Context) error {
	retrySpec, periodicSpec, err := probePolicies(c)
	if err != nil {
		return err
	}
	if periodicSpec.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", periodicSpec.Interval)
	}
	obs, err := otelflow.New()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(c).With("url", c.String("url"))
	logger.Info("probing",
		"interval", periodicSpec.Interval,
		"retry", retrySpec.Strategy().String(),
		"max_retries", retrySpec.Retries(),
		"max_recoveries", periodicSpec.MaxRecoveries,
	)

	stopped := make(chan resultflow.Interruption[probe.Failure], 1)
	sess := probe.Monitor(ctx, probe.MonitorConfig{
		Deps: probe.Deps{
			Client: probe.NewClient(c.Duration("timeout")),
			URL:    c.String("url"),
		},
		Retry:          policyfile.ApplyRetry(resultflow.NewRetryPolicy[probe.Failure, probe.Deps](), retrySpec),
		Interval:       periodicSpec.Interval,
		MaxRecoveries:  periodicSpec.MaxRecoveries,
		Logger:         logger,
		Observer:       obs,
		OnInterruption: func(in resultflow.Interruption[probe.Failure]) { stopped <- in },
	})
	if err := sess.Wait(); err != nil {
		return fmt.Errorf("probe fault: %w", err)
	}

	in := <-stopped
	if in.Cause != resultflow.CauseFailure {
		return nil
	}
	failure := in.Failure
	if in.RecoveryFailure != nil {
		failure = *in.RecoveryFailure
	}
	return fmt.Errorf("probe stopped after %d ticks: %s", in.Ticks, failure)
}
