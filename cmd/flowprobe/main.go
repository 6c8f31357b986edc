// SPDX-License-Identifier: Apache-2.0

// Command flowprobe prints retry schedules and probes HTTP endpoints on a
// schedule, using policies from a YAML file.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/sam-fredrickson/resultflow/policyfile"
)

// Version is set at build time.
var Version = "dev"

var policiesFlag = &cli.StringFlag{
	Name:    "policies",
	Aliases: []string{"p"},
	Usage:   "Policy file (YAML)",
	EnvVars: []string{"FLOWPROBE_POLICIES"},
}

var retryFlag = &cli.StringFlag{
	Name:  "retry",
	Usage: "Name of the retry policy in the policy file",
	Value: "default",
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:    "flowprobe",
		Usage:   "Inspect retry policies and probe HTTP endpoints",
		Version: Version,
		Description: `flowprobe evaluates resultflow retry and periodic policies.

Examples:
  flowprobe delays --policies policies.yaml --retry api --attempts 6
  flowprobe probe --url https://example.com/healthz --interval 10s
  flowprobe probe --url https://example.com/healthz -p policies.yaml --periodic heartbeat`,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable debug logging",
				EnvVars: []string{"FLOWPROBE_VERBOSE"},
			},
		},
		Commands: []*cli.Command{
			delaysCommand,
			probeCommand,
		},
	}
}

func main() {
	app := newApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger writes text logs to the app's error writer.
func newLogger(c *cli.Context) *slog.Logger {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))
}

// loadRetry returns the named retry spec, or the library defaults when no
// policy file is given.
func loadRetry(c *cli.Context) (policyfile.RetrySpec, error) {
	path := c.String(policiesFlag.Name)
	if path == "" {
		return policyfile.RetrySpec{}, nil
	}
	f, err := policyfile.Load(path)
	if err != nil {
		return policyfile.RetrySpec{}, err
	}
	return f.RetryPolicy(c.String(retryFlag.Name))
}
