// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"math"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
)

var delaysCommand = &cli.Command{
	Name:  "delays",
	Usage: "Print the delay schedule of a retry policy",
	Flags: []cli.Flag{
		policiesFlag,
		retryFlag,
		&cli.IntFlag{
			Name:  "attempts",
			Usage: "Number of attempts to print (defaults to the policy's max_retries)",
		},
	},
	Action: func(c *cli.Context) error {
		spec, err := loadRetry(c)
		if err != nil {
			return err
		}
		strategy := spec.Strategy()
		attempts := c.Int("attempts")
		if attempts <= 0 {
			attempts = spec.Retries()
		}

		fmt.Fprintf(c.App.Writer, "strategy: %s\n", strategy)
		w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ATTEMPT\tDELAY\tTOTAL")
		var total time.Duration
		for attempt := 1; attempt <= attempts; attempt++ {
			d := strategy.Delay(attempt)
			if d > math.MaxInt64-total {
				total = math.MaxInt64
			} else {
				total += d
			}
			fmt.Fprintf(w, "%d\t%s\t%s\n", attempt, d, total)
		}
		return w.Flush()
	},
}
