package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/diewo77/conventions/internal/services"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep <name|all>",
	Short: "Run a reconciliation sweep now",
	Long: fmt.Sprintf(`Run one reconciliation sweep, or all of them in order, and print the
JSON reports. Known sweeps: %s.`, sweepNames()),
	Example: `  conventionsctl sweep overdue-invoices
  conventionsctl sweep all --timeout 10m`,
	Args: cobra.ExactArgs(1),
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().Duration("timeout", 0, "Abort after this long (default: SWEEP_TIMEOUT)")
}

func sweepNames() string {
	names := make([]string, len(services.Sweeps))
	for i, s := range services.Sweeps {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func runSweep(cmd *cobra.Command, args []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		timeout = cfg.Scheduler.JobTimeout
	}

	var name services.SweepName
	if args[0] != "all" {
		var err error
		if name, err = services.ParseSweepName(args[0]); err != nil {
			return err
		}
	}

	c, err := components(false)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var out any
	if name == "" {
		out, err = c.Reconciler.RunAll(ctx)
	} else {
		out, err = c.Reconciler.Run(ctx, name)
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
