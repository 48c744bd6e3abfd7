package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var recomputeCmd = &cobra.Command{
	Use:     "recompute <convention-id>",
	Short:   "Re-derive and store the status of one convention",
	Example: `  conventionsctl recompute 42`,
	Args:    cobra.ExactArgs(1),
	RunE:    runRecompute,
}

func init() {
	rootCmd.AddCommand(recomputeCmd)
}

func runRecompute(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid convention id %q", args[0])
	}
	c, err := components(false)
	if err != nil {
		return err
	}
	defer c.Close()

	status, err := c.Service.RecomputeStatus(cmd.Context(), uint(id))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "convention %d: %s\n", id, status)
	return nil
}
