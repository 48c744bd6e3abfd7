package main

import (
	"fmt"
	"os"

	"github.com/diewo77/conventions/internal/app"
	"github.com/diewo77/conventions/internal/config"
	"github.com/diewo77/conventions/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "conventionsctl",
	Short: "Maintenance CLI for conventions and their invoice schedules",
	Long: `conventionsctl applies schema migrations, runs reconciliation sweeps on demand,
re-derives the status of a single convention and mints operator sessions.

Configuration is read from the environment (and a .env file when present),
the same way the HTTP server reads it.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		cfg = config.Load()
		return logger.Setup(cfg.Log)
	},
}

// cfg is loaded once before any subcommand runs.
var cfg *config.Config

// components opens the database and wires the services.
func components(migrate bool) (*app.Components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return app.Build(cfg, migrate)
}

func Execute() {
	if err := execute(); err != nil {
		os.Exit(1)
	}
}

// execute runs the root command and reports its failure. The logger is taken
// after the command returns so it carries the configured level and format.
func execute() error {
	err := rootCmd.Execute()
	if err != nil {
		lg := logger.WithComponent("cmd")
		lg.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
	}
	return err
}
