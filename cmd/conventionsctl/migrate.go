package main

import (
	"fmt"

	"github.com/diewo77/conventions/internal/config"
	"github.com/diewo77/conventions/internal/logger"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Apply the schema using the configured MIGRATIONS mode: "auto" runs gorm
AutoMigrate, "sql" runs the embedded SQL migrations (postgres only).`,
	Example: `  # Embedded SQL migrations against postgres
  MIGRATIONS=sql conventionsctl migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if cfg.App.Migrations == config.MigrationsOff {
		return fmt.Errorf("MIGRATIONS=off, nothing to do")
	}
	c, err := components(true)
	if err != nil {
		return err
	}
	defer c.Close()
	lg := logger.WithComponent("migrate")
	lg.Info().Str("mode", cfg.App.Migrations).Msg("migrations applied")
	return nil
}
