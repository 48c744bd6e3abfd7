// Package app assembles the long-lived components shared by the server and the CLI.
package app

import (
	"fmt"

	"github.com/diewo77/conventions/auth"
	"github.com/diewo77/conventions/internal/clock"
	"github.com/diewo77/conventions/internal/config"
	"github.com/diewo77/conventions/internal/db"
	"github.com/diewo77/conventions/internal/logger"
	"github.com/diewo77/conventions/internal/services"
	"github.com/diewo77/conventions/internal/store"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Components are the wired collaborators of one process.
type Components struct {
	Config     *config.Config
	DB         *gorm.DB
	Store      *store.Gorm
	Service    *services.ConventionService
	Reconciler *services.Reconciler
	Signer     *auth.Signer
}

// Build opens the database, migrates it when asked and wires the services.
func Build(cfg *config.Config, migrate bool) (*Components, error) {
	loc, err := cfg.App.Location()
	if err != nil {
		return nil, fmt.Errorf("time zone: %w", err)
	}
	taxRate, err := decimal.NewFromString(cfg.App.DefaultTaxRate)
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_TAX_RATE: %w", err)
	}

	gdb, err := db.Open(cfg.Database, logger.WithComponent("store"))
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := db.Migrate(gdb, cfg); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return Wire(cfg, gdb, clock.System{Location: loc}, taxRate), nil
}

// Wire builds the services on an open database.
func Wire(cfg *config.Config, gdb *gorm.DB, clk clock.Clock, taxRate decimal.Decimal) *Components {
	st := store.New(gdb)
	svc := services.NewConventionService(st, clk,
		services.WithLogger(logger.WithComponent("services")),
		services.WithNotifier(services.LogNotifier{Log: logger.WithComponent("notifier")}),
		services.WithTaxRate(taxRate),
		services.WithExpiringWindow(cfg.App.ExpiringWindowDays),
	)
	return &Components{
		Config:     cfg,
		DB:         gdb,
		Store:      st,
		Service:    svc,
		Reconciler: services.NewReconciler(st, svc, logger.WithComponent("reconciler")),
		Signer:     auth.NewSigner(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL),
	}
}

// Close releases the database pool.
func (c *Components) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
