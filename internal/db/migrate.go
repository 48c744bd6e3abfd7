package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/diewo77/conventions/internal/config"
	"github.com/diewo77/conventions/internal/models"
	migrate "github.com/golang-migrate/migrate/v4"
	// Registers the postgres database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Models lists every table managed by AutoMigrate, parents first.
var Models = []interface{}{&models.Convention{}, &models.Invoice{}}

// Migrate brings the schema up to date according to the configured mode:
// "sql" runs the embedded SQL migrations, "auto" uses gorm AutoMigrate, "off" does nothing.
func Migrate(gdb *gorm.DB, cfg *config.Config) error {
	switch cfg.App.Migrations {
	case config.MigrationsOff:
		return nil
	case config.MigrationsSQL:
		if err := RunSQLMigrations(cfg.Database.URL()); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
	default:
		if err := AutoMigrate(gdb); err != nil {
			return err
		}
	}

	for _, table := range []string{"conventions", "invoices"} {
		if !gdb.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// AutoMigrate creates or alters the tables from the gorm models.
func AutoMigrate(gdb *gorm.DB) error {
	for _, m := range Models {
		if err := gdb.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

// RunSQLMigrations applies the embedded migrations to the postgres database at url.
func RunSQLMigrations(url string) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
