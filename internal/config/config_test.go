package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.App.Migrations != MigrationsAuto {
		t.Errorf("Migrations = %q, want auto", cfg.App.Migrations)
	}
	if cfg.Scheduler.DateTransitions != "0 6 * * *" || cfg.Scheduler.Comprehensive != "0 3 * * *" {
		t.Errorf("daily specs = %q / %q", cfg.Scheduler.DateTransitions, cfg.Scheduler.Comprehensive)
	}
	if cfg.Scheduler.JobTimeout != 5*time.Minute {
		t.Errorf("JobTimeout = %v, want 5m", cfg.Scheduler.JobTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "SQLITE")
	t.Setenv("SCHEDULER_ENABLED", "no")
	t.Setenv("SWEEP_TIMEOUT", "90s")
	t.Setenv("EXPIRING_WINDOW_DAYS", "not-a-number")

	cfg := Load()
	if cfg.Server.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Scheduler.Enabled {
		t.Error("Scheduler.Enabled = true, want false")
	}
	if cfg.Scheduler.JobTimeout != 90*time.Second {
		t.Errorf("JobTimeout = %v, want 90s", cfg.Scheduler.JobTimeout)
	}
	if cfg.App.ExpiringWindowDays != 30 {
		t.Errorf("ExpiringWindowDays = %d, want fallback 30", cfg.App.ExpiringWindowDays)
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "conv", SSLMode: "disable"}
	if got, want := d.DSN(), "host=db port=5432 user=u password=p dbname=conv sslmode=disable"; got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
	if got, want := d.URL(), "postgres://u:p@db:5432/conv?sslmode=disable"; got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
	d.RawDSN = "postgres://x:y@h/z"
	if d.DSN() != d.RawDSN || d.URL() != d.RawDSN {
		t.Errorf("DB_DSN should win, got %q / %q", d.DSN(), d.URL())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }, "DB_DRIVER"},
		{"bad migrations", func(c *Config) { c.App.Migrations = "maybe" }, "MIGRATIONS"},
		{"sql migrations on sqlite", func(c *Config) {
			c.Database.Driver = "sqlite"
			c.App.Migrations = MigrationsSQL
		}, "requires DB_DRIVER=postgres"},
		{"bad timezone", func(c *Config) { c.App.TimeZone = "Mars/Olympus" }, "APP_TIMEZONE"},
		{"dev secret in production", func(c *Config) {
			c.App.Dev = false
			c.Auth.SessionSecret = "devsessionsecret"
		}, "SESSION_SECRET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
