package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/conventions/auth"
	"github.com/diewo77/conventions/internal/services"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func sqliteEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_SQLITE_PATH", filepath.Join(t.TempDir(), "ctl.db"))
	t.Setenv("DB_LOG_LEVEL", "silent")
	t.Setenv("MIGRATIONS", "auto")
	t.Setenv("LOG_LEVEL", "error")
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("SESSION_SECRET", "cli-secret")
	out, err := runCLI(t, "token", "ops@example.com", "--ttl", "1h")
	if err != nil {
		t.Fatalf("token error = %v", err)
	}
	actor, err := auth.NewSigner("cli-secret", time.Hour).Verify(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("Verify(%q) error = %v", out, err)
	}
	if actor != "ops@example.com" {
		t.Errorf("actor = %q, want ops@example.com", actor)
	}
}

func TestSweepCommand(t *testing.T) {
	sqliteEnv(t)
	if _, err := runCLI(t, "migrate"); err != nil {
		t.Fatalf("migrate error = %v", err)
	}

	out, err := runCLI(t, "sweep", "all")
	if err != nil {
		t.Fatalf("sweep all error = %v", err)
	}
	var reports []services.SweepReport
	if err := json.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(reports) != len(services.Sweeps) {
		t.Errorf("reports = %d, want %d", len(reports), len(services.Sweeps))
	}

	if _, err := runCLI(t, "sweep", "weekly"); err == nil {
		t.Error("unknown sweep should fail")
	}
}

func TestRecomputeCommandErrors(t *testing.T) {
	sqliteEnv(t)
	if _, err := runCLI(t, "recompute", "abc"); err == nil {
		t.Error("non-numeric id should fail")
	}
	if _, err := runCLI(t, "migrate"); err != nil {
		t.Fatalf("migrate error = %v", err)
	}
	if _, err := runCLI(t, "recompute", "7"); err == nil || !strings.Contains(err.Error(), "not_found") {
		t.Errorf("missing convention error = %v, want not_found", err)
	}
}

func TestFailureLogUsesConfiguredLogger(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "ctl.log")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("LOG_OUTPUT", logFile)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"recompute", "abc"})
	if err := execute(); err == nil {
		t.Fatal("execute() should fail for a non-numeric id")
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("log line is not JSON: %q", data)
	}
	if entry["component"] != "cmd" || entry["message"] != "Command execution failed" {
		t.Errorf("log entry = %v", entry)
	}
}
