package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %s", cfg.HTTPTimeout)
	}
	if cfg.PerDiemRate != 70.00 {
		t.Errorf("expected per-diem 70.00, got %v", cfg.PerDiemRate)
	}
	if cfg.DataBackend != config.BackendHTTP {
		t.Errorf("expected http backend, got %s", cfg.DataBackend)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PER_DIEM_RATE", "85.5")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("TIMEZONE", "Not/AZone")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.PerDiemRate != 85.5 {
		t.Errorf("expected 85.5, got %v", cfg.PerDiemRate)
	}
	if cfg.HTTPTimeout != 5*time.Second {
		t.Errorf("expected 5s, got %s", cfg.HTTPTimeout)
	}
	if cfg.DataBackend != config.BackendMemory {
		t.Errorf("expected memory backend, got %s", cfg.DataBackend)
	}
	if cfg.Location() != time.UTC {
		t.Errorf("expected UTC fallback for unknown zone")
	}
	if got := cfg.AllowedOrigins(); len(got) != 2 || got[1] != "https://b.example.com" {
		t.Errorf("unexpected origins %v", got)
	}
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("DATA_BACKEND", "redis")
	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("LEDGER_TEST_A=from-file\nLEDGER_TEST_B=\"quoted\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LEDGER_TEST_A", "from-env")
	t.Setenv("LEDGER_TEST_B", "")
	os.Unsetenv("LEDGER_TEST_B")

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("LEDGER_TEST_A"); got != "from-env" {
		t.Errorf("expected env to win, got %q", got)
	}
	if got := os.Getenv("LEDGER_TEST_B"); got != "quoted" {
		t.Errorf("expected quoted value from file, got %q", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := config.LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
}
