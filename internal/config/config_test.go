package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("KEYSERVE_ADMIN_TOKEN", "token")
	t.Setenv("KEYSERVE_LICENSE_SECRET", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Port)
	}
	if cfg.StoreBackend != BackendFile || cfg.DataFile != "keys_data.json" {
		t.Errorf("Expected file backend defaults, got %q %q", cfg.StoreBackend, cfg.DataFile)
	}
	if cfg.RateMax != 15 || cfg.RateWindow != time.Minute {
		t.Errorf("Expected 15 req/60s rate defaults, got %d/%s", cfg.RateMax, cfg.RateWindow)
	}
	if cfg.AllowSelfRegister {
		t.Error("Self-registration should be off by default")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("KEYSERVE_ADMIN_TOKEN", "token")
	os.Unsetenv("KEYSERVE_ADMIN_TOKEN")
	t.Setenv("KEYSERVE_LICENSE_SECRET", "secret")

	if _, err := Load(); err == nil {
		t.Error("Expected error without admin token")
	}
}

func TestLoad_PostgresRequiresURL(t *testing.T) {
	setRequired(t)
	t.Setenv("KEYSERVE_STORE_BACKEND", "postgres")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "KEYSERVE_DATABASE_URL") {
		t.Errorf("Expected missing database URL error, got %v", err)
	}

	t.Setenv("KEYSERVE_DATABASE_URL", "postgres://localhost/keyserve")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.StoreBackend != BackendPostgres {
		t.Errorf("Expected postgres backend, got %q", cfg.StoreBackend)
	}
}

func TestLoad_UnknownBackend(t *testing.T) {
	setRequired(t)
	t.Setenv("KEYSERVE_STORE_BACKEND", "dynamo")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "unknown store backend") {
		t.Errorf("Expected unknown backend error, got %v", err)
	}
}

func TestLoad_RejectsBadRateSettings(t *testing.T) {
	setRequired(t)
	t.Setenv("KEYSERVE_RATE_MAX", "0")

	if _, err := Load(); err == nil {
		t.Error("Expected error for zero rate limit")
	}
}
