package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "ENV", "DB_DRIVER", "INVITE_CODE", "LOG_LEVEL", "AUTH_RATE_LIMIT_RPS"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DBDriver != "mysql" {
		t.Errorf("DBDriver = %q, want mysql", cfg.DBDriver)
	}
	if cfg.InviteCode != defaultInviteCode {
		t.Errorf("InviteCode = %q, want default", cfg.InviteCode)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json", cfg.Log.Format)
	}
	if cfg.AuthRateLimitRPS != 5 || cfg.AuthRateLimitBurst != 10 {
		t.Errorf("rate limit = %v/%d, want 5/10", cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("INVITE_CODE", "letmein")
	t.Setenv("AUTH_RATE_LIMIT_BURST", "3")
	t.Setenv("LOG_FILE", "/tmp/foldr.log")

	cfg := Load()

	if cfg.Port != "9000" || cfg.DBDriver != "postgres" || cfg.InviteCode != "letmein" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.AuthRateLimitBurst != 3 {
		t.Errorf("AuthRateLimitBurst = %d, want 3", cfg.AuthRateLimitBurst)
	}
	if cfg.Log.File != "/tmp/foldr.log" {
		t.Errorf("Log.File = %q", cfg.Log.File)
	}
}

func TestGetEnvIntInvalidFallsBack(t *testing.T) {
	t.Setenv("SOME_INT", "not-a-number")
	if got := getEnvInt("SOME_INT", 7); got != 7 {
		t.Errorf("getEnvInt() = %d, want 7", got)
	}
}

func TestLoadClient(t *testing.T) {
	t.Setenv("FOLDR_SERVER_URL", "https://foldr.example")
	t.Setenv("FOLDR_DATA_DIR", "/tmp/foldr-data")
	t.Setenv("FOLDR_TIMEOUT", "3s")

	cfg := LoadClient()

	if cfg.ServerURL != "https://foldr.example" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.DataDir != "/tmp/foldr-data" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", cfg.Timeout)
	}
	if cfg.CacheVersion != "v1" {
		t.Errorf("CacheVersion = %q, want v1", cfg.CacheVersion)
	}
	if cfg.HealthInterval != 30*time.Second {
		t.Errorf("HealthInterval = %v, want 30s", cfg.HealthInterval)
	}
}
