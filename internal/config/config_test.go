package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: "9090"
database:
  driver: sqlite
  path: test.db
jwt:
  secret: dev-secret
`)

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.Throttle.FailStreak != 2 || cfg.Throttle.BlockDuration() != 5*time.Minute {
		t.Fatalf("throttle = %+v, want streak 2 and 5m", cfg.Throttle)
	}
	if cfg.JWT.ExpireTime != 24*time.Hour {
		t.Fatalf("jwt expiry = %v, want 24h", cfg.JWT.ExpireTime)
	}
	if cfg.Cache.TestTTL() != 5*time.Minute {
		t.Fatalf("test ttl = %v, want 5m", cfg.Cache.TestTTL())
	}
}

func TestLoadConfigRejectsShortSecretInRelease(t *testing.T) {
	dir := writeConfig(t, `
server:
  mode: release
database:
  driver: sqlite
jwt:
  secret: short
`)
	if _, err := LoadConfig(dir); err == nil {
		t.Fatalf("expected error for short release secret")
	}
}

func TestValidateThrottle(t *testing.T) {
	cfg := Config{Database: DatabaseConfig{Driver: "mysql"}, Throttle: ThrottleConfig{FailStreak: 0, BlockMinutes: 5}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for zero fail streak")
	}
	cfg.Throttle.FailStreak = 3
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Database.Driver = "oracle"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}
