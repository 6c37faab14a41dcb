package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ATELIER_CONFIG", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Server.GRPCAddr != ":9090" {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Auth.MaxLoginAttempts != 10 || cfg.Auth.Issuer != "atelier" {
		t.Fatalf("unexpected auth defaults: %+v", cfg.Auth)
	}
	if cfg.ReadTimeout != 15*time.Second || cfg.ConnMaxLifetime != 30*time.Minute {
		t.Fatalf("derived durations not set: %v %v", cfg.ReadTimeout, cfg.ConnMaxLifetime)
	}
	if cfg.Production() {
		t.Fatalf("default env must not be production")
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	yaml := `
app:
  env: production
auth:
  access_secret: file-access
  refresh_secret: file-refresh
  max_login_attempts: 5
http:
  cors_origins:
    - https://app.example.com
database:
  driver: memory
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ATELIER_AUTH_ACCESS_SECRET", "env-access")
	t.Setenv("ATELIER_SERVER_ADDR", ":9999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.AccessSecret != "env-access" {
		t.Fatalf("env must override file, got %q", cfg.Auth.AccessSecret)
	}
	if cfg.Auth.RefreshSecret != "file-refresh" || cfg.Auth.MaxLoginAttempts != 5 {
		t.Fatalf("file values lost: %+v", cfg.Auth)
	}
	if cfg.Server.Addr != ":9999" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if !cfg.Production() {
		t.Fatalf("expected production")
	}
	if len(cfg.HTTP.CORSOrigins) != 1 || cfg.HTTP.CORSOrigins[0] != "https://app.example.com" {
		t.Fatalf("unexpected origins: %v", cfg.HTTP.CORSOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("ATELIER_CONFIG", "")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("ATELIER_LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("ATELIER_LOG_LEVEL") })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected level from .env, got %q", cfg.Log.Level)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		Database: DatabaseCfg{Driver: "postgres", DSN: "postgres://localhost/atelier"},
		Auth:     AuthCfg{AccessSecret: "a", RefreshSecret: "b", MaxLoginAttempts: 10},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	missing := base
	missing.Auth.AccessSecret = ""
	missing.Database.DSN = ""
	err := missing.Validate()
	if err == nil {
		t.Fatalf("expected missing secret error")
	}
	if !strings.Contains(err.Error(), "ATELIER_AUTH_ACCESS_SECRET") || !strings.Contains(err.Error(), "ATELIER_DATABASE_DSN") {
		t.Fatalf("error should list missing variables: %v", err)
	}

	same := base
	same.Auth.RefreshSecret = "a"
	if err := same.Validate(); err == nil {
		t.Fatalf("expected identical secrets error")
	}

	unknown := base
	unknown.Database.Driver = "sqlite"
	if err := unknown.Validate(); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
