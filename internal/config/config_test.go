package config

import (
	"testing"
	"time"
)

func TestLoadRequiresSessionSecret(t *testing.T) {
	t.Setenv("HERON_SESSION_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without session secret")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HERON_SESSION_SECRET", "test-secret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.SessionName != "heron_session" {
		t.Fatalf("session name = %q", cfg.SessionName)
	}
	if cfg.ResetTokenTTL != 2*time.Hour {
		t.Fatalf("reset ttl = %v", cfg.ResetTokenTTL)
	}
	if cfg.SecureCookies {
		t.Fatal("secure cookies should be off outside production")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HERON_SESSION_SECRET", "test-secret")
	t.Setenv("HERON_ENV", "production")
	t.Setenv("HERON_ADDR", ":9090")
	t.Setenv("HERON_RESET_TOKEN_TTL", "30m")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.ResetTokenTTL != 30*time.Minute {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if !cfg.SecureCookies {
		t.Fatal("production should force secure cookies")
	}
}
