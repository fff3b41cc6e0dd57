package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("SESSION_TTL", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Fatalf("expected default session ttl, got %s", cfg.SessionTTL)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Fatalf("expected default request timeout, got %s", cfg.RequestTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CLINIC_API_BASE_URL", "https://api.clinic.test")
	t.Setenv("CLINIC_API_TOKEN", "tok-123")
	t.Setenv("SESSION_TTL", "5m")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.ClinicAPIBaseURL != "https://api.clinic.test" {
		t.Fatalf("expected base url override, got %s", cfg.ClinicAPIBaseURL)
	}
	if cfg.ClinicAPIToken != "tok-123" {
		t.Fatalf("expected token override, got %s", cfg.ClinicAPIToken)
	}
	if cfg.SessionTTL != 5*time.Minute {
		t.Fatalf("expected session ttl override, got %s", cfg.SessionTTL)
	}
}

func TestLoadBadDurationFallsBack(t *testing.T) {
	t.Setenv("SESSION_TTL", "sometimes")
	cfg := Load()
	if cfg.SessionTTL != 30*time.Minute {
		t.Fatalf("expected fallback session ttl, got %s", cfg.SessionTTL)
	}
}
