package config_test

import (
	"testing"
	"time"

	"github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("MAX_CONCURRENT_SESSIONS", "")
	t.Setenv("MAX_USERS_PER_SESSION", "")
	t.Setenv("SESSION_TIMEOUT_MINUTES", "")
	t.Setenv("SCRUM_MASTER_GRACE_PERIOD_MINUTES", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Limits.MaxConcurrentSessions != 3 || cfg.Limits.MaxUsersPerSession != 16 {
		t.Fatalf("unexpected limits %+v", cfg.Limits)
	}
	if cfg.Limits.SessionTimeout != 10*time.Minute || cfg.Limits.ScrumMasterGrace != 5*time.Minute {
		t.Fatalf("unexpected timeouts %+v", cfg.Limits)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_CONCURRENT_SESSIONS", "5")
	t.Setenv("SESSION_TIMEOUT_MINUTES", "2")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Limits.MaxConcurrentSessions != 5 {
		t.Fatalf("unexpected max sessions %d", cfg.Limits.MaxConcurrentSessions)
	}
	if cfg.Limits.SessionTimeout != 2*time.Minute {
		t.Fatalf("unexpected timeout %v", cfg.Limits.SessionTimeout)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_SESSIONS", "zero")
	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for non-numeric value")
	}

	t.Setenv("MAX_CONCURRENT_SESSIONS", "-1")
	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for negative value")
	}
}
