package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/calls_test")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC_test")
	t.Setenv("TWILIO_AUTH_TOKEN", "token_test")
	t.Setenv("INTERNAL_AUTH_TOKEN", "internal_test")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DialTimeout != 30*time.Second {
		t.Fatalf("DialTimeout = %v, want 30s", cfg.DialTimeout)
	}
	if cfg.StaleMargin != 5*time.Second {
		t.Fatalf("StaleMargin = %v, want 5s", cfg.StaleMargin)
	}
	if cfg.ReconcileBatchSize != 50 {
		t.Fatalf("ReconcileBatchSize = %d, want 50", cfg.ReconcileBatchSize)
	}
	if cfg.HookRateLimit != 30 || cfg.HookRateBurst != 60 {
		t.Fatalf("hook rate = %v/%d, want 30/60", cfg.HookRateLimit, cfg.HookRateBurst)
	}
}

func TestLoad_MissingRequiredVars(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoad_MalformedValuesFailBoot(t *testing.T) {
	cases := []struct {
		key   string
		value string
	}{
		{"TWILIO_HTTP_TIMEOUT", "ten-seconds"},
		{"DIAL_TIMEOUT", "30"},
		{"RECONCILE_INTERVAL", "often"},
		{"RECONCILE_BATCH_SIZE", "abc"},
		{"PROVIDER_RATE_LIMIT", "fast"},
		{"WEBHOOK_RATE_BURST", "1.5"},
	}

	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			if err == nil {
				t.Fatalf("expected error for %s=%q", tc.key, tc.value)
			}
			if !strings.Contains(err.Error(), tc.key) {
				t.Fatalf("error %q does not name %s", err, tc.key)
			}
		})
	}
}

func TestLoad_ZeroBatchSizeRejected(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RECONCILE_BATCH_SIZE", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for a zero batch size")
	}
}
