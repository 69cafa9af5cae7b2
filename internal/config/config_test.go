package config

import (
	"testing"
	"time"
)

func TestLoad_AppEnvValidation(t *testing.T) {
	t.Setenv("APP_ENV", "invalid")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid APP_ENV")
	}
}

func TestLoad_UptraceRequiresDSNWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when UPTRACE_ENABLED=true without UPTRACE_DSN")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected HTTPAddr: %q", cfg.HTTPAddr)
	}
	if cfg.ProviderMaxRetries != 3 {
		t.Fatalf("unexpected ProviderMaxRetries: %d", cfg.ProviderMaxRetries)
	}
	if cfg.ProviderPaceInterval != 100*time.Millisecond {
		t.Fatalf("unexpected ProviderPaceInterval: %s", cfg.ProviderPaceInterval)
	}
	if cfg.CacheTTLPlayer != 30*time.Minute {
		t.Fatalf("unexpected CacheTTLPlayer: %s", cfg.CacheTTLPlayer)
	}
	if cfg.CacheTTLDerived != 24*time.Hour {
		t.Fatalf("unexpected CacheTTLDerived: %s", cfg.CacheTTLDerived)
	}
	if cfg.WebhookMaxAttempts != 5 || cfg.WebhookDisableAfter != 10 {
		t.Fatalf("unexpected webhook retry defaults: attempts=%d disable_after=%d",
			cfg.WebhookMaxAttempts, cfg.WebhookDisableAfter)
	}
	if cfg.JobDailySyncCron != "0 3 * * *" {
		t.Fatalf("unexpected JobDailySyncCron: %q", cfg.JobDailySyncCron)
	}
	if cfg.JobTransferCheckInterval != 4*time.Hour {
		t.Fatalf("unexpected JobTransferCheckInterval: %s", cfg.JobTransferCheckInterval)
	}
	if cfg.DeliveryRetention != 7*24*time.Hour || cfg.JobRunRetention != 14*24*time.Hour {
		t.Fatalf("unexpected retention defaults: deliveries=%s runs=%s",
			cfg.DeliveryRetention, cfg.JobRunRetention)
	}
}

func TestLoad_ProviderOverrides(t *testing.T) {
	t.Setenv("APP_ENV", EnvStage)
	t.Setenv("PROVIDER_BASE_URL", "https://staging.scoutdata.example.com/v2")
	t.Setenv("PROVIDER_API_KEY", "key-123")
	t.Setenv("PROVIDER_MAX_RETRIES", "1")
	t.Setenv("PROVIDER_TIMEOUT", "5s")
	t.Setenv("PROVIDER_CIRCUIT_FAILURE_COUNT", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ProviderBaseURL != "https://staging.scoutdata.example.com/v2" {
		t.Fatalf("unexpected ProviderBaseURL: %q", cfg.ProviderBaseURL)
	}
	if cfg.ProviderAPIKey != "key-123" {
		t.Fatalf("unexpected ProviderAPIKey")
	}
	if cfg.ProviderMaxRetries != 1 {
		t.Fatalf("unexpected ProviderMaxRetries: %d", cfg.ProviderMaxRetries)
	}
	if cfg.ProviderTimeout != 5*time.Second {
		t.Fatalf("unexpected ProviderTimeout: %s", cfg.ProviderTimeout)
	}
	if cfg.ProviderCircuitFailureCount != 3 {
		t.Fatalf("unexpected ProviderCircuitFailureCount: %d", cfg.ProviderCircuitFailureCount)
	}
}

func TestLoad_RejectsBadDurations(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("CACHE_TTL_PLAYER", "not-a-duration")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid CACHE_TTL_PLAYER")
	}
}

func TestLoad_RejectsNonPositiveCounts(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("WEBHOOK_WORKERS", "0")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for WEBHOOK_WORKERS=0")
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]string{
		"debug":   "debug",
		"WARN":    "warn",
		"warning": "warn",
		"error":   "error",
		"":        "info",
		"bogus":   "info",
	}
	for input, want := range cases {
		if got := parseLogLevel(input).String(); got != want {
			t.Fatalf("parseLogLevel(%q) = %s, want %s", input, got, want)
		}
	}
}
