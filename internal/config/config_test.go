package config

import (
	"os"
	"testing"
	"time"
)

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	original, existed := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset %s: %v", key, err)
	}
	t.Cleanup(func() {
		if !existed {
			_ = os.Unsetenv(key)
			return
		}
		_ = os.Setenv(key, original)
	})
}

func TestProviderTimeoutDefaultsToTenSeconds(t *testing.T) {
	unsetEnv(t, "DINTERO_TIMEOUT")

	cfg := New()
	if cfg.DinteroTimeout != 10*time.Second {
		t.Fatalf("expected 10s default timeout, got %s", cfg.DinteroTimeout)
	}
}

func TestProviderTimeoutIgnoresInvalidValues(t *testing.T) {
	t.Setenv("DINTERO_TIMEOUT", "soon")

	cfg := New()
	if cfg.DinteroTimeout != 10*time.Second {
		t.Fatalf("expected fallback to default timeout, got %s", cfg.DinteroTimeout)
	}
}

func TestPaymentsConfiguredRequiresAllCredentials(t *testing.T) {
	t.Setenv("DINTERO_ACCOUNT_ID", "12345678")
	t.Setenv("DINTERO_CLIENT_ID", "client")
	unsetEnv(t, "DINTERO_CLIENT_SECRET")

	cfg := New()
	if cfg.PaymentsConfigured() {
		t.Fatalf("expected payments to be unconfigured without a client secret")
	}

	t.Setenv("DINTERO_CLIENT_SECRET", "secret")
	if !New().PaymentsConfigured() {
		t.Fatalf("expected payments to be configured with all credentials")
	}
}

func TestKafkaBrokersAreSplitAndTrimmed(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")

	cfg := New()
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "kafka-1:9092" || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers: %#v", cfg.KafkaBrokers)
	}
}

func TestDatabaseURLOverride(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/shop")

	if got := New().DatabaseURL; got != "postgres://u:p@db:5432/shop" {
		t.Fatalf("expected DATABASE_URL to win, got %q", got)
	}
}
