package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "SERVER_PORT")
	unsetEnvWithCleanup(t, "PAYMENT_PENDING_MINUTES")
	unsetEnvWithCleanup(t, "CHECKOUT_RATE_LIMIT_PER_MINUTE")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8086" {
		t.Fatalf("expected default server port 8086, got %q", cfg.ServerPort)
	}
	if cfg.PaymentPendingMinutes != 15 {
		t.Fatalf("expected default pending window of 15 minutes, got %d", cfg.PaymentPendingMinutes)
	}
	if cfg.CheckoutRateLimitPerMinute != 5 {
		t.Fatalf("expected default checkout rate limit of 5, got %d", cfg.CheckoutRateLimitPerMinute)
	}
}

func TestLoadConfig_EnvOverridesDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "9090")
	setEnvWithCleanup(t, "MIDTRANS_SERVER_KEY", "SB-Mid-server-test")
	setEnvWithCleanup(t, "PAYMENT_PENDING_MINUTES", "30")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Fatalf("expected server port 9090, got %q", cfg.ServerPort)
	}
	if cfg.MidtransServerKey != "SB-Mid-server-test" {
		t.Fatalf("expected server key from env, got %q", cfg.MidtransServerKey)
	}
	if cfg.PaymentPendingMinutes != 30 {
		t.Fatalf("expected pending window of 30 minutes, got %d", cfg.PaymentPendingMinutes)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
