package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rockettradeline/backend-market/internal/config"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL": "postgres://localhost/market",
		"REDIS_URL":    "redis://localhost:6379/0",
		"JWT_SECRET":   "test-secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(baseEnv())
	require.NoError(t, err)

	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "USD", cfg.Currency)
	require.Equal(t, 720*time.Hour, cfg.CartTTL)
	require.Equal(t, 24*time.Hour, cfg.PaymentTTL)
	require.Equal(t, 30*time.Second, cfg.WatcherInterval)
	require.Equal(t, "100-M", cfg.RateLimit)
	require.Equal(t, "https://api-m.sandbox.paypal.com", cfg.PayPalBaseURL)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	env := baseEnv()
	env["DATABASE_URL"] = ""
	_, err := config.LoadForTests(env)
	require.Error(t, err)
}

func TestLoadRejectsTaxPercentOutOfRange(t *testing.T) {
	env := baseEnv()
	env["TAX_PERCENT"] = "150"
	_, err := config.LoadForTests(env)
	require.Error(t, err)
}

func TestLoadParsesOverrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = "9000"
	env["CART_TTL"] = "48h"
	env["CORS_ALLOWED_ORIGINS"] = "https://a.example, https://b.example"
	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)

	require.Equal(t, ":9000", cfg.HTTPAddr())
	require.Equal(t, 48*time.Hour, cfg.CartTTL)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}
