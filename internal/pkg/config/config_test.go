package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("ADMIN_API_URL", "http://admin.internal:8000")
	t.Setenv("ADMIN_API_TOKEN", "test-token")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.AdminTimeout)
	assert.Equal(t, 5, cfg.BreakerThreshold)
	assert.Equal(t, 60*time.Second, cfg.BreakerCooldown)
	assert.Equal(t, "localhost:6379", cfg.CacheAddr())
}

func TestLoadRefusesMissingSecrets(t *testing.T) {
	t.Setenv("ADMIN_API_URL", "http://admin.internal:8000")
	t.Setenv("ADMIN_API_TOKEN", "test-token")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ADMIN_API_URL", "not a url")

	_, err := Load()
	require.Error(t, err)
}

func TestDurationEnvAcceptsBareSeconds(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ADMIN_API_TIMEOUT", "30")
	t.Setenv("BREAKER_COOLDOWN", "90s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.AdminTimeout)
	assert.Equal(t, 90*time.Second, cfg.BreakerCooldown)
}
