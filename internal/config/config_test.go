package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.DebugMode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, time.Minute, cfg.SessionSweepInterval)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.Equal(t, 10000, cfg.MaxSessions)
	assert.Nil(t, cfg.GetAllowedOrigins())
	assert.Nil(t, cfg.GetTrustedProxies())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_TTL", "15m")
	t.Setenv("DEBUG_MODE", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8")
	t.Setenv("MAX_SESSIONS", "50")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
	assert.False(t, cfg.DebugMode)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.GetAllowedOrigins())
	assert.Equal(t, []string{"10.0.0.0/8"}, cfg.GetTrustedProxies())
	assert.Equal(t, 50, cfg.MaxSessions)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("SESSION_TTL", "0s")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("SESSION_TTL", "soon")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("MAX_SESSIONS", "-1")
	_, err = Load()
	assert.Error(t, err)
}
