package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubattendance/internal/attendance"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TIMEZONE", "UTC")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.Equal(t, attendance.PreferAvailability, cfg.DedupPolicy)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, "UTC", cfg.Location.String())
	assert.False(t, cfg.Production())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("DEDUP_POLICY", "strict")
	t.Setenv("ACCESS_TTL", "nonsense")
	t.Setenv("RATE_LIMIT_PER_MIN", "30")
	t.Setenv("TIMEZONE", "Asia/Shanghai")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Production())
	assert.Equal(t, "sqlite", cfg.StoreBackend)
	assert.Equal(t, attendance.PreferStrict, cfg.DedupPolicy)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL, "invalid duration falls back")
	assert.Equal(t, 30, cfg.RateLimitPerMin)
	assert.Equal(t, "Asia/Shanghai", cfg.Location.String())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("DEDUP_POLICY", "sometimes")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DEDUP_POLICY", "")
	t.Setenv("STORE_BACKEND", "mongo")
	_, err = Load()
	assert.Error(t, err)
}
