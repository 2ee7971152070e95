package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MAMACARE_AUTH_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTP.Addr)
	require.Equal(t, ":9090", cfg.HTTP.GRPCAddr)
	require.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)
	require.Equal(t, 720*time.Hour, cfg.Auth.TokenTTL)
	require.Equal(t, 12, cfg.Auth.BcryptCost)
	require.Equal(t, 5, cfg.Auth.LockThreshold)
	require.Equal(t, 2*time.Hour, cfg.Auth.LockDuration)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)
	require.False(t, cfg.UsesPostgres())
	require.False(t, cfg.UsesRedis())
	require.False(t, cfg.Database.AutoMigrate)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAMACARE_AUTH_SECRET", "s3cret")
	t.Setenv("MAMACARE_PG_DSN", "postgres://localhost/mamacare")
	t.Setenv("MAMACARE_REDIS_ADDR", "localhost:6379")
	t.Setenv("MAMACARE_REDIS_DB", "3")
	t.Setenv("MAMACARE_LOCK_THRESHOLD", "3")
	t.Setenv("MAMACARE_PG_AUTO_MIGRATE", "true")
	t.Setenv("MAMACARE_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.UsesPostgres())
	require.True(t, cfg.UsesRedis())
	require.Equal(t, 3, cfg.Redis.DB)
	require.Equal(t, 3, cfg.Auth.LockThreshold)
	require.True(t, cfg.Database.AutoMigrate)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("MAMACARE_AUTH_SECRET", "")
	t.Setenv("MAMACARE_TOKEN_TTL", "forever")

	_, err := Load()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrMissingSecret))
	require.Contains(t, err.Error(), "MAMACARE_TOKEN_TTL")
}
