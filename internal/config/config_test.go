package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"DATABASE_DSN", "REDIS_URL", "AUTH_JWT_SECRET", "AUTH_IP_HASH_SECRET",
		"CORS_ORIGINS", "PULSE_ENV", "ENVIRONMENT",
	}
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		k, old, had := k, old, had
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			} else {
				os.Unsetenv(k)
			}
		})
	}
}

func TestLoadRequiresDatabaseDSN(t *testing.T) {
	clearEnv(t)
	os.Setenv("REDIS_URL", "redis://localhost:6379")
	os.Setenv("AUTH_JWT_SECRET", "0123456789abcdef")
	os.Setenv("AUTH_IP_HASH_SECRET", "0123456789abcdef")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "DATABASE_DSN")
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("DATABASE_DSN", "postgres://localhost/pulse")
	os.Setenv("REDIS_URL", "redis://localhost:6379")
	os.Setenv("AUTH_JWT_SECRET", "0123456789abcdef")
	os.Setenv("AUTH_IP_HASH_SECRET", "0123456789abcdef")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	require.Equal(t, "events:ingest", cfg.Redis.StreamName)
	require.Equal(t, "event_workers", cfg.Redis.ConsumerGroup)
	require.Equal(t, 60, cfg.RateLimit.DefaultPerMinute)
	require.Equal(t, 5, cfg.Auth.LockoutThreshold)
	require.Equal(t, 20, cfg.Database.MaxOpenConns)
	require.Equal(t, "@every 1m", cfg.Worker.RollupCron)
}

func TestValidateRejectsShortSecrets(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{DSN: "x"},
		Redis:    RedisConfig{URL: "redis://localhost"},
		Auth:     AuthConfig{JWTSecret: "short", IPHashSecret: "0123456789abcdef"},
		Server:   ServerConfig{CORSOrigins: []string{"*"}},
	}
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "AUTH_JWT_SECRET")
}

func TestValidateRejectsWildcardCORSInProduction(t *testing.T) {
	clearEnv(t)
	os.Setenv("PULSE_ENV", "production")

	cfg := &Config{
		Database: DatabaseConfig{DSN: "x"},
		Redis:    RedisConfig{URL: "redis://localhost"},
		Auth:     AuthConfig{JWTSecret: "0123456789abcdef", IPHashSecret: "0123456789abcdef"},
		Server:   ServerConfig{CORSOrigins: []string{"*"}},
	}
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "CORS_ORIGINS")
}
