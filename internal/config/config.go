// Package config loads the analytics backend's configuration from the
// environment (optionally layered under a .env file in development).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/pulsewire/pulse/internal/runtime"
)

// ServerConfig controls the HTTP API listener.
type ServerConfig struct {
	Addr           string        `env:"SERVER_ADDR,default=0.0.0.0:8080"`
	ReadTimeout    time.Duration `env:"SERVER_READ_TIMEOUT,default=15s"`
	WriteTimeout   time.Duration `env:"SERVER_WRITE_TIMEOUT,default=15s"`
	CORSOrigins    []string      `env:"CORS_ORIGINS,default=*"`
	ShutdownGrace  time.Duration `env:"SERVER_SHUTDOWN_GRACE,default=10s"`
}

// DatabaseConfig controls the Postgres connection used for the raw event
// store, rollups, projects, and users.
type DatabaseConfig struct {
	DSN             string `env:"DATABASE_DSN,required"`
	MaxOpenConns    int    `env:"DATABASE_MAX_OPEN_CONNS,default=20"`
	MaxIdleConns    int    `env:"DATABASE_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME,default=5m"`
}

// RedisConfig controls the durable buffer, credential artifact store, and
// live-delivery pub/sub, all backed by the same Redis instance.
type RedisConfig struct {
	URL             string        `env:"REDIS_URL,required"`
	StreamName      string        `env:"REDIS_STREAM_NAME,default=events:ingest"`
	ConsumerGroup   string        `env:"REDIS_CONSUMER_GROUP,default=event_workers"`
	ConsumeCount    int64         `env:"REDIS_CONSUME_COUNT,default=200"`
	ConsumeBlock    time.Duration `env:"REDIS_CONSUME_BLOCK,default=2s"`
}

// AuthConfig controls JWT issuance, password hashing, and the daily IP-hash
// secret.
type AuthConfig struct {
	JWTSecret       string        `env:"AUTH_JWT_SECRET,required"`
	IPHashSecret    string        `env:"AUTH_IP_HASH_SECRET,required"`
	AccessTokenTTL  time.Duration `env:"AUTH_ACCESS_TOKEN_TTL,default=30m"`
	RefreshTokenTTL time.Duration `env:"AUTH_REFRESH_TOKEN_TTL,default=168h"`
	TicketTTL       time.Duration `env:"AUTH_TICKET_TTL,default=30s"`
	LockoutThreshold int          `env:"AUTH_LOCKOUT_THRESHOLD,default=5"`
	LockoutWindow   time.Duration `env:"AUTH_LOCKOUT_WINDOW,default=15m"`
}

// RateLimitConfig controls the per-route, per-IP token-bucket limiter.
type RateLimitConfig struct {
	DefaultPerMinute int `env:"RATE_LIMIT_DEFAULT_PER_MINUTE,default=60"`
	LoginPerMinute   int `env:"RATE_LIMIT_LOGIN_PER_MINUTE,default=10"`
	RegisterPerMinute int `env:"RATE_LIMIT_REGISTER_PER_MINUTE,default=5"`
}

// WorkerConfig controls the drain worker's loop and rollup cadence.
type WorkerConfig struct {
	RollupInterval time.Duration `env:"WORKER_ROLLUP_INTERVAL,default=60s"`
	RollupCron     string        `env:"WORKER_ROLLUP_CRON,default=@every 1m"`
}

// LoggingConfig controls application logging.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=text"`
	Output string `env:"LOG_OUTPUT,default=stdout"`
}

// MetricsConfig holds Prometheus settings. The server does not read these
// fields: /metrics is always served on the main HTTP listener.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED,default=true"`
	Addr    string `env:"METRICS_ADDR,default=:9090"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Worker    WorkerConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
}

// Load loads configuration from environment variables, layered over an
// optional .env file in development/testing.
func Load() (*Config, error) {
	if runtime.IsDevelopmentOrTesting() {
		_ = godotenv.Load()
	}

	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and environment-specific constraints
// before any service starts.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	if strings.TrimSpace(c.Redis.URL) == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 16 bytes")
	}
	if len(c.Auth.IPHashSecret) < 16 {
		return fmt.Errorf("AUTH_IP_HASH_SECRET must be at least 16 bytes")
	}
	if runtime.IsProduction() {
		if c.Server.CORSOrigins[0] == "*" {
			return fmt.Errorf("CORS_ORIGINS must not be '*' in production")
		}
	}
	return nil
}
