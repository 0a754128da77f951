// Package config loads and validates the process configuration from
// environment variables (and an optional .env file), in the teacher's
// style: github.com/caarlos0/env struct tags with a Validate() pass.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// ServerConfig holds process/listener basics.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envDefault:"8080"`
}

// WebSocketConfig holds connection/registry limits (spec §4.2).
type WebSocketConfig struct {
	HeartbeatIntervalSeconds           int `env:"WEBSOCKET_HEARTBEAT_INTERVAL" envDefault:"30"`
	ConnectionTimeoutSeconds           int `env:"WEBSOCKET_CONNECTION_TIMEOUT" envDefault:"60"`
	MaxConnections                     int `env:"WEBSOCKET_MAX_CONNECTIONS" envDefault:"10000"`
	MaxConnectionsPerUser              int `env:"WEBSOCKET_MAX_CONNECTIONS_PER_USER" envDefault:"10"`
	MaxSubscriptionsPerConnection      int `env:"WEBSOCKET_MAX_SUBSCRIPTIONS_PER_CONNECTION" envDefault:"50"`
}

// QueueConfig holds the offline-queue backend configuration (spec §4.4, §9).
type QueueConfig struct {
	Enabled                bool   `env:"QUEUE_ENABLED" envDefault:"false"`
	Backend                string `env:"QUEUE_BACKEND" envDefault:"memory"` // memory|redis|sql
	MaxSizePerUser         int    `env:"QUEUE_MAX_SIZE_PER_USER" envDefault:"100"`
	MessageTTLSeconds      int64  `env:"QUEUE_MESSAGE_TTL_SECONDS" envDefault:"3600"`
	CleanupIntervalSeconds int    `env:"QUEUE_CLEANUP_INTERVAL_SECONDS" envDefault:"300"`
	RedisPrefix            string `env:"QUEUE_REDIS_PREFIX" envDefault:"ara:queue"`
}

// AckConfig holds the ack-tracker backend configuration (spec §4.5, §9).
type AckConfig struct {
	Enabled                bool   `env:"ACK_ENABLED" envDefault:"false"`
	Backend                string `env:"ACK_BACKEND" envDefault:"memory"` // memory|redis|sql
	TimeoutSeconds         int64  `env:"ACK_TIMEOUT_SECONDS" envDefault:"30"`
	CleanupIntervalSeconds int    `env:"ACK_CLEANUP_INTERVAL_SECONDS" envDefault:"60"`
	RedisPrefix            string `env:"ACK_REDIS_PREFIX" envDefault:"ara:ack"`
}

// RateLimitConfig holds the HTTP/WS rate limiter configuration (spec §4.1).
type RateLimitConfig struct {
	Enabled                bool    `env:"RATELIMIT_ENABLED" envDefault:"true"`
	HTTPRequestsPerSecond  float64 `env:"RATELIMIT_HTTP_REQUESTS_PER_SECOND" envDefault:"50"`
	HTTPBurstSize          int     `env:"RATELIMIT_HTTP_BURST_SIZE" envDefault:"100"`
	WSConnectionsPerMinute int     `env:"RATELIMIT_WS_CONNECTIONS_PER_MINUTE" envDefault:"60"`
	Backend                string  `env:"RATELIMIT_BACKEND" envDefault:"memory"` // memory|redis
	BucketTTLSeconds       int     `env:"RATELIMIT_BUCKET_TTL_SECONDS" envDefault:"600"`
}

// ClusterConfig holds the distributed session store / router configuration
// (spec §4.6).
type ClusterConfig struct {
	Enabled               bool   `env:"CLUSTER_ENABLED" envDefault:"false"`
	ServerID              string `env:"CLUSTER_SERVER_ID" envDefault:""`
	SessionPrefix         string `env:"CLUSTER_SESSION_PREFIX" envDefault:"ara:session"`
	SessionTTLSeconds     int    `env:"CLUSTER_SESSION_TTL_SECONDS" envDefault:"90"`
	RoutingChannel        string `env:"CLUSTER_ROUTING_CHANNEL" envDefault:"ara:routing"`
}

// CircuitBreakerConfig configures the Redis-facing breaker (spec §4.9, §9).
type CircuitBreakerConfig struct {
	FailureThreshold     int `env:"REDIS_CIRCUIT_BREAKER_FAILURE_THRESHOLD" envDefault:"5"`
	SuccessThreshold     int `env:"REDIS_CIRCUIT_BREAKER_SUCCESS_THRESHOLD" envDefault:"2"`
	ResetTimeoutSeconds  int `env:"REDIS_CIRCUIT_BREAKER_RESET_TIMEOUT_SECONDS" envDefault:"30"`
}

// BackoffConfig configures the Redis reconnect backoff (spec §4.9, §9).
type BackoffConfig struct {
	InitialDelayMs int     `env:"REDIS_BACKOFF_INITIAL_DELAY_MS" envDefault:"100"`
	MaxDelayMs     int     `env:"REDIS_BACKOFF_MAX_DELAY_MS" envDefault:"30000"`
	Multiplier     float64 `env:"REDIS_BACKOFF_MULTIPLIER" envDefault:"2.0"`
	JitterFactor   float64 `env:"REDIS_BACKOFF_JITTER_FACTOR" envDefault:"0.1"`
}

// TenantConfig configures multi-tenancy defaults (spec §4.12).
type TenantConfig struct {
	Enabled              bool `env:"TENANT_ENABLED" envDefault:"false"`
	DefaultMaxConnections int `env:"TENANT_DEFAULT_MAX_CONNECTIONS" envDefault:"1000"`
	DefaultMaxChannels    int `env:"TENANT_DEFAULT_MAX_CHANNELS" envDefault:"100"`
}

// Config is the full process configuration, assembled the way the teacher
// assembles its flat Config: one struct, env-tag driven, validated once.
type Config struct {
	Server         ServerConfig
	WebSocket      WebSocketConfig
	Queue          QueueConfig
	Ack            AckConfig
	RateLimit      RateLimitConfig
	Cluster        ClusterConfig
	CircuitBreaker CircuitBreakerConfig
	Backoff        BackoffConfig
	Tenant         TenantConfig

	JWTSecret   string `env:"JWT_SECRET" envDefault:""`
	RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:""`
	APIKey      string `env:"API_KEY" envDefault:""`

	MetricsInterval time.Duration `env:"METRICS_INTERVAL" envDefault:"15s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// Load reads configuration from an optional .env file and the process
// environment. Priority: ENV vars > .env file > defaults.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found, using environment variables only")
		}
	} else if logger != nil {
		logger.Info().Msg("loaded configuration overrides from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if logger != nil {
		logger.Info().Msg("configuration loaded and validated")
	}
	return cfg, nil
}

// Validate checks configuration for internal consistency, including the
// spec §3 invariant that session TTL must exceed the heartbeat interval.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be 1-65535, got %d", c.Server.Port)
	}
	if c.WebSocket.MaxConnections < 1 {
		return fmt.Errorf("WEBSOCKET_MAX_CONNECTIONS must be > 0, got %d", c.WebSocket.MaxConnections)
	}
	if c.WebSocket.MaxConnectionsPerUser < 1 {
		return fmt.Errorf("WEBSOCKET_MAX_CONNECTIONS_PER_USER must be > 0, got %d", c.WebSocket.MaxConnectionsPerUser)
	}
	if c.WebSocket.MaxSubscriptionsPerConnection < 1 {
		return fmt.Errorf("WEBSOCKET_MAX_SUBSCRIPTIONS_PER_CONNECTION must be > 0, got %d", c.WebSocket.MaxSubscriptionsPerConnection)
	}
	if c.WebSocket.HeartbeatIntervalSeconds < 1 {
		return fmt.Errorf("WEBSOCKET_HEARTBEAT_INTERVAL must be > 0, got %d", c.WebSocket.HeartbeatIntervalSeconds)
	}

	validBackends := map[string]bool{"memory": true, "redis": true, "sql": true}
	if !validBackends[c.Queue.Backend] {
		return fmt.Errorf("QUEUE_BACKEND must be one of memory|redis|sql, got %q", c.Queue.Backend)
	}
	if !validBackends[c.Ack.Backend] {
		return fmt.Errorf("ACK_BACKEND must be one of memory|redis|sql, got %q", c.Ack.Backend)
	}
	validRLBackends := map[string]bool{"memory": true, "redis": true}
	if !validRLBackends[c.RateLimit.Backend] {
		return fmt.Errorf("RATELIMIT_BACKEND must be one of memory|redis, got %q", c.RateLimit.Backend)
	}

	if c.Cluster.Enabled {
		if int64(c.Cluster.SessionTTLSeconds) <= int64(c.WebSocket.HeartbeatIntervalSeconds) {
			return fmt.Errorf(
				"CLUSTER_SESSION_TTL_SECONDS (%d) must be > WEBSOCKET_HEARTBEAT_INTERVAL (%d)",
				c.Cluster.SessionTTLSeconds, c.WebSocket.HeartbeatIntervalSeconds,
			)
		}
	}

	if c.CircuitBreaker.FailureThreshold < 1 {
		return fmt.Errorf("REDIS_CIRCUIT_BREAKER_FAILURE_THRESHOLD must be > 0")
	}
	if c.CircuitBreaker.SuccessThreshold < 1 {
		return fmt.Errorf("REDIS_CIRCUIT_BREAKER_SUCCESS_THRESHOLD must be > 0")
	}
	if c.Backoff.MaxDelayMs < c.Backoff.InitialDelayMs {
		return fmt.Errorf("REDIS_BACKOFF_MAX_DELAY_MS must be >= REDIS_BACKOFF_INITIAL_DELAY_MS")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of debug|info|warn|error, got %q", c.LogLevel)
	}
	validLogFormats := map[string]bool{"json": true, "text": true, "pretty": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("LOG_FORMAT must be one of json|text|pretty, got %q", c.LogFormat)
	}

	return nil
}

// LogConfig logs the resolved configuration using structured logging.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("environment", c.Environment).
		Str("host", c.Server.Host).
		Int("port", c.Server.Port).
		Int("max_connections", c.WebSocket.MaxConnections).
		Bool("queue_enabled", c.Queue.Enabled).
		Str("queue_backend", c.Queue.Backend).
		Bool("ack_enabled", c.Ack.Enabled).
		Str("ack_backend", c.Ack.Backend).
		Bool("cluster_enabled", c.Cluster.Enabled).
		Bool("ratelimit_enabled", c.RateLimit.Enabled).
		Str("log_level", c.LogLevel).
		Msg("configuration loaded")
}
