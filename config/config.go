// Package config provides viper-driven configuration for the bot-world
// engine's bootstrap (cmd/server): the tick engine's own tunables plus
// every adapter it wires in (HTTP/WebSocket gateway, Postgres, Redis,
// JWKS auth). Defaults layer under an optional config.yaml, which in
// turn layers under SIMCORE_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/caolo/simcore/pkg/logger"
)

// Config holds every adapter and engine tunable the bootstrap reads.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Security SecurityConfig `mapstructure:"security"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig contains the script/user store's Postgres connection
// settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// RedisConfig contains the compiled-program/schema cache's Redis
// connection settings.
type RedisConfig struct {
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	Password           string        `mapstructure:"password"`
	Database           int           `mapstructure:"database"`
	MaxRetries         int           `mapstructure:"max_retries"`
	MinRetryBackoff    time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff    time.Duration `mapstructure:"max_retry_backoff"`
	DialTimeout        time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	PoolSize           int           `mapstructure:"pool_size"`
	MinIdleConns       int           `mapstructure:"min_idle_conns"`
	MaxConnAge         time.Duration `mapstructure:"max_conn_age"`
	PoolTimeout        time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	IdleCheckFrequency time.Duration `mapstructure:"idle_check_frequency"`
}

// AuthConfig contains the JWKS bearer-token validation settings. This
// engine never signs tokens itself: it only verifies ones issued by
// the configured identity provider, so there is no access/refresh
// secret pair here.
type AuthConfig struct {
	JWKSURI     string        `mapstructure:"jwks_uri"`
	JWKSRefresh time.Duration `mapstructure:"jwks_refresh"`
	Issuer      string        `mapstructure:"issuer"`
	Audience    string        `mapstructure:"audience"`
}

// LoggingConfig contains zap logger settings.
type LoggingConfig struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"`
	OutputPaths []string `mapstructure:"output_paths"`
	ErrorPaths  []string `mapstructure:"error_paths"`
	Development bool     `mapstructure:"development"`
	Sampling    bool     `mapstructure:"sampling"`
}

// EngineConfig contains the tick orchestrator's own tunables: how
// often it advances, and the bounds the VM and worker pool enforce
// per script.
type EngineConfig struct {
	TickInterval       time.Duration `mapstructure:"tick_interval"`
	WorkerPoolSize     int           `mapstructure:"worker_pool_size"`
	MaxStackDepth      int           `mapstructure:"max_stack_depth"`
	MaxArenaBytes      int           `mapstructure:"max_arena_bytes"`
	MaxInstructions    int           `mapstructure:"max_instructions"`
	PathfinderMaxSteps int           `mapstructure:"pathfinder_max_steps"`
}

// SecurityConfig contains the gateway's CORS settings.
type SecurityConfig struct {
	CORSEnabled        bool     `mapstructure:"cors_enabled"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
	CORSAllowedMethods []string `mapstructure:"cors_allowed_methods"`
	CORSAllowedHeaders []string `mapstructure:"cors_allowed_headers"`
}

// Load reads configuration from ./config.yaml (if present), then
// environment variables prefixed SIMCORE_, layered over the defaults
// below.
func Load() (*Config, error) {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.username", "simcore")
	viper.SetDefault("database.database", "simcore")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "300s")
	viper.SetDefault("database.conn_max_idle_time", "60s")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.database", 0)
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.min_retry_backoff", "8ms")
	viper.SetDefault("redis.max_retry_backoff", "512ms")
	viper.SetDefault("redis.dial_timeout", "5s")
	viper.SetDefault("redis.read_timeout", "3s")
	viper.SetDefault("redis.write_timeout", "3s")
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 2)
	viper.SetDefault("redis.max_conn_age", "600s")
	viper.SetDefault("redis.pool_timeout", "4s")
	viper.SetDefault("redis.idle_timeout", "300s")
	viper.SetDefault("redis.idle_check_frequency", "60s")

	viper.SetDefault("auth.jwks_refresh", "10m")
	viper.SetDefault("auth.issuer", "simcore")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_paths", []string{"stdout"})
	viper.SetDefault("logging.error_paths", []string{"stderr"})
	viper.SetDefault("logging.development", false)
	viper.SetDefault("logging.sampling", true)

	viper.SetDefault("engine.tick_interval", "100ms")
	viper.SetDefault("engine.worker_pool_size", 8)
	viper.SetDefault("engine.max_stack_depth", 256)
	viper.SetDefault("engine.max_arena_bytes", 2048)
	viper.SetDefault("engine.max_instructions", 100000)
	viper.SetDefault("engine.pathfinder_max_steps", 512)

	viper.SetDefault("security.cors_enabled", true)
	viper.SetDefault("security.cors_allowed_origins", []string{"*"})
	viper.SetDefault("security.cors_allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("security.cors_allowed_headers", []string{"*"})

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/simcore")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SIMCORE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	overrideWithEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv applies the handful of secrets viper's automatic env
// binding won't pick up because SetDefault was never called for them
// (an unset default means AutomaticEnv has no key to bind against).
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("SIMCORE_DATABASE_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("SIMCORE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("JWKS_URI"); v != "" {
		cfg.Auth.JWKSURI = v
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if cfg.Database.MaxOpenConns < 1 {
		return fmt.Errorf("database max_open_conns must be at least 1")
	}
	if cfg.Engine.WorkerPoolSize < 1 {
		return fmt.Errorf("engine worker_pool_size must be at least 1")
	}
	if cfg.Engine.MaxStackDepth < 1 {
		return fmt.Errorf("engine max_stack_depth must be at least 1")
	}
	if cfg.Engine.MaxArenaBytes < 1 {
		return fmt.Errorf("engine max_arena_bytes must be at least 1")
	}
	return nil
}

// GetServerAddress returns the gateway's listen address.
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetRedisAddress returns the cache's dial address.
func (c *Config) GetRedisAddress() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// IsDevelopment reports whether logging.development is set.
func (c *Config) IsDevelopment() bool {
	return c.Logging.Development
}

// CreateLogger builds this process's *zap.Logger from the Logging
// section, delegating to pkg/logger so the encoder/level wiring lives
// in exactly one place.
func (c *Config) CreateLogger() (*zap.Logger, error) {
	return logger.New(logger.Options{
		Level:       c.Logging.Level,
		Format:      c.Logging.Format,
		Development: c.Logging.Development,
		OutputPaths: c.Logging.OutputPaths,
		ErrorPaths:  c.Logging.ErrorPaths,
		Sampling:    c.Logging.Sampling,
	})
}
