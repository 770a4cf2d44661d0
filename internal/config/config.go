// Package config provides configuration management for the application
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// StoreBackend selects where room records are persisted
type StoreBackend string

const (
	StoreMemory StoreBackend = "memory"
	StoreRedis  StoreBackend = "redis"
	StoreBadger StoreBackend = "badger"
)

// Config is the full application configuration
type Config struct {
	Port     string       `env:"PORT" envDefault:"8080"`
	LogLevel string       `env:"LOG_LEVEL" envDefault:"INFO"`
	Backend  StoreBackend `env:"STORE_BACKEND" envDefault:"memory"`

	Redis     RedisConfig
	Badger    BadgerConfig
	Scheduler SchedulerConfig
	Auth      AuthConfig
}

// RedisConfig holds Redis/Valkey configuration
type RedisConfig struct {
	// URI is prioritized if provided, otherwise individual connection parameters are used
	URI       string `env:"REDIS_URI"`
	Host      string `env:"REDIS_HOST" envDefault:"localhost"`
	Port      string `env:"REDIS_PORT" envDefault:"6379"`
	Username  string `env:"REDIS_USERNAME"`
	Password  string `env:"REDIS_PASSWORD"`
	DB        int    `env:"REDIS_DB" envDefault:"0"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"meetrooms:"`
	// TTL for ended rooms (0 means no expiration)
	EndedRoomTTL time.Duration `env:"REDIS_ENDED_ROOM_TTL" envDefault:"0s"`
	// MaxTxRetries bounds optimistic transaction retries on contention
	MaxTxRetries int `env:"REDIS_MAX_TX_RETRIES" envDefault:"10"`
}

// BadgerConfig holds the embedded Badger store configuration
type BadgerConfig struct {
	Path     string `env:"BADGER_PATH" envDefault:"./data/rooms"`
	InMemory bool   `env:"BADGER_IN_MEMORY" envDefault:"false"`
}

// SchedulerConfig holds the promotion scheduler configuration
type SchedulerConfig struct {
	Interval time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"1m"`
}

// AuthConfig holds the bearer token verification configuration
type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET"`
	Issuer    string `env:"JWT_ISSUER"`
}

// Load parses configuration from environment variables
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the cross-field constraints env tags cannot express
func (c Config) Validate() error {
	switch c.Backend {
	case StoreMemory, StoreRedis, StoreBadger:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Backend)
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("SCHEDULER_INTERVAL must be positive, got %s", c.Scheduler.Interval)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

// Address returns the host:port form of the Redis connection parameters
func (c RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}
