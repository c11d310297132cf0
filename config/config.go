package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backend names accepted by Storage.Backend
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config holds all library configuration
type Config struct {
	App     AppConfig
	Gateway GatewayConfig
	Storage StorageConfig
	Redis   RedisConfig
	Sync    SyncConfig
	Log     LogConfig
}

// AppConfig holds application-level settings
type AppConfig struct {
	Name string
	Env  string
}

// GatewayConfig holds remote backend settings
type GatewayConfig struct {
	BaseURL string
	Timeout time.Duration
}

// StorageConfig selects and configures the local store backend
type StorageConfig struct {
	Backend string // memory, file, redis, sqlite
	Dir     string // file backend: data directory
	Path    string // sqlite backend: database file
}

// RedisConfig holds Redis connection settings for the redis backend
type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// SyncConfig holds reconciliation tuning
type SyncConfig struct {
	MergeRetryBudget time.Duration
	RecentCapacity   int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with SHOPSYNC_ prefix (e.g., SHOPSYNC_GATEWAY_BASE_URL)
// 2. shopsync.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("shopsync")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/shopsync")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("SHOPSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Gateway: GatewayConfig{
			BaseURL: v.GetString("gateway.base_url"),
			Timeout: v.GetDuration("gateway.timeout"),
		},
		Storage: StorageConfig{
			Backend: v.GetString("storage.backend"),
			Dir:     v.GetString("storage.dir"),
			Path:    v.GetString("storage.path"),
		},
		Redis: RedisConfig{
			Host:      v.GetString("redis.host"),
			Port:      v.GetInt("redis.port"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			KeyPrefix: v.GetString("redis.key_prefix"),
			TTL:       v.GetDuration("redis.ttl"),
		},
		Sync: SyncConfig{
			MergeRetryBudget: v.GetDuration("sync.merge_retry_budget"),
			RecentCapacity:   v.GetInt("sync.recent_capacity"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "commerce-sync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Gateway.Timeout == 0 {
		cfg.Gateway.Timeout = 10 * time.Second
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendMemory
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "."
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "shopsync.db"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "shopsync"
	}
	if cfg.Sync.MergeRetryBudget == 0 {
		cfg.Sync.MergeRetryBudget = 15 * time.Second
	}
	if cfg.Sync.RecentCapacity == 0 {
		cfg.Sync.RecentCapacity = 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway.base_url is required")
	}
	u, err := url.Parse(c.Gateway.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("gateway.base_url %q is not a valid URL", c.Gateway.BaseURL)
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("gateway.timeout must be positive")
	}

	switch c.Storage.Backend {
	case BackendMemory, BackendFile, BackendRedis, BackendSQLite:
	default:
		return fmt.Errorf("storage.backend %q is not one of memory, file, redis, sqlite", c.Storage.Backend)
	}

	if c.Sync.RecentCapacity < 0 {
		return fmt.Errorf("sync.recent_capacity cannot be negative")
	}

	if c.App.Env == "production" && u.Scheme != "https" {
		return fmt.Errorf("gateway.base_url must use https in production")
	}

	return nil
}

// Addr returns the host:port address for the Redis client
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
