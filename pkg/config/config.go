package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Write store (PostgreSQL system of record) configuration
	Database DatabaseConfig `mapstructure:"database"`

	// Read store (SurrealDB projection) configuration
	ReadStore ReadStoreConfig `mapstructure:"read_store"`

	// Redis configuration (cache and event transport)
	Redis RedisConfig `mapstructure:"redis"`

	// Cache behavior configuration
	Cache CacheConfig `mapstructure:"cache"`

	// Event publishing configuration
	Events EventsConfig `mapstructure:"events"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level"`

	// Monitoring configuration
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds write store configuration
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// ReadStoreConfig holds read store configuration
type ReadStoreConfig struct {
	URL       string `mapstructure:"url"`
	Namespace string `mapstructure:"namespace"`
	Database  string `mapstructure:"database"`
	User      string `mapstructure:"user"`
	Password  string `mapstructure:"password"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Addr returns the host:port address of the Redis server
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CacheConfig holds read-path cache behavior
type CacheConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	PointTTL  int  `mapstructure:"point_ttl"`
	SearchTTL int  `mapstructure:"search_ttl"`
}

// EventsConfig holds event publishing configuration.
// Mode is selected once at startup: "offline" logs envelopes without a
// transport, "live" publishes them to the configured channels.
type EventsConfig struct {
	Mode             string `mapstructure:"mode"`
	ServiceName      string `mapstructure:"service_name"`
	CreatedChannel   string `mapstructure:"created_channel"`
	UpdatedChannel   string `mapstructure:"updated_channel"`
	DeletedChannel   string `mapstructure:"deleted_channel"`
	ValidatedChannel string `mapstructure:"validated_channel"`
}

// MonitoringConfig holds monitoring configuration
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
	HealthPath  string `mapstructure:"health_path"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/ms-patients")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Override with environment variables
	overrideWithEnv(&config)

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.idle_timeout", 120)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "patients")
	viper.SetDefault("database.user", "patients")
	viper.SetDefault("database.ssl_mode", "require")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	// Read store defaults
	viper.SetDefault("read_store.url", "ws://localhost:8000/rpc")
	viper.SetDefault("read_store.namespace", "healthchain")
	viper.SetDefault("read_store.database", "patients_read")
	viper.SetDefault("read_store.user", "root")

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)

	// Cache defaults: 1 hour for point lookups, 5 minutes for search
	// pages (search results churn faster)
	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.point_ttl", 3600)
	viper.SetDefault("cache.search_ttl", 300)

	// Event defaults
	viper.SetDefault("events.mode", "offline")
	viper.SetDefault("events.service_name", "ms-patients")
	viper.SetDefault("events.created_channel", "patients.created")
	viper.SetDefault("events.updated_channel", "patients.updated")
	viper.SetDefault("events.deleted_channel", "patients.deleted")
	viper.SetDefault("events.validated_channel", "patients.validated")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_path", "/metrics")
	viper.SetDefault("monitoring.health_path", "/health")

	// Logging defaults
	viper.SetDefault("log_level", "info")
}

// overrideWithEnv overrides configuration with environment variables
func overrideWithEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if dbPassword := os.Getenv("DATABASE_PASSWORD"); dbPassword != "" {
		config.Database.Password = dbPassword
	}

	if rsPassword := os.Getenv("READ_STORE_PASSWORD"); rsPassword != "" {
		config.ReadStore.Password = rsPassword
	}

	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		config.Redis.Password = redisPassword
	}

	if mode := os.Getenv("EVENTS_MODE"); mode != "" {
		config.Events.Mode = mode
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.LogLevel = logLevel
	}
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Database.Password == "" {
		return fmt.Errorf("database password is required")
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Events.Mode != "offline" && config.Events.Mode != "live" {
		return fmt.Errorf("invalid events mode: %s", config.Events.Mode)
	}

	if config.Cache.PointTTL <= 0 || config.Cache.SearchTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}

	return nil
}
