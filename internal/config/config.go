package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the engine
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Log     LogConfig     `mapstructure:"log"`
	Audit   AuditConfig   `mapstructure:"audit"`
	Undo    UndoConfig    `mapstructure:"undo"`
	Session SessionConfig `mapstructure:"session"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	// Driver is the storage backend: "postgres" or "sqlite"
	Driver string `mapstructure:"driver"`
	// Path is the database file location when Driver is "sqlite"
	Path     string         `mapstructure:"path"`
	Postgres DatabaseConfig `mapstructure:"postgres"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration. Redis is optional; when
// enabled it provides the cross-process sweep lease.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AuditConfig holds audit log configuration
type AuditConfig struct {
	// BatchDelay is the window within which LogAction writes are
	// coalesced into one flush. Zero or negative disables batching
	// and writes through synchronously.
	BatchDelay time.Duration `mapstructure:"batch_delay"`
	// RetentionDays is the maximum age of an audit entry before the
	// sweeper prunes it.
	RetentionDays int `mapstructure:"retention_days"`
	// PruneInterval is how often the sweeper runs retention pruning.
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

// UndoConfig holds undo stack configuration
type UndoConfig struct {
	// MaxStackSize caps entries per session; the oldest entries are
	// evicted when a push would exceed it.
	MaxStackSize int `mapstructure:"max_stack_size"`
}

// SessionConfig holds session lifecycle configuration
type SessionConfig struct {
	// MaxAgeHours is the inactivity window after which a session's
	// undo stack is reclaimed.
	MaxAgeHours int `mapstructure:"max_age_hours"`
	// SweepInterval is how often the sweeper reclaims expired sessions.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set config file name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/chronicle")

	// Set defaults
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Bind environment variables
	v.SetEnvPrefix("CHRONICLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Storage defaults
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "data/chronicle.db")
	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", 5432)
	v.SetDefault("storage.postgres.name", "chronicle")
	v.SetDefault("storage.postgres.user", "chronicle")
	v.SetDefault("storage.postgres.password", "")
	v.SetDefault("storage.postgres.ssl_mode", "disable")
	v.SetDefault("storage.postgres.max_connections", 25)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Audit defaults
	v.SetDefault("audit.batch_delay", "100ms")
	v.SetDefault("audit.retention_days", 90)
	v.SetDefault("audit.prune_interval", "1h")

	// Undo defaults
	v.SetDefault("undo.max_stack_size", 100)

	// Session defaults
	v.SetDefault("session.max_age_hours", 24)
	v.SetDefault("session.sweep_interval", "15m")
}
