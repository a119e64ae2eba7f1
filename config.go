package recordstore

import (
	"slices"
	"time"
)

// Backend types understood by the built-in services.
const (
	TypePostgres = "postgres"
	TypeMySQL    = "mysql"
	TypeSQLite   = "sqlite"
	TypeMemory   = "memory"
	TypeRedis    = "redis"
)

// Config contains configuration fields common to all store adapters.
type Config struct {
	// Basic connection info
	Type     string // adapter type (postgres, mysql, sqlite, redis, memory)
	Host     string
	Port     int
	Username string
	Password string
	Database string
	FilePath string // sqlite database file, empty for an in-memory database
	SSLMode  string

	// Connection pooling
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Timeouts
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration

	// ConnectRetries is the number of extra connection attempts made while
	// the backend is still starting up, RetryDelay apart.
	ConnectRetries int
	RetryDelay     time.Duration

	// KeyPrefix namespaces every key written by key-value backends.
	KeyPrefix string

	// Backend-specific options
	Options map[string]string

	// Observability
	EnableTracing bool
}

// DefaultConfig returns a base configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Type:            TypeMemory,
		Host:            "localhost",
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 1 * time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		ConnectTimeout:  30 * time.Second,
		QueryTimeout:    30 * time.Second,
		RetryDelay:      2 * time.Second,
		Options:         make(map[string]string),
	}
}

// IsSQL reports whether the configured backend is a SQL database.
func (c Config) IsSQL() bool {
	return slices.Contains([]string{TypePostgres, TypeMySQL, TypeSQLite}, c.Type)
}

// Validate checks the configuration for the selected backend.
func (c Config) Validate() error {
	switch c.Type {
	case TypePostgres, TypeMySQL:
		if c.Database == "" && c.Options["url"] == "" {
			return NewConfigErrorForField("database", c.Database, "database name is required for "+c.Type)
		}
	case TypeSQLite, TypeMemory, TypeRedis:
	case "":
		return NewConfigErrorForField("type", c.Type, "store type is required")
	default:
		return NewConfigErrorForField("type", c.Type, "unknown store type")
	}
	if c.Port < 0 || c.Port > 65535 {
		return NewConfigErrorForField("port", c.Port, "port out of range")
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return NewConfigError("connection pool sizes must not be negative")
	}
	return nil
}
