package recordstore

import (
	"time"
)

// Option configures a store configuration.
type Option func(*Config)

// Database connection options

// WithType selects the backend.
func WithType(storeType string) Option {
	return func(c *Config) {
		c.Type = storeType
	}
}

// WithConnection sets basic connection parameters for network-based backends.
func WithConnection(host string, port int, username, password, database string) Option {
	return func(c *Config) {
		c.Host = host
		c.Port = port
		c.Username = username
		c.Password = password
		c.Database = database
	}
}

// WithHost sets the connection host.
func WithHost(host string) Option {
	return func(c *Config) {
		c.Host = host
	}
}

// WithPort sets the connection port.
func WithPort(port int) Option {
	return func(c *Config) {
		c.Port = port
	}
}

// WithCredentials sets username and password.
func WithCredentials(username, password string) Option {
	return func(c *Config) {
		c.Username = username
		c.Password = password
	}
}

// WithDatabase sets the database name.
func WithDatabase(database string) Option {
	return func(c *Config) {
		c.Database = database
	}
}

// WithFilePath sets the file path for file-based backends (SQLite).
func WithFilePath(path string) Option {
	return func(c *Config) {
		c.FilePath = path
	}
}

// WithPooling configures connection pooling settings.
func WithPooling(maxOpen, maxIdle int, maxLifetime time.Duration) Option {
	return func(c *Config) {
		c.MaxOpenConns = maxOpen
		c.MaxIdleConns = maxIdle
		c.ConnMaxLifetime = maxLifetime
	}
}

// WithMaxOpenConns sets the maximum number of open connections.
func WithMaxOpenConns(max int) Option {
	return func(c *Config) {
		c.MaxOpenConns = max
	}
}

// Timeout options

// WithTimeouts configures operation timeouts.
func WithTimeouts(connect, query time.Duration) Option {
	return func(c *Config) {
		c.ConnectTimeout = connect
		c.QueryTimeout = query
	}
}

// WithRetry retries the initial connection while the backend starts up.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Config) {
		c.ConnectRetries = attempts
		c.RetryDelay = delay
	}
}

// Security options

// WithSSL configures SSL/TLS settings.
func WithSSL(mode string) Option {
	return func(c *Config) {
		c.SSLMode = mode
	}
}

// WithSSLDisabled disables SSL (equivalent to WithSSL("disable")).
func WithSSLDisabled() Option {
	return WithSSL("disable")
}

// Observability options

// WithTracing wraps SQL drivers with OpenTelemetry instrumentation.
func WithTracing(enabled bool) Option {
	return func(c *Config) {
		c.EnableTracing = enabled
	}
}

// Key-value options

// WithKeyPrefix namespaces keys written by key-value backends.
func WithKeyPrefix(prefix string) Option {
	return func(c *Config) {
		c.KeyPrefix = prefix
	}
}

// Custom options

// WithOption sets a custom option in the Options map.
func WithOption(key, value string) Option {
	return func(c *Config) {
		if c.Options == nil {
			c.Options = make(map[string]string)
		}
		c.Options[key] = value
	}
}

// Backend-specific convenience functions

// PostgreSQLOptions returns common PostgreSQL configuration options.
func PostgreSQLOptions(database, username, password string, opts ...Option) []Option {
	base := []Option{
		WithType(TypePostgres),
		WithPort(5432),
		WithDatabase(database),
		WithCredentials(username, password),
		WithSSLDisabled(),
	}
	return append(base, opts...)
}

// MySQLOptions returns common MySQL configuration options.
func MySQLOptions(database, username, password string, opts ...Option) []Option {
	base := []Option{
		WithType(TypeMySQL),
		WithPort(3306),
		WithDatabase(database),
		WithCredentials(username, password),
	}
	return append(base, opts...)
}

// SQLiteOptions returns common SQLite configuration options.
func SQLiteOptions(filePath string, opts ...Option) []Option {
	base := []Option{
		WithType(TypeSQLite),
		WithFilePath(filePath),
		WithMaxOpenConns(1),
	}
	return append(base, opts...)
}

// MemoryOptions returns common in-memory storage configuration options.
func MemoryOptions(opts ...Option) []Option {
	base := []Option{
		WithType(TypeMemory),
	}
	return append(base, opts...)
}

// RedisOptions returns common Redis configuration options. The database
// number is carried in Options["database"].
func RedisOptions(host string, port int, opts ...Option) []Option {
	base := []Option{
		WithType(TypeRedis),
		WithHost(host),
		WithPort(port),
		WithOption("database", "0"),
		WithKeyPrefix("recordstore:"),
	}
	return append(base, opts...)
}

// NewConfig creates a new configuration with the given options.
func NewConfig(opts ...Option) Config {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

// Apply applies multiple options to an existing configuration.
func (c *Config) Apply(opts ...Option) *Config {
	for _, opt := range opts {
		opt(c)
	}
	return c
}
