package adapter

import (
	"context"
	"errors"
	"time"

	"recordstore"
)

// ErrKeyNotFound is returned by Connection.Get for a missing key.
var ErrKeyNotFound = errors.New("key not found")

// Adapter represents a key-value store adapter (Redis, Memory).
type Adapter interface {
	// Name returns the adapter's unique identifier.
	Name() string

	// Connect establishes a connection to the key-value store.
	Connect(ctx context.Context, config *Config) (Connection, error)

	// ConnectionString builds the connection string from config.
	ConnectionString(config *Config) string

	// Error classification
	IsKeyNotFoundError(err error) bool
	IsConnectionError(err error) bool

	// Close releases any resources held by the adapter.
	Close() error
}

// Connection represents a connection to a key-value store.
type Connection interface {
	// Basic key-value operations
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Batch operations
	MGet(ctx context.Context, keys []string) (map[string][]byte, error)
	MDelete(ctx context.Context, keys []string) error

	// Keys returns every key matching a glob pattern of the form "prefix*".
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Incr atomically increments an integer counter, creating it at zero.
	Incr(ctx context.Context, key string) (int64, error)

	// Health and stats
	Ping(ctx context.Context) error
	Stats() any
	Close() error
}

// Config is an alias to recordstore.Config. KV-specific settings (database
// number, connection URL) are carried in the Options map.
type Config = recordstore.Config

// Option configures a KV adapter.
type Option = recordstore.Option

// DefaultConfig returns a KV configuration with sensible defaults.
func DefaultConfig() Config {
	config := recordstore.DefaultConfig()
	config.Options["database"] = "0"
	return config
}

func isKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}
