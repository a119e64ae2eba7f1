package adapter

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"recordstore"
)

// Adapter represents a SQL database adapter (PostgreSQL, MySQL, SQLite).
type Adapter interface {
	// Name returns the adapter's unique identifier.
	Name() string

	// Dialect returns the migration dialect name understood by goose.
	Dialect() string

	// Connect opens and configures a connection pool. Reachability is
	// verified by the caller.
	Connect(ctx context.Context, config *Config) (*sql.DB, error)

	// ConnectionString builds the connection string from config.
	ConnectionString(config *Config) string

	// Statement building
	Placeholder() sq.PlaceholderFormat
	SupportsReturning() bool
	DefaultTxOptions() *sql.TxOptions

	// Error classification
	IsUniqueConstraintViolation(err error) bool
	IsForeignKeyViolation(err error) bool
	IsConnectionError(err error) bool

	// Close releases any resources held by the adapter.
	Close() error
}

// Config is an alias to recordstore.Config. Driver-specific parameters are
// carried in the Options map.
type Config = recordstore.Config

// Option configures a SQL adapter.
type Option = recordstore.Option
