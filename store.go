// Package recordstore provides schema-driven record storage with multi-backend
// support and a single generic repository contract.
//
// The root package holds the core abstractions (records, schemas, the Store
// contract, typed errors and configuration). Backend-specific implementations
// live in sub-packages: sql (PostgreSQL, MySQL, SQLite) and kv (memory, Redis).
package recordstore

import (
	"context"
	"time"
)

// Service defines the common interface for all storage services.
// Different backends (SQL, KV) implement this interface.
type Service interface {
	// Connect establishes the connection to the storage backend
	Connect(ctx context.Context) error

	// Close closes the connection and releases resources
	Close() error

	// Ping verifies the backend is reachable
	Ping(ctx context.Context) error

	// Stats returns backend-specific statistics
	Stats() any

	// NewRepository creates a new repository for the given schema
	NewRepository(schema Schema) Store
}

// Transactor provides a backend-agnostic transaction execution contract.
// Implementations may be no-ops if the backend does not support transactions.
type Transactor interface {
	// WithTx executes fn within a read-write transaction when supported.
	// The provided context may carry a backend-specific transaction handle.
	WithTx(ctx context.Context, fn func(context.Context) error) error

	// WithReadTx executes fn within a read-only transaction when supported.
	WithReadTx(ctx context.Context, fn func(context.Context) error) error
}

// RunTx executes fn within a read-write transaction when s supports them,
// and directly otherwise.
func RunTx(ctx context.Context, s any, fn func(context.Context) error) error {
	if tx, ok := s.(Transactor); ok {
		return tx.WithTx(ctx, fn)
	}
	return fn(ctx)
}

// WithTimeout derives a context bounded by timeout. A non-positive timeout
// returns ctx unchanged with a no-op cancel.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
