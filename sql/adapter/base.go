package adapter

import (
	"database/sql"
	"errors"
	"net"
	"strings"

	"github.com/XSAM/otelsql"
	"go.opentelemetry.io/otel/attribute"
)

// BaseSQLAdapter provides common functionality for all SQL adapters.
type BaseSQLAdapter struct {
	db         *sql.DB
	driverName string
	name       string
}

// NewBaseSQLAdapter creates a new base SQL adapter.
func NewBaseSQLAdapter(driverName, name string) *BaseSQLAdapter {
	return &BaseSQLAdapter{
		driverName: driverName,
		name:       name,
	}
}

// Name returns the adapter name.
func (a *BaseSQLAdapter) Name() string {
	return a.name
}

// open opens the pool, wrapping the driver with OpenTelemetry tracing when
// enabled, and applies the pool settings.
func (a *BaseSQLAdapter) open(config *Config, connectionString string) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	if config.EnableTracing {
		db, err = otelsql.Open(a.driverName, connectionString,
			otelsql.WithAttributes(attribute.String("db.system", a.name)),
		)
	} else {
		db, err = sql.Open(a.driverName, connectionString)
	}
	if err != nil {
		return nil, err
	}

	a.configureConnectionPool(db, config)
	a.db = db
	return db, nil
}

func (a *BaseSQLAdapter) configureConnectionPool(db *sql.DB, config *Config) {
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if config.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}
}

// Close closes the database connection.
func (a *BaseSQLAdapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// SupportsReturning is false unless the dialect overrides it.
func (a *BaseSQLAdapter) SupportsReturning() bool {
	return false
}

// DefaultTxOptions returns default transaction options.
func (a *BaseSQLAdapter) DefaultTxOptions() *sql.TxOptions {
	return &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
		ReadOnly:  false,
	}
}

// IsConnectionError matches network failures and the common driver messages.
func (a *BaseSQLAdapter) IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return containsAny(err.Error(),
		"connection refused",
		"connection reset",
		"network is unreachable",
		"driver: bad connection",
	)
}

// IsUniqueConstraintViolation falls back to message matching for drivers
// without typed errors.
func (a *BaseSQLAdapter) IsUniqueConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(err.Error(), "unique constraint", "duplicate key", "duplicate entry")
}

// IsForeignKeyViolation falls back to message matching.
func (a *BaseSQLAdapter) IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(err.Error(), "foreign key constraint", "violates foreign key")
}

func containsAny(s string, patterns ...string) bool {
	s = strings.ToLower(s)
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
