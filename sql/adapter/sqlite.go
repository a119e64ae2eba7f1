package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"
)

// SQLiteAdapter implements the Adapter interface for SQLite.
type SQLiteAdapter struct {
	*BaseSQLAdapter
}

// NewSQLiteAdapter creates a new SQLite adapter.
func NewSQLiteAdapter() *SQLiteAdapter {
	return &SQLiteAdapter{
		BaseSQLAdapter: NewBaseSQLAdapter("sqlite3", "sqlite"),
	}
}

// Dialect returns the goose dialect.
func (a *SQLiteAdapter) Dialect() string {
	return "sqlite3"
}

// Connect opens a SQLite database. An in-memory database lives only as long
// as its single connection, so the pool is pinned to one connection that
// never expires.
func (a *SQLiteAdapter) Connect(ctx context.Context, config *Config) (*sql.DB, error) {
	db, err := a.open(config, a.ConnectionString(config))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	if config.MaxOpenConns <= 0 || isMemoryPath(config.FilePath) {
		db.SetMaxOpenConns(1)
	}
	if isMemoryPath(config.FilePath) {
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	return db, nil
}

func isMemoryPath(path string) bool {
	return path == "" || path == ":memory:" || strings.Contains(path, "mode=memory")
}

// ConnectionString constructs a SQLite connection string. Foreign keys are
// off by default in SQLite and the pragma is per connection, so the DSN turns
// them on for every connection the pool opens unless an option says otherwise.
func (a *SQLiteAdapter) ConnectionString(config *Config) string {
	dbPath := config.FilePath
	if dbPath == "" {
		dbPath = ":memory:"
	} else if !filepath.IsAbs(dbPath) && !strings.HasPrefix(dbPath, ":") && !strings.HasPrefix(dbPath, "file:") {
		dbPath = filepath.Clean(dbPath)
	}

	options := maps.Clone(config.Options)
	if options == nil {
		options = make(map[string]string, 1)
	}
	_, fk := options["_fk"]
	if _, ok := options["_foreign_keys"]; !ok && !fk {
		options["_foreign_keys"] = "1"
	}

	params := make([]string, 0, len(options))
	for _, key := range slices.Sorted(maps.Keys(options)) {
		params = append(params, fmt.Sprintf("%s=%s", key, options[key]))
	}

	if len(params) > 0 {
		sep := "?"
		if strings.Contains(dbPath, "?") {
			sep = "&"
		}
		return dbPath + sep + strings.Join(params, "&")
	}

	return dbPath
}

// Placeholder returns the ? placeholder format.
func (a *SQLiteAdapter) Placeholder() sq.PlaceholderFormat {
	return sq.Question
}

// DefaultTxOptions returns default transaction options for SQLite.
func (a *SQLiteAdapter) DefaultTxOptions() *sql.TxOptions {
	return &sql.TxOptions{
		Isolation: sql.LevelSerializable,
		ReadOnly:  false,
	}
}

// IsUniqueConstraintViolation checks the extended result code.
func (a *SQLiteAdapter) IsUniqueConstraintViolation(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return a.BaseSQLAdapter.IsUniqueConstraintViolation(err)
}

// IsForeignKeyViolation checks the extended result code.
func (a *SQLiteAdapter) IsForeignKeyViolation(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return a.BaseSQLAdapter.IsForeignKeyViolation(err)
}

// IsConnectionError checks if an error is a connection-related error.
func (a *SQLiteAdapter) IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(err.Error(),
		"database is locked",
		"unable to open database",
		"no such file",
	)
}
