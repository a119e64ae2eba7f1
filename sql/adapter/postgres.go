package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

// PostgreSQL error codes, see https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgreSQLAdapter implements the Adapter interface for PostgreSQL.
type PostgreSQLAdapter struct {
	*BaseSQLAdapter
}

// NewPostgreSQLAdapter creates a new PostgreSQL adapter.
func NewPostgreSQLAdapter() *PostgreSQLAdapter {
	return &PostgreSQLAdapter{
		BaseSQLAdapter: NewBaseSQLAdapter("postgres", "postgres"),
	}
}

// Dialect returns the goose dialect.
func (a *PostgreSQLAdapter) Dialect() string {
	return "postgres"
}

// Connect opens a PostgreSQL pool.
func (a *PostgreSQLAdapter) Connect(ctx context.Context, config *Config) (*sql.DB, error) {
	return a.open(config, a.ConnectionString(config))
}

// ConnectionString constructs a PostgreSQL keyword/value connection string.
// A full URL in Options["url"] takes precedence.
func (a *PostgreSQLAdapter) ConnectionString(config *Config) string {
	if url := config.Options["url"]; url != "" {
		return url
	}

	var parts []string

	if config.Host != "" {
		parts = append(parts, fmt.Sprintf("host=%s", config.Host))
	}
	if config.Port > 0 {
		parts = append(parts, fmt.Sprintf("port=%d", config.Port))
	}
	if config.Database != "" {
		parts = append(parts, fmt.Sprintf("dbname=%s", config.Database))
	}
	if config.Username != "" {
		parts = append(parts, fmt.Sprintf("user=%s", config.Username))
	}
	if config.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", quoteValue(config.Password)))
	}

	sslMode := config.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	parts = append(parts, fmt.Sprintf("sslmode=%s", sslMode))

	if config.ConnectTimeout > 0 {
		parts = append(parts, fmt.Sprintf("connect_timeout=%d", int(config.ConnectTimeout.Seconds())))
	}

	keys := make([]string, 0, len(config.Options))
	for key := range config.Options {
		if key != "url" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", key, quoteValue(config.Options[key])))
	}

	return strings.Join(parts, " ")
}

// quoteValue quotes values containing spaces or quotes per libpq rules.
func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Placeholder returns the $n placeholder format.
func (a *PostgreSQLAdapter) Placeholder() sq.PlaceholderFormat {
	return sq.Dollar
}

// SupportsReturning indicates PostgreSQL supports the RETURNING clause.
func (a *PostgreSQLAdapter) SupportsReturning() bool {
	return true
}

// IsUniqueConstraintViolation checks the SQLSTATE of a pq error.
func (a *PostgreSQLAdapter) IsUniqueConstraintViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation
	}
	return a.BaseSQLAdapter.IsUniqueConstraintViolation(err)
}

// IsForeignKeyViolation checks the SQLSTATE of a pq error.
func (a *PostgreSQLAdapter) IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgForeignKeyViolation
	}
	return a.BaseSQLAdapter.IsForeignKeyViolation(err)
}
