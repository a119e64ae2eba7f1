package adapter

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"strconv"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers.
const (
	mysqlDuplicateEntry   = 1062
	mysqlRowIsReferenced  = 1451
	mysqlNoReferencedRow  = 1452
	mysqlRowIsReferenced2 = 1217
	mysqlNoReferencedRow2 = 1216
)

// MySQLAdapter implements the Adapter interface for MySQL.
type MySQLAdapter struct {
	*BaseSQLAdapter
}

// NewMySQLAdapter creates a new MySQL adapter.
func NewMySQLAdapter() *MySQLAdapter {
	return &MySQLAdapter{
		BaseSQLAdapter: NewBaseSQLAdapter("mysql", "mysql"),
	}
}

// Dialect returns the goose dialect.
func (a *MySQLAdapter) Dialect() string {
	return "mysql"
}

// Connect opens a MySQL pool.
func (a *MySQLAdapter) Connect(ctx context.Context, config *Config) (*sql.DB, error) {
	return a.open(config, a.ConnectionString(config))
}

// ConnectionString constructs a MySQL DSN.
// Format: [username[:password]@][protocol[(address)]]/dbname[?param1=value1&...&paramN=valueN]
//
// ClientFoundRows is always set so that an UPDATE matching a row reports it
// as affected even when no value changed.
func (a *MySQLAdapter) ConnectionString(config *Config) string {
	cfg := mysql.NewConfig()
	cfg.User = config.Username
	cfg.Passwd = config.Password
	cfg.DBName = config.Database
	cfg.ParseTime = true
	cfg.ClientFoundRows = true

	if config.Host != "" || config.Port > 0 {
		host := config.Host
		if host == "" {
			host = "localhost"
		}
		port := config.Port
		if port == 0 {
			port = 3306
		}
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	}
	if config.ConnectTimeout > 0 {
		cfg.Timeout = config.ConnectTimeout
	}

	params := map[string]string{"charset": "utf8mb4"}
	for key, value := range config.Options {
		params[key] = value
	}
	cfg.Params = params

	return cfg.FormatDSN()
}

// Placeholder returns the ? placeholder format.
func (a *MySQLAdapter) Placeholder() sq.PlaceholderFormat {
	return sq.Question
}

// DefaultTxOptions returns MySQL-specific transaction options.
func (a *MySQLAdapter) DefaultTxOptions() *sql.TxOptions {
	return &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  false,
	}
}

// IsUniqueConstraintViolation checks the server error number.
func (a *MySQLAdapter) IsUniqueConstraintViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return a.BaseSQLAdapter.IsUniqueConstraintViolation(err)
}

// IsForeignKeyViolation checks the server error number.
func (a *MySQLAdapter) IsForeignKeyViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlRowIsReferenced, mysqlNoReferencedRow, mysqlRowIsReferenced2, mysqlNoReferencedRow2:
			return true
		}
		return false
	}
	return a.BaseSQLAdapter.IsForeignKeyViolation(err)
}
