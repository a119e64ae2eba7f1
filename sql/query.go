package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
)

// runner is the subset of *sql.DB and *sql.Tx used to execute statements.
type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// QueryExecutor runs squirrel statements on the transaction carried by the
// context, or on the pool when there is none.
type QueryExecutor struct{ db *sql.DB }

func NewQueryExecutor(db *sql.DB) *QueryExecutor { return &QueryExecutor{db: db} }

func (qe *QueryExecutor) runner(ctx context.Context) runner {
	if tx, ok := TransactionFromContext(ctx); ok && tx != nil {
		return tx
	}
	return qe.db
}

// Query runs a statement returning rows.
func (qe *QueryExecutor) Query(ctx context.Context, stmt sq.Sqlizer) (*sql.Rows, error) {
	q, a, err := stmt.ToSql()
	if err != nil {
		return nil, err
	}
	return qe.runner(ctx).QueryContext(ctx, q, a...)
}

// QueryRow runs a statement expected to return at most one row.
func (qe *QueryExecutor) QueryRow(ctx context.Context, stmt sq.Sqlizer) (*sql.Row, error) {
	q, a, err := stmt.ToSql()
	if err != nil {
		return nil, err
	}
	return qe.runner(ctx).QueryRowContext(ctx, q, a...), nil
}

// Exec runs a statement that doesn't return rows.
func (qe *QueryExecutor) Exec(ctx context.Context, stmt sq.Sqlizer) (sql.Result, error) {
	q, a, err := stmt.ToSql()
	if err != nil {
		return nil, err
	}
	return qe.runner(ctx).ExecContext(ctx, q, a...)
}

// Exists reports whether the select returns any row.
func (qe *QueryExecutor) Exists(ctx context.Context, stmt sq.SelectBuilder) (bool, error) {
	row, err := qe.QueryRow(ctx, stmt.Columns("1").Limit(1))
	if err != nil {
		return false, err
	}
	var one int
	err = row.Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// ExecSQL runs raw SQL (for schema setup in tests and tools).
func (qe *QueryExecutor) ExecSQL(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return qe.runner(ctx).ExecContext(ctx, query, args...)
}
