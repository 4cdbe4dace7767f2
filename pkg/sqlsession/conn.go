package sqlsession

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoRows is returned by Row.Scan when a query matched nothing,
// whichever driver ran it.
var ErrNoRows = errors.New("no rows in result set")

// Conn is the minimal surface a Session needs from a database handle.
type Conn interface {
	// Exec runs a statement and returns the affected row count.
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	// QueryRow runs a query expected to return at most one row.
	QueryRow(ctx context.Context, query string, args ...any) Row

	Close() error
}

// Row is a single result row.
type Row interface {
	Scan(dest ...any) error
}

// ============================================================
// database/sql
// ============================================================

// SQLConn adapts a *sql.DB (SQLite through go-sqlite3).
type SQLConn struct {
	db *sql.DB
}

func NewSQLConn(db *sql.DB) *SQLConn {
	return &SQLConn{db: db}
}

// DB returns the underlying handle.
func (c *SQLConn) DB() *sql.DB {
	return c.db
}

func (c *SQLConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *SQLConn) QueryRow(ctx context.Context, query string, args ...any) Row {
	return sqlRow{c.db.QueryRowContext(ctx, query, args...)}
}

func (c *SQLConn) Close() error {
	return c.db.Close()
}

type sqlRow struct {
	row *sql.Row
}

func (r sqlRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoRows
	}
	return err
}

// ============================================================
// pgx
// ============================================================

// PgxConn adapts a pgx connection pool.
type PgxConn struct {
	pool *pgxpool.Pool
}

func NewPgxConn(pool *pgxpool.Pool) *PgxConn {
	return &PgxConn{pool: pool}
}

func (c *PgxConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := c.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c *PgxConn) QueryRow(ctx context.Context, query string, args ...any) Row {
	return pgxRow{c.pool.QueryRow(ctx, query, args...)}
}

func (c *PgxConn) Close() error {
	c.pool.Close()
	return nil
}

type pgxRow struct {
	row pgx.Row
}

func (r pgxRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNoRows
	}
	return err
}
