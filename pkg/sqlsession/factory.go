package sqlsession

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	// registers the "sqlite3" database/sql driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/chameleon-db/bulkdml/pkg/engine"
	"github.com/chameleon-db/bulkdml/pkg/engine/hql"
)

// Factory opens sessions over one connection and one mapping. It
// implements engine.SessionFactory.
type Factory struct {
	conn    Conn
	schema  *engine.Schema
	dialect hql.Dialect
	opts    []Option
	logger  *zap.Logger
}

// NewFactory wraps an existing connection. Close closes conn.
func NewFactory(conn Conn, schema *engine.Schema, dialect hql.Dialect, opts ...Option) *Factory {
	if schema == nil {
		schema = engine.NewSchema()
	}
	return &Factory{
		conn:    conn,
		schema:  schema,
		dialect: dialect,
		opts:    opts,
		logger:  buildOptions(opts).logger,
	}
}

// Open connects to driver ("sqlite" or "postgres") at dsn.
func Open(ctx context.Context, driver, dsn string, schema *engine.Schema, opts ...Option) (*Factory, error) {
	dialect, err := hql.DialectFor(driver)
	if err != nil {
		return nil, err
	}
	if dialect == hql.Postgres {
		cfg, err := engine.ParseConnectionString(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid postgres dsn: %w", err)
		}
		return OpenPostgres(ctx, cfg, schema, opts...)
	}
	return OpenSQLite(ctx, dsn, schema, opts...)
}

// OpenSQLite opens a SQLite database. The pool is limited to one
// connection so ":memory:" databases are shared by every session.
func OpenSQLite(ctx context.Context, dsn string, schema *engine.Schema, opts ...Option) (*Factory, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open SQLite database %q: %w", dsn, err)
	}
	return NewFactory(NewSQLConn(db), schema, hql.SQLite, opts...), nil
}

// OpenPostgres connects a pgx pool described by cfg.
func OpenPostgres(ctx context.Context, cfg engine.ConnectorConfig, schema *engine.Schema, opts ...Option) (*Factory, error) {
	connector := engine.NewConnector(cfg)
	if err := connector.Connect(ctx); err != nil {
		return nil, err
	}
	if err := connector.Ping(ctx); err != nil {
		connector.Close()
		return nil, fmt.Errorf("failed to reach PostgreSQL: %w", err)
	}
	return NewFactory(NewPgxConn(connector.Pool()), schema, hql.Postgres, opts...), nil
}

// OpenSession implements engine.SessionFactory.
func (f *Factory) OpenSession(ctx context.Context) (engine.Session, error) {
	return f.NewSession(), nil
}

// NewSession is OpenSession with the concrete type.
func (f *Factory) NewSession() *Session {
	s := NewSession(f.conn, f.schema, f.dialect, f.opts...)
	f.logger.Debug("session opened", zap.String("session", s.ID()))
	return s
}

// Conn exposes the shared connection, e.g. for DDL.
func (f *Factory) Conn() Conn {
	return f.conn
}

// Schema returns the mapping sessions are created with.
func (f *Factory) Schema() *engine.Schema {
	return f.schema
}

// Dialect returns the SQL dialect of the connection.
func (f *Factory) Dialect() hql.Dialect {
	return f.dialect
}

// Close implements engine.SessionFactory.
func (f *Factory) Close() error {
	return f.conn.Close()
}
