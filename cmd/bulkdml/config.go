package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chameleon-db/bulkdml/internal/config"
	"github.com/chameleon-db/bulkdml/pkg/engine"
	"github.com/chameleon-db/bulkdml/pkg/engine/hql"
	"github.com/chameleon-db/bulkdml/pkg/sqlsession"
)

// loadConfig loads config from:
// 1. the --config file, which must exist
// 2. .bulkdml.yml in the current directory
// 3. defaults
//
// DATABASE_URL overrides the connection in every case and --debug
// overrides the debug setting.
func loadConfig(w io.Writer) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)

	if cfgFile != "" {
		cfg, err = config.NewFileLoader(cfgFile).Load()
		if err != nil {
			return nil, err
		}
		if verbose {
			printInfo(w, "Using %s", cfgFile)
		}
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		loader := config.NewLoader(wd)
		cfg, err = loader.LoadOrDefault()
		if err != nil {
			return nil, err
		}
		if verbose {
			printInfo(w, "Using %s", loader.Path())
		}
	}

	if debugFlag != "" {
		if _, err := engine.ParseDebugLevel(debugFlag); err != nil {
			return nil, err
		}
		cfg.Debug = debugFlag
	}
	return cfg, nil
}

// newLogger builds the zap logger described by the logging section.
// --verbose forces debug level.
func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zc zap.Config
	if strings.EqualFold(cfg.Format, "json") {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level := cfg.Level
	if verbose {
		level = "debug"
	}
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("logging.level: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}

	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

// connectorConfig turns the database section into pgx pool settings.
func connectorConfig(cfg *config.Config) (engine.ConnectorConfig, error) {
	cc, err := engine.ParseConnectionString(cfg.Database.ConnectionString)
	if err != nil {
		return engine.ConnectorConfig{}, fmt.Errorf("invalid connection string: %w", err)
	}
	if cfg.Database.MaxConnections > 0 {
		cc.MaxConns = int32(cfg.Database.MaxConnections)
		if cc.MinConns > cc.MaxConns {
			cc.MinConns = cc.MaxConns
		}
	}
	return cc, nil
}

// openEngine connects to the configured store and returns an engine whose
// sessions log through log.
func openEngine(ctx context.Context, cfg *config.Config, log *zap.Logger) (*engine.Engine, error) {
	if cfg.Database.ConnectionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Database.ConnectionTimeout)*time.Second)
		defer cancel()
	}

	dialect, err := hql.DialectFor(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	schema := cfg.Schema()
	opts := []sqlsession.Option{sqlsession.WithLogger(log)}

	var factory *sqlsession.Factory
	if dialect == hql.Postgres {
		cc, err := connectorConfig(cfg)
		if err != nil {
			return nil, err
		}
		factory, err = sqlsession.OpenPostgres(ctx, cc, schema, opts...)
		if err != nil {
			return nil, err
		}
	} else {
		factory, err = sqlsession.OpenSQLite(ctx, cfg.Database.ConnectionString, schema, opts...)
		if err != nil {
			return nil, err
		}
	}

	log.Debug("connected",
		zap.String("driver", dialect.Name()),
		zap.Strings("entities", schema.EntityNames()),
	)
	return engine.NewEngine(schema, factory).WithDebug(cfg.DebugLevel()), nil
}

// withSession opens the store, hands fn a fresh session and closes
// everything afterwards.
func withSession(ctx context.Context, cfg *config.Config, fn func(*engine.Engine, engine.Session) error) error {
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer log.Sync()

	eng, err := openEngine(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer eng.Close()

	session, err := eng.OpenSession(ctx)
	if err != nil {
		return err
	}
	return fn(eng, session)
}
