// Package storage opens the configured block store.
package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/jmerrifield20/britcoin/internal/chain"
	"github.com/jmerrifield20/britcoin/internal/metrics"
	"github.com/jmerrifield20/britcoin/internal/schema"
)

// DriverMemory keeps blocks in process memory only.
const DriverMemory = "memory"

// Config selects and locates a block store.
type Config struct {
	Driver string
	DSN    string

	// Migrate applies MigrationsRoot/migrations/<driver> before connecting.
	Migrate        bool
	MigrationsRoot string
}

// Open builds the configured block store, instrumented with metrics. The
// returned func releases its connections.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (chain.Store, func(), error) {
	noop := func() {}

	switch cfg.Driver {
	case DriverMemory:
		logger.Warn("using in-memory block store; the chain is lost on restart")
		return metrics.NewStore(chain.NewMemoryStore(), cfg.Driver), noop, nil

	case schema.DriverPostgres:
		if err := migrate(cfg, logger); err != nil {
			return nil, noop, err
		}
		db, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, noop, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, noop, fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("connected to postgres")
		return metrics.NewStore(chain.NewPostgresStore(db, logger), cfg.Driver), db.Close, nil

	case schema.DriverClickHouse:
		if err := migrate(cfg, logger); err != nil {
			return nil, noop, err
		}
		conn, err := chain.OpenClickHouse(cfg.DSN)
		if err != nil {
			return nil, noop, err
		}
		if err := conn.Ping(ctx); err != nil {
			conn.Close() //nolint:errcheck
			return nil, noop, fmt.Errorf("ping clickhouse: %w", err)
		}
		logger.Info("connected to clickhouse")
		closeConn := func() {
			if err := conn.Close(); err != nil {
				logger.Warn("close clickhouse", zap.Error(err))
			}
		}
		return metrics.NewStore(chain.NewClickHouseStore(conn, logger), cfg.Driver), closeConn, nil

	default:
		return nil, noop, fmt.Errorf("unknown store driver %q (want memory, postgres or clickhouse)", cfg.Driver)
	}
}

func migrate(cfg Config, logger *zap.Logger) error {
	if !cfg.Migrate {
		return nil
	}
	m, err := schema.New(schema.Dir(cfg.MigrationsRoot, cfg.Driver), cfg.Driver, cfg.DSN, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("close migrator", zap.Error(err))
		}
	}()
	return m.Up()
}
