package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// PostgresStore persists block records to a PostgreSQL database.
// It implements the Store interface.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore creates a PostgresStore backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

// ListAscending implements Store.
func (s *PostgresStore) ListAscending(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT idx, timestamp, data, previous_hash, hash
		 FROM britcoin_blocks ORDER BY idx ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec  Record
			ts   string
			data []byte
		)
		if err := rows.Scan(&rec.Index, &ts, &data, &rec.PreviousHash, &rec.Hash); err != nil {
			return nil, fmt.Errorf("scan block row: %w", err)
		}
		rec.Timestamp = Timestamp(ts)
		rec.Data = data
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}
	return out, nil
}

// Insert implements Store.
func (s *PostgresStore) Insert(ctx context.Context, rec Record) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO britcoin_blocks (idx, timestamp, data, previous_hash, hash)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.Index, string(rec.Timestamp), []byte(rec.Data), rec.PreviousHash, rec.Hash,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert block %d: %w", rec.Index, ErrDuplicateIndex)
		}
		return fmt.Errorf("insert block %d: %w", rec.Index, err)
	}

	s.logger.Debug("block stored",
		zap.Int64("idx", rec.Index),
		zap.String("hash", rec.Hash),
	)
	return nil
}

// Orphan implements Store. The rows are copied to britcoin_orphaned_blocks
// and removed from britcoin_blocks in one transaction.
func (s *PostgresStore) Orphan(ctx context.Context, from int64) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin orphan tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`INSERT INTO britcoin_orphaned_blocks (idx, timestamp, data, previous_hash, hash)
		 SELECT idx, timestamp, data, previous_hash, hash
		 FROM britcoin_blocks WHERE idx >= $1`,
		from,
	); err != nil {
		return 0, fmt.Errorf("copy orphaned blocks: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM britcoin_blocks WHERE idx >= $1`, from)
	if err != nil {
		return 0, fmt.Errorf("delete orphaned blocks: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit orphan tx: %w", err)
	}

	moved := int(tag.RowsAffected())
	s.logger.Debug("blocks orphaned", zap.Int64("from", from), zap.Int("count", moved))
	return moved, nil
}
