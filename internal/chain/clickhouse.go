package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"
)

// ClickHouseStore persists block records to ClickHouse.
// It implements the Store interface.
type ClickHouseStore struct {
	conn   clickhouse.Conn
	logger *zap.Logger
}

// NewClickHouseStore wraps an open ClickHouse connection.
func NewClickHouseStore(conn clickhouse.Conn, logger *zap.Logger) *ClickHouseStore {
	return &ClickHouseStore{conn: conn, logger: logger}
}

// OpenClickHouse parses dsn and opens a connection suitable for
// NewClickHouseStore.
func OpenClickHouse(dsn string) (clickhouse.Conn, error) {
	if dsn == "" {
		return nil, errors.New("clickhouse dsn is required")
	}

	options, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}
	return conn, nil
}

// ListAscending implements Store.
func (s *ClickHouseStore) ListAscending(ctx context.Context) (records []Record, err error) {
	const query = `
SELECT idx, timestamp, data, previous_hash, hash
FROM britcoin_blocks
ORDER BY idx`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		var (
			rec  Record
			ts   string
			data string
		)
		if err = rows.Scan(&rec.Index, &ts, &data, &rec.PreviousHash, &rec.Hash); err != nil {
			return nil, fmt.Errorf("scan block row: %w", err)
		}
		rec.Timestamp = Timestamp(ts)
		rec.Data = []byte(data)
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}
	return records, nil
}

// Insert implements Store. ClickHouse has no unique constraints, so the
// index is checked before the row is written. The ledger serialises inserts.
func (s *ClickHouseStore) Insert(ctx context.Context, rec Record) error {
	var taken uint64
	if err := s.conn.QueryRow(ctx,
		`SELECT count() FROM britcoin_blocks WHERE idx = ?`, rec.Index,
	).Scan(&taken); err != nil {
		return fmt.Errorf("check block %d: %w", rec.Index, err)
	}
	if taken > 0 {
		return fmt.Errorf("insert block %d: %w", rec.Index, ErrDuplicateIndex)
	}

	const query = `
INSERT INTO britcoin_blocks (
	idx,
	timestamp,
	data,
	previous_hash,
	hash
) VALUES`

	batch, err := s.conn.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare block batch: %w", err)
	}
	if err := batch.Append(
		rec.Index,
		string(rec.Timestamp),
		string(rec.Data),
		rec.PreviousHash,
		rec.Hash,
	); err != nil {
		return fmt.Errorf("append block %d: %w", rec.Index, err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("insert block %d: %w", rec.Index, err)
	}

	s.logger.Debug("block stored",
		zap.Int64("idx", rec.Index),
		zap.String("hash", rec.Hash),
	)
	return nil
}

// Orphan implements Store. Rows are copied to britcoin_orphaned_blocks and
// then removed with a lightweight delete, which hides them from later reads
// immediately.
func (s *ClickHouseStore) Orphan(ctx context.Context, from int64) (int, error) {
	var moved uint64
	if err := s.conn.QueryRow(ctx,
		`SELECT count() FROM britcoin_blocks WHERE idx >= ?`, from,
	).Scan(&moved); err != nil {
		return 0, fmt.Errorf("count orphaned blocks: %w", err)
	}
	if moved == 0 {
		return 0, nil
	}

	const copyQuery = `
INSERT INTO britcoin_orphaned_blocks (idx, timestamp, data, previous_hash, hash)
SELECT idx, timestamp, data, previous_hash, hash
FROM britcoin_blocks
WHERE idx >= ?`
	if err := s.conn.Exec(ctx, copyQuery, from); err != nil {
		return 0, fmt.Errorf("copy orphaned blocks: %w", err)
	}
	if err := s.conn.Exec(ctx, `DELETE FROM britcoin_blocks WHERE idx >= ?`, from); err != nil {
		return 0, fmt.Errorf("delete orphaned blocks: %w", err)
	}

	s.logger.Debug("blocks orphaned", zap.Int64("from", from), zap.Uint64("count", moved))
	return int(moved), nil
}
