package chain_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	tcClickhouse "github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"go.uber.org/zap"

	"github.com/jmerrifield20/britcoin/internal/chain"
	"github.com/jmerrifield20/britcoin/internal/schema"
)

const (
	clickhouseImage = "clickhouse/clickhouse-server:25.11"
)

type ClickHouseStoreSuite struct {
	suite.Suite
	ctx        context.Context
	cancel     context.CancelFunc
	container  *tcClickhouse.ClickHouseContainer
	dsn        string
	store      *chain.ClickHouseStore
	closeConn  func() error
	testCtx    context.Context
	testCancel context.CancelFunc
}

func TestClickHouseStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping ClickHouse container test in -short mode")
	}
	suite.Run(t, new(ClickHouseStoreSuite))
}

func (s *ClickHouseStoreSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)

	container, err := tcClickhouse.Run(s.ctx,
		clickhouseImage,
		tcClickhouse.WithUsername("default"),
		tcClickhouse.WithDatabase("default"),
	)
	s.Require().NoError(err)

	s.container = container

	dsn, err := container.ConnectionString(s.ctx)
	s.Require().NoError(err)
	s.dsn = dsn
}

func (s *ClickHouseStoreSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *ClickHouseStoreSuite) SetupTest() {
	s.testCtx, s.testCancel = context.WithTimeout(context.Background(), time.Minute)

	s.Require().NoError(s.migrate(func(m *schema.Migrator) error { return m.Up() }))

	conn, err := chain.OpenClickHouse(s.dsn)
	s.Require().NoError(err)
	s.closeConn = conn.Close
	s.store = chain.NewClickHouseStore(conn, zap.NewNop())
}

func (s *ClickHouseStoreSuite) TearDownTest() {
	if s.testCancel != nil {
		s.testCancel()
	}
	if s.closeConn != nil {
		s.Require().NoError(s.closeConn())
	}
	s.Require().NoError(s.migrate(func(m *schema.Migrator) error { return m.Down() }))
}

func (s *ClickHouseStoreSuite) TestEmptyStore() {
	records, err := s.store.ListAscending(s.testCtx)
	s.Require().NoError(err)
	s.Empty(records)
}

func (s *ClickHouseStoreSuite) TestLedgerRoundTrip() {
	ledger, err := chain.New(s.testCtx, s.store, chain.Config{Difficulty: 1}, zap.NewNop(),
		chain.WithWorkFunc(func(string, string) string { return "0f" }))
	s.Require().NoError(err)
	s.Require().Equal(1, ledger.Len())

	s.Require().NoError(ledger.Send(s.testCtx, chain.Network, "brit", 5, "seed funds"))
	b, err := ledger.Mine(s.testCtx, "bigjust", "hello")
	s.Require().NoError(err)
	s.Require().NotNil(b)

	records, err := s.store.ListAscending(s.testCtx)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal(int64(0), records[0].Index)
	s.Equal(b.Hash(), records[1].Hash)

	reloaded, err := chain.New(s.testCtx, s.store, chain.Config{Difficulty: 1}, zap.NewNop())
	s.Require().NoError(err)
	s.Equal(2, reloaded.Len())
	s.Equal(b.Hash(), reloaded.Tail().Hash())
	s.Equal(map[string]int64{"brit": 5, "bigjust": 1, chain.Network: -6}, reloaded.Balances())
}

func (s *ClickHouseStoreSuite) TestDuplicateIndex() {
	genesis, err := chain.NewBlock(0, "2016-11-07 10:00:00", chain.SeedPayload{Value: "Genesis Block"}, chain.GenesisPreviousHash)
	s.Require().NoError(err)
	rec, err := chain.RecordFromBlock(genesis)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Insert(s.testCtx, rec))
	err = s.store.Insert(s.testCtx, rec)
	s.True(errors.Is(err, chain.ErrDuplicateIndex), "got %v", err)
}

func (s *ClickHouseStoreSuite) TestMineAfterTruncatedLoad() {
	genesis, err := chain.NewBlock(0, "now", chain.SeedPayload{Value: "from db"}, chain.GenesisPreviousHash)
	s.Require().NoError(err)
	broken, err := chain.NewBlock(1, "now", chain.SeedPayload{Value: "tampered block"}, "bleh")
	s.Require().NoError(err)
	for _, b := range []*chain.Block{genesis, broken} {
		rec, err := chain.RecordFromBlock(b)
		s.Require().NoError(err)
		s.Require().NoError(s.store.Insert(s.testCtx, rec))
	}

	ledger, err := chain.New(s.testCtx, s.store, chain.Config{Difficulty: 1}, zap.NewNop(),
		chain.WithWorkFunc(func(string, string) string { return "0f" }))
	s.Require().NoError(err)
	s.Require().Equal(1, ledger.Len())

	b, err := ledger.Mine(s.testCtx, "brit", "hello")
	s.Require().NoError(err)
	s.Require().NotNil(b)
	s.Equal(int64(1), b.Index())

	reloaded, err := chain.New(s.testCtx, s.store, chain.Config{Difficulty: 1}, zap.NewNop())
	s.Require().NoError(err)
	s.Equal(2, reloaded.Len())
	s.Equal(b.Hash(), reloaded.Tail().Hash())

	var orphaned uint64
	conn, err := chain.OpenClickHouse(s.dsn)
	s.Require().NoError(err)
	defer func() {
		_ = conn.Close()
	}()
	s.Require().NoError(conn.QueryRow(s.testCtx,
		`SELECT count() FROM britcoin_orphaned_blocks WHERE previous_hash = 'bleh'`,
	).Scan(&orphaned))
	s.Equal(uint64(1), orphaned)
}

func (s *ClickHouseStoreSuite) migrate(fn func(*schema.Migrator) error) error {
	root, err := moduleRoot()
	if err != nil {
		return err
	}
	m, err := schema.New(schema.Dir(root, schema.DriverClickHouse), schema.DriverClickHouse, s.dsn, zap.NewNop())
	if err != nil {
		return err
	}
	defer func() {
		_ = m.Close()
	}()
	return fn(m)
}

func moduleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working dir: %w", err)
	}

	for {
		if _, statErr := os.Stat(filepath.Join(dir, "go.mod")); statErr == nil {
			return dir, nil
		}
		next := filepath.Dir(dir)
		if next == dir {
			return "", fmt.Errorf("go.mod not found from %s", dir)
		}
		dir = next
	}
}
