package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultInitialData seeds the genesis block when no initial data is configured.
const DefaultInitialData = "Genesis Block"

// Config holds the ledger's tunables.
type Config struct {
	// Difficulty is the number of leading '0' hex characters a proof needs.
	Difficulty int

	// InitialData is the genesis seed. A nil value uses DefaultInitialData.
	InitialData any
}

// Observer is notified after ledger state changes. Calls are made outside
// the ledger lock but are serialised in the order the changes happened, so
// the last ObservePending value always matches the buffer. Observers must
// not call Mine or Send.
type Observer interface {
	ObserveProof(accepted bool)
	ObserveBlock(b *Block)
	ObservePending(n int)
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithWorkFunc replaces the proof attempt function. Tests use it to force
// accepted or rejected attempts.
func WithWorkFunc(fn WorkFunc) Option {
	return func(l *Ledger) { l.work = fn }
}

// WithClock replaces the time source used for block timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithObserver registers an observer. It may be given more than once.
func WithObserver(o Observer) Option {
	return func(l *Ledger) { l.observers = append(l.observers, o) }
}

// Ledger is the authoritative chain plus the buffer of transactions waiting
// for the next mined block. It is safe for concurrent use.
type Ledger struct {
	store       Store
	logger      *zap.Logger
	difficulty  int
	initialData any
	work        WorkFunc
	now         func() time.Time
	observers   []Observer

	mu      sync.RWMutex
	blocks  []*Block
	pending []Transaction

	// notifyMu is taken before mu is released and held while observers run.
	notifyMu sync.Mutex
}

// New loads the chain from store, keeping the longest verified prefix, and
// creates and persists a genesis block when nothing usable was stored.
// Records after the prefix are orphaned in the store so their indices can
// be mined again.
func New(ctx context.Context, store Store, cfg Config, logger *zap.Logger, opts ...Option) (*Ledger, error) {
	if cfg.Difficulty < 0 {
		return nil, fmt.Errorf("difficulty must not be negative, got %d", cfg.Difficulty)
	}
	l := &Ledger{
		store:       store,
		logger:      logger,
		difficulty:  cfg.Difficulty,
		initialData: cfg.InitialData,
		work:        Work,
		now:         time.Now,
	}
	if l.initialData == nil {
		l.initialData = DefaultInitialData
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := l.load(ctx); err != nil {
		return nil, err
	}
	if len(l.blocks) == 0 {
		if err := l.createGenesis(ctx); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Ledger) load(ctx context.Context) error {
	records, err := l.store.ListAscending(ctx)
	if err != nil {
		return fmt.Errorf("load chain: %w", err)
	}

	blocks, verr := VerifyRecords(records)
	if verr != nil {
		// Stored indices are unique and ascending, so everything discarded
		// sits at or above the first rejected record.
		from := records[len(blocks)].Index
		l.logger.Warn("stored chain failed verification, discarding suffix",
			zap.Int("kept", len(blocks)),
			zap.Int("discarded", len(records)-len(blocks)),
			zap.Error(verr),
		)
		moved, err := l.store.Orphan(ctx, from)
		if err != nil {
			return fmt.Errorf("%w: orphan blocks from %d: %w", ErrPersistence, from, err)
		}
		l.logger.Info("discarded blocks orphaned", zap.Int64("from", from), zap.Int("count", moved))
	}
	l.blocks = blocks

	if len(l.blocks) > 0 {
		l.logger.Info("chain loaded",
			zap.Int("length", len(l.blocks)),
			zap.String("tail", l.blocks[len(l.blocks)-1].Hash()),
		)
	}
	return nil
}

// VerifyRecords rebuilds records in order and returns the longest valid
// prefix: the first record must be index 0, each later one must link to its
// predecessor, and replaying the prefix must keep every balance in range.
// The error describes the first record that failed, if any.
func VerifyRecords(records []Record) ([]*Block, error) {
	blocks := make([]*Block, 0, len(records))
	bal := make(map[string]int64)
	for _, rec := range records {
		b, err := BlockFromRecord(rec)
		if err != nil {
			return blocks, err
		}
		if len(blocks) == 0 {
			if b.Index() != 0 {
				return blocks, fmt.Errorf("%w: first stored block has index %d", ErrChainBroken, b.Index())
			}
		} else if err := checkLink(blocks[len(blocks)-1], b); err != nil {
			return blocks, err
		}
		if err := applyAll(bal, b.txs); err != nil {
			return blocks, fmt.Errorf("block %d: %w", b.Index(), err)
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

func checkLink(prev, curr *Block) error {
	if curr.PreviousHash() != prev.Hash() {
		return fmt.Errorf("%w: block %d does not link to %s", ErrChainBroken, curr.Index(), prev.Hash())
	}
	if curr.Index() != prev.Index()+1 {
		return fmt.Errorf("%w: block %d follows block %d", ErrChainBroken, curr.Index(), prev.Index())
	}
	return nil
}

func (l *Ledger) createGenesis(ctx context.Context) error {
	genesis, err := NewBlock(0, NewTimestamp(l.now()), SeedPayload{Value: l.initialData}, GenesisPreviousHash)
	if err != nil {
		return fmt.Errorf("create genesis block: %w", err)
	}
	if err := l.persist(ctx, genesis); err != nil {
		return err
	}
	l.blocks = append(l.blocks, genesis)
	l.logger.Info("genesis block created", zap.String("hash", genesis.Hash()))
	return nil
}

func (l *Ledger) persist(ctx context.Context, b *Block) error {
	rec, err := RecordFromBlock(b)
	if err != nil {
		return err
	}
	if err := l.store.Insert(ctx, rec); err != nil {
		l.logger.Error("persist block failed", zap.Int64("idx", b.Index()), zap.Error(err))
		return fmt.Errorf("%w: block %d: %w", ErrPersistence, b.Index(), err)
	}
	return nil
}

// Mine evaluates a single proof attempt over the tail hash and message.
// A rejected attempt returns a nil block and no error. An accepted attempt
// drains the pending buffer, plus a reward for participant, into a new block
// that is persisted before it joins the chain.
func (l *Ledger) Mine(ctx context.Context, participant, message string) (*Block, error) {
	if participant == "" || participant == Network {
		return nil, fmt.Errorf("%w: %q cannot mine", ErrInvalidTransaction, participant)
	}

	l.mu.Lock()
	b, err := l.mine(ctx, participant, message)
	l.notifyMu.Lock()
	l.mu.Unlock()
	defer l.notifyMu.Unlock()

	if errors.Is(err, errProofRejected) {
		l.notify(func(o Observer) { o.ObserveProof(false) })
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	l.notify(func(o Observer) {
		o.ObserveProof(true)
		o.ObserveBlock(b)
		o.ObservePending(0)
	})
	return b, nil
}

var errProofRejected = errors.New("proof rejected")

// mine runs with l.mu held.
func (l *Ledger) mine(ctx context.Context, participant, message string) (*Block, error) {
	tail := l.blocks[len(l.blocks)-1]
	attempt := l.work(tail.Hash(), message)
	l.logger.Debug("proof attempt",
		zap.String("participant", participant),
		zap.String("attempt", attempt),
	)
	if !IsValidProof(attempt, l.difficulty) {
		return nil, errProofRejected
	}

	b := NewDraftBlock(tail.Index()+1, NewTimestamp(l.now()), tail.Hash(), attempt)
	for _, tx := range l.pending {
		b.AddTransaction(tx)
	}
	b.AddTransaction(Transaction{From: Network, To: participant, Amount: MiningReward})
	if err := applyAll(balances(l.blocks), b.txs); err != nil {
		return nil, err
	}
	if err := b.Seal(); err != nil {
		return nil, err
	}
	if err := l.persist(ctx, b); err != nil {
		return nil, err
	}

	l.blocks = append(l.blocks, b)
	l.pending = nil
	l.logger.Info("block mined",
		zap.Int64("idx", b.Index()),
		zap.String("participant", participant),
		zap.String("hash", b.Hash()),
		zap.Int("transactions", len(b.txs)),
	)
	return b, nil
}

// Send buffers a transfer for the next mined block. Senders other than
// Network must be able to cover the amount from their confirmed balance
// less what they already have pending.
func (l *Ledger) Send(_ context.Context, from, to string, amount int64, memo string) error {
	tx := Transaction{From: from, To: to, Amount: amount, Memo: memo}
	if err := tx.Validate(); err != nil {
		return err
	}
	if from == to {
		return fmt.Errorf("%w: %s cannot send to themselves", ErrInvalidTransaction, from)
	}

	l.mu.Lock()
	if err := l.admit(tx); err != nil {
		l.mu.Unlock()
		return err
	}
	l.pending = append(l.pending, tx)
	n := len(l.pending)
	l.notifyMu.Lock()
	l.mu.Unlock()
	defer l.notifyMu.Unlock()

	l.logger.Info("transaction pending",
		zap.String("from", from),
		zap.String("to", to),
		zap.Int64("amount", amount),
	)
	l.notify(func(o Observer) { o.ObservePending(n) })
	return nil
}

// admit checks tx against the confirmed balances and the pending buffer.
// It runs with l.mu held.
func (l *Ledger) admit(tx Transaction) error {
	confirmed := balances(l.blocks)
	if tx.From != Network {
		available := confirmed[tx.From]
		for _, p := range l.pending {
			if p.From == tx.From {
				available -= p.Amount
			}
		}
		if available < tx.Amount {
			return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, tx.From, available, tx.Amount)
		}
	}

	// confirmed is a fresh map, so it doubles as the projection.
	if err := applyAll(confirmed, l.pending); err != nil {
		return err
	}
	if err := apply(confirmed, tx); err != nil {
		return err
	}
	// Leave room for the reward the next block mints.
	if _, ok := addBalance(confirmed[Network], -MiningReward); !ok {
		return fmt.Errorf("%w: no supply left for the next reward", ErrBalanceOverflow)
	}
	return nil
}

// Balances replays every block and returns the net amount per participant.
// Network's balance is the negated total supply.
func (l *Ledger) Balances() map[string]int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return balances(l.blocks)
}

// Balance returns the confirmed balance of a single participant.
func (l *Ledger) Balance(participant string) int64 {
	return l.Balances()[participant]
}

// balances replays blocks. Loading and admission keep every running balance
// within ±math.MaxInt64, so the sums cannot wrap.
func balances(blocks []*Block) map[string]int64 {
	out := make(map[string]int64)
	for _, b := range blocks {
		if b.IsSeed() {
			continue
		}
		for _, tx := range b.txs {
			out[tx.From] -= tx.Amount
			out[tx.To] += tx.Amount
		}
	}
	return out
}

// Stats summarises minting over the lifetime of the chain.
type Stats struct {
	Blocks     int
	CoinsMined int64
	First      Timestamp
	Last       Timestamp
	Duration   time.Duration // absolute time between First and Last
	PerCoin    time.Duration // Duration / CoinsMined
}

// Stats reports coins minted and the average time per coin. It returns
// ErrNoCoinsMined when nothing has been minted.
func (l *Ledger) Stats() (Stats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	coins := balances(l.blocks)[Network]
	if coins < 0 {
		coins = -coins
	}
	if coins == 0 {
		return Stats{}, ErrNoCoinsMined
	}

	first, last := l.blocks[0], l.blocks[len(l.blocks)-1]
	start, err := first.Timestamp().Time()
	if err != nil {
		return Stats{}, fmt.Errorf("block %d: %w", first.Index(), err)
	}
	end, err := last.Timestamp().Time()
	if err != nil {
		return Stats{}, fmt.Errorf("block %d: %w", last.Index(), err)
	}
	d := end.Sub(start)
	if d < 0 {
		d = -d
	}

	return Stats{
		Blocks:     len(l.blocks),
		CoinsMined: coins,
		First:      first.Timestamp(),
		Last:       last.Timestamp(),
		Duration:   d,
		PerCoin:    d / time.Duration(coins),
	}, nil
}

// Len returns the number of blocks in the chain.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.blocks)
}

// Tail returns the most recent block.
func (l *Ledger) Tail() *Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.blocks[len(l.blocks)-1]
}

// Block returns the block at index.
func (l *Ledger) Block(index int64) (*Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= int64(len(l.blocks)) {
		return nil, fmt.Errorf("%w: index %d", ErrBlockNotFound, index)
	}
	return l.blocks[index], nil
}

// Blocks returns a snapshot of the chain. Blocks are sealed, so sharing
// them is safe.
func (l *Ledger) Blocks() []*Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Block, len(l.blocks))
	copy(out, l.blocks)
	return out
}

// Pending returns a copy of the transactions waiting for the next block.
func (l *Ledger) Pending() []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Transaction, len(l.pending))
	copy(out, l.pending)
	return out
}

// Summary is a consistent view of the chain head.
type Summary struct {
	Length     int
	Tail       *Block
	Difficulty int
	Pending    int
}

// Summary reads the length, tail and pending count under one lock.
func (l *Ledger) Summary() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Summary{
		Length:     len(l.blocks),
		Tail:       l.blocks[len(l.blocks)-1],
		Difficulty: l.difficulty,
		Pending:    len(l.pending),
	}
}

// Difficulty returns the configured proof difficulty.
func (l *Ledger) Difficulty() int { return l.difficulty }

// Verify walks the in-memory chain and checks links, indices, hashes and
// balance ranges.
func (l *Ledger) Verify() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	bal := make(map[string]int64)
	for i, curr := range l.blocks {
		if err := applyAll(bal, curr.txs); err != nil {
			return fmt.Errorf("block %d: %w", curr.Index(), err)
		}
		h, err := Digest(curr.Index(), curr.Timestamp(), curr.Payload(), curr.PreviousHash())
		if err != nil {
			return err
		}
		if h != curr.Hash() {
			return fmt.Errorf("%w: block %d has invalid hash", ErrChainBroken, curr.Index())
		}
		if i == 0 {
			if curr.Index() != 0 {
				return fmt.Errorf("%w: chain starts at index %d", ErrChainBroken, curr.Index())
			}
			continue
		}
		if err := checkLink(l.blocks[i-1], curr); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) notify(fn func(Observer)) {
	for _, o := range l.observers {
		fn(o)
	}
}
