package chain

import (
	"encoding/json"
	"fmt"
)

// GenesisPreviousHash is the previous hash recorded by the genesis block.
const GenesisPreviousHash = "0"

// Block is one entry of the chain. A sealed block is immutable; its hash is
// computed once when it is sealed.
type Block struct {
	index        int64
	timestamp    Timestamp
	previousHash string

	seed   *SeedPayload
	proof  string
	txs    []Transaction
	extra  map[string]any
	sealed bool
	hash   string
}

// NewBlock returns a sealed block carrying payload.
func NewBlock(index int64, ts Timestamp, payload Payload, previousHash string) (*Block, error) {
	b := &Block{index: index, timestamp: ts, previousHash: previousHash}
	switch p := payload.(type) {
	case SeedPayload:
		b.seed = &p
	case *SeedPayload:
		b.seed = p
	case MinedPayload:
		b.proof, b.txs, b.extra = p.Proof, append([]Transaction(nil), p.Txs...), p.Extra
	case *MinedPayload:
		b.proof, b.txs, b.extra = p.Proof, append([]Transaction(nil), p.Txs...), p.Extra
	case nil:
		b.seed = &SeedPayload{}
	default:
		return nil, fmt.Errorf("unsupported payload type %T", payload)
	}
	if err := b.Seal(); err != nil {
		return nil, err
	}
	return b, nil
}

// NewDraftBlock returns an unsealed mined block. Transactions are added with
// AddTransaction before the block is sealed.
func NewDraftBlock(index int64, ts Timestamp, previousHash, proof string) *Block {
	return &Block{index: index, timestamp: ts, previousHash: previousHash, proof: proof}
}

// AddTransaction appends tx to a draft block. It panics if the block is sealed.
func (b *Block) AddTransaction(tx Transaction) {
	if b.sealed {
		panic(fmt.Sprintf("chain: transaction added to sealed block %d", b.index))
	}
	b.txs = append(b.txs, tx)
}

// Seal computes the block hash and freezes the block. Sealing twice is a no-op.
func (b *Block) Seal() error {
	if b.sealed {
		return nil
	}
	h, err := Digest(b.index, b.timestamp, b.Payload(), b.previousHash)
	if err != nil {
		return fmt.Errorf("hash block %d: %w", b.index, err)
	}
	b.hash = h
	b.sealed = true
	return nil
}

func (b *Block) Index() int64 { return b.index }
func (b *Block) Timestamp() Timestamp { return b.timestamp }
func (b *Block) PreviousHash() string { return b.previousHash }
func (b *Block) Hash() string { return b.hash }
func (b *Block) Sealed() bool { return b.sealed }
func (b *Block) Proof() string { return b.proof }
func (b *Block) IsSeed() bool { return b.seed != nil }

// Transactions returns a copy of the transactions recorded in the block.
func (b *Block) Transactions() []Transaction {
	if b.seed != nil {
		return nil
	}
	out := make([]Transaction, len(b.txs))
	copy(out, b.txs)
	return out
}

// Payload returns the block payload.
func (b *Block) Payload() Payload {
	if b.seed != nil {
		return *b.seed
	}
	return MinedPayload{Proof: b.proof, Txs: b.Transactions(), Extra: b.extra}
}

// Data returns the canonical JSON rendering of the payload.
func (b *Block) Data() (json.RawMessage, error) {
	s, err := canonicalJSON(b.Payload().canonical())
	if err != nil {
		return nil, err
	}
	return json.RawMessage(s), nil
}

// MarshalJSON renders the block in its storage form.
func (b *Block) MarshalJSON() ([]byte, error) {
	rec, err := RecordFromBlock(b)
	if err != nil {
		return nil, err
	}
	return json.Marshal(rec)
}
