package chain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is the flattened storage form of a block.
type Record struct {
	Index        int64           `json:"index"`
	Timestamp    Timestamp       `json:"timestamp"`
	Data         json.RawMessage `json:"data"`
	PreviousHash string          `json:"previous_hash"`
	Hash         string          `json:"hash,omitempty"`
}

// RecordFromBlock flattens a sealed block.
func RecordFromBlock(b *Block) (Record, error) {
	if !b.Sealed() {
		return Record{}, fmt.Errorf("block %d is not sealed", b.Index())
	}
	data, err := b.Data()
	if err != nil {
		return Record{}, fmt.Errorf("render block %d: %w", b.Index(), err)
	}
	return Record{
		Index:        b.Index(),
		Timestamp:    b.Timestamp(),
		Data:         data,
		PreviousHash: b.PreviousHash(),
		Hash:         b.Hash(),
	}, nil
}

// BlockFromRecord rebuilds a sealed block from its storage form. A record
// carrying a hash that does not match the recomputed one is rejected.
func BlockFromRecord(rec Record) (*Block, error) {
	payload, err := decodePayload(rec.Index, rec.Data)
	if err != nil {
		return nil, fmt.Errorf("decode block %d: %w", rec.Index, err)
	}
	b, err := NewBlock(rec.Index, rec.Timestamp, payload, rec.PreviousHash)
	if err != nil {
		return nil, err
	}
	if rec.Hash != "" && rec.Hash != b.Hash() {
		return nil, fmt.Errorf("%w: block %d stored hash %s, computed %s",
			ErrChainBroken, rec.Index, rec.Hash, b.Hash())
	}
	return b, nil
}

// decodeJSON parses raw into a generic tree, keeping numbers as json.Number.
// Empty input decodes to nil.
func decodeJSON(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("parse data: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("parse data: trailing content")
	}
	return v, nil
}
