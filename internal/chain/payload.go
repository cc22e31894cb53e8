package chain

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Payload is the data carried by a block. It is either a SeedPayload or a
// MinedPayload.
type Payload interface {
	// Transactions returns the transactions recorded by the payload.
	Transactions() []Transaction

	canonical() any
}

// SeedPayload is an arbitrary caller-supplied value. The genesis block
// carries one, as do legacy blocks whose data has no transaction list.
// It contributes no transactions to balance replay.
type SeedPayload struct {
	Value any
}

// Transactions implements Payload.
func (SeedPayload) Transactions() []Transaction { return nil }

func (p SeedPayload) canonical() any { return p.Value }

// MinedPayload is the payload of a block admitted by mining.
type MinedPayload struct {
	Proof string
	Txs   []Transaction

	// Extra holds keys found in stored data besides proof and transactions.
	// They are kept so the block hashes the same after a reload.
	Extra map[string]any
}

// Transactions implements Payload.
func (p MinedPayload) Transactions() []Transaction {
	out := make([]Transaction, len(p.Txs))
	copy(out, p.Txs)
	return out
}

func (p MinedPayload) canonical() any {
	m := make(map[string]any, len(p.Extra)+2)
	maps.Copy(m, p.Extra)
	if p.Proof != "" {
		m["proof"] = p.Proof
	}
	txs := make([]any, len(p.Txs))
	for i, tx := range p.Txs {
		txs[i] = tx.canonical()
	}
	m["transactions"] = txs
	return m
}

// decodePayload turns stored block data into a Payload. The genesis block
// is always a seed; later blocks are mined payloads when their data is an
// object with a transactions list.
func decodePayload(index int64, data json.RawMessage) (Payload, error) {
	value, err := decodeJSON(data)
	if err != nil {
		return nil, err
	}
	if index == 0 {
		return SeedPayload{Value: value}, nil
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return SeedPayload{Value: value}, nil
	}
	rawTxs, ok := obj["transactions"]
	if !ok || rawTxs == nil {
		return SeedPayload{Value: value}, nil
	}

	p := MinedPayload{Extra: make(map[string]any)}
	for k, v := range obj {
		switch k {
		case "transactions":
		case "proof":
			if s, isStr := v.(string); isStr && s != "" {
				p.Proof = s
				continue
			}
			p.Extra[k] = v
		default:
			p.Extra[k] = v
		}
	}

	list, isList := rawTxs.([]any)
	if !isList {
		return nil, fmt.Errorf("%w: transactions is not a list", ErrInvalidTransaction)
	}
	for i, item := range list {
		tx, err := decodeTransaction(item)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		p.Txs = append(p.Txs, tx)
	}
	return p, nil
}

func decodeTransaction(v any) (Transaction, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Transaction{}, fmt.Errorf("%w: not an object", ErrInvalidTransaction)
	}
	var tx Transaction
	for k, field := range obj {
		switch k {
		case "from", "to", "memo":
			s, isStr := field.(string)
			if !isStr {
				return Transaction{}, fmt.Errorf("%w: %s is not a string", ErrInvalidTransaction, k)
			}
			switch k {
			case "from":
				tx.From = s
			case "to":
				tx.To = s
			default:
				tx.Memo = s
			}
		case "amount":
			n, isNum := field.(json.Number)
			if !isNum {
				return Transaction{}, fmt.Errorf("%w: amount is not a number", ErrInvalidTransaction)
			}
			amount, err := n.Int64()
			if err != nil {
				return Transaction{}, fmt.Errorf("%w: amount %s is not an integer", ErrInvalidTransaction, n)
			}
			tx.Amount = amount
		default:
			return Transaction{}, fmt.Errorf("%w: unexpected field %q", ErrInvalidTransaction, k)
		}
	}
	if err := tx.Validate(); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}
