package chain

import (
	"fmt"
	"math"
)

// Network is the reserved participant that mints rewards. Its balance is the
// negated total supply.
const Network = "network"

// MiningReward is the amount credited to a participant per mined block.
const MiningReward = 1

// Transaction moves Amount from one participant to another. Transactions
// carry no identity or timestamp of their own; the owning block provides both.
type Transaction struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
	Memo   string `json:"memo,omitempty"`
}

// Validate checks the required fields.
func (t Transaction) Validate() error {
	switch {
	case t.From == "":
		return fmt.Errorf("%w: from is required", ErrInvalidTransaction)
	case t.To == "":
		return fmt.Errorf("%w: to is required", ErrInvalidTransaction)
	case t.Amount <= 0:
		return fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidTransaction, t.Amount)
	}
	return nil
}

func (t Transaction) canonical() map[string]any {
	m := map[string]any{
		"from":   t.From,
		"to":     t.To,
		"amount": t.Amount,
	}
	if t.Memo != "" {
		m["memo"] = t.Memo
	}
	return m
}

// apply moves tx.Amount between the balances in bal. It fails with
// ErrBalanceOverflow instead of wrapping; bal is not restored on failure.
func apply(bal map[string]int64, tx Transaction) error {
	from, ok := addBalance(bal[tx.From], -tx.Amount)
	if !ok {
		return fmt.Errorf("%w: debiting %d from %s", ErrBalanceOverflow, tx.Amount, tx.From)
	}
	bal[tx.From] = from
	to, ok := addBalance(bal[tx.To], tx.Amount)
	if !ok {
		return fmt.Errorf("%w: crediting %d to %s", ErrBalanceOverflow, tx.Amount, tx.To)
	}
	bal[tx.To] = to
	return nil
}

func applyAll(bal map[string]int64, txs []Transaction) error {
	for _, tx := range txs {
		if err := apply(bal, tx); err != nil {
			return err
		}
	}
	return nil
}

// addBalance returns a+delta when it stays within ±math.MaxInt64.
func addBalance(a, delta int64) (int64, bool) {
	if delta > 0 && a > math.MaxInt64-delta {
		return 0, false
	}
	if delta < 0 && a < -math.MaxInt64-delta {
		return 0, false
	}
	return a + delta, true
}
