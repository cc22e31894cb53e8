package chain

import "errors"

var (
	// ErrPersistence is returned when the store fails to record a new block.
	// The block is not part of the in-memory chain when this is returned.
	ErrPersistence = errors.New("persist block")

	// ErrChainBroken reports a block that does not link to its predecessor.
	ErrChainBroken = errors.New("chain verification failed")

	// ErrNoCoinsMined is returned by Stats when nothing has been minted yet,
	// so the per-coin duration is undefined.
	ErrNoCoinsMined = errors.New("no coins mined")

	// ErrInvalidTransaction is returned for malformed transactions.
	ErrInvalidTransaction = errors.New("invalid transaction")

	// ErrInsufficientFunds is returned by Send when the sender cannot cover the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrBlockNotFound is returned when a block index is outside the chain.
	ErrBlockNotFound = errors.New("block not found")

	// ErrDuplicateIndex is returned by stores when a block index is already taken.
	ErrDuplicateIndex = errors.New("block index already stored")

	// ErrBalanceOverflow is returned when a transaction would push a balance
	// outside ±math.MaxInt64. Network's balance is the negated supply, so the
	// range is kept symmetric.
	ErrBalanceOverflow = errors.New("balance out of range")
)
