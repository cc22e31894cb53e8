package chain

import "context"

// Store persists block records. The ledger reads the full history once at
// startup, orphans whatever failed verification, and inserts one record per
// admitted block.
type Store interface {
	// ListAscending returns every stored record ordered by index.
	ListAscending(ctx context.Context) ([]Record, error)

	// Insert stores a single record. Implementations return an error
	// wrapping ErrDuplicateIndex when the index is already taken.
	Insert(ctx context.Context, rec Record) error

	// Orphan moves every record whose index is at least from out of the
	// chain. Orphaned records are kept but no longer listed, which frees
	// their indices for new blocks. It returns the number of records moved.
	Orphan(ctx context.Context, from int64) (int, error)
}
