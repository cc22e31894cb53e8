// Package chain implements the britcoin ledger: an append-only, hash-linked
// sequence of blocks admitted by a single-shot proof-of-work check over the
// chain tail and an inbound chat message.
//
// Block hashes are computed over a canonical rendering of the payload in which
// mapping keys are sorted, so the same payload always produces the same hash
// no matter how it was constructed or how a store reordered it. Balances are
// derived by replaying every transaction recorded in the chain.
//
// Three Store implementations are provided:
//   - MemoryStore: in-process, for testing and development.
//   - PostgresStore: durable, backed by a pgx connection pool.
//   - ClickHouseStore: durable, backed by clickhouse-go.
package chain
