package bot

import (
	"context"

	"github.com/jmerrifield20/britcoin/internal/chain"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// Ledger is the part of *chain.Ledger the chat hooks use.
	Ledger interface {
		Mine(ctx context.Context, participant, message string) (*chain.Block, error)
		Send(ctx context.Context, from, to string, amount int64, memo string) error
		Balance(participant string) int64
		Balances() map[string]int64
		Stats() (chain.Stats, error)
	}
)
