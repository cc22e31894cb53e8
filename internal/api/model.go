package api

import "github.com/jmerrifield20/britcoin/internal/chain"

// MessageRequest is the body of POST /messages.
type MessageRequest struct {
	Channel string `json:"channel"`
	Sender  string `json:"sender" binding:"required"`
	Text    string `json:"text"`
}

// MessageResponse reports whether the message mined a block.
type MessageResponse struct {
	Mined bool         `json:"mined"`
	Block *chain.Block `json:"block,omitempty"`
}

// CommandRequest is the body of POST /commands. Command is the raw chat
// text, with or without the command prefix.
type CommandRequest struct {
	Channel string `json:"channel"`
	Sender  string `json:"sender"  binding:"required"`
	Command string `json:"command" binding:"required"`
}

// CommandResponse carries the reply to post back to the channel.
type CommandResponse struct {
	Reply string `json:"reply"`
}

// TransactionRequest is the body of POST /transactions.
type TransactionRequest struct {
	From   string `json:"from"   binding:"required"`
	To     string `json:"to"     binding:"required"`
	Amount int64  `json:"amount" binding:"required"`
	Memo   string `json:"memo"`
}

// TransactionResponse echoes the queued transaction.
type TransactionResponse struct {
	Transaction chain.Transaction `json:"transaction"`
	Pending     int               `json:"pending"`
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Blocks          int     `json:"blocks"`
	CoinsMined      int64   `json:"coins_mined"`
	First           string  `json:"first"`
	Last            string  `json:"last"`
	DurationSeconds float64 `json:"duration_seconds"`
	PerCoinSeconds  float64 `json:"per_coin_seconds"`
}
