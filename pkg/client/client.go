package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Errors returned for non-2xx responses. The server's message is appended.
var (
	ErrBadRequest        = errors.New("bad request")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
	ErrNoCoinsMined      = errors.New("no coins mined")
)

// Transaction is a transfer recorded in a block or waiting in the pending buffer.
type Transaction struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
	Memo   string `json:"memo,omitempty"`
}

// Block is the storage form of a block as served by the API.
type Block struct {
	Index        int64           `json:"index"`
	Timestamp    string          `json:"timestamp"`
	Data         json.RawMessage `json:"data"`
	PreviousHash string          `json:"previous_hash"`
	Hash         string          `json:"hash"`
}

// Transactions decodes the transactions recorded in the block. Seed blocks
// have none.
func (b *Block) Transactions() []Transaction {
	var payload struct {
		Transactions []Transaction `json:"transactions"`
	}
	if err := json.Unmarshal(b.Data, &payload); err != nil {
		return nil
	}
	return payload.Transactions
}

// ChainInfo is returned by Chain.
type ChainInfo struct {
	Length     int    `json:"length"`
	Tail       string `json:"tail"`
	TailIndex  int64  `json:"tail_index"`
	Difficulty int    `json:"difficulty"`
	Pending    int    `json:"pending"`
}

// VerifyResult is returned by Verify.
type VerifyResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// BlockPage is returned by Blocks.
type BlockPage struct {
	Blocks []Block `json:"blocks"`
	Count  int     `json:"count"`
	Total  int     `json:"total"`
}

// Stats is returned by Stats.
type Stats struct {
	Blocks          int     `json:"blocks"`
	CoinsMined      int64   `json:"coins_mined"`
	First           string  `json:"first"`
	Last            string  `json:"last"`
	DurationSeconds float64 `json:"duration_seconds"`
	PerCoinSeconds  float64 `json:"per_coin_seconds"`
}

// Duration returns the time between the first and last block.
func (s Stats) Duration() time.Duration {
	return time.Duration(s.DurationSeconds * float64(time.Second))
}

// PerCoin returns the average time per minted coin.
func (s Stats) PerCoin() time.Duration {
	return time.Duration(s.PerCoinSeconds * float64(time.Second))
}

// MessageResult is returned by PostMessage.
type MessageResult struct {
	Mined bool   `json:"mined"`
	Block *Block `json:"block,omitempty"`
}

// Client talks to a britcoin daemon.
type Client struct {
	base        string
	httpClient  *http.Client
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client must not be nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches a bridge token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// New creates a Client for the daemon at base, e.g. "http://localhost:8080".
func New(base string, opts ...Option) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", base)
	}
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(base string, opts ...Option) *Client {
	c, err := New(base, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Chain returns the chain length, tail and difficulty.
func (c *Client) Chain(ctx context.Context) (*ChainInfo, error) {
	var out ChainInfo
	return &out, c.getJSON(ctx, "/api/v1/chain", &out)
}

// Verify asks the daemon to re-walk its chain.
func (c *Client) Verify(ctx context.Context) (*VerifyResult, error) {
	var out VerifyResult
	return &out, c.getJSON(ctx, "/api/v1/chain/verify", &out)
}

// Block returns the block at index.
func (c *Client) Block(ctx context.Context, index int64) (*Block, error) {
	var out Block
	return &out, c.getJSON(ctx, "/api/v1/chain/blocks/"+strconv.FormatInt(index, 10), &out)
}

// Blocks returns up to limit blocks starting at from. A zero limit uses the
// server default.
func (c *Client) Blocks(ctx context.Context, from, limit int) (*BlockPage, error) {
	q := url.Values{}
	q.Set("from", strconv.Itoa(from))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out BlockPage
	return &out, c.getJSON(ctx, "/api/v1/chain/blocks?"+q.Encode(), &out)
}

// Pending returns the transactions waiting for the next mined block.
func (c *Client) Pending(ctx context.Context) ([]Transaction, error) {
	var out struct {
		Transactions []Transaction `json:"transactions"`
	}
	if err := c.getJSON(ctx, "/api/v1/chain/pending", &out); err != nil {
		return nil, err
	}
	return out.Transactions, nil
}

// Balances returns every participant's balance, network included.
func (c *Client) Balances(ctx context.Context) (map[string]int64, error) {
	var out struct {
		Balances map[string]int64 `json:"balances"`
	}
	if err := c.getJSON(ctx, "/api/v1/balances", &out); err != nil {
		return nil, err
	}
	return out.Balances, nil
}

// Balance returns a single participant's balance.
func (c *Client) Balance(ctx context.Context, participant string) (int64, error) {
	var out struct {
		Balance int64 `json:"balance"`
	}
	if err := c.getJSON(ctx, "/api/v1/balances/"+url.PathEscape(participant), &out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}

// Stats returns minting statistics. ErrNoCoinsMined is returned before the
// first block is mined.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := c.getJSON(ctx, "/api/v1/stats", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PostMessage feeds a chat message to the mining hook.
func (c *Client) PostMessage(ctx context.Context, channel, sender, text string) (*MessageResult, error) {
	var out MessageResult
	err := c.postJSON(ctx, "/api/v1/messages", map[string]string{
		"channel": channel,
		"sender":  sender,
		"text":    text,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Command runs a chat command and returns the reply text.
func (c *Client) Command(ctx context.Context, channel, sender, command string) (string, error) {
	var out struct {
		Reply string `json:"reply"`
	}
	err := c.postJSON(ctx, "/api/v1/commands", map[string]string{
		"channel": channel,
		"sender":  sender,
		"command": command,
	}, &out)
	return out.Reply, err
}

// Send queues a transfer for the next mined block and returns the number of
// pending transactions.
func (c *Client) Send(ctx context.Context, tx Transaction) (int, error) {
	var out struct {
		Pending int `json:"pending"`
	}
	if err := c.postJSON(ctx, "/api/v1/transactions", tx, &out); err != nil {
		return 0, err
	}
	return out.Pending, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	body, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	body, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do executes a request and maps error statuses to the package's errors.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<22))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 300 {
		return body, nil
	}

	msg := errorMessage(body)
	switch resp.StatusCode {
	case http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, msg)
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case http.StatusPaymentRequired:
		return nil, fmt.Errorf("%w: %s", ErrInsufficientFunds, msg)
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, req.URL.Path)
	case http.StatusConflict:
		return nil, fmt.Errorf("%w: %s", ErrNoCoinsMined, msg)
	default:
		return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, msg)
	}
}

// errorMessage extracts the "error" field of a JSON error body, falling back
// to the raw body.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
