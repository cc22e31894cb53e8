// Package webhooks pushes signed notifications about newly mined blocks and
// failed integrity checks to configured HTTP endpoints.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmerrifield20/britcoin/internal/chain"
)

// Event types.
const (
	EventBlockMined    = "block.mined"
	EventChainDegraded = "chain.degraded"
)

// SignatureHeader carries the HMAC-SHA256 of the request body.
const SignatureHeader = "X-Britcoin-Signature"

// Event is the JSON body posted to every endpoint.
type Event struct {
	ID        uuid.UUID  `json:"id"`
	Type      string     `json:"type"`
	Timestamp time.Time  `json:"timestamp"`
	Block     *BlockInfo `json:"block,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// BlockInfo summarises the mined block.
type BlockInfo struct {
	Index        int64  `json:"index"`
	Hash         string `json:"hash"`
	PreviousHash string `json:"previous_hash"`
	Timestamp    string `json:"timestamp"`
	Miner        string `json:"miner,omitempty"`
	Transactions int    `json:"transactions"`
}

// defaultDelays gives three attempts: immediately, then after 1s and 5s.
var defaultDelays = []time.Duration{0, 1 * time.Second, 5 * time.Second}

// MetricsRecorder is an optional callback for recording delivery outcomes.
type MetricsRecorder func(success bool)

// Notifier delivers events. It implements chain.Observer; only
// ObserveBlock does any work.
type Notifier struct {
	urls       []string
	secret     string
	httpClient *http.Client
	delays     []time.Duration
	onMetrics  MetricsRecorder
	logger     *zap.Logger

	wg sync.WaitGroup
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) { n.httpClient = c }
}

// WithRetryDelays sets the wait before each attempt. Its length is the
// number of attempts.
func WithRetryDelays(d ...time.Duration) Option {
	return func(n *Notifier) { n.delays = d }
}

// WithMetricsRecorder configures the metrics callback.
func WithMetricsRecorder(fn MetricsRecorder) Option {
	return func(n *Notifier) { n.onMetrics = fn }
}

// NewNotifier creates a Notifier for urls. An empty secret sends unsigned
// requests.
func NewNotifier(urls []string, secret string, logger *zap.Logger, opts ...Option) *Notifier {
	n := &Notifier{
		urls:       urls,
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		delays:     defaultDelays,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// ObserveBlock implements chain.Observer. Deliveries run in the background.
func (n *Notifier) ObserveBlock(b *chain.Block) {
	if len(n.urls) == 0 {
		return
	}
	txs := b.Transactions()
	info := &BlockInfo{
		Index:        b.Index(),
		Hash:         b.Hash(),
		PreviousHash: b.PreviousHash(),
		Timestamp:    b.Timestamp().String(),
		Transactions: len(txs),
	}
	// The reward is the last transaction of a mined block.
	if len(txs) > 0 && txs[len(txs)-1].From == chain.Network {
		info.Miner = txs[len(txs)-1].To
	}
	n.dispatch(Event{
		ID:        uuid.New(),
		Type:      EventBlockMined,
		Timestamp: time.Now().UTC(),
		Block:     info,
	})
}

// NotifyDegraded reports a failed chain integrity check.
func (n *Notifier) NotifyDegraded(reason string) {
	if len(n.urls) == 0 {
		return
	}
	n.dispatch(Event{
		ID:        uuid.New(),
		Type:      EventChainDegraded,
		Timestamp: time.Now().UTC(),
		Reason:    reason,
	})
}

func (n *Notifier) dispatch(event Event) {
	for _, url := range n.urls {
		n.wg.Add(1)
		go func(url string) {
			defer n.wg.Done()
			n.deliver(context.Background(), url, event)
		}(url)
	}
}

// ObserveProof implements chain.Observer.
func (n *Notifier) ObserveProof(bool) {}

// ObservePending implements chain.Observer.
func (n *Notifier) ObservePending(int) {}

// Wait blocks until in-flight deliveries finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// deliver sends the event to a single endpoint with retries.
func (n *Notifier) deliver(ctx context.Context, url string, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("webhook: marshal event", zap.Error(err))
		return
	}
	signature := ""
	if n.secret != "" {
		signature = signPayload(body, n.secret)
	}

	for attempt, delay := range n.delays {
		if delay > 0 {
			time.Sleep(delay)
		}

		success, errMsg := n.doDelivery(ctx, url, event.ID, body, signature)
		if success {
			if n.onMetrics != nil {
				n.onMetrics(true)
			}
			return
		}

		n.logger.Warn("webhook: delivery failed",
			zap.String("url", url),
			zap.String("event_id", event.ID.String()),
			zap.Int("attempt", attempt+1),
			zap.String("error", errMsg),
		)
	}
	if n.onMetrics != nil {
		n.onMetrics(false)
	}
}

// doDelivery performs a single HTTP POST delivery.
func (n *Notifier) doDelivery(ctx context.Context, url string, id uuid.UUID, body []byte, signature string) (bool, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, err.Error()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Britcoin-Delivery", id.String())
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()
	io.ReadAll(io.LimitReader(resp.Body, 1024)) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return true, ""
}

// signPayload computes an HMAC-SHA256 signature.
func signPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches body under secret.
func VerifySignature(body []byte, secret, signature string) bool {
	return hmac.Equal([]byte(signPayload(body, secret)), []byte(signature))
}
