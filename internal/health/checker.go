// Package health periodically audits the in-memory chain against itself
// and against the block store, and tracks whether the daemon is healthy.
package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jmerrifield20/britcoin/internal/chain"
)

// States reported by Status.
const (
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
)

// ErrStoreDrift is returned when the store no longer holds the chain the
// ledger serves.
var ErrStoreDrift = errors.New("store drift")

// Config holds audit configuration.
type Config struct {
	CheckInterval time.Duration
	CheckTimeout  time.Duration
	FailThreshold int
}

// Ledger is the part of the chain ledger the checker audits.
type Ledger interface {
	Verify() error
	Len() int
	Tail() *chain.Block
}

// DegradedFunc is an optional callback fired when the checker turns degraded.
type DegradedFunc func(reason string)

// MetricsRecordFunc is an optional callback for recording check results.
type MetricsRecordFunc func(success bool)

// Status is a snapshot of the checker's view.
type Status struct {
	State     string    `json:"state"`
	Failures  int       `json:"consecutive_failures"`
	LastCheck time.Time `json:"last_check,omitzero"`
	LastError string    `json:"last_error,omitempty"`
}

// Checker runs periodic integrity audits.
type Checker struct {
	ledger     Ledger
	store      chain.Store
	cfg        Config
	onDegraded DegradedFunc
	onMetrics  MetricsRecordFunc
	logger     *zap.Logger

	mu     sync.Mutex
	status Status
}

// New creates a Checker. A nil store skips the store comparison.
func New(ledger Ledger, store chain.Store, cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 5 * time.Minute
	}
	if cfg.CheckTimeout == 0 {
		cfg.CheckTimeout = 30 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}

	return &Checker{
		ledger: ledger,
		store:  store,
		cfg:    cfg,
		logger: logger,
		status: Status{State: StateHealthy},
	}
}

// SetDegradedHook configures the degraded callback.
func (h *Checker) SetDegradedHook(fn DegradedFunc) {
	h.onDegraded = fn
}

// SetMetricsRecord configures the metrics recording callback.
func (h *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	h.onMetrics = fn
}

// Start runs the audit loop until ctx is cancelled.
func (h *Checker) Start(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, h.cfg.CheckTimeout)
			h.Check(checkCtx) //nolint:errcheck
			cancel()
		case <-ctx.Done():
			return
		}
	}
}

// Check runs one audit, updates the status and returns the failure, if any.
func (h *Checker) Check(ctx context.Context) error {
	err := h.audit(ctx)

	if h.onMetrics != nil {
		h.onMetrics(err == nil)
	}

	h.mu.Lock()
	prev := h.status
	h.status.LastCheck = time.Now().UTC()
	if err == nil {
		h.status.Failures = 0
		h.status.LastError = ""
		h.status.State = StateHealthy
	} else {
		h.status.Failures++
		h.status.LastError = err.Error()
		if h.status.Failures >= h.cfg.FailThreshold {
			h.status.State = StateDegraded
		}
	}
	curr := h.status
	h.mu.Unlock()

	switch {
	case err == nil && prev.State == StateDegraded:
		h.logger.Info("health: recovered", zap.Int("blocks", h.ledger.Len()))
	case err != nil && curr.Failures == h.cfg.FailThreshold:
		// Fires once, on the check that crosses the threshold.
		h.logger.Warn("health: degraded",
			zap.Int("fail_count", curr.Failures),
			zap.Error(err),
		)
		if h.onDegraded != nil {
			h.onDegraded(err.Error())
		}
	case err != nil:
		h.logger.Warn("health: check failed", zap.Int("fail_count", curr.Failures), zap.Error(err))
	}
	return err
}

// Status returns the latest audit status.
func (h *Checker) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// audit re-verifies the in-memory chain, then checks that the store still
// holds the served tail.
func (h *Checker) audit(ctx context.Context) error {
	if err := h.ledger.Verify(); err != nil {
		return err
	}
	if h.store == nil {
		return nil
	}

	records, err := h.store.ListAscending(ctx)
	if err != nil {
		return fmt.Errorf("list stored blocks: %w", err)
	}
	tail := h.ledger.Tail()
	if len(records) < h.ledger.Len() {
		return fmt.Errorf("%w: store holds %d blocks, chain holds %d", ErrStoreDrift, len(records), h.ledger.Len())
	}
	for _, rec := range records {
		if rec.Index != tail.Index() {
			continue
		}
		stored, err := chain.BlockFromRecord(rec)
		if err != nil {
			return fmt.Errorf("%w: block %d: %w", ErrStoreDrift, rec.Index, err)
		}
		if stored.Hash() != tail.Hash() {
			return fmt.Errorf("%w: block %d hashes to %s, chain tail is %s", ErrStoreDrift, rec.Index, stored.Hash(), tail.Hash())
		}
		return nil
	}
	return fmt.Errorf("%w: store is missing block %d", ErrStoreDrift, tail.Index())
}
