// Package metrics holds the Prometheus collectors for the britcoin daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jmerrifield20/britcoin/internal/chain"
)

const namespace = "britcoin"

var (
	proofAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "proof_attempts_total",
		Help:      "Proof attempts by result.",
	}, []string{"result"})

	blocksMinedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "blocks_mined_total",
		Help:      "Blocks appended by mining.",
	})

	transactionsConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "transactions_confirmed_total",
		Help:      "Transactions recorded in mined blocks, rewards included.",
	})

	chainHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "chain_height",
		Help:      "Number of blocks in the chain.",
	})

	pendingTransactions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "pending_transactions",
		Help:      "Transactions waiting for the next mined block.",
	})
)

// Ledger records ledger activity. It implements chain.Observer.
type Ledger struct{}

// NewLedger creates a Ledger metrics collector.
func NewLedger() *Ledger {
	return &Ledger{}
}

// SetHeight sets the chain height gauge, typically once after loading.
func (Ledger) SetHeight(n int) {
	chainHeight.Set(float64(n))
}

// ObserveProof implements chain.Observer.
func (Ledger) ObserveProof(accepted bool) {
	if accepted {
		proofAttemptsTotal.WithLabelValues("accepted").Inc()
	} else {
		proofAttemptsTotal.WithLabelValues("rejected").Inc()
	}
}

// ObserveBlock implements chain.Observer.
func (Ledger) ObserveBlock(b *chain.Block) {
	blocksMinedTotal.Inc()
	transactionsConfirmedTotal.Add(float64(len(b.Transactions())))
	chainHeight.Set(float64(b.Index() + 1))
}

// ObservePending implements chain.Observer.
func (Ledger) ObservePending(n int) {
	pendingTransactions.Set(float64(n))
}
