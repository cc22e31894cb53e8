package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jmerrifield20/britcoin/internal/chain"
)

var (
	storeOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Count of block store operations.",
	}, []string{"driver", "operation", "status"})
	storeOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Duration of block store operations.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"driver", "operation", "status"})
)

// Store wraps a chain.Store and records the outcome and latency of every call.
type Store struct {
	inner  chain.Store
	driver string
}

// NewStore instruments inner. driver labels the series, e.g. "postgres".
func NewStore(inner chain.Store, driver string) *Store {
	if driver == "" {
		driver = "unknown"
	}
	return &Store{inner: inner, driver: driver}
}

// ListAscending implements chain.Store.
func (s *Store) ListAscending(ctx context.Context) ([]chain.Record, error) {
	start := time.Now()
	recs, err := s.inner.ListAscending(ctx)
	s.observe("list", err, start)
	return recs, err
}

// Insert implements chain.Store.
func (s *Store) Insert(ctx context.Context, rec chain.Record) error {
	start := time.Now()
	err := s.inner.Insert(ctx, rec)
	s.observe("insert", err, start)
	return err
}

// Orphan implements chain.Store.
func (s *Store) Orphan(ctx context.Context, from int64) (int, error) {
	start := time.Now()
	n, err := s.inner.Orphan(ctx, from)
	s.observe("orphan", err, start)
	return n, err
}

func (s *Store) observe(operation string, err error, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	storeOperationsTotal.WithLabelValues(s.driver, operation, status).Inc()
	storeOperationDuration.WithLabelValues(s.driver, operation, status).Observe(time.Since(started).Seconds())
}
